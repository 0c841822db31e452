package matchfinder

import (
	"sort"
	"time"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
)

// rank assigns rankings to each candidate and returns them best-first.
//
// Ordering is by the combined score, with ties broken by the collection
// order of the first constituent record, so repeated runs over identical
// input produce identical ordering. Partial (non-exact) candidates outside
// the configured date or amount thresholds are suppressed as noise, unless
// suppression would leave nothing to show.
func (f *Finder) rank(source *records.Record, matches []*PotentialMatch) []*PotentialMatch {
	for _, pm := range matches {
		f.score(source, pm)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Rankings.Combined != matches[j].Rankings.Combined {
			return matches[i].Rankings.Combined < matches[j].Rankings.Combined
		}
		return firstSourceLine(matches[i]) < firstSourceLine(matches[j])
	})

	kept := matches[:0:0]
	for _, pm := range matches {
		if f.suppressed(pm) {
			continue
		}
		kept = append(kept, pm)
	}

	if len(kept) == 0 {
		// Everything was noise; better to show a weak suggestion than none.
		return matches
	}
	return kept
}

// score fills in the candidate's rankings against the source record.
func (f *Finder) score(source *records.Record, pm *PotentialMatch) {
	pm.Rankings.Amount = pm.Sum().Sub(source.MainAmount).Abs()
	pm.Rankings.DateDays = records.DaysBetween(source.Date, representativeDate(pm))

	amountDistance, _ := pm.Rankings.Amount.Float64()
	pm.Rankings.Combined = f.config.Weights.AmountWeight*amountDistance +
		f.config.Weights.DateWeight*float64(pm.Rankings.DateDays)
}

// suppressed reports whether a partial candidate falls outside the
// configured proximity thresholds. Exact-amount candidates are never
// suppressed.
func (f *Finder) suppressed(pm *PotentialMatch) bool {
	if pm.AmountMatch {
		return false
	}

	if pm.Rankings.DateDays > f.config.DateThresholdDays {
		return true
	}

	if !f.config.AmountThreshold.IsZero() && pm.Rankings.Amount.GreaterThan(f.config.AmountThreshold) {
		return true
	}

	return false
}

// representativeDate is the latest constituent date. Pending ledger entries
// are typically dated at or before clearing, so the latest one sits closest
// to the statement date.
func representativeDate(pm *PotentialMatch) time.Time {
	var latest time.Time
	for _, r := range pm.ActualRecords {
		if r.Date.After(latest) {
			latest = r.Date
		}
	}
	return latest
}

func firstSourceLine(pm *PotentialMatch) int {
	if len(pm.ActualRecords) == 0 {
		return 0
	}
	return pm.ActualRecords[0].SourceLine
}
