package reconciler

import (
	"strings"

	"github.com/claresudbery/Reconciliate-sub002/internal/matchfinder"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
)

// The match finalizer commits a confirmed candidate by mutating both
// records' match state symmetrically, and is the only code that calls
// records.Link / records.Unlink. Side effects are confined to the two
// collections the Reconciliator owns; no I/O happens here.

// Description markers written onto committed records.
const (
	// nonMatchingMarker flags a placeholder relationship where the user
	// declared that no real match exists.
	nonMatchingMarker = "NO MATCH: "

	// sumMismatchMarker flags a combined record whose constituent sum does
	// not exactly equal the source amount.
	sumMismatchMarker = "(sum mismatch) "
)

// commit links source to the chosen candidate subset.
//
// A single-record subset is linked directly. A multi-record subset is
// replaced in the owned working set by one synthetic combined record (dated
// on the source date, described by its constituent amounts), which is then
// linked to the source. When the subset sum differs from the source amount,
// a balancing adjustment record for the difference is appended to the owned
// set so that total matched amount still accounts for the total source
// amount, unless the commit is a declared non-match.
func (r *Reconciliator) commit(source *records.Record, pm *matchfinder.PotentialMatch, nonMatching bool) (*MatchedPair, error) {
	if len(pm.ActualRecords) == 0 {
		return nil, perrors.InternalError(perrors.CodeUnexpectedError, "commit",
			nil).WithContext("reason", "candidate with no records")
	}

	if len(pm.ActualRecords) == 1 {
		return r.commitSingle(source, pm, nonMatching)
	}
	return r.commitCombined(source, pm, nonMatching)
}

func (r *Reconciliator) commitSingle(source *records.Record, pm *matchfinder.PotentialMatch, nonMatching bool) (*MatchedPair, error) {
	owned := pm.ActualRecords[0]
	if nonMatching {
		owned.Description = nonMatchingMarker + owned.Description
	}

	if err := records.Link(source, owned); err != nil {
		return nil, err
	}

	r.log.WithFields(logger.Fields{
		"source": source.Description,
		"owned":  owned.Description,
		"amount": owned.MainAmount.String(),
	}).Debug("Committed single match")

	return &MatchedPair{Source: source, Owned: owned}, nil
}

func (r *Reconciliator) commitCombined(source *records.Record, pm *matchfinder.PotentialMatch, nonMatching bool) (*MatchedPair, error) {
	constituents := make([]*records.Record, len(pm.ActualRecords))
	copy(constituents, pm.ActualRecords)

	sum := records.SumAmounts(constituents)

	combined := records.New(records.KindOwned, source.Date, sum,
		constituents[0].Type, combinedDescription(constituents, pm.AmountMatch), 0)
	if nonMatching {
		combined.Description = nonMatchingMarker + combined.Description
	}

	// Replace the constituents with the combined record, at the position of
	// the first constituent so output ordering stays stable.
	insertAt := r.removeOwned(constituents)
	r.insertOwned(insertAt, combined)

	pair := &MatchedPair{
		Source:       source,
		Owned:        combined,
		constituents: constituents,
	}

	// Surface any shortfall or excess as an explicit adjustment record
	// rather than absorbing it silently.
	if !pm.AmountMatch && !nonMatching {
		difference := source.MainAmount.Sub(sum)
		adjustment := records.New(records.KindOwned, source.Date, difference, "",
			"Balancing adjustment for: "+source.Description, 0)
		r.insertOwned(insertAt+1, adjustment)
		pair.adjustment = adjustment
	}

	if err := records.Link(source, combined); err != nil {
		return nil, err
	}

	r.log.WithFields(logger.Fields{
		"source":       source.Description,
		"constituents": len(constituents),
		"sum":          sum.String(),
		"exact":        pm.AmountMatch,
	}).Debug("Committed combined match")

	return pair, nil
}

// combinedDescription concatenates the constituent amounts, flagged when
// the subset sum does not exactly equal the source amount.
func combinedDescription(constituents []*records.Record, amountMatch bool) string {
	amounts := make([]string, 0, len(constituents))
	for _, rec := range constituents {
		amounts = append(amounts, rec.MainAmount.StringFixed(2))
	}

	description := strings.Join(amounts, "; ")
	if !amountMatch {
		description = sumMismatchMarker + description
	}
	return description
}

// removeOwned removes the given records from the owned working set and
// returns the index the first of them occupied.
func (r *Reconciliator) removeOwned(toRemove []*records.Record) int {
	removing := make(map[*records.Record]bool, len(toRemove))
	for _, rec := range toRemove {
		removing[rec] = true
	}

	insertAt := len(r.owned)
	kept := r.owned[:0]
	for i, rec := range r.owned {
		if removing[rec] {
			if i < insertAt {
				insertAt = len(kept)
			}
			continue
		}
		kept = append(kept, rec)
	}
	r.owned = kept

	return insertAt
}

// insertOwned inserts rec into the owned working set at index i.
func (r *Reconciliator) insertOwned(i int, rec *records.Record) {
	if i < 0 {
		i = 0
	}
	if i > len(r.owned) {
		i = len(r.owned)
	}

	r.owned = append(r.owned, nil)
	copy(r.owned[i+1:], r.owned[i:])
	r.owned[i] = rec
}

// unwind reverses one committed match: both sides are unlinked, and a
// combined match additionally has its synthetic record (and any balancing
// adjustment) removed from the owned set with the original constituents
// restored in place.
func (r *Reconciliator) unwind(pair *MatchedPair) error {
	records.Unlink(pair.Source)

	// A declared non-match prefixed its marker onto the owned description;
	// the record must come back exactly as it went in.
	pair.Owned.Description = strings.TrimPrefix(pair.Owned.Description, nonMatchingMarker)

	if len(pair.constituents) > 0 {
		position := r.removeOwned([]*records.Record{pair.Owned})
		if pair.adjustment != nil {
			r.removeOwned([]*records.Record{pair.adjustment})
		}
		for offset, constituent := range pair.constituents {
			r.insertOwned(position+offset, constituent)
		}
	}

	r.log.WithFields(logger.Fields{
		"source": pair.Source.Description,
		"owned":  pair.Owned.Description,
	}).Debug("Removed committed match")

	return r.verifyConsistency("remove match")
}
