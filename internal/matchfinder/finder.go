package matchfinder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/shopspring/decimal"
)

// PotentialMatch is a disposable candidate: an ordered subset of owned
// records proposed as the counterpart of one third-party record. Candidates
// reference pool records without claiming ownership and are discarded once
// a matching decision is made for the current source record.
type PotentialMatch struct {
	ActualRecords []*records.Record

	// AmountMatch is true iff the subset sum equals the target within epsilon.
	AmountMatch bool

	FullTextMatch    bool
	PartialTextMatch bool

	Rankings Rankings
}

// Rankings holds the numeric scores attached to a PotentialMatch.
// Lower is better for all three.
type Rankings struct {
	// Amount is the absolute difference between the candidate sum and the
	// source amount; zero means an exact match.
	Amount decimal.Decimal `json:"amount"`

	// DateDays is the number of days between the source date and the
	// candidate's representative date (the latest constituent date).
	DateDays int `json:"date_days"`

	// Combined blends amount and date distance for default ordering.
	Combined float64 `json:"combined"`
}

// Sum returns the combined amount of the candidate's records.
func (pm *PotentialMatch) Sum() decimal.Decimal {
	return records.SumAmounts(pm.ActualRecords)
}

// String returns a short description of the candidate.
func (pm *PotentialMatch) String() string {
	return fmt.Sprintf("PotentialMatch{Records: %d, Sum: %s, AmountMatch: %t, Combined: %.3f}",
		len(pm.ActualRecords), pm.Sum(), pm.AmountMatch, pm.Rankings.Combined)
}

// Finder generates and ranks potential matches for one source record at a
// time against a pool of unmatched owned records.
type Finder struct {
	config *FinderConfig
	log    logger.Logger
}

// NewFinder creates a finder with the given configuration. A nil
// configuration falls back to DefaultFinderConfig.
func NewFinder(config *FinderConfig) *Finder {
	if config == nil {
		config = DefaultFinderConfig()
	}

	return &Finder{
		config: config.Clone(),
		log:    logger.WithComponent("matchfinder"),
	}
}

// Config returns a copy of the finder's configuration.
func (f *Finder) Config() *FinderConfig {
	return f.config.Clone()
}

// FindMatches produces ranked potential matches for source against pool.
//
// The pool must contain only unmatched records; amounts are assumed
// non-negative at this stage (sign normalization happens upstream, when
// statements are loaded). An empty result is a valid, expected outcome
// meaning "no automatic suggestion, defer to manual matching".
func (f *Finder) FindMatches(source *records.Record, pool []*records.Record) []*PotentialMatch {
	subsets := f.findSubsets(source.MainAmount, pool)
	if len(subsets) == 0 {
		return nil
	}

	matches := make([]*PotentialMatch, 0, len(subsets))
	for _, subset := range subsets {
		matches = append(matches, f.buildPotentialMatch(source, subset))
	}

	return f.rank(source, matches)
}

// findSubsets runs the subset-sum search and deduplicates the results.
func (f *Finder) findSubsets(target decimal.Decimal, pool []*records.Record) [][]*records.Record {
	candidates := f.discardOverTarget(pool, target)
	if len(candidates) == 0 {
		return nil
	}

	sum := records.SumAmounts(candidates)
	if f.withinEpsilon(sum, target) {
		return [][]*records.Record{candidates}
	}
	if sum.LessThan(target) {
		// Best-effort under-match: surface the whole remaining set rather
		// than discard it, so a human can resolve the shortfall.
		return [][]*records.Record{candidates}
	}

	if len(candidates) > f.config.MaxPoolSize {
		f.log.WithFields(logger.Fields{
			"pool_size": len(candidates),
			"max":       f.config.MaxPoolSize,
		}).Warn("Candidate pool too large for subset search, no exact candidates found")
		return nil
	}

	subsets := f.search(candidates, target, 0)
	return f.deduplicate(pool, subsets)
}

// search enumerates subsets by inclusion branching: each viable candidate is
// taken in turn and the remainder of the target is searched among the other
// candidates. The same subset can be reached in several orders, which is
// why deduplicate exists.
func (f *Finder) search(candidates []*records.Record, target decimal.Decimal, depth int) [][]*records.Record {
	if depth >= f.config.MaxDepth {
		return nil
	}

	viable := f.discardOverTarget(candidates, target)
	if len(viable) == 0 {
		return nil
	}

	sum := records.SumAmounts(viable)
	if f.withinEpsilon(sum, target) || sum.LessThan(target) {
		return [][]*records.Record{viable}
	}

	var results [][]*records.Record
	for i, candidate := range viable {
		remainder := target.Sub(candidate.MainAmount)

		if f.withinEpsilon(remainder, decimal.Zero) {
			results = append(results, []*records.Record{candidate})
			continue
		}

		rest := make([]*records.Record, 0, len(viable)-1)
		rest = append(rest, viable[:i]...)
		rest = append(rest, viable[i+1:]...)

		for _, tail := range f.search(rest, remainder, depth+1) {
			subset := make([]*records.Record, 0, len(tail)+1)
			subset = append(subset, candidate)
			subset = append(subset, tail...)
			results = append(results, subset)
		}
	}

	return results
}

// discardOverTarget drops candidates whose amount exceeds the target
// (beyond epsilon), preserving pool order.
func (f *Finder) discardOverTarget(pool []*records.Record, target decimal.Decimal) []*records.Record {
	var out []*records.Record
	for _, r := range pool {
		if r.MainAmount.Sub(target).GreaterThan(f.config.AmountEpsilon) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// deduplicate keeps one representative per equivalent subset. Two subsets
// are equivalent if they contain the same records regardless of order.
// Records are keyed by their position in the original pool snapshot.
func (f *Finder) deduplicate(pool []*records.Record, subsets [][]*records.Record) [][]*records.Record {
	position := make(map[*records.Record]int, len(pool))
	for i, r := range pool {
		position[r] = i
	}

	seen := make(map[string]bool, len(subsets))
	var out [][]*records.Record

	for _, subset := range subsets {
		indices := make([]int, 0, len(subset))
		for _, r := range subset {
			indices = append(indices, position[r])
		}
		sort.Ints(indices)

		var key strings.Builder
		for _, idx := range indices {
			fmt.Fprintf(&key, "%d,", idx)
		}

		if seen[key.String()] {
			continue
		}
		seen[key.String()] = true
		out = append(out, subset)
	}

	return out
}

func (f *Finder) withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(f.config.AmountEpsilon)
}

// Rescore recomputes a candidate's flags and rankings after its record set
// was edited in place (e.g. the user removed one record from a combined
// candidate). Ordering within a larger candidate list is not re-derived.
func (f *Finder) Rescore(source *records.Record, pm *PotentialMatch) {
	pm.AmountMatch = f.withinEpsilon(records.SumAmounts(pm.ActualRecords), source.MainAmount)
	pm.FullTextMatch, pm.PartialTextMatch = descriptionSimilarity(source, pm.ActualRecords)
	f.score(source, pm)
}

// buildPotentialMatch wraps one subset into a candidate with its flags set.
func (f *Finder) buildPotentialMatch(source *records.Record, subset []*records.Record) *PotentialMatch {
	pm := &PotentialMatch{
		ActualRecords: subset,
		AmountMatch:   f.withinEpsilon(records.SumAmounts(subset), source.MainAmount),
	}

	pm.FullTextMatch, pm.PartialTextMatch = descriptionSimilarity(source, subset)
	return pm
}

// descriptionSimilarity reports whether any constituent's description fully
// matches the source description (case-insensitive) or shares significant
// words with it.
func descriptionSimilarity(source *records.Record, subset []*records.Record) (full, partial bool) {
	sourceNorm := normalizeDescription(source.Description)
	if sourceNorm == "" {
		return false, false
	}
	sourceWords := significantWords(sourceNorm)

	for _, r := range subset {
		norm := normalizeDescription(r.Description)
		if norm == "" {
			continue
		}
		if norm == sourceNorm {
			full = true
			partial = true
			return full, partial
		}
		for w := range significantWords(norm) {
			if sourceWords[w] {
				partial = true
			}
		}
	}

	return full, partial
}

func normalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// significantWords returns the words worth comparing: short tokens like
// "of" or "to" generate too many false positives.
func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) >= 4 {
			words[w] = true
		}
	}
	return words
}
