package reconciler

import (
	"sort"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
)

// DoAutoMatching runs candidate generation across all remaining unmatched
// third-party records and commits every case with exactly one unambiguous,
// exact-amount candidate. Everything else is left for manual matching.
//
// The pass is idempotent: records committed by one run are matched and
// therefore skipped by the next. It does not disturb the manual walk; the
// cursor is rewound afterwards.
func (r *Reconciliator) DoAutoMatching() ([]*MatchedPair, error) {
	var tracker *logger.PassTracker
	if r.config.ProgressReporting {
		tracker = logger.NewPassTracker(r.log, "auto-matching", len(r.thirdParty))
	}

	var committed []*MatchedPair
	for i, source := range r.thirdParty {
		if tracker != nil {
			tracker.Update(i + 1)
		}
		if source.Matched || source.Divider {
			continue
		}

		candidates := r.finder.FindMatches(source, records.Unmatched(r.owned))
		if len(candidates) != 1 || !candidates[0].AmountMatch {
			continue
		}

		pair, err := r.commit(source, candidates[0], false)
		if err != nil {
			return committed, err
		}
		committed = append(committed, pair)
	}

	r.autoMatches = append(r.autoMatches, committed...)
	r.Rewind()

	if err := r.verifyConsistency("auto-matching"); err != nil {
		return committed, err
	}

	if tracker != nil {
		tracker.Complete(len(committed))
	}
	r.log.WithField("committed", len(committed)).Info("Auto-matching pass complete")

	return committed, nil
}

// ReturnAutoMatches returns the matches committed by auto-matching passes,
// in commit order.
func (r *Reconciliator) ReturnAutoMatches() []*MatchedPair {
	return r.autoMatches
}

// FinalMatches returns the matches committed by manual decisions, in commit
// order.
func (r *Reconciliator) FinalMatches() []*MatchedPair {
	return r.finalMatches
}

// RemoveAutoMatch undoes the auto-committed match at index. Both sides are
// unlinked; neither is ever left half-matched.
func (r *Reconciliator) RemoveAutoMatch(index int) error {
	return r.removeFrom(&r.autoMatches, "RemoveAutoMatch", index)
}

// RemoveMultipleAutoMatches undoes several auto-committed matches. All
// indices are validated before any match is touched.
func (r *Reconciliator) RemoveMultipleAutoMatches(indices []int) error {
	return r.removeMultipleFrom(&r.autoMatches, "RemoveMultipleAutoMatches", indices)
}

// RemoveFinalMatch undoes the manually committed match at index.
func (r *Reconciliator) RemoveFinalMatch(index int) error {
	return r.removeFrom(&r.finalMatches, "RemoveFinalMatch", index)
}

// RemoveMultipleFinalMatches undoes several manually committed matches.
func (r *Reconciliator) RemoveMultipleFinalMatches(indices []int) error {
	return r.removeMultipleFrom(&r.finalMatches, "RemoveMultipleFinalMatches", indices)
}

func (r *Reconciliator) removeFrom(registry *[]*MatchedPair, operation string, index int) error {
	pairs := *registry
	if index < 0 || index >= len(pairs) {
		return perrors.UsageError(perrors.CodeIndexOutOfRange, operation, index)
	}

	if err := r.unwind(pairs[index]); err != nil {
		return err
	}

	*registry = append(pairs[:index], pairs[index+1:]...)
	return nil
}

func (r *Reconciliator) removeMultipleFrom(registry *[]*MatchedPair, operation string, indices []int) error {
	pairs := *registry
	seen := make(map[int]bool, len(indices))
	for _, index := range indices {
		if index < 0 || index >= len(pairs) || seen[index] {
			return perrors.UsageError(perrors.CodeIndexOutOfRange, operation, index)
		}
		seen[index] = true
	}

	// Remove highest-first so earlier indices stay valid.
	ordered := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	for _, index := range ordered {
		if err := r.removeFrom(registry, operation, index); err != nil {
			return err
		}
	}
	return nil
}
