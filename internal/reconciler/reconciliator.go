// Package reconciler owns the stateful walk through a third-party statement
// against an owned ledger. A Reconciliator holds both record collections,
// advances one unmatched third-party record at a time, asks the match finder
// for ranked candidates, and commits or undoes matches through the match
// finalizer, which is the only code path allowed to mutate match state.
//
// The engine is single-threaded and assumes exclusive ownership of its
// collections for the duration of a reconciliation session. The driving
// loop (auto pass, then interactive manual pass) lives in the CLI, not here.
package reconciler

import (
	"fmt"

	"github.com/claresudbery/Reconciliate-sub002/internal/matchfinder"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
)

// State identifies where the walk currently stands.
type State int

const (
	// StateIdle means no current source record is selected.
	StateIdle State = iota
	// StateHasCurrentSource means a source record was selected but its
	// candidates are not currently on display.
	StateHasCurrentSource
	// StateAwaitingDecision means candidates for the current source record
	// are computed and a decision is expected.
	StateAwaitingDecision
	// StateFinished means no unmatched third-party record remains.
	StateFinished
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateHasCurrentSource:
		return "HasCurrentSource"
	case StateAwaitingDecision:
		return "AwaitingDecision"
	case StateFinished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Config holds configuration options for the reconciliator.
type Config struct {
	// ConsistencyChecks re-verifies the match symmetry invariant after
	// every commit and undo. Cheap relative to the subset search.
	ConsistencyChecks bool

	// ProgressReporting logs progress during the auto-matching pass.
	ProgressReporting bool
}

// DefaultConfig returns the default reconciliator configuration.
func DefaultConfig() *Config {
	return &Config{
		ConsistencyChecks: true,
		ProgressReporting: false,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return nil
}

// MatchedPair records one committed match for display and undo. Owned is
// the record actually linked to the source: the single chosen record, or
// the synthetic combined record when the match spans several owned records.
type MatchedPair struct {
	Source *records.Record
	Owned  *records.Record

	// constituents holds the original owned records replaced by a synthetic
	// combined record, in their original order. Empty for single matches.
	constituents []*records.Record

	// adjustment is the balancing adjustment record created when a combined
	// match did not sum exactly to the source amount.
	adjustment *records.Record
}

// Constituents returns the original owned records behind a combined match.
func (mp *MatchedPair) Constituents() []*records.Record {
	return mp.constituents
}

// Adjustment returns the balancing adjustment record, if one was created.
func (mp *MatchedPair) Adjustment() *records.Record {
	return mp.adjustment
}

// Reconciliator walks the third-party collection one unmatched record at a
// time and owns all mutations of both working sets.
type Reconciliator struct {
	thirdParty []*records.Record
	owned      []*records.Record

	finder *matchfinder.Finder
	config *Config
	log    logger.Logger

	state          State
	cursor         int
	currentMatches []*matchfinder.PotentialMatch

	autoMatches  []*MatchedPair
	finalMatches []*MatchedPair
}

// New creates a Reconciliator over the two collections. Records are assumed
// to carry whatever the loader populated, with Matched pre-set only for
// records reconciled in earlier sessions. SourceLine is assigned here from
// collection order.
func New(thirdParty, owned []*records.Record, finder *matchfinder.Finder, config *Config) (*Reconciliator, error) {
	if finder == nil {
		finder = matchfinder.NewFinder(nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	r := &Reconciliator{
		thirdParty: thirdParty,
		owned:      owned,
		finder:     finder,
		config:     config,
		log:        logger.WithComponent("reconciler"),
		state:      StateIdle,
		cursor:     -1,
	}
	r.renumber()

	return r, nil
}

// renumber reassigns SourceLine from current collection order.
func (r *Reconciliator) renumber() {
	for i, rec := range r.thirdParty {
		rec.SourceLine = i
	}
	for i, rec := range r.owned {
		rec.SourceLine = i
	}
}

// State returns the current walk state.
func (r *Reconciliator) State() State {
	return r.state
}

// Finished reports whether the walk has run out of unmatched source records.
func (r *Reconciliator) Finished() bool {
	return r.state == StateFinished
}

// FilterThirdParty removes third-party records not satisfying pred from the
// working set. Intended for use before matching begins (e.g. a specialized
// pass over expense rows only); it does not affect committed matches, and it
// rewinds the walk.
func (r *Reconciliator) FilterThirdParty(pred func(*records.Record) bool) {
	r.thirdParty = filterRecords(r.thirdParty, pred)
	r.Rewind()
}

// FilterOwned removes owned records not satisfying pred from the working set.
func (r *Reconciliator) FilterOwned(pred func(*records.Record) bool) {
	r.owned = filterRecords(r.owned, pred)
	r.Rewind()
}

func filterRecords(recs []*records.Record, pred func(*records.Record) bool) []*records.Record {
	out := recs[:0:0]
	for _, rec := range recs {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// FindMatchesForNextThirdPartyRecord advances to the next unmatched
// third-party record in collection order, computes its ranked candidates
// against the unmatched owned pool, and moves to AwaitingDecision. Returns
// false, leaving the state Finished, when no unmatched source record remains.
func (r *Reconciliator) FindMatchesForNextThirdPartyRecord() bool {
	for i := r.cursor + 1; i < len(r.thirdParty); i++ {
		rec := r.thirdParty[i]
		if rec.Matched || rec.Divider {
			continue
		}

		r.cursor = i
		r.currentMatches = r.finder.FindMatches(rec, records.Unmatched(r.owned))
		r.state = StateAwaitingDecision

		r.log.WithFields(logger.Fields{
			"source":     rec.Description,
			"amount":     rec.MainAmount.String(),
			"candidates": len(r.currentMatches),
		}).Debug("Computed candidates for source record")
		return true
	}

	r.cursor = len(r.thirdParty)
	r.currentMatches = nil
	r.state = StateFinished
	return false
}

// CurrentSourceRecord returns the source record the walk is positioned on,
// or nil when there is none.
func (r *Reconciliator) CurrentSourceRecord() *records.Record {
	if r.cursor < 0 || r.cursor >= len(r.thirdParty) {
		return nil
	}
	return r.thirdParty[r.cursor]
}

// CurrentPotentialMatches returns the ranked candidate list for the current
// source record. Read-only; safe to call repeatedly without side effects.
func (r *Reconciliator) CurrentPotentialMatches() []*matchfinder.PotentialMatch {
	return r.currentMatches
}

// MatchCurrentRecord commits candidate index for the current source record.
// Advancing to the next record remains the caller's responsibility.
func (r *Reconciliator) MatchCurrentRecord(index int) error {
	pair, err := r.commitCurrent("MatchCurrentRecord", index, false)
	if err != nil {
		return err
	}

	r.finalMatches = append(r.finalMatches, pair)
	return nil
}

// MatchNonMatchingRecord records a placeholder relationship with candidate
// index when the user has declared that no real match exists. The records
// are linked symmetrically like any match, but the committed description is
// flagged and no balancing adjustment is created: the amounts are not
// expected to balance.
func (r *Reconciliator) MatchNonMatchingRecord(index int) error {
	pair, err := r.commitCurrent("MatchNonMatchingRecord", index, true)
	if err != nil {
		return err
	}

	r.finalMatches = append(r.finalMatches, pair)
	return nil
}

// commitCurrent validates the decision context, runs the finalizer, and
// leaves the walk positioned on the (now matched) current record.
func (r *Reconciliator) commitCurrent(operation string, index int, nonMatching bool) (*MatchedPair, error) {
	if r.state != StateAwaitingDecision {
		return nil, perrors.New(perrors.CategoryReconciliation, perrors.CodeNotAwaitingDecision,
			fmt.Sprintf("no candidates on display (state %s)", r.state))
	}
	if index < 0 || index >= len(r.currentMatches) {
		return nil, perrors.UsageError(perrors.CodeIndexOutOfRange, operation, index)
	}

	source := r.CurrentSourceRecord()
	pair, err := r.commit(source, r.currentMatches[index], nonMatching)
	if err != nil {
		return nil, err
	}

	r.currentMatches = nil
	r.state = StateHasCurrentSource

	if err := r.verifyConsistency("commit"); err != nil {
		return nil, err
	}
	return pair, nil
}

// DeleteCurrentThirdPartyRecord removes the current source record from the
// working set without matching it (e.g. a confirmed duplicate line).
// Irreversible within the session except via a full reload.
func (r *Reconciliator) DeleteCurrentThirdPartyRecord() error {
	if r.CurrentSourceRecord() == nil {
		return perrors.New(perrors.CategoryReconciliation, perrors.CodeNoCurrentRecord,
			"no current third-party record to delete")
	}
	return r.DeleteSpecificThirdPartyRecord(r.cursor)
}

// DeleteSpecificThirdPartyRecord removes the third-party record at index i
// from the working set.
func (r *Reconciliator) DeleteSpecificThirdPartyRecord(i int) error {
	if i < 0 || i >= len(r.thirdParty) {
		return perrors.UsageError(perrors.CodeIndexOutOfRange, "DeleteSpecificThirdPartyRecord", i)
	}

	deleted := r.thirdParty[i]
	if deleted.Matched {
		// Committed matches must be removed first; deleting a matched
		// record would strand its counterpart.
		return perrors.New(perrors.CategoryReconciliation, perrors.CodeNotAwaitingDecision,
			"cannot delete a matched record; remove its match first")
	}

	r.thirdParty = append(r.thirdParty[:i], r.thirdParty[i+1:]...)

	if i == r.cursor {
		r.cursor--
		r.currentMatches = nil
		r.state = StateIdle
	} else if i < r.cursor {
		r.cursor--
	}

	r.log.WithField("description", deleted.Description).Info("Deleted third-party record")
	return nil
}

// DeleteSpecificOwnedRecordFromListOfMatches removes one owned record from
// the currently displayed candidate subset, for when the user disagrees that
// a specific record belongs in a combined match. Only valid while awaiting a
// decision. matchIndex selects the candidate, recordIndex the record within
// it; a candidate emptied by the removal is dropped from the list.
func (r *Reconciliator) DeleteSpecificOwnedRecordFromListOfMatches(matchIndex, recordIndex int) error {
	if r.state != StateAwaitingDecision {
		return perrors.New(perrors.CategoryReconciliation, perrors.CodeNotAwaitingDecision,
			fmt.Sprintf("no candidates on display (state %s)", r.state))
	}
	if matchIndex < 0 || matchIndex >= len(r.currentMatches) {
		return perrors.UsageError(perrors.CodeIndexOutOfRange, "DeleteSpecificOwnedRecordFromListOfMatches", matchIndex)
	}

	pm := r.currentMatches[matchIndex]
	if recordIndex < 0 || recordIndex >= len(pm.ActualRecords) {
		return perrors.UsageError(perrors.CodeIndexOutOfRange, "DeleteSpecificOwnedRecordFromListOfMatches", recordIndex)
	}

	pm.ActualRecords = append(pm.ActualRecords[:recordIndex], pm.ActualRecords[recordIndex+1:]...)

	if len(pm.ActualRecords) == 0 {
		r.currentMatches = append(r.currentMatches[:matchIndex], r.currentMatches[matchIndex+1:]...)
		return nil
	}

	r.finder.Rescore(r.CurrentSourceRecord(), pm)
	return nil
}

// Rewind resets the walk cursor to the start of the third-party collection
// without undoing any committed matches, so a further matching pass (e.g.
// with different filters) can run over the same working set.
func (r *Reconciliator) Rewind() {
	r.cursor = -1
	r.currentMatches = nil
	r.state = StateIdle
}

// RefreshFiles re-synchronizes the in-memory working sets with reloaded
// backing data, after bespoke external mutation (e.g. a specialized matcher
// inserted synthetic records). The reloaded collections become the source of
// truth: matched flags are taken as loaded, the walk rewinds, and the
// session's undo registries are cleared since their record identities no
// longer exist in the working sets.
func (r *Reconciliator) RefreshFiles(thirdParty, owned []*records.Record) {
	r.thirdParty = thirdParty
	r.owned = owned
	r.renumber()
	r.autoMatches = nil
	r.finalMatches = nil
	r.Rewind()

	r.log.WithFields(logger.Fields{
		"third_party": len(thirdParty),
		"owned":       len(owned),
	}).Info("Refreshed working sets from backing data")
}

// ThirdPartyRecords returns the third-party working set in order.
func (r *Reconciliator) ThirdPartyRecords() []*records.Record {
	return r.thirdParty
}

// OwnedRecords returns the owned working set in order.
func (r *Reconciliator) OwnedRecords() []*records.Record {
	return r.owned
}

// UnmatchedThirdParty returns the unmatched third-party partition.
func (r *Reconciliator) UnmatchedThirdParty() []*records.Record {
	return records.Unmatched(r.thirdParty)
}

// UnmatchedOwned returns the unmatched owned partition.
func (r *Reconciliator) UnmatchedOwned() []*records.Record {
	return records.Unmatched(r.owned)
}

// MatchedThirdParty returns the matched third-party partition.
func (r *Reconciliator) MatchedThirdParty() []*records.Record {
	return records.Matched(r.thirdParty)
}

// MatchedOwned returns the matched owned partition.
func (r *Reconciliator) MatchedOwned() []*records.Record {
	return records.Matched(r.owned)
}

// verifyConsistency re-checks the symmetry invariant over both collections
// when configured to. A violation is a fatal engine bug.
func (r *Reconciliator) verifyConsistency(operation string) error {
	if !r.config.ConsistencyChecks {
		return nil
	}

	if err := records.CheckSymmetry(r.thirdParty...); err != nil {
		return perrors.InternalError(perrors.CodeBrokenSymmetry, operation, err)
	}
	if err := records.CheckSymmetry(r.owned...); err != nil {
		return perrors.InternalError(perrors.CodeBrokenSymmetry, operation, err)
	}
	return nil
}
