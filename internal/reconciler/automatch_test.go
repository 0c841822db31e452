package reconciler

import (
	"testing"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
)

func TestDoAutoMatchingCommitsUnambiguousExactMatches(t *testing.T) {
	tp := []*records.Record{
		tpRecord(t, "2024-01-15", 50.00, "Clear match"),
		tpRecord(t, "2024-01-16", 75.00, "No counterpart"),
	}
	owned := []*records.Record{
		ownedRecord(t, "2024-01-15", 50.00, "The counterpart"),
	}

	r := newTestReconciliator(t, tp, owned)
	committed, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}

	if len(committed) != 1 {
		t.Fatalf("committed = %d, want 1", len(committed))
	}
	if committed[0].Source != tp[0] || committed[0].Owned != owned[0] {
		t.Error("wrong pair committed")
	}
	if !tp[0].Matched || tp[1].Matched {
		t.Error("only the record with a counterpart should be matched")
	}
	if r.State() != StateIdle {
		t.Errorf("state after auto pass = %s, want Idle (rewound)", r.State())
	}
	if len(r.ReturnAutoMatches()) != 1 {
		t.Errorf("auto match registry = %d, want 1", len(r.ReturnAutoMatches()))
	}
}

func TestDoAutoMatchingSkipsAmbiguousCandidates(t *testing.T) {
	tp := []*records.Record{
		tpRecord(t, "2024-01-15", 25.00, "Ambiguous"),
	}
	owned := []*records.Record{
		ownedRecord(t, "2024-01-15", 25.00, "Could be this"),
		ownedRecord(t, "2024-01-15", 25.00, "Or this"),
	}

	r := newTestReconciliator(t, tp, owned)
	committed, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}

	if len(committed) != 0 {
		t.Errorf("committed = %d, want 0 for ambiguous candidates", len(committed))
	}
	if tp[0].Matched {
		t.Error("ambiguous record must be left for manual matching")
	}
}

func TestDoAutoMatchingSkipsPartialCandidates(t *testing.T) {
	tp := []*records.Record{
		tpRecord(t, "2024-01-15", 100.00, "Shortfall"),
	}
	owned := []*records.Record{
		ownedRecord(t, "2024-01-15", 60.00, "Not enough"),
	}

	r := newTestReconciliator(t, tp, owned)
	committed, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}

	if len(committed) != 0 {
		t.Errorf("committed = %d, want 0 for partial candidates", len(committed))
	}
}

func TestDoAutoMatchingIsIdempotent(t *testing.T) {
	tp := []*records.Record{tpRecord(t, "2024-01-15", 50.00, "Source")}
	owned := []*records.Record{ownedRecord(t, "2024-01-15", 50.00, "Counterpart")}

	r := newTestReconciliator(t, tp, owned)

	first, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	second, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}

	if len(first) != 1 || len(second) != 0 {
		t.Errorf("passes committed %d then %d, want 1 then 0", len(first), len(second))
	}
	if len(r.ReturnAutoMatches()) != 1 {
		t.Errorf("auto match registry = %d, want 1", len(r.ReturnAutoMatches()))
	}
}

func TestDoAutoMatchingClaimsPoolSequentially(t *testing.T) {
	// Two statement lines want the same single owned record. The first one
	// claims it; the second finds an empty pool.
	tp := []*records.Record{
		tpRecord(t, "2024-01-15", 50.00, "First claim"),
		tpRecord(t, "2024-01-16", 50.00, "Second claim"),
	}
	owned := []*records.Record{
		ownedRecord(t, "2024-01-15", 50.00, "Single counterpart"),
	}

	r := newTestReconciliator(t, tp, owned)
	committed, err := r.DoAutoMatching()
	if err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}

	if len(committed) != 1 {
		t.Fatalf("committed = %d, want 1", len(committed))
	}
	if committed[0].Source != tp[0] {
		t.Error("the earlier statement line should win the shared counterpart")
	}
	if tp[1].Matched {
		t.Error("the later statement line should stay unmatched")
	}
}

func TestRemoveAutoMatch(t *testing.T) {
	tp := []*records.Record{tpRecord(t, "2024-01-15", 50.00, "Source")}
	owned := []*records.Record{ownedRecord(t, "2024-01-15", 50.00, "Counterpart")}

	r := newTestReconciliator(t, tp, owned)
	if _, err := r.DoAutoMatching(); err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}

	if err := r.RemoveAutoMatch(3); !perrors.Is(err, perrors.CodeIndexOutOfRange) {
		t.Errorf("out-of-range undo error = %v, want index-out-of-range", err)
	}

	if err := r.RemoveAutoMatch(0); err != nil {
		t.Fatalf("RemoveAutoMatch() error = %v", err)
	}
	if tp[0].Matched || owned[0].Matched {
		t.Error("both sides should be unmatched after undo")
	}
	if len(r.ReturnAutoMatches()) != 0 {
		t.Errorf("auto match registry = %d, want 0", len(r.ReturnAutoMatches()))
	}
}

func TestRemoveMultipleAutoMatches(t *testing.T) {
	tp := []*records.Record{
		tpRecord(t, "2024-01-15", 10.00, "A"),
		tpRecord(t, "2024-01-16", 20.00, "B"),
		tpRecord(t, "2024-01-17", 30.00, "C"),
	}
	owned := []*records.Record{
		ownedRecord(t, "2024-01-15", 10.00, "A side"),
		ownedRecord(t, "2024-01-16", 20.00, "B side"),
		ownedRecord(t, "2024-01-17", 30.00, "C side"),
	}

	r := newTestReconciliator(t, tp, owned)
	if _, err := r.DoAutoMatching(); err != nil {
		t.Fatalf("DoAutoMatching() error = %v", err)
	}
	if len(r.ReturnAutoMatches()) != 3 {
		t.Fatalf("auto matches = %d, want 3", len(r.ReturnAutoMatches()))
	}

	// Validation happens before any removal.
	if err := r.RemoveMultipleAutoMatches([]int{0, 9}); !perrors.Is(err, perrors.CodeIndexOutOfRange) {
		t.Errorf("partially invalid undo error = %v, want index-out-of-range", err)
	}
	if len(r.ReturnAutoMatches()) != 3 {
		t.Error("a rejected bulk undo must not remove anything")
	}

	if err := r.RemoveMultipleAutoMatches([]int{0, 0}); !perrors.Is(err, perrors.CodeIndexOutOfRange) {
		t.Errorf("duplicate-index undo error = %v, want index-out-of-range", err)
	}

	if err := r.RemoveMultipleAutoMatches([]int{0, 2}); err != nil {
		t.Fatalf("RemoveMultipleAutoMatches() error = %v", err)
	}

	remaining := r.ReturnAutoMatches()
	if len(remaining) != 1 {
		t.Fatalf("auto matches after bulk undo = %d, want 1", len(remaining))
	}
	if remaining[0].Source != tp[1] {
		t.Error("the middle match should be the survivor")
	}
	if tp[0].Matched || tp[2].Matched || !tp[1].Matched {
		t.Error("unlink state does not reflect the bulk undo")
	}
}

func TestRemoveFinalMatchOutOfRange(t *testing.T) {
	r := newTestReconciliator(t, nil, nil)
	if err := r.RemoveFinalMatch(0); !perrors.Is(err, perrors.CodeIndexOutOfRange) {
		t.Errorf("RemoveFinalMatch() on empty registry error = %v, want index-out-of-range", err)
	}
}
