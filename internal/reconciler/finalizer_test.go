package reconciler

import (
	"strings"
	"testing"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/shopspring/decimal"
)

func TestCommitSingleMatch(t *testing.T) {
	source := tpRecord(t, "2024-01-15", 50.00, "Payment")
	counterpart := ownedRecord(t, "2024-01-14", 50.00, "Expected payment")

	r := newTestReconciliator(t, []*records.Record{source}, []*records.Record{counterpart})
	r.FindMatchesForNextThirdPartyRecord()

	if err := r.MatchCurrentRecord(0); err != nil {
		t.Fatalf("MatchCurrentRecord() error = %v", err)
	}

	if source.Match != counterpart || counterpart.Match != source {
		t.Error("records should be linked symmetrically")
	}
	if err := records.CheckSymmetry(source, counterpart); err != nil {
		t.Errorf("CheckSymmetry() error = %v", err)
	}

	matches := r.FinalMatches()
	if len(matches) != 1 {
		t.Fatalf("final matches = %d, want 1", len(matches))
	}
	if matches[0].Owned != counterpart {
		t.Error("matched pair should reference the chosen record directly")
	}
	if len(matches[0].Constituents()) != 0 || matches[0].Adjustment() != nil {
		t.Error("single matches carry no constituents and no adjustment")
	}
}

func TestCommitCombinedExactMatch(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 50.00, "Combined payment")
	first := ownedRecord(t, "2024-01-14", 20.00, "Part one")
	unrelated := ownedRecord(t, "2024-01-15", 99.00, "Unrelated")
	second := ownedRecord(t, "2024-01-16", 30.00, "Part two")

	r := newTestReconciliator(t,
		[]*records.Record{source},
		[]*records.Record{first, unrelated, second})
	r.FindMatchesForNextThirdPartyRecord()

	// The exact {20, 30} subset is ranked first.
	if err := r.MatchCurrentRecord(0); err != nil {
		t.Fatalf("MatchCurrentRecord() error = %v", err)
	}

	owned := r.OwnedRecords()
	if len(owned) != 2 {
		t.Fatalf("owned records = %d, want 2 (combined replaces both constituents)", len(owned))
	}

	combined := owned[0]
	if combined == first || combined == second {
		t.Fatal("combined record should be synthetic, not a constituent")
	}
	if !combined.MainAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("combined amount = %s, want 50", combined.MainAmount)
	}
	if combined.Description != "20.00; 30.00" {
		t.Errorf("combined description = %q, want %q", combined.Description, "20.00; 30.00")
	}
	if !combined.Date.Equal(source.Date) {
		t.Error("combined record should carry the source date")
	}
	if combined.Match != source || source.Match != combined {
		t.Error("source should be linked to the combined record")
	}
	if owned[1] != unrelated {
		t.Error("unrelated owned record should survive in place")
	}

	pair := r.FinalMatches()[0]
	if len(pair.Constituents()) != 2 {
		t.Errorf("constituents = %d, want 2", len(pair.Constituents()))
	}
	if pair.Adjustment() != nil {
		t.Error("exact combined match should not create an adjustment")
	}

	// The constituents themselves stay unmatched: they are out of the
	// working set, represented by the combined record.
	if first.Matched || second.Matched {
		t.Error("constituents must not be marked matched")
	}
}

func TestCommitCombinedPartialCreatesAdjustment(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 100.00, "Invoice")
	first := ownedRecord(t, "2024-01-18", 60.00, "Deposit one")
	second := ownedRecord(t, "2024-01-19", 30.00, "Deposit two")

	r := newTestReconciliator(t,
		[]*records.Record{source},
		[]*records.Record{first, second})
	r.FindMatchesForNextThirdPartyRecord()

	candidates := r.CurrentPotentialMatches()
	if len(candidates) != 1 || candidates[0].AmountMatch {
		t.Fatalf("fixture should produce one partial candidate, got %v", candidates)
	}

	if err := r.MatchCurrentRecord(0); err != nil {
		t.Fatalf("MatchCurrentRecord() error = %v", err)
	}

	owned := r.OwnedRecords()
	if len(owned) != 2 {
		t.Fatalf("owned records = %d, want combined plus adjustment", len(owned))
	}

	combined, adjustment := owned[0], owned[1]
	if !strings.HasPrefix(combined.Description, "(sum mismatch) ") {
		t.Errorf("combined description = %q, want sum mismatch marker", combined.Description)
	}
	if !adjustment.MainAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("adjustment amount = %s, want 10", adjustment.MainAmount)
	}
	if !strings.HasPrefix(adjustment.Description, "Balancing adjustment for: ") {
		t.Errorf("adjustment description = %q", adjustment.Description)
	}
	if adjustment.Matched {
		t.Error("adjustment record starts unmatched")
	}

	// Conservation: matched owned amount plus the outstanding adjustment
	// accounts for the full source amount.
	total := records.SumAmounts(r.MatchedOwned()).Add(adjustment.MainAmount)
	if !total.Equal(source.MainAmount) {
		t.Errorf("matched + adjustment = %s, want %s", total, source.MainAmount)
	}

	if r.FinalMatches()[0].Adjustment() != adjustment {
		t.Error("pair should reference its adjustment record")
	}
}

func TestMatchNonMatchingRecord(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 100.00, "Disputed charge")
	first := ownedRecord(t, "2024-01-18", 60.00, "Entry one")
	second := ownedRecord(t, "2024-01-19", 30.00, "Entry two")

	r := newTestReconciliator(t,
		[]*records.Record{source},
		[]*records.Record{first, second})
	r.FindMatchesForNextThirdPartyRecord()

	if err := r.MatchNonMatchingRecord(0); err != nil {
		t.Fatalf("MatchNonMatchingRecord() error = %v", err)
	}

	pair := r.FinalMatches()[0]
	if !strings.HasPrefix(pair.Owned.Description, "NO MATCH: ") {
		t.Errorf("owned description = %q, want NO MATCH marker", pair.Owned.Description)
	}
	if pair.Adjustment() != nil {
		t.Error("declared non-matches must not create a balancing adjustment")
	}
	if pair.Source.Match != pair.Owned {
		t.Error("non-match is still linked symmetrically")
	}
}

func TestMatchNonMatchingSingleRecord(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 25.00, "Unknown charge")
	entry := ownedRecord(t, "2024-01-19", 25.00, "Suspicious entry")

	r := newTestReconciliator(t, []*records.Record{source}, []*records.Record{entry})
	r.FindMatchesForNextThirdPartyRecord()

	if err := r.MatchNonMatchingRecord(0); err != nil {
		t.Fatalf("MatchNonMatchingRecord() error = %v", err)
	}
	if entry.Description != "NO MATCH: Suspicious entry" {
		t.Errorf("description = %q, want marker prefix", entry.Description)
	}
	if entry.Match != source {
		t.Error("records should be linked")
	}
}

func TestRemoveFinalMatchRestoresNonMatchDescription(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 25.00, "Unknown charge")
	entry := ownedRecord(t, "2024-01-19", 25.00, "Suspicious entry")

	r := newTestReconciliator(t, []*records.Record{source}, []*records.Record{entry})
	r.FindMatchesForNextThirdPartyRecord()
	if err := r.MatchNonMatchingRecord(0); err != nil {
		t.Fatalf("MatchNonMatchingRecord() error = %v", err)
	}
	if entry.Description != "NO MATCH: Suspicious entry" {
		t.Fatalf("description after commit = %q", entry.Description)
	}

	if err := r.RemoveFinalMatch(0); err != nil {
		t.Fatalf("RemoveFinalMatch() error = %v", err)
	}

	if entry.Description != "Suspicious entry" {
		t.Errorf("description after undo = %q, want the marker stripped", entry.Description)
	}
	if entry.Matched || source.Matched {
		t.Error("both sides should be unmatched after undo")
	}
}

func TestRemoveFinalMatchRestoresCombined(t *testing.T) {
	source := tpRecord(t, "2024-01-20", 100.00, "Invoice")
	before := ownedRecord(t, "2024-01-10", 500.00, "Unrelated before")
	first := ownedRecord(t, "2024-01-18", 60.00, "Deposit one")
	second := ownedRecord(t, "2024-01-19", 30.00, "Deposit two")

	r := newTestReconciliator(t,
		[]*records.Record{source},
		[]*records.Record{before, first, second})
	r.FindMatchesForNextThirdPartyRecord()
	if err := r.MatchCurrentRecord(0); err != nil {
		t.Fatalf("MatchCurrentRecord() error = %v", err)
	}

	if err := r.RemoveFinalMatch(0); err != nil {
		t.Fatalf("RemoveFinalMatch() error = %v", err)
	}

	if source.Matched || source.Match != nil {
		t.Error("source should be fully unlinked after undo")
	}
	if len(r.FinalMatches()) != 0 {
		t.Errorf("final matches after undo = %d, want 0", len(r.FinalMatches()))
	}

	owned := r.OwnedRecords()
	if len(owned) != 3 {
		t.Fatalf("owned records after undo = %d, want 3", len(owned))
	}
	if owned[0] != before || owned[1] != first || owned[2] != second {
		t.Error("constituents should be restored in their original position and order")
	}
	for _, rec := range owned {
		if rec.Matched {
			t.Errorf("record %s should be unmatched after undo", rec.Description)
		}
	}
}

func TestRemoveFinalMatchSingle(t *testing.T) {
	source := tpRecord(t, "2024-01-15", 50.00, "Payment")
	counterpart := ownedRecord(t, "2024-01-14", 50.00, "Expected payment")

	r := newTestReconciliator(t, []*records.Record{source}, []*records.Record{counterpart})
	r.FindMatchesForNextThirdPartyRecord()
	if err := r.MatchCurrentRecord(0); err != nil {
		t.Fatalf("MatchCurrentRecord() error = %v", err)
	}

	if err := r.RemoveFinalMatch(0); err != nil {
		t.Fatalf("RemoveFinalMatch() error = %v", err)
	}

	if source.Matched || counterpart.Matched {
		t.Error("both sides should be unmatched after undo")
	}
	if len(r.OwnedRecords()) != 1 || r.OwnedRecords()[0] != counterpart {
		t.Error("single-match undo must not disturb the owned working set")
	}

	// The record can be matched again.
	r.Rewind()
	if !r.FindMatchesForNextThirdPartyRecord() {
		t.Fatal("expected the unmatched source record again")
	}
	if err := r.MatchCurrentRecord(0); err != nil {
		t.Errorf("re-match after undo error = %v", err)
	}
}
