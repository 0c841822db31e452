package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claresudbery/Reconciliate-sub002/internal/reconciler"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
	"github.com/shopspring/decimal"
)

func fixtureRecord(t *testing.T, kind records.Kind, date string, amount float64, description string) *records.Record {
	t.Helper()
	d, err := time.Parse(records.DateFormat, date)
	if err != nil {
		t.Fatalf("bad fixture date %s: %v", date, err)
	}
	return records.New(kind, d, decimal.NewFromFloat(amount), "", description, 0)
}

func singlePairSession(t *testing.T) (*reconciler.Reconciliator, *records.Record, *records.Record) {
	t.Helper()
	source := fixtureRecord(t, records.KindThirdParty, "2024-01-15", 50.00, "Statement line")
	counterpart := fixtureRecord(t, records.KindOwned, "2024-01-15", 50.00, "Ledger entry")

	r, err := reconciler.New(
		[]*records.Record{source},
		[]*records.Record{counterpart}, nil, nil)
	if err != nil {
		t.Fatalf("reconciler.New() error = %v", err)
	}
	return r, source, counterpart
}

func TestManualPassMatchByIndex(t *testing.T) {
	r, source, counterpart := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("0\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}

	if !source.Matched || source.Match != counterpart {
		t.Error("decision '0' should commit the first candidate")
	}
	if len(r.FinalMatches()) != 1 {
		t.Errorf("final matches = %d, want 1", len(r.FinalMatches()))
	}
	if !strings.Contains(out.String(), "Statement line") {
		t.Error("prompt should display the source record")
	}
}

func TestManualPassQuit(t *testing.T) {
	r, source, _ := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("q\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}
	if source.Matched {
		t.Error("'q' should leave the record unmatched")
	}
}

func TestManualPassSkip(t *testing.T) {
	r, source, _ := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("s\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}
	if source.Matched {
		t.Error("'s' should leave the record unmatched")
	}
	if !r.Finished() {
		t.Error("skipping the only record should finish the walk")
	}
}

func TestManualPassNonMatch(t *testing.T) {
	r, source, counterpart := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("x 0\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}
	if !source.Matched {
		t.Error("'x 0' should commit a declared non-match")
	}
	if !strings.HasPrefix(counterpart.Description, "NO MATCH: ") {
		t.Errorf("counterpart description = %q, want NO MATCH marker", counterpart.Description)
	}
}

func TestManualPassDelete(t *testing.T) {
	r, _, _ := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("del\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}
	if len(r.ThirdPartyRecords()) != 0 {
		t.Error("'del' should remove the current statement record")
	}
}

func TestManualPassRecoversFromBadInput(t *testing.T) {
	r, source, _ := singlePairSession(t)

	var out bytes.Buffer
	input := "nonsense\n99\n0\n"
	if err := manualPass(r, strings.NewReader(input), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}

	if !source.Matched {
		t.Error("valid decision after bad input should still commit")
	}
	if !strings.Contains(out.String(), "Unrecognized input") {
		t.Error("bad input should be reported on the prompt")
	}
	if !strings.Contains(out.String(), "Error:") {
		t.Error("out-of-range index should be reported on the prompt")
	}
}

func TestManualPassEndOfInput(t *testing.T) {
	r, source, _ := singlePairSession(t)

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader(""), &out); err != nil {
		t.Fatalf("manualPass() at EOF error = %v", err)
	}
	if source.Matched {
		t.Error("EOF should leave the record unmatched")
	}
}

func TestManualPassRemoveRecordFromCandidate(t *testing.T) {
	source := fixtureRecord(t, records.KindThirdParty, "2024-01-15", 50.00, "Combined payment")
	first := fixtureRecord(t, records.KindOwned, "2024-01-15", 20.00, "Part one")
	second := fixtureRecord(t, records.KindOwned, "2024-01-15", 30.00, "Part two")

	r, err := reconciler.New(
		[]*records.Record{source},
		[]*records.Record{first, second}, nil, nil)
	if err != nil {
		t.Fatalf("reconciler.New() error = %v", err)
	}

	var out bytes.Buffer
	if err := manualPass(r, strings.NewReader("rm 0 1\n0\n"), &out); err != nil {
		t.Fatalf("manualPass() error = %v", err)
	}

	if !source.Matched {
		t.Fatal("trimmed candidate should still be committable")
	}
	pair := r.FinalMatches()[0]
	if pair.Owned != first {
		t.Errorf("committed record = %s, want the remaining constituent", pair.Owned.Description)
	}
	if second.Matched {
		t.Error("the removed record must stay unmatched")
	}
}

func TestDecisionIndex(t *testing.T) {
	if _, err := decisionIndex([]string{"x"}, 1); err == nil {
		t.Error("expected an error for a missing index argument")
	}
	if _, err := decisionIndex([]string{"x", "abc"}, 1); err == nil {
		t.Error("expected an error for a non-numeric index")
	}
	got, err := decisionIndex([]string{"rm", "2", "5"}, 2)
	if err != nil || got != 5 {
		t.Errorf("decisionIndex() = %d, %v, want 5, nil", got, err)
	}
}

func TestExitCodeMapping(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(errors.New("plain failure")); got != 1 {
		t.Errorf("ExitCode(plain error) = %d, want 1", got)
	}
	if got := ExitCode(perrors.FileError(perrors.CodeFileNotFound, "x.csv", nil)); got != 2 {
		t.Errorf("ExitCode(file error) = %d, want 2", got)
	}
}
