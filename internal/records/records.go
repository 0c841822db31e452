// Package records defines the transaction record shared by both sides of a
// reconciliation: the third-party statement (bank or credit card export) and
// the owned ledger (locally maintained, including pending entries).
//
// A match links exactly two records, symmetrically. The Match field on each
// side points at its counterpart; Link and Unlink are the only functions
// that may mutate Matched and Match, and they always mutate both sides in
// the same call. CheckSymmetry verifies the invariant after the fact.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
	"github.com/shopspring/decimal"
)

// Kind identifies which collection a record belongs to.
type Kind string

const (
	// KindThirdParty marks a record loaded from an external statement.
	KindThirdParty Kind = "THIRD_PARTY"
	// KindOwned marks a record from the user's own ledger.
	KindOwned Kind = "OWNED"
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks if the record kind is valid.
func (k Kind) IsValid() bool {
	return k == KindThirdParty || k == KindOwned
}

// DateFormat is the display format used for record dates throughout the tool.
const DateFormat = "2006-01-02"

// Record represents one transaction line, either third-party or owned.
//
// Matched and Match are owned by the match finalizer and the undo
// operations; nothing else may write them. The symmetry invariant is:
// r.Matched == (r.Match != nil), and if a.Match == b then b.Match == a.
type Record struct {
	Kind        Kind            `json:"kind"`
	Date        time.Time       `json:"date"`
	MainAmount  decimal.Decimal `json:"main_amount"`
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description"`
	ExtraInfo   int             `json:"extra_info,omitempty"`

	// SourceLine is the record's position in its original collection,
	// used for deterministic tie-breaking and stable output ordering.
	SourceLine int `json:"source_line"`

	// Divider marks a non-transaction separator row. Dividers only matter
	// for persisted output ordering and are ignored by matching logic.
	Divider bool `json:"divider,omitempty"`

	Matched bool    `json:"matched"`
	Match   *Record `json:"-"`
}

// New creates a new Record.
func New(kind Kind, date time.Time, amount decimal.Decimal, txType, description string, extraInfo int) *Record {
	return &Record{
		Kind:        kind,
		Date:        date,
		MainAmount:  amount,
		Type:        txType,
		Description: description,
		ExtraInfo:   extraInfo,
	}
}

// Validate performs basic validation on the Record. Divider rows are
// exempt: they carry no transaction data.
func (r *Record) Validate() error {
	if r.Divider {
		return nil
	}

	if !r.Kind.IsValid() {
		return fmt.Errorf("invalid record kind: %s", r.Kind)
	}

	if r.Date.IsZero() {
		return fmt.Errorf("record date cannot be zero")
	}

	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("record description cannot be empty")
	}

	return nil
}

// String returns a string representation of the Record.
func (r *Record) String() string {
	return fmt.Sprintf("Record{Kind: %s, Date: %s, Amount: %s, Description: %s, Matched: %t}",
		r.Kind, r.Date.Format(DateFormat), r.MainAmount.String(), r.Description, r.Matched)
}

// Copy returns a deep copy of the record with the match link cleared.
// Copies are used when synthesizing combined records; the copy must not
// inherit a link it is not part of.
func (r *Record) Copy() *Record {
	clone := *r
	clone.Matched = false
	clone.Match = nil
	return &clone
}

// AbsAmount returns the absolute value of the record's main amount.
func (r *Record) AbsAmount() decimal.Decimal {
	return r.MainAmount.Abs()
}

// Link marks a and b as matched counterparts of each other. Only the match
// finalizer calls this. Linking an already-matched record is an internal
// error: the engine must unlink first.
func Link(a, b *Record) error {
	if a == nil || b == nil {
		return perrors.InternalError(perrors.CodeUnexpectedError, "link", fmt.Errorf("nil record"))
	}
	if a.Matched || a.Match != nil {
		return perrors.InternalError(perrors.CodeBrokenSymmetry, "link",
			fmt.Errorf("record already matched: %s", a))
	}
	if b.Matched || b.Match != nil {
		return perrors.InternalError(perrors.CodeBrokenSymmetry, "link",
			fmt.Errorf("record already matched: %s", b))
	}

	a.Match = b
	b.Match = a
	a.Matched = true
	b.Matched = true
	return nil
}

// Unlink clears the match on r and on its counterpart. Unlinking an
// unmatched record is a no-op. Returns the former counterpart, if any.
func Unlink(r *Record) *Record {
	if r == nil || r.Match == nil {
		if r != nil {
			r.Matched = false
		}
		return nil
	}

	counterpart := r.Match
	counterpart.Match = nil
	counterpart.Matched = false
	r.Match = nil
	r.Matched = false
	return counterpart
}

// CheckSymmetry verifies the match invariant across the given records.
// A violation is a fatal internal error, never a user-facing condition.
func CheckSymmetry(recs ...*Record) error {
	for _, r := range recs {
		if r == nil {
			continue
		}
		if r.Matched != (r.Match != nil) {
			return perrors.InternalError(perrors.CodeBrokenSymmetry, "symmetry check",
				fmt.Errorf("matched flag disagrees with match link: %s", r))
		}
		if r.Match != nil && r.Match.Match != r {
			return perrors.InternalError(perrors.CodeBrokenSymmetry, "symmetry check",
				fmt.Errorf("counterpart does not link back: %s", r))
		}
	}
	return nil
}

// SumAmounts returns the sum of the main amounts of the given records.
func SumAmounts(recs []*Record) decimal.Decimal {
	sum := decimal.Zero
	for _, r := range recs {
		sum = sum.Add(r.MainAmount)
	}
	return sum
}

// DaysBetween returns the absolute number of whole days between two dates,
// comparing calendar dates and ignoring the time of day.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	aDay := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bDay := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	diff := aDay.Sub(bDay)
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// Unmatched returns the records from recs with Matched == false,
// preserving order. Divider rows are excluded.
func Unmatched(recs []*Record) []*Record {
	var out []*Record
	for _, r := range recs {
		if !r.Matched && !r.Divider {
			out = append(out, r)
		}
	}
	return out
}

// Matched returns the records from recs with Matched == true, preserving order.
func Matched(recs []*Record) []*Record {
	var out []*Record
	for _, r := range recs {
		if r.Matched {
			out = append(out, r)
		}
	}
	return out
}
