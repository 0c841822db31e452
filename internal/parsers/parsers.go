// Package parsers loads third-party statements and owned ledger files from
// CSV into record collections. Column layout is schema-driven so different
// bank exports can be mapped without code changes; per-line failures are
// collected rather than aborting the whole file.
package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/pkg/logger"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
	"github.com/shopspring/decimal"
)

// Schema maps CSV columns onto record fields. Column names are matched
// against the header row case-insensitively.
type Schema struct {
	DateColumn        string `json:"date_column"`
	AmountColumn      string `json:"amount_column"`
	TypeColumn        string `json:"type_column,omitempty"`
	DescriptionColumn string `json:"description_column"`
	ExtraInfoColumn   string `json:"extra_info_column,omitempty"`
	MatchedColumn     string `json:"matched_column,omitempty"`

	// DateFormats are tried in order when parsing the date column.
	DateFormats []string `json:"date_formats,omitempty"`

	// NormalizeSigns takes absolute amounts. Bank exports often carry
	// negative debits; the matching engine assumes non-negative amounts.
	NormalizeSigns bool `json:"normalize_signs"`

	// DividerMarker, when it appears as the description, flags the row as
	// a divider separating matched from unmatched records in persisted
	// output. Dividers are carried through but ignored by matching.
	DividerMarker string `json:"divider_marker,omitempty"`
}

// defaultDateFormats covers the formats commonly seen in bank exports.
var defaultDateFormats = []string{
	"2006-01-02",
	"02/01/2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02 Jan 2006",
}

// ThirdPartySchema returns the default schema for bank/credit-card exports.
func ThirdPartySchema() *Schema {
	return &Schema{
		DateColumn:        "date",
		AmountColumn:      "amount",
		TypeColumn:        "type",
		DescriptionColumn: "description",
		MatchedColumn:     "matched",
		DateFormats:       defaultDateFormats,
		NormalizeSigns:    true,
		DividerMarker:     "-----------",
	}
}

// OwnedSchema returns the default schema for the owned ledger file.
func OwnedSchema() *Schema {
	return &Schema{
		DateColumn:        "date",
		AmountColumn:      "amount",
		TypeColumn:        "type",
		DescriptionColumn: "description",
		ExtraInfoColumn:   "cheque_number",
		MatchedColumn:     "matched",
		DateFormats:       defaultDateFormats,
		NormalizeSigns:    true,
		DividerMarker:     "-----------",
	}
}

// Validate checks that the schema names its required columns.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.DateColumn) == "" {
		return fmt.Errorf("date column is required")
	}
	if strings.TrimSpace(s.AmountColumn) == "" {
		return fmt.Errorf("amount column is required")
	}
	if strings.TrimSpace(s.DescriptionColumn) == "" {
		return fmt.Errorf("description column is required")
	}
	return nil
}

// Clone creates a copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	clone := *s
	clone.DateFormats = append([]string(nil), s.DateFormats...)
	return &clone
}

// Parser reads one record kind from CSV.
type Parser struct {
	kind   records.Kind
	schema *Schema
	log    logger.Logger
}

// NewParser creates a parser for the given record kind. A nil schema falls
// back to the default schema for the kind.
func NewParser(kind records.Kind, schema *Schema) (*Parser, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid record kind: %s", kind)
	}

	if schema == nil {
		if kind == records.KindThirdParty {
			schema = ThirdPartySchema()
		} else {
			schema = OwnedSchema()
		}
	}

	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Parser{
		kind:   kind,
		schema: schema.Clone(),
		log:    logger.WithComponent("parsers"),
	}, nil
}

// ParseFile loads records from the CSV file at path.
func (p *Parser) ParseFile(path string) ([]*records.Record, *perrors.Summary, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, perrors.FileError(perrors.CodeFileNotFound, path, err)
		}
		return nil, nil, perrors.FileError(perrors.CodeFileUnreadable, path, err)
	}
	defer file.Close()

	return p.Parse(file, path)
}

// Parse loads records from r. name identifies the source in error messages.
// Lines that fail to parse are collected in the returned summary and
// skipped; only structural problems (unreadable input, missing columns)
// abort the load.
func (p *Parser) Parse(r io.Reader, name string) ([]*records.Record, *perrors.Summary, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, perrors.ParseError(perrors.CodeInvalidFormat, name, 1, "", "", err)
	}

	columns, err := p.mapColumns(header, name)
	if err != nil {
		return nil, nil, err
	}

	var (
		recs     []*records.Record
		lineErrs []*perrors.Error
		line     = 1
	)

	for {
		line++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			lineErrs = append(lineErrs,
				perrors.ParseError(perrors.CodeInvalidFormat, name, line, "", "", err))
			continue
		}

		rec, parseErr := p.parseRow(row, columns, name, line)
		if parseErr != nil {
			lineErrs = append(lineErrs, parseErr)
			continue
		}
		recs = append(recs, rec)
	}

	if len(lineErrs) > 0 {
		p.log.WithFields(logger.Fields{
			"file":   name,
			"loaded": len(recs),
			"failed": len(lineErrs),
		}).Warn("Some lines could not be parsed")
	}

	return recs, perrors.NewSummary(lineErrs), nil
}

// columnIndices holds the resolved position of each schema column.
type columnIndices struct {
	date        int
	amount      int
	txType      int
	description int
	extraInfo   int
	matched     int
}

func (p *Parser) mapColumns(header []string, name string) (*columnIndices, error) {
	find := func(column string) int {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), column) {
				return i
			}
		}
		return -1
	}

	cols := &columnIndices{
		date:        find(p.schema.DateColumn),
		amount:      find(p.schema.AmountColumn),
		txType:      -1,
		description: find(p.schema.DescriptionColumn),
		extraInfo:   -1,
		matched:     -1,
	}

	if cols.date < 0 {
		return nil, perrors.ParseError(perrors.CodeMissingColumn, name, 1, p.schema.DateColumn, "", nil)
	}
	if cols.amount < 0 {
		return nil, perrors.ParseError(perrors.CodeMissingColumn, name, 1, p.schema.AmountColumn, "", nil)
	}
	if cols.description < 0 {
		return nil, perrors.ParseError(perrors.CodeMissingColumn, name, 1, p.schema.DescriptionColumn, "", nil)
	}

	if p.schema.TypeColumn != "" {
		cols.txType = find(p.schema.TypeColumn)
	}
	if p.schema.ExtraInfoColumn != "" {
		cols.extraInfo = find(p.schema.ExtraInfoColumn)
	}
	if p.schema.MatchedColumn != "" {
		cols.matched = find(p.schema.MatchedColumn)
	}

	return cols, nil
}

func (p *Parser) parseRow(row []string, cols *columnIndices, name string, line int) (*records.Record, *perrors.Error) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	description := cell(cols.description)

	// Divider rows carry no transaction data.
	if p.schema.DividerMarker != "" && description == p.schema.DividerMarker {
		return &records.Record{Kind: p.kind, Divider: true, Description: description}, nil
	}

	date, err := parseDate(cell(cols.date), p.schema.DateFormats)
	if err != nil {
		return nil, perrors.ParseError(perrors.CodeInvalidData, name, line, p.schema.DateColumn, cell(cols.date), err)
	}

	amount, err := ParseAmount(cell(cols.amount))
	if err != nil {
		return nil, perrors.ParseError(perrors.CodeInvalidData, name, line, p.schema.AmountColumn, cell(cols.amount), err)
	}
	if p.schema.NormalizeSigns {
		amount = amount.Abs()
	}

	extraInfo := 0
	if raw := cell(cols.extraInfo); raw != "" {
		extraInfo, err = strconv.Atoi(raw)
		if err != nil {
			return nil, perrors.ParseError(perrors.CodeInvalidData, name, line, p.schema.ExtraInfoColumn, raw, err)
		}
	}

	rec := records.New(p.kind, date, amount, cell(cols.txType), description, extraInfo)
	rec.Matched = parseMatched(cell(cols.matched))

	if err := rec.Validate(); err != nil {
		return nil, perrors.ParseError(perrors.CodeInvalidData, name, line, "", "", err)
	}

	return rec, nil
}

// ParseAmount parses a decimal amount, tolerating currency symbols and
// thousand separators.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "£", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

func parseDate(s string, formats []string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}
	if len(formats) == 0 {
		formats = defaultDateFormats
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

func parseMatched(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "x", "1":
		return true
	default:
		return false
	}
}
