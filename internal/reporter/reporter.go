// Package reporter turns engine state into presentable output: display
// lines for candidate sets and final match sets, a summary report in
// console, JSON or CSV form, and CSV write-back of the record collections
// with matched rows separated from unmatched rows by a divider.
//
// Presentation only; nothing here mutates match state.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/claresudbery/Reconciliate-sub002/internal/matchfinder"
	"github.com/claresudbery/Reconciliate-sub002/internal/reconciler"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ConsoleLine is one display line summarizing a record, candidate or match
// for the interactive layer. The engine produces these; how they are shown
// (colors, prompts) is the caller's concern.
type ConsoleLine struct {
	Index       int    `json:"index"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// String formats the line the way the manual-matching prompt displays it.
func (cl ConsoleLine) String() string {
	return fmt.Sprintf("%3d: %-10s %12s  %s", cl.Index, cl.Date, cl.Amount, cl.Description)
}

// RecordLine builds the display line for a single record.
func RecordLine(index int, rec *records.Record) ConsoleLine {
	return ConsoleLine{
		Index:       index,
		Date:        rec.Date.Format(records.DateFormat),
		Amount:      rec.MainAmount.StringFixed(2),
		Description: rec.Description,
	}
}

// CandidateLines summarizes a candidate set, one line per candidate. A
// multi-record candidate shows its combined sum, its latest constituent
// date, and the joined constituent descriptions.
func CandidateLines(candidates []*matchfinder.PotentialMatch) []ConsoleLine {
	lines := make([]ConsoleLine, 0, len(candidates))
	for i, pm := range candidates {
		descriptions := make([]string, 0, len(pm.ActualRecords))
		var latest *records.Record
		for _, rec := range pm.ActualRecords {
			descriptions = append(descriptions, rec.Description)
			if latest == nil || rec.Date.After(latest.Date) {
				latest = rec
			}
		}

		description := strings.Join(descriptions, " & ")
		if !pm.AmountMatch {
			description = "(partial) " + description
		}

		date := ""
		if latest != nil {
			date = latest.Date.Format(records.DateFormat)
		}

		lines = append(lines, ConsoleLine{
			Index:       i,
			Date:        date,
			Amount:      pm.Sum().StringFixed(2),
			Description: description,
		})
	}
	return lines
}

// MatchLines summarizes a committed match set, one line per pair.
func MatchLines(pairs []*reconciler.MatchedPair) []ConsoleLine {
	lines := make([]ConsoleLine, 0, len(pairs))
	for i, pair := range pairs {
		lines = append(lines, ConsoleLine{
			Index:       i,
			Date:        pair.Source.Date.Format(records.DateFormat),
			Amount:      pair.Source.MainAmount.StringFixed(2),
			Description: pair.Source.Description + " = " + pair.Owned.Description,
		})
	}
	return lines
}

// Summary aggregates the final state of a reconciliation session.
type Summary struct {
	TotalThirdParty     int `json:"total_third_party"`
	MatchedThirdParty   int `json:"matched_third_party"`
	UnmatchedThirdParty int `json:"unmatched_third_party"`

	TotalOwned     int `json:"total_owned"`
	MatchedOwned   int `json:"matched_owned"`
	UnmatchedOwned int `json:"unmatched_owned"`

	AutoMatches  int `json:"auto_matches"`
	FinalMatches int `json:"final_matches"`

	TotalAmountMatched   decimal.Decimal `json:"total_amount_matched"`
	TotalAmountUnmatched decimal.Decimal `json:"total_amount_unmatched"`
}

// Report is the complete output of a session.
type Report struct {
	Summary             Summary       `json:"summary"`
	Matches             []ConsoleLine `json:"matches,omitempty"`
	UnmatchedThirdParty []ConsoleLine `json:"unmatched_third_party,omitempty"`
	UnmatchedOwned      []ConsoleLine `json:"unmatched_owned,omitempty"`
}

// ReportConfig holds configuration options for report generation.
type ReportConfig struct {
	Format           OutputFormat `json:"format"`
	IncludeMatches   bool         `json:"include_matches"`
	IncludeUnmatched bool         `json:"include_unmatched"`
}

// DefaultReportConfig returns the default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatConsole,
		IncludeMatches:   true,
		IncludeUnmatched: true,
	}
}

// Validate validates the report configuration.
func (rc *ReportConfig) Validate() error {
	if !rc.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", rc.Format)
	}
	return nil
}

// Generator renders reports from a finished (or in-progress) session.
type Generator struct {
	config *ReportConfig
}

// NewGenerator creates a report generator.
func NewGenerator(config *ReportConfig) (*Generator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &Generator{config: config}, nil
}

// BuildReport assembles the report data from the reconciliator's state.
func (g *Generator) BuildReport(r *reconciler.Reconciliator) *Report {
	matchedTP := r.MatchedThirdParty()
	unmatchedTP := r.UnmatchedThirdParty()
	matchedOwned := r.MatchedOwned()
	unmatchedOwned := r.UnmatchedOwned()

	report := &Report{
		Summary: Summary{
			TotalThirdParty:      len(r.ThirdPartyRecords()),
			MatchedThirdParty:    len(matchedTP),
			UnmatchedThirdParty:  len(unmatchedTP),
			TotalOwned:           len(r.OwnedRecords()),
			MatchedOwned:         len(matchedOwned),
			UnmatchedOwned:       len(unmatchedOwned),
			AutoMatches:          len(r.ReturnAutoMatches()),
			FinalMatches:         len(r.FinalMatches()),
			TotalAmountMatched:   records.SumAmounts(matchedTP),
			TotalAmountUnmatched: records.SumAmounts(unmatchedTP),
		},
	}

	if g.config.IncludeMatches {
		all := append(append([]*reconciler.MatchedPair(nil), r.ReturnAutoMatches()...), r.FinalMatches()...)
		report.Matches = MatchLines(all)
	}

	if g.config.IncludeUnmatched {
		for i, rec := range unmatchedTP {
			report.UnmatchedThirdParty = append(report.UnmatchedThirdParty, RecordLine(i, rec))
		}
		for i, rec := range unmatchedOwned {
			report.UnmatchedOwned = append(report.UnmatchedOwned, RecordLine(i, rec))
		}
	}

	return report
}

// GenerateReport renders the session to w in the configured format.
func (g *Generator) GenerateReport(r *reconciler.Reconciliator, w io.Writer) error {
	report := g.BuildReport(r)

	switch g.config.Format {
	case FormatJSON:
		return g.writeJSON(report, w)
	case FormatCSV:
		return g.writeCSV(report, w)
	default:
		return g.writeConsole(report, w)
	}
}

func (g *Generator) writeJSON(report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

func (g *Generator) writeConsole(report *Report, w io.Writer) error {
	s := report.Summary
	fmt.Fprintf(w, "Reconciliation Summary\n")
	fmt.Fprintf(w, "======================\n")
	fmt.Fprintf(w, "Third-party records: %d (%d matched, %d unmatched)\n",
		s.TotalThirdParty, s.MatchedThirdParty, s.UnmatchedThirdParty)
	fmt.Fprintf(w, "Owned records:       %d (%d matched, %d unmatched)\n",
		s.TotalOwned, s.MatchedOwned, s.UnmatchedOwned)
	fmt.Fprintf(w, "Matches:             %d auto, %d manual\n", s.AutoMatches, s.FinalMatches)
	fmt.Fprintf(w, "Amount matched:      %s\n", s.TotalAmountMatched.StringFixed(2))
	fmt.Fprintf(w, "Amount unmatched:    %s\n", s.TotalAmountUnmatched.StringFixed(2))

	writeSection := func(title string, lines []ConsoleLine) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("-", len(title)))
		for _, line := range lines {
			fmt.Fprintln(w, line.String())
		}
	}

	writeSection("Matches", report.Matches)
	writeSection("Unmatched third-party records", report.UnmatchedThirdParty)
	writeSection("Unmatched owned records", report.UnmatchedOwned)
	return nil
}

func (g *Generator) writeCSV(report *Report, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"section", "index", "date", "amount", "description"}); err != nil {
		return err
	}

	writeLines := func(section string, lines []ConsoleLine) error {
		for _, line := range lines {
			row := []string{section, strconv.Itoa(line.Index), line.Date, line.Amount, line.Description}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeLines("match", report.Matches); err != nil {
		return err
	}
	if err := writeLines("unmatched_third_party", report.UnmatchedThirdParty); err != nil {
		return err
	}
	if err := writeLines("unmatched_owned", report.UnmatchedOwned); err != nil {
		return err
	}

	writer.Flush()
	return writer.Error()
}
