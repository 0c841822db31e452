package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/claresudbery/Reconciliate-sub002/cmd/reconciler/config"
	"github.com/claresudbery/Reconciliate-sub002/internal/reconciler"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/internal/reporter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command.
var (
	statementFile string
	ledgerFile    string
	outputFormat  string
	outputFile    string
	statementOut  string
	ledgerOut     string

	matchingProfile string
	dateThreshold   int
	amountThreshold float64
	maxPoolSize     int

	autoOnly     bool
	expensesOnly bool
	showProgress bool
)

// reconcileCmd represents the reconcile command.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile a statement file against a ledger file",
	Long: `Reconcile loads a third-party statement and an owned ledger (both CSV),
runs an automatic matching pass over unambiguous exact matches, then walks
the remaining statement lines interactively.

During the interactive walk each statement line is shown with its ranked
candidate counterparts. Enter:
  <n>       match candidate n
  x <n>     record candidate n as a declared non-match (placeholder link)
  del       delete the current statement line (e.g. a duplicate)
  rm <m> <i> remove record i from candidate m before matching
  s         skip this statement line
  q         stop the interactive pass

Examples:
  # Automatic pass plus interactive walk
  reconciler reconcile --statement-file bank.csv --ledger-file ledger.csv

  # Non-interactive, JSON report to a file
  reconciler reconcile -t bank.csv -l ledger.csv --auto-only \
    --output-format json --output-file report.json

  # Looser matching for messy exports
  reconciler reconcile -t bank.csv -l ledger.csv --profile relaxed`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&statementFile, "statement-file", "t", "", "path to third-party statement CSV file (required)")
	reconcileCmd.Flags().StringVarP(&ledgerFile, "ledger-file", "l", "", "path to owned ledger CSV file (required)")

	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "report file path (default: stdout)")
	reconcileCmd.Flags().StringVar(&statementOut, "statement-out", "", "write the updated statement collection to this CSV file")
	reconcileCmd.Flags().StringVar(&ledgerOut, "ledger-out", "", "write the updated ledger collection to this CSV file")

	reconcileCmd.Flags().StringVar(&matchingProfile, "profile", "default", "matching profile: default, strict, relaxed")
	reconcileCmd.Flags().IntVarP(&dateThreshold, "date-threshold", "d", 0, "override: suppress partial candidates further than this many days")
	reconcileCmd.Flags().Float64VarP(&amountThreshold, "amount-threshold", "a", 0, "override: suppress partial candidates further than this amount")
	reconcileCmd.Flags().IntVar(&maxPoolSize, "max-pool-size", 0, "override: largest candidate pool the subset search will attempt")

	reconcileCmd.Flags().BoolVar(&autoOnly, "auto-only", false, "run only the automatic matching pass")
	reconcileCmd.Flags().BoolVar(&expensesOnly, "expenses-only", false, "reconcile only expense rows (non-empty type)")
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "log progress during the automatic pass")

	reconcileCmd.MarkFlagRequired("statement-file")
	reconcileCmd.MarkFlagRequired("ledger-file")

	viper.BindPFlag("statement-file", reconcileCmd.Flags().Lookup("statement-file"))
	viper.BindPFlag("ledger-file", reconcileCmd.Flags().Lookup("ledger-file"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("profile", reconcileCmd.Flags().Lookup("profile"))
	viper.BindPFlag("date-threshold", reconcileCmd.Flags().Lookup("date-threshold"))
	viper.BindPFlag("amount-threshold", reconcileCmd.Flags().Lookup("amount-threshold"))
	viper.BindPFlag("max-pool-size", reconcileCmd.Flags().Lookup("max-pool-size"))
	viper.BindPFlag("auto-only", reconcileCmd.Flags().Lookup("auto-only"))
	viper.BindPFlag("expenses-only", reconcileCmd.Flags().Lookup("expenses-only"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	statementFile = viper.GetString("statement-file")
	ledgerFile = viper.GetString("ledger-file")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	matchingProfile = viper.GetString("profile")
	dateThreshold = viper.GetInt("date-threshold")
	amountThreshold = viper.GetFloat64("amount-threshold")
	maxPoolSize = viper.GetInt("max-pool-size")
	autoOnly = viper.GetBool("auto-only")
	expensesOnly = viper.GetBool("expenses-only")
	showProgress = viper.GetBool("progress")

	if statementFile == "" {
		return fmt.Errorf("statement-file is required")
	}
	if ledgerFile == "" {
		return fmt.Errorf("ledger-file is required")
	}

	for _, path := range []string{statementFile, ledgerFile} {
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return fmt.Errorf("file does not exist: %s", path)
		}
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("expected a file, got a directory: %s", path)
		}
	}

	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	validProfiles := map[string]bool{"default": true, "strict": true, "relaxed": true}
	if !validProfiles[matchingProfile] {
		return fmt.Errorf("invalid profile '%s'. Valid profiles: default, strict, relaxed", matchingProfile)
	}

	if dateThreshold < 0 {
		return fmt.Errorf("date threshold cannot be negative")
	}
	if amountThreshold < 0 {
		return fmt.Errorf("amount threshold cannot be negative")
	}
	if maxPoolSize < 0 {
		return fmt.Errorf("max pool size cannot be negative")
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	// Load both collections.
	thirdParty, statementErrs, err := config.LoadStatement(statementFile)
	if err != nil {
		return err
	}
	owned, ledgerErrs, err := config.LoadLedger(ledgerFile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Loaded %d statement records (%d lines skipped)\n", len(thirdParty), statementErrs.Total)
		fmt.Fprintf(os.Stderr, "Loaded %d ledger records (%d lines skipped)\n", len(owned), ledgerErrs.Total)
	}

	finderConfig, err := config.CreateFinderConfig(matchingProfile, dateThreshold, amountThreshold, maxPoolSize)
	if err != nil {
		return err
	}

	rec, err := reconciler.New(thirdParty, owned, config.CreateFinder(finderConfig),
		config.CreateReconcilerConfig(showProgress))
	if err != nil {
		return fmt.Errorf("failed to create reconciliator: %w", err)
	}

	if expensesOnly {
		rec.FilterThirdParty(config.IsExpense)
		rec.FilterOwned(config.IsExpense)
	}

	// Automatic pass first: exact, unambiguous matches need no confirmation.
	autoMatches, err := rec.DoAutoMatching()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Auto-matched %d statement records\n", len(autoMatches))

	if !autoOnly {
		if err := manualPass(rec, os.Stdin, os.Stderr); err != nil {
			return err
		}
	}

	// Report.
	generator, err := reporter.NewGenerator(config.CreateReportConfig(outputFormat))
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	output := os.Stdout
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	}

	if err := generator.GenerateReport(rec, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Write-back.
	if statementOut != "" {
		if err := writeCollection(statementOut, rec.ThirdPartyRecords()); err != nil {
			return err
		}
	}
	if ledgerOut != "" {
		if err := writeCollection(ledgerOut, rec.OwnedRecords()); err != nil {
			return err
		}
	}

	return nil
}

func writeCollection(path string, recs []*records.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := reporter.WriteRecordsCSV(file, recs); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// manualPass walks the remaining unmatched statement records, presenting
// ranked candidates and applying the user's decisions. The engine only ever
// sees integer indices; all prompt handling lives here.
func manualPass(rec *reconciler.Reconciliator, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for rec.FindMatchesForNextThirdPartyRecord() {
		source := rec.CurrentSourceRecord()
		fmt.Fprintf(out, "\nStatement record: %s\n", reporter.RecordLine(source.SourceLine, source))

		candidates := rec.CurrentPotentialMatches()
		if len(candidates) == 0 {
			fmt.Fprintln(out, "No candidates found. [s]kip, [del]ete, [q]uit:")
		} else {
			for _, line := range reporter.CandidateLines(candidates) {
				fmt.Fprintln(out, line.String())
			}
			fmt.Fprintln(out, "Choose: <n> match, x <n> non-match, rm <m> <i> remove record, del, s, q:")
		}

	decision:
		for {
			if !scanner.Scan() {
				return scanner.Err()
			}

			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}

			switch fields[0] {
			case "q":
				return nil
			case "s":
				break decision
			case "del":
				if err := rec.DeleteCurrentThirdPartyRecord(); err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				break decision
			case "x":
				index, err := decisionIndex(fields, 1)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				if err := rec.MatchNonMatchingRecord(index); err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				break decision
			case "rm":
				matchIndex, err := decisionIndex(fields, 1)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				recordIndex, err := decisionIndex(fields, 2)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				if err := rec.DeleteSpecificOwnedRecordFromListOfMatches(matchIndex, recordIndex); err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				for _, line := range reporter.CandidateLines(rec.CurrentPotentialMatches()) {
					fmt.Fprintln(out, line.String())
				}
			default:
				index, err := strconv.Atoi(fields[0])
				if err != nil {
					fmt.Fprintf(out, "Unrecognized input %q\n", fields[0])
					continue
				}
				if err := rec.MatchCurrentRecord(index); err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				break decision
			}
		}
	}

	return nil
}

func decisionIndex(fields []string, position int) (int, error) {
	if position >= len(fields) {
		return 0, fmt.Errorf("missing index argument")
	}
	return strconv.Atoi(fields[position])
}
