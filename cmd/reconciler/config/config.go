// Package config translates CLI flag values into engine configuration and
// wraps file loading for the commands.
package config

import (
	"fmt"

	"github.com/claresudbery/Reconciliate-sub002/internal/matchfinder"
	"github.com/claresudbery/Reconciliate-sub002/internal/parsers"
	"github.com/claresudbery/Reconciliate-sub002/internal/reconciler"
	"github.com/claresudbery/Reconciliate-sub002/internal/records"
	"github.com/claresudbery/Reconciliate-sub002/internal/reporter"
	"github.com/claresudbery/Reconciliate-sub002/pkg/perrors"
	"github.com/shopspring/decimal"
)

// LoadStatement loads the third-party statement file using the default
// statement schema.
func LoadStatement(path string) ([]*records.Record, *perrors.Summary, error) {
	parser, err := parsers.NewParser(records.KindThirdParty, nil)
	if err != nil {
		return nil, nil, err
	}
	return parser.ParseFile(path)
}

// LoadLedger loads the owned ledger file using the default ledger schema.
func LoadLedger(path string) ([]*records.Record, *perrors.Summary, error) {
	parser, err := parsers.NewParser(records.KindOwned, nil)
	if err != nil {
		return nil, nil, err
	}
	return parser.ParseFile(path)
}

// CreateFinderConfig builds a matching configuration from the chosen profile
// and any explicit flag overrides. Zero-valued overrides leave the profile's
// setting in place.
func CreateFinderConfig(profile string, dateThreshold int, amountThreshold float64, maxPoolSize int) (*matchfinder.FinderConfig, error) {
	var config *matchfinder.FinderConfig
	switch profile {
	case "", "default":
		config = matchfinder.DefaultFinderConfig()
	case "strict":
		config = matchfinder.StrictFinderConfig()
	case "relaxed":
		config = matchfinder.RelaxedFinderConfig()
	default:
		return nil, fmt.Errorf("unknown matching profile: %s", profile)
	}

	if dateThreshold > 0 {
		config.DateThresholdDays = dateThreshold
	}
	if amountThreshold > 0 {
		config.AmountThreshold = decimal.NewFromFloat(amountThreshold)
	}
	if maxPoolSize > 0 {
		config.MaxPoolSize = maxPoolSize
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching configuration: %w", err)
	}
	return config, nil
}

// CreateFinder builds a match finder from the given configuration.
func CreateFinder(config *matchfinder.FinderConfig) *matchfinder.Finder {
	return matchfinder.NewFinder(config)
}

// CreateReconcilerConfig builds the reconciliator configuration.
func CreateReconcilerConfig(progress bool) *reconciler.Config {
	config := reconciler.DefaultConfig()
	config.ProgressReporting = progress
	return config
}

// CreateReportConfig builds the report configuration for the given format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)
	return config
}

// IsExpense reports whether a record carries a transaction type, which the
// ledger conventions use to mark expense rows. Dividers never qualify.
func IsExpense(rec *records.Record) bool {
	return !rec.Divider && rec.Type != ""
}
