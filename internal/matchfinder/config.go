// Package matchfinder implements candidate generation and ranking for the
// reconciliation engine. Given one unmatched third-party record and the pool
// of unmatched owned records, it enumerates subsets of the pool whose
// combined amount is a plausible counterpart to the source amount
// (a subset-sum search), then ranks the resulting candidates by amount
// proximity, date proximity and description similarity.
//
// The search carries a deliberate policy: when the whole filtered pool sums
// to less than the target, that single "everything left" subset is returned
// as a partial candidate and smaller partial subsets are never enumerated.
// A human resolves the shortfall, the engine does not optimize it. This is a
// known limitation, kept on purpose.
package matchfinder

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FinderConfig holds the tunable parameters of the candidate search and
// ranking. Amount comparisons always use AmountEpsilon, never exact
// equality, because statement amounts accumulate rounding error.
//
// Use the factory functions for common scenarios:
//   - DefaultFinderConfig(): balanced settings for most statements
//   - StrictFinderConfig(): tight thresholds for final-pass reconciliation
//   - RelaxedFinderConfig(): loose thresholds for exploratory matching
type FinderConfig struct {
	// AmountEpsilon is the tolerance for treating two amounts as equal.
	AmountEpsilon decimal.Decimal `json:"amount_epsilon"`

	// DateThresholdDays suppresses partial (non-exact) candidates whose
	// representative date is further than this many days from the source.
	DateThresholdDays int `json:"date_threshold_days"`

	// AmountThreshold suppresses partial candidates whose amount distance
	// from the target exceeds this value. Zero disables the check.
	AmountThreshold decimal.Decimal `json:"amount_threshold"`

	// MaxPoolSize bounds the combinatorial search. Pools larger than this
	// skip the subset recursion entirely: only the whole-pool exact and
	// partial checks run, and an over-target pool yields no candidates.
	// Very large pools degrade to "no automatic suggestion" instead of
	// risking exponential blow-up.
	MaxPoolSize int `json:"max_pool_size"`

	// MaxDepth bounds the recursion depth, which also caps the number of
	// records a combined candidate can contain.
	MaxDepth int `json:"max_depth"`

	// Weights blend amount and date distance into the combined ranking.
	Weights RankingWeights `json:"weights"`
}

// RankingWeights defines the relative importance of ranking criteria in the
// combined score. The combined score is AmountWeight times the amount
// distance plus DateWeight times the day distance; lower is better.
type RankingWeights struct {
	AmountWeight float64 `json:"amount_weight"`
	DateWeight   float64 `json:"date_weight"`
}

// DefaultFinderConfig returns a configuration with sensible defaults.
func DefaultFinderConfig() *FinderConfig {
	return &FinderConfig{
		AmountEpsilon:     decimal.NewFromFloat(0.001),
		DateThresholdDays: 30,
		AmountThreshold:   decimal.Zero,
		MaxPoolSize:       20,
		MaxDepth:          12,
		Weights: RankingWeights{
			AmountWeight: 1.0,
			DateWeight:   0.25,
		},
	}
}

// StrictFinderConfig returns a configuration for strict matching passes.
func StrictFinderConfig() *FinderConfig {
	return &FinderConfig{
		AmountEpsilon:     decimal.NewFromFloat(0.001),
		DateThresholdDays: 4,
		AmountThreshold:   decimal.NewFromInt(10),
		MaxPoolSize:       12,
		MaxDepth:          8,
		Weights: RankingWeights{
			AmountWeight: 1.0,
			DateWeight:   0.5,
		},
	}
}

// RelaxedFinderConfig returns a configuration for exploratory matching.
func RelaxedFinderConfig() *FinderConfig {
	return &FinderConfig{
		AmountEpsilon:     decimal.NewFromFloat(0.001),
		DateThresholdDays: 90,
		AmountThreshold:   decimal.Zero,
		MaxPoolSize:       24,
		MaxDepth:          16,
		Weights: RankingWeights{
			AmountWeight: 1.0,
			DateWeight:   0.1,
		},
	}
}

// Validate checks if the finder configuration is valid.
func (fc *FinderConfig) Validate() error {
	if fc.AmountEpsilon.IsNegative() {
		return fmt.Errorf("amount epsilon cannot be negative: %s", fc.AmountEpsilon)
	}

	if fc.DateThresholdDays < 0 {
		return fmt.Errorf("date threshold days cannot be negative: %d", fc.DateThresholdDays)
	}

	if fc.AmountThreshold.IsNegative() {
		return fmt.Errorf("amount threshold cannot be negative: %s", fc.AmountThreshold)
	}

	if fc.MaxPoolSize <= 0 {
		return fmt.Errorf("max pool size must be positive: %d", fc.MaxPoolSize)
	}

	if fc.MaxDepth <= 0 {
		return fmt.Errorf("max depth must be positive: %d", fc.MaxDepth)
	}

	if fc.Weights.AmountWeight < 0 || fc.Weights.DateWeight < 0 {
		return fmt.Errorf("ranking weights cannot be negative: %+v", fc.Weights)
	}

	if fc.Weights.AmountWeight == 0 && fc.Weights.DateWeight == 0 {
		return fmt.Errorf("at least one ranking weight must be positive")
	}

	return nil
}

// Clone creates a deep copy of the finder configuration.
func (fc *FinderConfig) Clone() *FinderConfig {
	if fc == nil {
		return nil
	}

	clone := *fc
	return &clone
}

// String returns a human-readable description of the configuration.
func (fc *FinderConfig) String() string {
	return fmt.Sprintf("FinderConfig{Epsilon: %s, DateThreshold: %d days, AmountThreshold: %s, MaxPool: %d, MaxDepth: %d}",
		fc.AmountEpsilon, fc.DateThresholdDays, fc.AmountThreshold, fc.MaxPoolSize, fc.MaxDepth)
}
