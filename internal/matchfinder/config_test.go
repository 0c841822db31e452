package matchfinder

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFinderConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*FinderConfig)
		wantErr bool
	}{
		{"default is valid", func(*FinderConfig) {}, false},
		{"negative epsilon", func(c *FinderConfig) { c.AmountEpsilon = decimal.NewFromFloat(-0.1) }, true},
		{"negative date threshold", func(c *FinderConfig) { c.DateThresholdDays = -1 }, true},
		{"negative amount threshold", func(c *FinderConfig) { c.AmountThreshold = decimal.NewFromInt(-5) }, true},
		{"zero pool size", func(c *FinderConfig) { c.MaxPoolSize = 0 }, true},
		{"zero depth", func(c *FinderConfig) { c.MaxDepth = 0 }, true},
		{"negative weight", func(c *FinderConfig) { c.Weights.DateWeight = -1 }, true},
		{"all weights zero", func(c *FinderConfig) { c.Weights = RankingWeights{} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultFinderConfig()
			tt.modify(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFinderConfigFactories(t *testing.T) {
	for name, config := range map[string]*FinderConfig{
		"default": DefaultFinderConfig(),
		"strict":  StrictFinderConfig(),
		"relaxed": RelaxedFinderConfig(),
	} {
		if err := config.Validate(); err != nil {
			t.Errorf("%s config failed validation: %v", name, err)
		}
	}

	if StrictFinderConfig().DateThresholdDays >= DefaultFinderConfig().DateThresholdDays {
		t.Error("strict config should have a tighter date threshold than default")
	}
	if RelaxedFinderConfig().DateThresholdDays <= DefaultFinderConfig().DateThresholdDays {
		t.Error("relaxed config should have a looser date threshold than default")
	}
}

func TestFinderConfigClone(t *testing.T) {
	original := DefaultFinderConfig()
	clone := original.Clone()

	clone.MaxPoolSize = 99
	clone.Weights.DateWeight = 9.9

	if original.MaxPoolSize == 99 {
		t.Error("mutating the clone changed the original pool size")
	}
	if original.Weights.DateWeight == 9.9 {
		t.Error("mutating the clone changed the original weights")
	}

	var nilConfig *FinderConfig
	if nilConfig.Clone() != nil {
		t.Error("Clone() of nil should be nil")
	}
}

func TestNewFinderDefaults(t *testing.T) {
	finder := NewFinder(nil)
	config := finder.Config()
	if config == nil {
		t.Fatal("Config() returned nil")
	}
	if config.MaxPoolSize != DefaultFinderConfig().MaxPoolSize {
		t.Errorf("nil config should fall back to defaults, got pool size %d", config.MaxPoolSize)
	}

	// Config() hands out a copy.
	config.MaxPoolSize = 1
	if finder.Config().MaxPoolSize == 1 {
		t.Error("mutating the returned config changed the finder")
	}
}
