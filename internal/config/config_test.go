package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfigShape tests the stock profile invariants
func TestDefaultConfigShape(t *testing.T) {
	cfg := DefaultConfig()

	for mode, mc := range cfg.Modes {
		if len(mc.Groups) != 3 {
			t.Errorf("%s: expected 3 groups, got %d", mode, len(mc.Groups))
		}

		sum := 0.0
		for _, w := range mc.GroupWeights {
			sum += w
		}
		if math.Abs(sum-1) > 1e-9 {
			t.Errorf("%s: group weights must sum to 1, got %f", mode, sum)
		}

		for g, gc := range mc.Groups {
			wsum := 0.0
			for _, w := range gc.IndicatorWeights {
				wsum += w
			}
			if math.Abs(wsum-1) > 1e-9 {
				t.Errorf("%s/%s: indicator weights must sum to 1, got %f", mode, g, wsum)
			}
			if gc.Timeframe == "" {
				t.Errorf("%s/%s: missing timeframe", mode, g)
			}
		}

		if mc.EntryThreshold <= 0 || mc.SmoothingAlpha <= 0 || mc.SmoothingAlpha > 1 {
			t.Errorf("%s: bad threshold/alpha %f/%f", mode, mc.EntryThreshold, mc.SmoothingAlpha)
		}
	}

	if cfg.Plan.RRFloor != 1.5 || cfg.Plan.VetoScoreDelta != 5.0 {
		t.Errorf("Unexpected plan defaults %+v", cfg.Plan)
	}
	if !cfg.StrictBias {
		t.Error("Strict bias must default on")
	}
}

// TestModeForFallback tests the medium fallback on unknown modes
func TestModeForFallback(t *testing.T) {
	cfg := DefaultConfig()
	mc := cfg.ModeFor(Mode("warp"))
	if mc.Groups[GroupTrend].Timeframe != "1h" {
		t.Errorf("Expected medium fallback, got %+v", mc.Groups[GroupTrend])
	}
}

// TestLoadPartialOverride tests that a partial YAML file only overrides what
// it names
func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("plan:\n  rr_floor: 2.0\nstrict_bias: false\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Plan.RRFloor != 2.0 {
		t.Errorf("Expected overridden floor 2.0, got %f", cfg.Plan.RRFloor)
	}
	if cfg.StrictBias {
		t.Error("Expected strict bias overridden off")
	}
	// Untouched defaults survive
	if cfg.Plan.VetoScoreDelta != 5.0 {
		t.Errorf("Expected default veto delta preserved, got %f", cfg.Plan.VetoScoreDelta)
	}
	if cfg.Supertrend.Period != 10 {
		t.Errorf("Expected default supertrend preserved, got %+v", cfg.Supertrend)
	}
}

// TestLoadMissingFile tests the error contract
func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}
