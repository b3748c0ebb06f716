// Package config defines the injected engine configuration. The engine only
// ever receives these as plain data structures; file loading exists for the
// CLI caller and is never triggered from inside the pipeline.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trade-plan-engine/internal/supertrend"
)

// Mode represents a scoring/planning mode profile
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeMedium Mode = "medium"
	ModeSwing  Mode = "swing"
)

// GroupName identifies one of the three indicator groups
type GroupName string

const (
	GroupTrend   GroupName = "trend"
	GroupPattern GroupName = "pattern"
	GroupTrigger GroupName = "trigger"
)

// Indicator keys used in weight tables
const (
	IndSupertrend = "supertrend"
	IndEMA50      = "ema50"
	IndRSI        = "rsi"
	IndMACD       = "macd"
)

// GroupConfig assigns a timeframe and indicator weights to one group
type GroupConfig struct {
	Timeframe        string             `yaml:"timeframe" json:"timeframe"`
	IndicatorWeights map[string]float64 `yaml:"indicator_weights" json:"indicator_weights"`
}

// ModeConfig is the per-mode weight profile. Timeframe assignments and
// weights are pure configuration; the engine never hard-codes them.
type ModeConfig struct {
	Groups         map[GroupName]GroupConfig `yaml:"groups" json:"groups"`
	GroupWeights   map[GroupName]float64     `yaml:"group_weights" json:"group_weights"`
	EntryThreshold float64                   `yaml:"entry_threshold" json:"entry_threshold"`
	SmoothingAlpha float64                   `yaml:"smoothing_alpha" json:"smoothing_alpha"`
}

// ScoringConfig holds the band/epsilon parameters for the tri-state scorer
type ScoringConfig struct {
	RSILongLow     float64 `yaml:"rsi_long_low" json:"rsi_long_low"`
	RSILongHigh    float64 `yaml:"rsi_long_high" json:"rsi_long_high"`
	RSIShortLow    float64 `yaml:"rsi_short_low" json:"rsi_short_low"`
	RSIShortHigh   float64 `yaml:"rsi_short_high" json:"rsi_short_high"`
	EMABandATRMult float64 `yaml:"ema_band_atr_mult" json:"ema_band_atr_mult"`
	MACDEpsilon    float64 `yaml:"macd_epsilon" json:"macd_epsilon"`
}

// PlanConfig holds normalizer/validator and selector parameters
type PlanConfig struct {
	RRFloor            float64 `yaml:"rr_floor" json:"rr_floor"`
	TightenCapFraction float64 `yaml:"tighten_cap_fraction" json:"tighten_cap_fraction"`
	VetoScoreDelta     float64 `yaml:"veto_score_delta" json:"veto_score_delta"`
}

// FuturesConfig holds the derivatives-specific validation parameters
type FuturesConfig struct {
	LiqBufferATRMult float64 `yaml:"liq_buffer_atr_mult" json:"liq_buffer_atr_mult"`
	FeeBps           float64 `yaml:"fee_bps" json:"fee_bps"`
	SlippageBps      float64 `yaml:"slippage_bps" json:"slippage_bps"`
	MaxSpreadBps     float64 `yaml:"max_spread_bps" json:"max_spread_bps"`
	FundingGateBps   float64 `yaml:"funding_gate_bps" json:"funding_gate_bps"`
	MaxLeverage      int     `yaml:"max_leverage" json:"max_leverage"`
	LeverageCap      int     `yaml:"leverage_cap" json:"leverage_cap"`
}

// Config is the full injected engine configuration
type Config struct {
	Modes      map[Mode]ModeConfig `yaml:"modes" json:"modes"`
	Supertrend supertrend.Settings `yaml:"supertrend" json:"supertrend"`
	Scoring    ScoringConfig       `yaml:"scoring" json:"scoring"`
	Plan       PlanConfig          `yaml:"plan" json:"plan"`
	Futures    FuturesConfig       `yaml:"futures" json:"futures"`
	StrictBias bool                `yaml:"strict_bias" json:"strict_bias"`
}

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	trendWeights := map[string]float64{
		IndSupertrend: 0.40,
		IndEMA50:      0.35,
		IndMACD:       0.25,
	}
	patternWeights := map[string]float64{
		IndEMA50: 0.40,
		IndRSI:   0.35,
		IndMACD:  0.25,
	}
	triggerWeights := map[string]float64{
		IndRSI:        0.40,
		IndMACD:       0.35,
		IndSupertrend: 0.25,
	}

	mode := func(trendTF, patternTF, triggerTF string, threshold, alpha float64) ModeConfig {
		return ModeConfig{
			Groups: map[GroupName]GroupConfig{
				GroupTrend:   {Timeframe: trendTF, IndicatorWeights: trendWeights},
				GroupPattern: {Timeframe: patternTF, IndicatorWeights: patternWeights},
				GroupTrigger: {Timeframe: triggerTF, IndicatorWeights: triggerWeights},
			},
			GroupWeights: map[GroupName]float64{
				GroupTrend:   0.45,
				GroupPattern: 0.30,
				GroupTrigger: 0.25,
			},
			EntryThreshold: threshold,
			SmoothingAlpha: alpha,
		}
	}

	return &Config{
		Modes: map[Mode]ModeConfig{
			ModeFast:   mode("15m", "5m", "1m", 0.25, 0.50),
			ModeMedium: mode("1h", "15m", "5m", 0.25, 0.35),
			ModeSwing:  mode("4h", "1h", "15m", 0.30, 0.25),
		},
		Supertrend: supertrend.DefaultSettings(),
		Scoring: ScoringConfig{
			RSILongLow:     55,
			RSILongHigh:    70,
			RSIShortLow:    30,
			RSIShortHigh:   45,
			EMABandATRMult: 0.25,
			MACDEpsilon:    1e-6,
		},
		Plan: PlanConfig{
			RRFloor:            1.5,
			TightenCapFraction: 0.5,
			VetoScoreDelta:     5.0,
		},
		Futures: FuturesConfig{
			LiqBufferATRMult: 0.5,
			FeeBps:           5,
			SlippageBps:      3,
			MaxSpreadBps:     10,
			FundingGateBps:   30,
			MaxLeverage:      20,
			LeverageCap:      10,
		},
		StrictBias: true,
	}
}

// Load reads a YAML configuration file, starting from defaults so partial
// files only override what they name
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// ModeFor returns the configured profile for a mode, falling back to medium
func (c *Config) ModeFor(mode Mode) ModeConfig {
	if mc, ok := c.Modes[mode]; ok {
		return mc
	}
	return c.Modes[ModeMedium]
}
