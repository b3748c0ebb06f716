package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/supertrend"
)

// Side is the directional decision
type Side string

const (
	SideLong    Side = "LONG"
	SideShort   Side = "SHORT"
	SideNoTrade Side = "NO_TRADE"
)

// Strength buckets the magnitude of the smoothed total score
type Strength string

const (
	StrengthNone    Strength = "NONE"
	StrengthWeak    Strength = "WEAK"
	StrengthMedium  Strength = "MEDIUM"
	StrengthStrong  Strength = "STRONG"
	StrengthExtreme Strength = "EXTREME"
)

// Strength bucket boundaries on |total|
const (
	weakCeiling   = 0.35
	mediumCeiling = 0.55
	strongCeiling = 0.75
)

// Result is the signal decision for one (instrument, mode) call
type Result struct {
	Side        Side                         `json:"side"`
	TotalScore  float64                      `json:"total_score"` // smoothed, in [-1, 1]
	RawScore    float64                      `json:"raw_score"`
	Strength    Strength                     `json:"strength"`
	Confidence  float64                      `json:"confidence"` // 0-100
	GroupScores map[config.GroupName]float64 `json:"group_scores"`
	BiasUsed    bool                         `json:"bias_used"`
	Warnings    []string                     `json:"warnings,omitempty"`
}

// WeightedAverage averages a score set with the given weights. A weight key
// mismatch or zero weight sum falls back to equal weighting; the returned
// flag reports the fallback so the caller can log a soft warning. This is
// never a hard failure.
func WeightedAverage(scores ScoreSet, weights map[string]float64) (avg float64, fellBack bool) {
	if len(scores) == 0 {
		return 0, false
	}

	sumW := 0.0
	mismatch := false
	for name := range scores {
		w, ok := weights[name]
		if !ok {
			mismatch = true
			break
		}
		sumW += w
	}

	if mismatch || sumW <= 0 {
		// Equal weighting fallback
		total := 0.0
		for _, s := range scores {
			total += float64(s)
		}
		return total / float64(len(scores)), true
	}

	total := 0.0
	for name, s := range scores {
		total += float64(s) * weights[name]
	}
	return total / sumW, false
}

// weightedGroupAverage averages group scores with the configured group
// weights, with the same equal-weighting fallback as WeightedAverage
func weightedGroupAverage(groupScores map[config.GroupName]float64, weights map[config.GroupName]float64) (float64, bool) {
	if len(groupScores) == 0 {
		return 0, false
	}

	sumW := 0.0
	mismatch := false
	for g := range groupScores {
		w, ok := weights[g]
		if !ok {
			mismatch = true
			break
		}
		sumW += w
	}

	if mismatch || sumW <= 0 {
		total := 0.0
		for _, s := range groupScores {
			total += s
		}
		return total / float64(len(groupScores)), true
	}

	total := 0.0
	for g, s := range groupScores {
		total += s * weights[g]
	}
	return total / sumW, false
}

// Bucket maps the smoothed total to a strength tier. Totals below the entry
// threshold never reach a tier: they are NONE.
func Bucket(total, entryThreshold float64) Strength {
	mag := math.Abs(total)
	switch {
	case mag < entryThreshold:
		return StrengthNone
	case mag < weakCeiling:
		return StrengthWeak
	case mag < mediumCeiling:
		return StrengthMedium
	case mag < strongCeiling:
		return StrengthStrong
	default:
		return StrengthExtreme
	}
}

// ComputeSignal runs the layered scoring pass for one instrument and mode:
// per-group indicator scores, weighted group averages, weighted total,
// keyed EMA smoothing, then side/strength decision. The bias gate is
// applied afterwards by the engine.
func ComputeSignal(
	symbol string,
	mode config.Mode,
	bundle market.CandleBundle,
	cfg *config.Config,
	store *SmootherStore,
	logger zerolog.Logger,
) Result {
	mc := cfg.ModeFor(mode)

	res := Result{
		GroupScores: make(map[config.GroupName]float64, len(mc.Groups)),
	}

	// Deterministic group iteration keeps warning order stable
	groups := make([]config.GroupName, 0, len(mc.Groups))
	for g := range mc.Groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	for _, g := range groups {
		gc := mc.Groups[g]
		klines := bundle[market.Timeframe(gc.Timeframe)]

		var snap *indicators.Snapshot
		trend := 0
		if len(klines) > 0 {
			snap = indicators.NewSnapshot(klines)
			st := supertrend.WarmUp(klines, cfg.Supertrend)
			if st.Warm() {
				trend = st.LastTrend
			}
		} else {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("no %s candles for %s group; scoring neutral", gc.Timeframe, g))
			logger.Debug().Str("symbol", symbol).Str("group", string(g)).
				Str("timeframe", gc.Timeframe).Msg("missing timeframe data, scoring neutral")
		}

		set := BuildScoreSet(gc.IndicatorWeights, snap, trend, cfg.Scoring)
		score, fellBack := WeightedAverage(set, gc.IndicatorWeights)
		if fellBack {
			res.Warnings = append(res.Warnings,
				fmt.Sprintf("indicator weights for %s group fell back to equal weighting", g))
			logger.Warn().Str("symbol", symbol).Str("group", string(g)).
				Msg("indicator weight table mismatch, equal weighting applied")
		}
		res.GroupScores[g] = score
	}

	raw, fellBack := weightedGroupAverage(res.GroupScores, mc.GroupWeights)
	if fellBack {
		res.Warnings = append(res.Warnings, "group weights fell back to equal weighting")
		logger.Warn().Str("symbol", symbol).Msg("group weight table mismatch, equal weighting applied")
	}

	res.RawScore = raw
	res.TotalScore = raw
	if store != nil {
		res.TotalScore = store.Smooth(symbol, string(mode), mc.SmoothingAlpha, raw)
	}

	res.Strength = Bucket(res.TotalScore, mc.EntryThreshold)
	res.Confidence = math.Min(100, math.Abs(res.TotalScore)*100)

	switch {
	case res.Strength == StrengthNone:
		res.Side = SideNoTrade
	case res.TotalScore > 0:
		res.Side = SideLong
	default:
		res.Side = SideShort
	}

	return res
}
