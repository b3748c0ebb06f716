// Package bias computes a reference instrument's directional bias (e.g.
// BTC for the broader market) and applies the strict-mode veto: a proposed
// side that conflicts with a non-neutral reference bias becomes NO_TRADE.
package bias

import (
	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/scoring"
	"trade-plan-engine/internal/supertrend"
)

// Direction is the reference instrument's bias direction
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Bias is the computed reference bias
type Bias struct {
	Direction Direction `json:"direction"`
	Score     float64   `json:"score"`
}

// Neutral returns a neutral bias, used when no reference data is supplied
func Neutral() Bias {
	return Bias{Direction: DirectionNeutral}
}

// Compute scores the reference instrument using only the trend group of the
// given mode profile. Missing or too-short reference data yields NEUTRAL.
func Compute(refBundle market.CandleBundle, mode config.Mode, cfg *config.Config) Bias {
	mc := cfg.ModeFor(mode)
	gc, ok := mc.Groups[config.GroupTrend]
	if !ok {
		return Neutral()
	}

	klines := refBundle[market.Timeframe(gc.Timeframe)]
	if len(klines) == 0 {
		return Neutral()
	}

	snap := indicators.NewSnapshot(klines)
	st := supertrend.WarmUp(klines, cfg.Supertrend)
	trend := 0
	if st.Warm() {
		trend = st.LastTrend
	}

	set := scoring.BuildScoreSet(gc.IndicatorWeights, snap, trend, cfg.Scoring)
	score, _ := scoring.WeightedAverage(set, gc.IndicatorWeights)

	b := Bias{Score: score}
	switch {
	case score >= mc.EntryThreshold:
		b.Direction = DirectionLong
	case score <= -mc.EntryThreshold:
		b.Direction = DirectionShort
	default:
		b.Direction = DirectionNeutral
	}
	return b
}

// Gate applies the strict-mode veto. Returns the (possibly overridden)
// side and whether a veto fired. This is an explicit veto, not a blend:
// the side is forced to NO_TRADE, never flipped.
func Gate(side scoring.Side, b Bias, strict bool) (scoring.Side, bool) {
	if !strict || side == scoring.SideNoTrade || b.Direction == DirectionNeutral {
		return side, false
	}
	if (side == scoring.SideLong && b.Direction == DirectionShort) ||
		(side == scoring.SideShort && b.Direction == DirectionLong) {
		return scoring.SideNoTrade, true
	}
	return side, false
}
