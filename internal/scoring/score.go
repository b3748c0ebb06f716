package scoring

import (
	"math"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/supertrend"
)

// Score is a tri-state per-indicator score
type Score int

const (
	ScoreShort   Score = -1
	ScoreNeutral Score = 0
	ScoreLong    Score = 1
)

// ScoreSet maps indicator name to its score. Immutable once produced.
type ScoreSet map[string]Score

// SupertrendScore maps the current supertrend direction to a score. A zero
// trend means the detector has not warmed up and scores neutral; once warm
// the trend is always up or down.
func SupertrendScore(trend int) Score {
	switch trend {
	case supertrend.TrendUp:
		return ScoreLong
	case supertrend.TrendDown:
		return ScoreShort
	default:
		return ScoreNeutral
	}
}

// EMA50Score scores price position relative to EMA50 with a no-man's band
// of kATR * ATR14 around the average
func EMA50Score(close, ema50, atr14, kATR float64) Score {
	if math.IsNaN(close) || math.IsNaN(ema50) {
		return ScoreNeutral
	}
	band := 0.0
	if !math.IsNaN(atr14) {
		band = kATR * atr14
	}
	diff := close - ema50
	if math.Abs(diff) <= band {
		return ScoreNeutral
	}
	if diff > 0 {
		return ScoreLong
	}
	return ScoreShort
}

// RSIScore scores RSI against the configured bands. The long band favors
// longs, the short band favors shorts; everything else (including the
// overbought/oversold extremes) is neutral.
func RSIScore(rsi float64, sc config.ScoringConfig) Score {
	if math.IsNaN(rsi) {
		return ScoreNeutral
	}
	switch {
	case rsi >= sc.RSILongLow && rsi <= sc.RSILongHigh:
		return ScoreLong
	case rsi >= sc.RSIShortLow && rsi <= sc.RSIShortHigh:
		return ScoreShort
	default:
		return ScoreNeutral
	}
}

// MACDScore scores the MACD line vs signal line spread
func MACDScore(line, signal, epsilon float64) Score {
	if math.IsNaN(line) || math.IsNaN(signal) {
		return ScoreNeutral
	}
	diff := line - signal
	if math.Abs(diff) < epsilon {
		return ScoreNeutral
	}
	if diff > 0 {
		return ScoreLong
	}
	return ScoreShort
}

// BuildScoreSet computes scores for the indicators named in the weight
// table, from a timeframe snapshot plus the supertrend direction
func BuildScoreSet(weights map[string]float64, snap *indicators.Snapshot, trend int, sc config.ScoringConfig) ScoreSet {
	set := make(ScoreSet, len(weights))
	for name := range weights {
		if snap == nil {
			set[name] = ScoreNeutral
			continue
		}
		switch name {
		case config.IndSupertrend:
			set[name] = SupertrendScore(trend)
		case config.IndEMA50:
			set[name] = EMA50Score(snap.Close, snap.EMA50, snap.ATR14, sc.EMABandATRMult)
		case config.IndRSI:
			set[name] = RSIScore(snap.RSI14, sc)
		case config.IndMACD:
			set[name] = MACDScore(snap.MACDLine, snap.MACDSignal, sc.MACDEpsilon)
		default:
			set[name] = ScoreNeutral
		}
	}
	return set
}
