// Package regime classifies the market condition (trending, ranging or
// volatile) from EMA slope, Bollinger bandwidth percentile and ATR%
// percentile. The plan selector uses the regime to bias strategy fitness.
package regime

import (
	"math"

	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
)

// Regime represents the classified market condition
type Regime string

const (
	Trending Regime = "trending"
	Ranging  Regime = "ranging"
	Volatile Regime = "volatile"
)

// Classification thresholds
const (
	minCandles        = 60
	slopeLookback     = 10
	volatileATRPctile = 0.80
	volatileBWPctile  = 0.85
	trendSlopeATR     = 0.60 // EMA20 move over the lookback, in ATRs
)

// Classification is the classifier output with its inputs retained
type Classification struct {
	Regime        Regime  `json:"regime"`
	SlopeATR      float64 `json:"slope_atr"`
	BWPercentile  float64 `json:"bw_percentile"`
	ATRPercentile float64 `json:"atr_percentile"`
}

// Classify determines the regime for a candle series. Too little data
// degrades to ranging, the most conservative answer for strategy fitness.
func Classify(klines []market.Kline) Classification {
	if len(klines) < minCandles {
		return Classification{Regime: Ranging}
	}

	closes := market.Closes(klines)
	ema20 := indicators.EMA(closes, 20)
	atr := indicators.ATR(klines, 14)
	mid, upper, lower := indicators.Bollinger(closes, 20, 2.0)

	n := len(klines)
	atrNow := atr[n-1]

	// EMA20 displacement over the lookback, measured in ATRs
	slopeATR := 0.0
	if !math.IsNaN(atrNow) && atrNow > 0 {
		slopeATR = (ema20[n-1] - ema20[n-1-slopeLookback]) / atrNow
	}

	// Percentile rank of the current Bollinger bandwidth and ATR%
	bw := make([]float64, 0, n)
	for i := range klines {
		if !math.IsNaN(mid[i]) && mid[i] > 0 {
			bw = append(bw, (upper[i]-lower[i])/mid[i])
		}
	}
	atrPct := make([]float64, 0, n)
	for i, k := range klines {
		if !math.IsNaN(atr[i]) && k.Close > 0 {
			atrPct = append(atrPct, atr[i]/k.Close)
		}
	}

	cls := Classification{
		SlopeATR:      slopeATR,
		BWPercentile:  percentileRank(bw),
		ATRPercentile: percentileRank(atrPct),
	}

	switch {
	case cls.ATRPercentile >= volatileATRPctile || cls.BWPercentile >= volatileBWPctile:
		cls.Regime = Volatile
	case math.Abs(slopeATR) >= trendSlopeATR:
		cls.Regime = Trending
	default:
		cls.Regime = Ranging
	}

	return cls
}

// percentileRank ranks the final value within the series, in [0, 1]
func percentileRank(series []float64) float64 {
	if len(series) < 2 {
		return 0
	}
	last := series[len(series)-1]
	below := 0
	for _, v := range series[:len(series)-1] {
		if v <= last {
			below++
		}
	}
	return float64(below) / float64(len(series)-1)
}
