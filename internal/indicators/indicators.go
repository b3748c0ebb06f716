package indicators

import (
	"math"

	"trade-plan-engine/internal/market"
)

// ============================================================================
// SERIES FUNCTIONS
// ============================================================================
//
// All rolling-window functions return a slice the same length as the input,
// with NaN for the warm-up portion. Callers must tolerate NaN; scoring
// degrades to neutral when an indicator is not yet defined.

// EMA calculates an Exponential Moving Average series.
// alpha = 2/(span+1), seeded with the first value.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || span <= 0 {
		return out
	}

	alpha := 2.0 / float64(span+1)
	ema := values[0]
	out[0] = ema
	for i := 1; i < len(values); i++ {
		ema = values[i]*alpha + ema*(1-alpha)
		out[i] = ema
	}

	return out
}

// SMA calculates a Simple Moving Average series
func SMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return warmup(len(values), len(values))
	}

	out := warmup(len(values), period-1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}

	return out
}

// RSI calculates the Relative Strength Index series.
// With wilder=true, average gain/loss use Wilder smoothing after the
// initial window; otherwise a plain rolling average is used.
func RSI(values []float64, period int, wilder bool) []float64 {
	const eps = 1e-9 // guards the zero average-loss division

	if period <= 0 || len(values) < period+1 {
		return warmup(len(values), len(values))
	}

	out := warmup(len(values), period)
	gains := make([]float64, len(values))
	losses := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			gains[i] = change
		} else {
			losses[i] = -change
		}
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = 100 - 100/(1+avgGain/(avgLoss+eps))

	for i := period + 1; i < len(values); i++ {
		if wilder {
			avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
			avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
		} else {
			avgGain += (gains[i] - gains[i-period]) / float64(period)
			avgLoss += (losses[i] - losses[i-period]) / float64(period)
		}
		out[i] = 100 - 100/(1+avgGain/(avgLoss+eps))
	}

	return out
}

// MACD calculates the MACD line, signal line and histogram series.
// Line = EMA12 - EMA26, signal = EMA9 of the line.
func MACD(values []float64) (line, signal, hist []float64) {
	fast := EMA(values, 12)
	slow := EMA(values, 26)

	line = make([]float64, len(values))
	for i := range values {
		line[i] = fast[i] - slow[i]
	}

	signal = EMA(line, 9)

	hist = make([]float64, len(values))
	for i := range values {
		hist[i] = line[i] - signal[i]
	}

	return line, signal, hist
}

// Bollinger calculates Bollinger Bands: rolling mean ± k * population stddev
func Bollinger(values []float64, period int, k float64) (mid, upper, lower []float64) {
	mid = SMA(values, period)
	if period <= 0 || len(values) < period {
		return mid, warmup(len(values), len(values)), warmup(len(values), len(values))
	}
	upper = warmup(len(values), period-1)
	lower = warmup(len(values), period-1)

	for i := period - 1; i < len(values); i++ {
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			diff := values[j] - mid[i]
			variance += diff * diff
		}
		std := math.Sqrt(variance / float64(period))
		upper[i] = mid[i] + k*std
		lower[i] = mid[i] - k*std
	}

	return mid, upper, lower
}

// TrueRange calculates the true range series:
// max(high-low, |high-prevClose|, |low-prevClose|)
func TrueRange(klines []market.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		if i == 0 {
			out[i] = k.High - k.Low
			continue
		}
		prevClose := klines[i-1].Close
		out[i] = math.Max(k.High-k.Low,
			math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
	}
	return out
}

// ATR calculates the Average True Range series (rolling mean of true range)
func ATR(klines []market.Kline, period int) []float64 {
	tr := TrueRange(klines)
	return SMA(tr, period)
}

// VWAP calculates the cumulative volume-weighted average price series.
// Zero cumulative volume degrades to the typical price.
func VWAP(klines []market.Kline) []float64 {
	out := make([]float64, len(klines))
	cumPV := 0.0
	cumV := 0.0
	for i, k := range klines {
		typical := (k.High + k.Low + k.Close) / 3
		cumPV += typical * k.Volume
		cumV += k.Volume
		if cumV > 0 {
			out[i] = cumPV / cumV
		} else {
			out[i] = typical
		}
	}
	return out
}

// Last returns the final value of a series, or NaN when empty
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// warmup builds a slice with the first n entries set to NaN
func warmup(length, n int) []float64 {
	out := make([]float64, length)
	for i := 0; i < length && i < n; i++ {
		out[i] = math.NaN()
	}
	return out
}
