// Package structure extracts structural price levels from a candle series:
// swing points, support/resistance, higher-high/lower-low counts and round
// numbers. Plan generators read these levels when shaping entries, targets
// and invalidation.
package structure

import (
	"math"
	"sort"

	"trade-plan-engine/internal/market"
)

// SwingPoint represents a significant price level
type SwingPoint struct {
	Price       float64 `json:"price"`
	CandleIndex int     `json:"candle_index"`
	Type        string  `json:"type"` // "high" or "low"
}

// Analysis represents analyzed market structure for one timeframe
type Analysis struct {
	SwingHighs       []SwingPoint `json:"swing_highs"`
	SwingLows        []SwingPoint `json:"swing_lows"`
	SupportLevels    []float64    `json:"support_levels"`
	ResistanceLevels []float64    `json:"resistance_levels"`
	NearestSupport   float64      `json:"nearest_support"`
	NearestResist    float64      `json:"nearest_resistance"`
	HigherHighs      int          `json:"higher_highs"`
	HigherLows       int          `json:"higher_lows"`
	LowerHighs       int          `json:"lower_highs"`
	LowerLows        int          `json:"lower_lows"`
	RangeHigh        float64      `json:"range_high"`
	RangeLow         float64      `json:"range_low"`
}

// Analyzer finds swing points and derives structural levels
type Analyzer struct {
	swingLookback int
}

// NewAnalyzer creates a structure analyzer; lookback is the candle window
// on each side a swing must dominate
func NewAnalyzer(swingLookback int) *Analyzer {
	if swingLookback <= 0 {
		swingLookback = 5
	}
	return &Analyzer{swingLookback: swingLookback}
}

// Analyze performs the full structure pass. Returns nil when the series is
// too short to hold even one swing window.
func (a *Analyzer) Analyze(klines []market.Kline) *Analysis {
	if len(klines) < a.swingLookback*2+1 {
		return nil
	}

	st := &Analysis{
		SwingHighs: a.findSwings(klines, true),
		SwingLows:  a.findSwings(klines, false),
	}

	st.HigherHighs, st.LowerHighs = countRising(st.SwingHighs)
	st.HigherLows, st.LowerLows = countRising(st.SwingLows)

	price := klines[len(klines)-1].Close
	st.SupportLevels = levelPrices(st.SwingLows)
	st.ResistanceLevels = levelPrices(st.SwingHighs)
	st.NearestSupport = NearestBelow(price, st.SupportLevels)
	st.NearestResist = NearestAbove(price, st.ResistanceLevels)

	st.RangeLow, st.RangeHigh = rangeBounds(klines, a.swingLookback*4)

	return st
}

// findSwings identifies swing highs (or lows) that dominate the lookback
// window on both sides
func (a *Analyzer) findSwings(klines []market.Kline, highs bool) []SwingPoint {
	var swings []SwingPoint
	lb := a.swingLookback

	for i := lb; i < len(klines)-lb; i++ {
		dominant := true
		for j := i - lb; j <= i+lb && dominant; j++ {
			if j == i {
				continue
			}
			if highs && klines[j].High >= klines[i].High {
				dominant = false
			}
			if !highs && klines[j].Low <= klines[i].Low {
				dominant = false
			}
		}
		if !dominant {
			continue
		}

		sp := SwingPoint{CandleIndex: i}
		if highs {
			sp.Price = klines[i].High
			sp.Type = "high"
		} else {
			sp.Price = klines[i].Low
			sp.Type = "low"
		}
		swings = append(swings, sp)
	}

	return swings
}

// countRising counts rising and falling steps across consecutive swings
func countRising(points []SwingPoint) (rising, falling int) {
	for i := 1; i < len(points); i++ {
		if points[i].Price > points[i-1].Price {
			rising++
		} else if points[i].Price < points[i-1].Price {
			falling++
		}
	}
	return rising, falling
}

func levelPrices(points []SwingPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Price)
	}
	sort.Float64s(out)
	return out
}

// rangeBounds returns the low/high of the trailing window
func rangeBounds(klines []market.Kline, window int) (low, high float64) {
	if window > len(klines) {
		window = len(klines)
	}
	start := len(klines) - window
	low = klines[start].Low
	high = klines[start].High
	for _, k := range klines[start:] {
		if k.Low < low {
			low = k.Low
		}
		if k.High > high {
			high = k.High
		}
	}
	return low, high
}

// NearestAbove returns the smallest level strictly above price, 0 if none
func NearestAbove(price float64, levels []float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l > price && (best == 0 || l < best) {
			best = l
		}
	}
	return best
}

// NearestBelow returns the largest level strictly below price, 0 if none
func NearestBelow(price float64, levels []float64) float64 {
	best := 0.0
	for _, l := range levels {
		if l < price && l > best {
			best = l
		}
	}
	return best
}

// NearestSwingBelow returns the closest swing-low price under the given
// price, 0 if none exists
func NearestSwingBelow(price float64, lows []SwingPoint) float64 {
	return NearestBelow(price, levelPrices(lows))
}

// NearestSwingAbove returns the closest swing-high price over the given
// price, 0 if none exists
func NearestSwingAbove(price float64, highs []SwingPoint) float64 {
	return NearestAbove(price, levelPrices(highs))
}

// RoundNumberNear returns the round price level nearest to price. The step
// scales with price magnitude (e.g. 100s for five-figure prices, 0.01 for
// sub-dollar prices).
func RoundNumberNear(price float64) float64 {
	step := RoundStep(price)
	if step == 0 {
		return price
	}
	return math.Round(price/step) * step
}

// RoundStep returns the "meaningful step" for a price magnitude, used both
// for round-number detection and for rounding extension targets up
func RoundStep(price float64) float64 {
	abs := math.Abs(price)
	switch {
	case abs >= 10000:
		return 100
	case abs >= 1000:
		return 10
	case abs >= 100:
		return 1
	case abs >= 10:
		return 0.1
	case abs >= 1:
		return 0.01
	case abs > 0:
		return 0.001
	default:
		return 0
	}
}

// RoundUpToStep rounds a price up to the next meaningful step boundary
func RoundUpToStep(price float64) float64 {
	step := RoundStep(price)
	if step == 0 {
		return price
	}
	return math.Ceil(price/step-1e-9) * step
}
