package structure

import (
	"trade-plan-engine/internal/market"
)

// FVGType represents the type of Fair Value Gap
type FVGType string

const (
	BullishFVG FVGType = "bullish"
	BearishFVG FVGType = "bearish"
)

// FVG represents a Fair Value Gap: a 3-candle imbalance where the first
// and third candles leave an untraded window around the middle candle
type FVG struct {
	Type        FVGType `json:"type"`
	TopPrice    float64 `json:"top_price"`
	BottomPrice float64 `json:"bottom_price"`
	CandleIndex int     `json:"candle_index"`
	Filled      bool    `json:"filled"`
}

// DetectFVGs identifies all Fair Value Gaps at least minGapPercent wide.
// Gaps later wicked into by price are marked filled.
func DetectFVGs(klines []market.Kline, minGapPercent float64) []FVG {
	if len(klines) < 3 {
		return nil
	}
	if minGapPercent <= 0 {
		minGapPercent = 0.1
	}

	var fvgs []FVG
	for i := 0; i < len(klines)-2; i++ {
		c1 := klines[i]
		c3 := klines[i+2]

		// Bullish FVG: gap between c1.High and c3.Low
		if c1.High < c3.Low {
			gapSize := (c3.Low - c1.High) / c1.High * 100
			if gapSize >= minGapPercent {
				fvgs = append(fvgs, FVG{
					Type:        BullishFVG,
					TopPrice:    c3.Low,
					BottomPrice: c1.High,
					CandleIndex: i,
				})
			}
		}

		// Bearish FVG: gap between c3.High and c1.Low
		if c1.Low > c3.High {
			gapSize := (c1.Low - c3.High) / c3.High * 100
			if gapSize >= minGapPercent {
				fvgs = append(fvgs, FVG{
					Type:        BearishFVG,
					TopPrice:    c1.Low,
					BottomPrice: c3.High,
					CandleIndex: i,
				})
			}
		}
	}

	markFilled(fvgs, klines)
	return fvgs
}

// markFilled flags gaps that price has already traded back into
func markFilled(fvgs []FVG, klines []market.Kline) {
	for i := range fvgs {
		f := &fvgs[i]
		for j := f.CandleIndex + 3; j < len(klines); j++ {
			k := klines[j]
			if f.Type == BullishFVG && k.Low <= f.TopPrice {
				f.Filled = true
				break
			}
			if f.Type == BearishFVG && k.High >= f.BottomPrice {
				f.Filled = true
				break
			}
		}
	}
}

// UnfilledFVGs filters to gaps price has not yet traded back into
func UnfilledFVGs(fvgs []FVG) []FVG {
	var out []FVG
	for _, f := range fvgs {
		if !f.Filled {
			out = append(out, f)
		}
	}
	return out
}

// NearestUnfilledFVG returns the unfilled gap of the wanted type closest
// to price, or nil
func NearestUnfilledFVG(fvgs []FVG, price float64, want FVGType) *FVG {
	var best *FVG
	bestDist := 0.0
	for i := range fvgs {
		f := &fvgs[i]
		if f.Filled || f.Type != want {
			continue
		}
		mid := (f.TopPrice + f.BottomPrice) / 2
		dist := price - mid
		if dist < 0 {
			dist = -dist
		}
		if best == nil || dist < bestDist {
			best = f
			bestDist = dist
		}
	}
	return best
}
