// Package spot implements the spot-market candidate plan generators. Each
// generator is a pure function from candles + structural levels to a draft
// plan; when its trigger condition is not met, or the data is too short,
// it returns nil instead of raising.
package spot

import (
	"fmt"
	"math"

	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/structure"
)

// Inputs bundles everything a generator may read
type Inputs struct {
	Candles   market.CandleBundle
	Primary   market.Timeframe
	Snap      *indicators.Snapshot
	Structure *structure.Analysis
	FVGs      []structure.FVG
	Price     float64
}

// ready reports whether the inputs carry enough data to shape a plan
func (in Inputs) ready() bool {
	return in.Snap != nil && in.Structure != nil &&
		!math.IsNaN(in.Snap.ATR14) && in.Snap.ATR14 > 0 && in.Price > 0
}

// Generate runs every spot generator and collects the non-nil drafts
func Generate(in Inputs) []*plan.SpotPlan {
	var out []*plan.SpotPlan
	for _, gen := range []func(Inputs) *plan.SpotPlan{
		Pullback, Breakout, RangeReversal, SupportReclaim, GapFill,
	} {
		if p := gen(in); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Pullback buys retracements toward VWAP/EMA20/EMA50 in an aligned trend
// (or sells them in an aligned downtrend)
func Pullback(in Inputs) *plan.SpotPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14

	uptrend := s.EMA5 > s.EMA20 && s.EMA20 > s.EMA50
	downtrend := s.EMA5 < s.EMA20 && s.EMA20 < s.EMA50
	if !uptrend && !downtrend {
		return nil
	}

	p := &plan.SpotPlan{Core: plan.NewCore(plan.KindSpot, "pullback", plan.SideLong)}
	if downtrend {
		p.Side = plan.SideShort
	}

	if uptrend {
		shallow := s.EMA20
		if !math.IsNaN(s.VWAP) && s.VWAP < in.Price && s.VWAP > s.EMA20 {
			shallow = s.VWAP
		}
		deep := s.EMA50
		p.Entries = entries(shallow, deep)
		p.Invalidation = math.Min(s.EMA50, nonZeroOr(in.Structure.NearestSupport, s.EMA50)) - 0.75*atr
	} else {
		shallow := s.EMA20
		if !math.IsNaN(s.VWAP) && s.VWAP > in.Price && s.VWAP < s.EMA20 {
			shallow = s.VWAP
		}
		deep := s.EMA50
		p.Entries = entries(shallow, deep)
		p.Invalidation = math.Max(s.EMA50, nonZeroOr(in.Structure.NearestResist, s.EMA50)) + 0.75*atr
	}

	avg := p.WeightedEntry()
	p.TakeProfits = ladder(p.Side, avg, atr, in.Structure)
	p.Support = in.Structure.NearestSupport
	p.Resistance = in.Structure.NearestResist
	p.Notes = append(p.Notes, "retracement entries at dynamic moving-average support")
	p.Confirmations = append(p.Confirmations, "ema stack aligned", "price extended from value area")
	finish(&p.Core)
	return p
}

// Breakout positions at a resistance trigger with a retest add
func Breakout(in Inputs) *plan.SpotPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14
	res := in.Structure.NearestResist
	if res == 0 {
		return nil
	}

	// Trigger only when price is pressing into resistance
	if in.Price < res-1.5*atr || in.Price > res+0.5*atr {
		return nil
	}

	p := &plan.SpotPlan{Core: plan.NewCore(plan.KindSpot, "breakout", plan.SideLong)}
	trigger := res + 0.10*atr
	retest := res - 0.25*atr
	p.Entries = entries(trigger, retest)
	p.Invalidation = res - 1.25*atr

	height := in.Structure.RangeHigh - in.Structure.RangeLow
	if height <= 0 {
		height = 2 * atr
	}
	avg := p.WeightedEntry()
	p.TakeProfits = []plan.TakeProfit{
		tp("TP1", avg+0.5*height, 40, "half measured move"),
		tp("TP2", avg+1.0*height, 35, "full measured move"),
		tp("TP3", extension(plan.SideLong, avg+1.5*height), 25, "extended measured move"),
	}
	p.Support = res // broken resistance becomes support
	p.Resistance = structure.NearestAbove(avg+1.5*height, in.Structure.ResistanceLevels)
	p.Notes = append(p.Notes, fmt.Sprintf("breakout over %.6f with retest add", res))
	p.Confirmations = append(p.Confirmations, "price pressing resistance", "range height measurable")
	finish(&p.Core)
	return p
}

// RangeReversal buys the lower band / demand zone inside a range
func RangeReversal(in Inputs) *plan.SpotPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14
	if math.IsNaN(s.BollLower) || math.IsNaN(s.BollMid) {
		return nil
	}

	// Trigger: price near the lower band or range low
	nearBand := in.Price <= s.BollLower+0.5*atr
	nearRangeLow := in.Structure.RangeLow > 0 && in.Price <= in.Structure.RangeLow+0.5*atr
	if !nearBand && !nearRangeLow {
		return nil
	}

	p := &plan.SpotPlan{Core: plan.NewCore(plan.KindSpot, "range_reversal", plan.SideLong)}
	demand := nonZeroOr(in.Structure.RangeLow, s.BollLower)
	p.Entries = entries(s.BollLower, demand)
	p.Invalidation = math.Min(s.BollLower, demand) - 0.75*atr

	avg := p.WeightedEntry()
	p.TakeProfits = []plan.TakeProfit{
		tp("TP1", s.BollMid, 40, "mean reversion to mid band"),
		tp("TP2", math.Max(s.BollUpper, avg+2*atr), 35, "upper band"),
		tp("TP3", extension(plan.SideLong, math.Max(s.BollUpper, avg+2*atr)+atr), 25, "range high extension"),
	}
	p.Support = demand
	p.Resistance = in.Structure.NearestResist
	p.Notes = append(p.Notes, "mean-reversion long from range demand")
	p.Confirmations = append(p.Confirmations, "price at lower extremity")
	finish(&p.Core)
	return p
}

// SupportReclaim buys a sweep-and-reclaim of key support
func SupportReclaim(in Inputs) *plan.SpotPlan {
	if !in.ready() {
		return nil
	}
	klines := in.Candles[in.Primary]
	if len(klines) < 10 {
		return nil
	}
	atr := in.Snap.ATR14

	support := in.Structure.NearestSupport
	if support == 0 {
		return nil
	}

	// Sweep: a recent low pierced support; reclaim: price closed back above
	sweepLow := 0.0
	for _, k := range klines[len(klines)-8:] {
		if k.Low < support && (sweepLow == 0 || k.Low < sweepLow) {
			sweepLow = k.Low
		}
	}
	if sweepLow == 0 || in.Price <= support {
		return nil
	}

	p := &plan.SpotPlan{Core: plan.NewCore(plan.KindSpot, "support_reclaim", plan.SideLong)}
	p.Entries = entries(support+0.25*atr, support)
	p.Invalidation = sweepLow - 0.5*atr

	avg := p.WeightedEntry()
	p.TakeProfits = ladder(plan.SideLong, avg, atr, in.Structure)
	p.Support = support
	p.Resistance = in.Structure.NearestResist
	p.Notes = append(p.Notes, fmt.Sprintf("sweep to %.6f reclaimed over %.6f", sweepLow, support))
	p.Confirmations = append(p.Confirmations, "liquidity sweep", "close back above support")
	finish(&p.Core)
	return p
}

// GapFill buys inside an unfilled bullish fair value gap below price
func GapFill(in Inputs) *plan.SpotPlan {
	if !in.ready() || len(in.FVGs) == 0 {
		return nil
	}
	atr := in.Snap.ATR14

	gap := structure.NearestUnfilledFVG(in.FVGs, in.Price, structure.BullishFVG)
	if gap == nil || gap.TopPrice >= in.Price {
		return nil
	}
	// Only act on gaps close enough for a realistic retrace
	if in.Price-gap.TopPrice > 3*atr {
		return nil
	}

	p := &plan.SpotPlan{Core: plan.NewCore(plan.KindSpot, "gap_fill", plan.SideLong)}
	mid := (gap.TopPrice + gap.BottomPrice) / 2
	p.Entries = entries(gap.TopPrice, mid)
	p.Invalidation = gap.BottomPrice - 0.5*atr

	avg := p.WeightedEntry()
	p.TakeProfits = ladder(plan.SideLong, avg, atr, in.Structure)
	p.Support = gap.BottomPrice
	p.Resistance = in.Structure.NearestResist
	p.Notes = append(p.Notes, "entries inside 3-candle imbalance")
	p.Confirmations = append(p.Confirmations, "unfilled bullish imbalance below price")
	finish(&p.Core)
	return p
}

// ============================================================================
// SHARED SHAPING HELPERS
// ============================================================================

// entries builds the standard 2-entry ladder: 60% at the shallow level,
// 40% at the deeper one
func entries(shallow, deep float64) []plan.Entry {
	return []plan.Entry{
		{Price: plan.Round6(shallow), Weight: 0.6},
		{Price: plan.Round6(deep), Weight: 0.4},
	}
}

// ladder builds the standard 3-rung ATR/structure blend: 1 ATR, 2 ATR and
// a structural extension rounded up to the next meaningful step
func ladder(side plan.Side, entry, atr float64, st *structure.Analysis) []plan.TakeProfit {
	dir := 1.0
	if side == plan.SideShort {
		dir = -1
	}

	tp1 := entry + dir*1.0*atr
	tp2 := entry + dir*2.0*atr
	tp3 := entry + dir*3.0*atr
	if side == plan.SideLong && st != nil {
		if r := structure.NearestAbove(tp2, st.ResistanceLevels); r > 0 {
			tp3 = math.Max(tp3, r)
		}
	} else if side == plan.SideShort && st != nil {
		if s := structure.NearestBelow(tp2, st.SupportLevels); s > 0 {
			tp3 = math.Min(tp3, s)
		}
	}
	tp3 = extension(side, tp3)

	return []plan.TakeProfit{
		tp("TP1", tp1, 40, "1.0x ATR"),
		tp("TP2", tp2, 35, "2.0x ATR / structure"),
		tp("TP3", tp3, 25, "structural extension"),
	}
}

// extension snaps the extension target outward to the next meaningful step
func extension(side plan.Side, price float64) float64 {
	if side == plan.SideLong {
		return structure.RoundUpToStep(price)
	}
	step := structure.RoundStep(price)
	if step == 0 {
		return price
	}
	return math.Floor(price/step+1e-9) * step
}

func tp(name string, price, qtyPct float64, logic string) plan.TakeProfit {
	return plan.TakeProfit{Name: name, Price: plan.Round6(price), QtyPct: qtyPct, Logic: logic}
}

// finish rounds the remaining numeric fields to plan resolution
func finish(c *plan.Core) {
	c.Invalidation = plan.Round6(c.Invalidation)
	c.Support = plan.Round6(c.Support)
	c.Resistance = plan.Round6(c.Resistance)
}

func nonZeroOr(v, fallback float64) float64 {
	if v != 0 {
		return v
	}
	return fallback
}
