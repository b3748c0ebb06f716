// Package futures implements the six pattern-based candidate setups for
// leveraged derivatives: three long-biased, three short-biased. Setups
// share the spot generators' contract: a missed trigger or too-short
// series returns nil, never an error.
package futures

import (
	"fmt"
	"math"

	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/structure"
)

// Inputs bundles everything a setup may read
type Inputs struct {
	Candles   market.CandleBundle
	Primary   market.Timeframe
	Snap      *indicators.Snapshot
	Structure *structure.Analysis
	Price     float64
	Leverage  int // suggested leverage for emitted drafts
}

func (in Inputs) ready() bool {
	return in.Snap != nil && in.Structure != nil &&
		!math.IsNaN(in.Snap.ATR14) && in.Snap.ATR14 > 0 && in.Price > 0 &&
		len(in.Candles[in.Primary]) >= 20
}

// Generate runs every futures setup and collects the non-nil drafts
func Generate(in Inputs) []*plan.FuturesPlan {
	var out []*plan.FuturesPlan
	for _, gen := range []func(Inputs) *plan.FuturesPlan{
		PullbackReclaim, OversoldBounce, RangeRebreak,
		BreakdownRetestFail, EMAClusterRejection, FalseBreakRoundNumber,
	} {
		if p := gen(in); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ============================================================================
// LONG-BIASED SETUPS
// ============================================================================

// PullbackReclaim: price dipped to EMA20 inside an uptrend and closed back
// above it
func PullbackReclaim(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14
	klines := in.Candles[in.Primary]

	if !(s.EMA20 > s.EMA50) || in.Price <= s.EMA20 {
		return nil
	}
	touched := false
	for _, k := range klines[len(klines)-5:] {
		if k.Low <= s.EMA20 {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}

	p := newDraft(in, "pullback_ema20_reclaim", plan.SideLong)
	p.Entries = entries(s.EMA20+0.10*atr, s.EMA20-0.25*atr)
	p.Invalidation = math.Min(s.EMA50, lowestLow(klines, 5)) - 0.5*atr

	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideLong, avg, 1.2*atr, 2.5*atr,
		"first supply above reclaim", "trend continuation")
	p.Confirmations = append(p.Confirmations, "ema20 over ema50", "dip bought back above ema20")
	finish(p, in)
	return p
}

// OversoldBounce: oversold RSI with a bullish divergence against the most
// recent price low
func OversoldBounce(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14
	klines := in.Candles[in.Primary]

	if math.IsNaN(s.RSI14) || s.RSI14 >= 35 {
		return nil
	}
	if !bullishDivergence(klines) {
		return nil
	}

	p := newDraft(in, "oversold_bounce_divergence", plan.SideLong)
	p.Entries = entries(in.Price, in.Price-0.5*atr)
	p.Invalidation = lowestLow(klines, 10) - 0.6*atr

	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideLong, avg, 1.0*atr, 2.0*atr,
		"relief move to mean", "prior breakdown origin")
	p.Confirmations = append(p.Confirmations, "rsi oversold", "price/rsi divergence")
	finish(p, in)
	return p
}

// RangeRebreak: price rebroke above the trailing range high and the retest
// is holding
func RangeRebreak(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	atr := in.Snap.ATR14
	high := in.Structure.RangeHigh
	if high <= 0 || in.Price <= high || in.Price > high+1.0*atr {
		return nil
	}

	p := newDraft(in, "range_rebreak_retest", plan.SideLong)
	p.Entries = entries(high+0.10*atr, high-0.15*atr)
	p.Invalidation = high - 0.9*atr

	height := in.Structure.RangeHigh - in.Structure.RangeLow
	if height <= 0 {
		height = 2 * atr
	}
	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideLong, avg, 0.6*height, 1.2*height,
		"partial measured move", "full measured move")
	p.Confirmations = append(p.Confirmations, "range high reclaimed", "retest holding above prior high")
	finish(p, in)
	return p
}

// ============================================================================
// SHORT-BIASED SETUPS
// ============================================================================

// BreakdownRetestFail: support broke down and the retest from below is
// failing at the old level
func BreakdownRetestFail(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	atr := in.Snap.ATR14
	klines := in.Candles[in.Primary]

	support := brokenSupport(klines, in.Structure)
	if support == 0 || in.Price >= support || support-in.Price > 1.0*atr {
		return nil
	}
	// Retest: a recent high reached back into the broken level
	if highestHigh(klines, 5) < support-0.25*atr {
		return nil
	}

	p := newDraft(in, "breakdown_retest_fail", plan.SideShort)
	p.Entries = entries(support-0.10*atr, support+0.15*atr)
	p.Invalidation = support + 0.9*atr

	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideShort, avg, 1.2*atr, 2.5*atr,
		"continuation below broken support", "next demand zone")
	p.Confirmations = append(p.Confirmations, "support broken", "retest rejected at old support")
	finish(p, in)
	return p
}

// EMAClusterRejection: price rallied into a tight EMA20/EMA50 cluster in a
// downtrend and closed back below it
func EMAClusterRejection(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	s := in.Snap
	atr := s.ATR14
	klines := in.Candles[in.Primary]

	if !(s.EMA20 < s.EMA50) || math.Abs(s.EMA50-s.EMA20) > 0.5*atr {
		return nil
	}
	if in.Price >= s.EMA20 || highestHigh(klines, 5) < s.EMA20 {
		return nil
	}

	clusterTop := math.Max(s.EMA20, s.EMA50)
	p := newDraft(in, "ema_cluster_rejection", plan.SideShort)
	p.Entries = entries(s.EMA20, clusterTop+0.20*atr)
	p.Invalidation = clusterTop + 0.75*atr

	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideShort, avg, 1.5*atr, 3.0*atr,
		"recent swing low", "trend extension")
	p.Confirmations = append(p.Confirmations, "ema cluster overhead", "rally sold into cluster")
	finish(p, in)
	return p
}

// FalseBreakRoundNumber: price wicked above a round-number level and closed
// back below it
func FalseBreakRoundNumber(in Inputs) *plan.FuturesPlan {
	if !in.ready() {
		return nil
	}
	atr := in.Snap.ATR14
	klines := in.Candles[in.Primary]

	// Psychological levels sit on a grid one magnitude coarser than the
	// plain price step. The broken level is the highest one under the wick.
	step := structure.RoundStep(in.Price) * 10
	if step <= 0 {
		return nil
	}
	recentHigh := highestHigh(klines, 5)
	level := math.Floor(recentHigh/step) * step
	if level <= in.Price || recentHigh <= level || level-in.Price > 1.0*atr {
		return nil
	}

	p := newDraft(in, "false_break_round_number", plan.SideShort)
	p.Entries = entries(level-0.10*atr, level+0.20*atr)
	p.Invalidation = recentHigh + 0.25*atr

	avg := p.WeightedEntry()
	p.TakeProfits = targets(plan.SideShort, avg, 1.0*atr, 2.0*atr,
		"trapped longs unwinding", "next structural support")
	p.Notes = append(p.Notes, fmt.Sprintf("false break of %.6f", level))
	p.Confirmations = append(p.Confirmations, "wick above round number", "close back below level")
	finish(p, in)
	return p
}

// ============================================================================
// SHARED SHAPING HELPERS
// ============================================================================

func newDraft(in Inputs, strategy string, side plan.Side) *plan.FuturesPlan {
	lev := in.Leverage
	if lev <= 0 {
		lev = 5
	}
	return &plan.FuturesPlan{
		Core:       plan.NewCore(plan.KindFutures, strategy, side),
		Leverage:   lev,
		ReduceOnly: true,
	}
}

func entries(near, far float64) []plan.Entry {
	return []plan.Entry{
		{Price: plan.Round6(near), Weight: 0.6},
		{Price: plan.Round6(far), Weight: 0.4},
	}
}

// targets builds the 2-rung futures ladder, 60/40 reduce-only split
func targets(side plan.Side, entry, d1, d2 float64, logic1, logic2 string) []plan.TakeProfit {
	dir := 1.0
	if side == plan.SideShort {
		dir = -1
	}
	return []plan.TakeProfit{
		{Name: "TP1", Price: plan.Round6(entry + dir*d1), QtyPct: 60, Logic: logic1},
		{Name: "TP2", Price: plan.Round6(entry + dir*d2), QtyPct: 40, Logic: logic2},
	}
}

func finish(p *plan.FuturesPlan, in Inputs) {
	p.Invalidation = plan.Round6(p.Invalidation)
	p.Support = plan.Round6(in.Structure.NearestSupport)
	p.Resistance = plan.Round6(in.Structure.NearestResist)
}

func lowestLow(klines []market.Kline, n int) float64 {
	if n > len(klines) {
		n = len(klines)
	}
	low := math.Inf(1)
	for _, k := range klines[len(klines)-n:] {
		if k.Low < low {
			low = k.Low
		}
	}
	return low
}

func highestHigh(klines []market.Kline, n int) float64 {
	if n > len(klines) {
		n = len(klines)
	}
	high := math.Inf(-1)
	for _, k := range klines[len(klines)-n:] {
		if k.High > high {
			high = k.High
		}
	}
	return high
}

// bullishDivergence checks for a lower price low with a higher RSI low
// across the two halves of the trailing window
func bullishDivergence(klines []market.Kline) bool {
	const window = 20
	if len(klines) < window {
		return false
	}
	closes := market.Closes(klines)
	rsi := indicators.RSI(closes, 14, true)

	half := window / 2
	start := len(klines) - window

	p1, r1 := minWithRSI(klines, rsi, start, start+half)
	p2, r2 := minWithRSI(klines, rsi, start+half, len(klines))
	if math.IsNaN(r1) || math.IsNaN(r2) {
		return false
	}
	return p2 < p1 && r2 > r1
}

func minWithRSI(klines []market.Kline, rsi []float64, from, to int) (price, r float64) {
	price = math.Inf(1)
	r = math.NaN()
	for i := from; i < to; i++ {
		if klines[i].Low < price {
			price = klines[i].Low
			r = rsi[i]
		}
	}
	return price, r
}

// brokenSupport returns the nearest support level above current price that
// recent candles closed below, 0 if none
func brokenSupport(klines []market.Kline, st *structure.Analysis) float64 {
	price := klines[len(klines)-1].Close
	return structure.NearestAbove(price, st.SupportLevels)
}
