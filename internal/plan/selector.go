package plan

import (
	"fmt"
	"math"
	"sort"

	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/regime"
	"trade-plan-engine/internal/structure"
)

// ScoreContext carries the market context every candidate is scored against
type ScoreContext struct {
	Regime    regime.Regime
	Snap      *indicators.Snapshot
	Structure *structure.Analysis
	Price     float64
	RRFloor   float64
}

// Fitness is one candidate's score with its component breakdown retained
// for auditability
type Fitness struct {
	PlanID     string             `json:"plan_id"`
	Strategy   string             `json:"strategy"`
	Side       Side               `json:"side"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// Selection is the selector output: the winning plan (nil when vetoed or no
// candidates) plus every candidate's fitness, best first
type Selection struct {
	Best       Plan      `json:"-"`
	Fitness    []Fitness `json:"fitness"`
	Vetoed     bool      `json:"vetoed"`
	VetoReason string    `json:"veto_reason,omitempty"`
}

// regimeFit maps each strategy to the regime it performs best in
var regimeFit = map[string]regime.Regime{
	"pullback":                   regime.Trending,
	"pullback_ema20_reclaim":     regime.Trending,
	"ema_cluster_rejection":      regime.Trending,
	"breakout":                   regime.Ranging,
	"range_rebreak_retest":       regime.Ranging,
	"support_reclaim":            regime.Ranging,
	"breakdown_retest_fail":      regime.Ranging,
	"range_reversal":             regime.Volatile,
	"gap_fill":                   regime.Volatile,
	"oversold_bounce_divergence": regime.Volatile,
	"false_break_round_number":   regime.Volatile,
}

// ScorePlan computes a 0..100 fitness for one candidate
func ScorePlan(p Plan, ctx ScoreContext) Fitness {
	c := p.PlanCore()
	comp := map[string]float64{"base": 50}

	comp["rr"] = rrComponent(c, ctx.RRFloor)
	comp["regime"] = regimeComponent(c.Strategy, ctx.Regime)
	comp["confluence"] = confluenceComponent(c, ctx)
	comp["inval_buffer"] = invalBufferComponent(c, ctx)
	comp["confirmations"] = math.Min(6, 2*float64(len(c.Confirmations)))
	if c.NoTrade {
		comp["no_trade"] = -40
	}

	score := 0.0
	for _, v := range comp {
		score += v
	}
	score = math.Max(0, math.Min(100, score))

	return Fitness{
		PlanID:     c.ID,
		Strategy:   c.Strategy,
		Side:       c.Side,
		Score:      math.Round(score*100) / 100,
		Components: comp,
	}
}

// Select scores every candidate and picks the highest. When the top two
// candidates sit on opposite sides with a score gap under vetoDelta the
// market is read as contested and nothing is selected.
func Select(plans []Plan, ctx ScoreContext, vetoDelta float64) Selection {
	sel := Selection{}
	if len(plans) == 0 {
		return sel
	}

	scored := make([]Fitness, 0, len(plans))
	byID := make(map[string]Plan, len(plans))
	for _, p := range plans {
		f := ScorePlan(p, ctx)
		scored = append(scored, f)
		byID[f.PlanID] = p
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	sel.Fitness = scored

	best := scored[0]
	if len(scored) > 1 {
		second := scored[1]
		if best.Side != second.Side && best.Score-second.Score < vetoDelta {
			sel.Vetoed = true
			sel.VetoReason = fmt.Sprintf(
				"contested market: %s %s (%.2f) vs %s %s (%.2f), gap under %.2f",
				best.Strategy, best.Side, best.Score,
				second.Strategy, second.Side, second.Score, vetoDelta)
			return sel
		}
	}

	sel.Best = byID[best.PlanID]
	return sel
}

// rrComponent rewards reward/risk above the floor, up to +20 at twice the
// floor, and penalizes below-floor candidates
func rrComponent(c *Core, rrFloor float64) float64 {
	if rrFloor <= 0 {
		rrFloor = 1.5
	}
	rr := quickRR(c)
	if math.IsNaN(rr) || rr <= 0 {
		return -15
	}
	if rr < rrFloor {
		return -15 * (rrFloor - rr) / rrFloor
	}
	return math.Min(20, 20*(rr-rrFloor)/rrFloor)
}

func regimeComponent(strategy string, r regime.Regime) float64 {
	want, ok := regimeFit[strategy]
	if !ok || r == "" {
		return 0
	}
	if want == r {
		return 10
	}
	return -5
}

// confluenceComponent rewards entries placed near a dynamic value reference
// (VWAP, EMA20 or EMA50) within a fraction of ATR
func confluenceComponent(c *Core, ctx ScoreContext) float64 {
	if ctx.Snap == nil || math.IsNaN(ctx.Snap.ATR14) || ctx.Snap.ATR14 <= 0 {
		return 0
	}
	entry := c.WeightedEntry()
	if math.IsNaN(entry) {
		return 0
	}
	band := 0.3 * ctx.Snap.ATR14
	for _, ref := range []float64{ctx.Snap.VWAP, ctx.Snap.EMA20, ctx.Snap.EMA50} {
		if !math.IsNaN(ref) && math.Abs(entry-ref) <= band {
			return 8
		}
	}
	return 0
}

// invalBufferComponent rewards invalidation placed behind the nearest swing
// with room to breathe, in ATRs, capped
func invalBufferComponent(c *Core, ctx ScoreContext) float64 {
	if ctx.Structure == nil || ctx.Snap == nil ||
		math.IsNaN(ctx.Snap.ATR14) || ctx.Snap.ATR14 <= 0 {
		return 0
	}
	var swing float64
	if c.Side == SideLong {
		swing = structure.NearestSwingBelow(c.WeightedEntry(), ctx.Structure.SwingLows)
		if swing == 0 || c.Invalidation >= swing {
			return 0
		}
		return math.Min(7, 7*(swing-c.Invalidation)/ctx.Snap.ATR14)
	}
	swing = structure.NearestSwingAbove(c.WeightedEntry(), ctx.Structure.SwingHighs)
	if swing == 0 || c.Invalidation <= swing {
		return 0
	}
	return math.Min(7, 7*(c.Invalidation-swing)/ctx.Snap.ATR14)
}

// quickRR is the selector's cheap reward/risk estimate: qty-weighted target
// distance over invalidation distance from the weighted entry
func quickRR(c *Core) float64 {
	entry := c.WeightedEntry()
	if math.IsNaN(entry) || len(c.TakeProfits) == 0 {
		return math.NaN()
	}
	risk := math.Abs(entry - c.Invalidation)
	if risk <= 0 {
		return math.NaN()
	}

	dir := 1.0
	if c.Side == SideShort {
		dir = -1
	}
	sumQty := 0.0
	reward := 0.0
	for _, t := range c.TakeProfits {
		sumQty += t.QtyPct
		reward += dir * (t.Price - entry) * t.QtyPct
	}
	if sumQty <= 0 {
		return math.NaN()
	}
	return reward / sumQty / risk
}
