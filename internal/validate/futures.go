package validate

import (
	"fmt"
	"math"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/plan"
)

// DerivativesSnapshot carries the venue-side readings the futures validator
// gates on. A nil snapshot skips the market-quality gates.
type DerivativesSnapshot struct {
	FundingRateBps  float64 `json:"funding_rate_bps"`
	NextFundingBps  float64 `json:"next_funding_bps"`
	BasisBps        float64 `json:"basis_bps"`
	OpenInterestChg float64 `json:"open_interest_chg"` // fractional change over the lookback
	LongShortRatio  float64 `json:"long_short_ratio"`
	TakerBuyDelta   float64 `json:"taker_buy_delta"` // buy volume minus sell volume, normalized
	SpreadBps       float64 `json:"spread_bps"`
}

// FuturesChecks is the derivatives validator readout
type FuturesChecks struct {
	AdjustedRR        float64 `json:"adjusted_rr"`
	LiqBuffer         float64 `json:"liq_buffer"`
	SuggestedLeverage int     `json:"suggested_leverage"`
}

// FuturesValidate applies the derivatives-only risk checks on top of
// Normalize:
//
//   - reduce-only exit quantities renormalized to 100%
//   - invalidation pushed to keep a minimum ATR buffer from the estimated
//     liquidation price
//   - reward/risk re-checked net of fees and slippage, with the same floor
//     tightening Normalize applies
//   - leverage compared against policy (warning only, never mutated)
//   - spread, funding and positioning gates from the derivatives snapshot
//
// liqEstimate is the estimated liquidation price for the planned leverage;
// pass 0 when unavailable to skip the buffer check.
func FuturesValidate(p *plan.FuturesPlan, atr, liqEstimate float64, deriv *DerivativesSnapshot, planCfg config.PlanConfig, cfg config.FuturesConfig) FuturesChecks {
	c := &p.Core
	checks := FuturesChecks{SuggestedLeverage: SuggestedLeverage(cfg)}

	renormalizeExitQty(p)

	if liqEstimate > 0 && atr > 0 {
		checks.LiqBuffer = cfg.LiqBufferATRMult * atr
		enforceLiquidationBuffer(c, liqEstimate, checks.LiqBuffer)
	}

	checks.AdjustedRR = adjustedRR(c, cfg)
	if !math.IsNaN(checks.AdjustedRR) && checks.AdjustedRR < planCfg.RRFloor-rrTolerance {
		checks.AdjustedRR = tightenForAdjustedRR(c, planCfg, cfg)
		if checks.AdjustedRR < planCfg.RRFloor-rrTolerance {
			c.Flag(fmt.Sprintf("reward/risk %.2f after fees and slippage", checks.AdjustedRR))
		}
	}

	// Policy deviations in either direction are reported, never corrected
	if p.Leverage > checks.SuggestedLeverage {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"leverage %dx above policy suggestion %dx", p.Leverage, checks.SuggestedLeverage))
	} else if p.Leverage < checks.SuggestedLeverage {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"leverage %dx below policy suggestion %dx", p.Leverage, checks.SuggestedLeverage))
	}

	if deriv != nil {
		gateMarketQuality(c, deriv, cfg)
	}
	return checks
}

// SuggestedLeverage is the policy leverage: half the venue maximum, capped
func SuggestedLeverage(cfg config.FuturesConfig) int {
	suggested := cfg.MaxLeverage / 2
	if suggested < 1 {
		suggested = 1
	}
	if cfg.LeverageCap > 0 && suggested > cfg.LeverageCap {
		suggested = cfg.LeverageCap
	}
	return suggested
}

// enforceLiquidationBuffer pushes invalidation away from the estimated
// liquidation price until at least buffer separates them. The stop must
// trigger well before forced closure. When the push would cross the nearest
// entry the plan cannot be saved and is flagged instead.
func enforceLiquidationBuffer(c *plan.Core, liqEstimate, buffer float64) {
	var proposed float64
	switch {
	case c.Side == plan.SideLong && c.Invalidation-liqEstimate < buffer:
		proposed = liqEstimate + buffer
	case c.Side == plan.SideShort && liqEstimate-c.Invalidation < buffer:
		proposed = liqEstimate - buffer
	default:
		return
	}

	old := c.Invalidation
	pushed := clampInvalidation(c, proposed)
	if c.Side == plan.SideLong && pushed < proposed || c.Side == plan.SideShort && pushed > proposed {
		c.Flag(fmt.Sprintf("no room for invalidation %.6f clear of liquidation %.6f",
			old, liqEstimate))
		return
	}
	c.Invalidation = pushed
	c.Warnings = append(c.Warnings, fmt.Sprintf(
		"invalidation pushed from %.6f to %.6f, %.6f clear of liquidation", old, pushed, buffer))
}

// renormalizeExitQty scales reduce-only exit percentages to 100
func renormalizeExitQty(p *plan.FuturesPlan) {
	if !p.ReduceOnly || len(p.TakeProfits) == 0 {
		return
	}
	sum := 0.0
	for _, t := range p.TakeProfits {
		sum += t.QtyPct
	}
	if sum <= 0 || math.Abs(sum-100) < 1e-9 {
		return
	}
	for i := range p.TakeProfits {
		p.TakeProfits[i].QtyPct = p.TakeProfits[i].QtyPct / sum * 100
	}
	p.Warnings = append(p.Warnings, fmt.Sprintf("exit quantities renormalized from %.2f%%", sum))
}

// adjustedRR recomputes weighted-entry RR to TP1 with round-trip fees and
// slippage taken out of the reward and added to the risk
func adjustedRR(c *plan.Core, cfg config.FuturesConfig) float64 {
	if len(c.TakeProfits) == 0 {
		return math.NaN()
	}
	entry := c.WeightedEntry()
	risk := math.Abs(entry - c.Invalidation)
	if math.IsNaN(entry) || risk <= 0 {
		return math.NaN()
	}
	cost := entry * (2*cfg.FeeBps + cfg.SlippageBps) / 1e4
	reward := direction(c)*(c.TakeProfits[0].Price-entry) - cost
	if reward < 0 {
		reward = 0
	}
	return reward / (risk + cost)
}

// tightenForAdjustedRR reruns the floor tightening against the fee-adjusted
// ratio: invalidation moves toward the weighted entry until the net ratio
// clears the floor, under the same cap and nearest-entry clamp
func tightenForAdjustedRR(c *plan.Core, planCfg config.PlanConfig, cfg config.FuturesConfig) float64 {
	entry := c.WeightedEntry()
	cost := entry * (2*cfg.FeeBps + cfg.SlippageBps) / 1e4
	reward := direction(c)*(c.TakeProfits[0].Price-entry) - cost
	if reward <= 0 {
		return adjustedRR(c, cfg)
	}

	origDist := math.Abs(entry - c.Invalidation)
	needRisk := reward/planCfg.RRFloor - cost
	if needRisk <= 0 || needRisk >= origDist {
		return adjustedRR(c, cfg)
	}

	shift := origDist - needRisk
	if maxShift := planCfg.TightenCapFraction * origDist; shift > maxShift {
		shift = maxShift
	}

	old := c.Invalidation
	c.Invalidation = clampInvalidation(c, c.Invalidation+direction(c)*shift)
	if c.Invalidation != old {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"invalidation tightened from %.6f to %.6f for net reward/risk", old, c.Invalidation))
	}
	return adjustedRR(c, cfg)
}

// gateMarketQuality applies the spread/funding/positioning gates
func gateMarketQuality(c *plan.Core, d *DerivativesSnapshot, cfg config.FuturesConfig) {
	if cfg.MaxSpreadBps > 0 && d.SpreadBps > cfg.MaxSpreadBps {
		c.Flag(fmt.Sprintf("spread %.1fbps above %.1fbps limit", d.SpreadBps, cfg.MaxSpreadBps))
	}

	// Funding against the position direction above the gate kills the trade;
	// funding in favor is only noted
	if cfg.FundingGateBps > 0 && math.Abs(d.FundingRateBps) > cfg.FundingGateBps {
		against := (c.Side == plan.SideLong && d.FundingRateBps > 0) ||
			(c.Side == plan.SideShort && d.FundingRateBps < 0)
		if against {
			c.Flag(fmt.Sprintf("funding %.1fbps against position", d.FundingRateBps))
		} else {
			c.Warnings = append(c.Warnings, fmt.Sprintf("elevated funding %.1fbps", d.FundingRateBps))
		}
	}

	// Stretched basis signals a crowded carry; warn, let the caller decide
	if math.Abs(d.BasisBps) > 2*cfg.FundingGateBps && cfg.FundingGateBps > 0 {
		c.Warnings = append(c.Warnings, fmt.Sprintf("stretched basis %.1fbps", d.BasisBps))
	}

	// Crowded one-sided positioning against the plan direction
	if d.LongShortRatio > 0 {
		if c.Side == plan.SideLong && d.LongShortRatio > 3 {
			c.Warnings = append(c.Warnings, fmt.Sprintf("crowded longs, ratio %.2f", d.LongShortRatio))
		}
		if c.Side == plan.SideShort && d.LongShortRatio < 1.0/3 {
			c.Warnings = append(c.Warnings, fmt.Sprintf("crowded shorts, ratio %.2f", d.LongShortRatio))
		}
	}
}
