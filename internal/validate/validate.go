// Package validate normalizes and risk-checks draft plans before they are
// published. Normalization is a fixed-order pipeline; every mutation it makes
// is recorded as a warning on the plan so downstream consumers can audit what
// changed.
package validate

import (
	"fmt"
	"math"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/structure"
)

// rrTolerance absorbs the float error introduced by price rounding when a
// ratio is compared against the floor
const rrTolerance = 1e-6

// RR is the normalizer's reward/risk readout
type RR struct {
	Min      float64 `json:"min"`        // worst-case per-entry RR to TP1
	ToTP1Avg float64 `json:"to_tp1_avg"` // RR from the weighted entry to TP1
}

// Normalize runs the fixed-order shaping pipeline over a plan core:
//
//  1. round every price to 6 decimals
//  2. enforce strictly-improving take-profit ordering by nudging violators
//  3. renormalize entry weights to sum to 1
//  4. compute reward/risk from the weighted entry and per-entry worst case
//  5. when the weighted-entry RR is under the floor, tighten invalidation
//     toward the weighted entry (capped), then raise TP1 to the next
//     structural level
//  6. flag no-trade when the floor still cannot be met
//
// The returned RR reflects the plan after all adjustments.
func Normalize(c *plan.Core, st *structure.Analysis, cfg config.PlanConfig) RR {
	if len(c.Entries) == 0 || len(c.TakeProfits) == 0 {
		c.Flag("no entries or targets to validate")
		return RR{Min: math.NaN(), ToTP1Avg: math.NaN()}
	}

	roundPrices(c)
	enforceMonotonicTPs(c)
	renormalizeWeights(c)

	if !invalidationBeyondEntries(c) {
		c.Flag("invalidation inside the entry range")
		return computeRR(c)
	}

	rr := computeRR(c)
	if !(rr.ToTP1Avg < cfg.RRFloor-rrTolerance) {
		return rr
	}

	// Tighten invalidation toward the weighted entry, capped at a fraction
	// of the original risk distance and never crossing the nearest entry
	rr = tightenInvalidation(c, cfg, rr)
	if !(rr.ToTP1Avg < cfg.RRFloor-rrTolerance) {
		return rr
	}

	// Still short: try raising TP1 to the next structural level that clears
	// the floor from the post-tightening state
	rr = raiseTP1(c, st, cfg, rr)
	if !(rr.ToTP1Avg < cfg.RRFloor-rrTolerance) {
		return rr
	}

	c.Flag(fmt.Sprintf("reward/risk %.2f below floor %.2f after adjustments", rr.ToTP1Avg, cfg.RRFloor))
	return rr
}

func roundPrices(c *plan.Core) {
	for i := range c.Entries {
		c.Entries[i].Price = plan.Round6(c.Entries[i].Price)
	}
	for i := range c.TakeProfits {
		c.TakeProfits[i].Price = plan.Round6(c.TakeProfits[i].Price)
	}
	c.Invalidation = plan.Round6(c.Invalidation)
	c.Support = plan.Round6(c.Support)
	c.Resistance = plan.Round6(c.Resistance)
}

// enforceMonotonicTPs nudges each target that fails to improve on its
// predecessor in the trade direction by a minimal relative step
func enforceMonotonicTPs(c *plan.Core) {
	dir := direction(c)
	for i := 1; i < len(c.TakeProfits); i++ {
		prev := c.TakeProfits[i-1].Price
		cur := c.TakeProfits[i].Price
		if dir*(cur-prev) > 0 {
			continue
		}
		nudge := math.Max(math.Abs(prev)*1e-6, 1e-6)
		c.TakeProfits[i].Price = plan.Round6(prev + dir*nudge)
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"%s adjusted from %.6f to keep targets improving", c.TakeProfits[i].Name, cur))
	}
}

// renormalizeWeights scales entry weights to sum to 1, falling back to equal
// weights when they sum to zero
func renormalizeWeights(c *plan.Core) {
	sum := 0.0
	for _, e := range c.Entries {
		sum += e.Weight
	}
	if math.Abs(sum-1) < 1e-9 {
		return
	}
	if sum <= 0 {
		w := 1.0 / float64(len(c.Entries))
		for i := range c.Entries {
			c.Entries[i].Weight = w
		}
		c.Warnings = append(c.Warnings, "entry weights reset to equal split")
		return
	}
	for i := range c.Entries {
		c.Entries[i].Weight /= sum
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("entry weights renormalized from %.4f", sum))
}

// invalidationBeyondEntries reports whether invalidation sits strictly on
// the loss side of every entry
func invalidationBeyondEntries(c *plan.Core) bool {
	dir := direction(c)
	for _, e := range c.Entries {
		if dir*(e.Price-c.Invalidation) <= 0 {
			return false
		}
	}
	return true
}

// computeRR evaluates reward/risk to TP1: the weighted-entry ratio the floor
// is enforced on, and the per-entry worst case. Reward is directional: a TP1
// on the wrong side of an entry produces a negative RR, never a flattering
// absolute one.
func computeRR(c *plan.Core) RR {
	tp1 := c.TakeProfits[0].Price
	dir := direction(c)
	rr := RR{Min: math.Inf(1)}

	for _, e := range c.Entries {
		risk := math.Abs(e.Price - c.Invalidation)
		if risk <= 0 {
			return RR{Min: math.NaN(), ToTP1Avg: math.NaN()}
		}
		r := dir * (tp1 - e.Price) / risk
		if r < rr.Min {
			rr.Min = r
		}
	}

	avg := c.WeightedEntry()
	risk := math.Abs(avg - c.Invalidation)
	if risk > 0 {
		rr.ToTP1Avg = dir * (tp1 - avg) / risk
	} else {
		rr.ToTP1Avg = math.NaN()
	}
	return rr
}

// tightenInvalidation moves invalidation toward the weighted entry just far
// enough to clear the floor, capped at TightenCapFraction of the original
// distance and always leaving the nearest entry untouched
func tightenInvalidation(c *plan.Core, cfg config.PlanConfig, rr RR) RR {
	dir := direction(c)
	tp1 := c.TakeProfits[0].Price
	avg := c.WeightedEntry()

	// A non-positive reward cannot be rescued by a tighter stop
	reward := dir * (tp1 - avg)
	if reward <= 0 {
		return rr
	}

	origDist := math.Abs(avg - c.Invalidation)
	if origDist <= 0 {
		return rr
	}
	needRisk := reward / cfg.RRFloor
	if needRisk >= origDist {
		return rr // already tighter than needed, nothing to do
	}

	shift := origDist - needRisk
	if maxShift := cfg.TightenCapFraction * origDist; shift > maxShift {
		shift = maxShift
	}

	old := c.Invalidation
	c.Invalidation = clampInvalidation(c, c.Invalidation+dir*shift)
	if c.Invalidation != old {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"invalidation tightened from %.6f to %.6f for reward/risk", old, c.Invalidation))
	}
	return computeRR(c)
}

// raiseTP1 lifts the first target to the nearest structural level that
// clears the floor from the post-tightening state
func raiseTP1(c *plan.Core, st *structure.Analysis, cfg config.PlanConfig, rr RR) RR {
	if st == nil {
		return rr
	}
	dir := direction(c)
	avg := c.WeightedEntry()
	risk := math.Abs(avg - c.Invalidation)
	if risk <= 0 {
		return rr
	}

	// The target price at which the weighted-entry RR exactly meets the floor
	required := avg + dir*cfg.RRFloor*risk

	var level float64
	if c.Side == plan.SideLong {
		level = structure.NearestAbove(math.Max(required, c.TakeProfits[0].Price), st.ResistanceLevels)
	} else {
		level = structure.NearestBelow(math.Min(required, c.TakeProfits[0].Price), st.SupportLevels)
	}
	if level == 0 {
		return rr
	}

	old := c.TakeProfits[0].Price
	c.TakeProfits[0].Price = plan.Round6(level)
	c.Warnings = append(c.Warnings, fmt.Sprintf(
		"TP1 moved from %.6f to %.6f to reach structural level", old, level))
	enforceMonotonicTPs(c)
	return computeRR(c)
}

// clampInvalidation keeps a proposed invalidation strictly on the loss side
// of the nearest entry
func clampInvalidation(c *plan.Core, proposed float64) float64 {
	nearest := nearestEntry(c)
	margin := math.Max(math.Abs(nearest)*1e-6, 1e-6)
	if c.Side == plan.SideLong {
		return plan.Round6(math.Min(proposed, nearest-margin))
	}
	return plan.Round6(math.Max(proposed, nearest+margin))
}

func direction(c *plan.Core) float64 {
	if c.Side == plan.SideShort {
		return -1
	}
	return 1
}

// nearestEntry is the entry closest to invalidation (the deepest rung)
func nearestEntry(c *plan.Core) float64 {
	best := c.Entries[0].Price
	for _, e := range c.Entries[1:] {
		if math.Abs(e.Price-c.Invalidation) < math.Abs(best-c.Invalidation) {
			best = e.Price
		}
	}
	return best
}
