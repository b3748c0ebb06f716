// Package precision snaps plan prices onto a venue's tick grid. Snapping is
// floor-based so a snapped buy level never lands above the intended price,
// and idempotent so re-validating an already-snapped plan changes nothing.
package precision

import (
	"math"

	"github.com/shopspring/decimal"

	"trade-plan-engine/internal/plan"
)

// Spec describes one instrument's venue precision rules. A nil Spec means
// "no rules known" and every snap becomes a pass-through.
type Spec struct {
	TickSize       float64 `json:"tick_size"`
	StepSize       float64 `json:"step_size"`
	QuotePrecision int     `json:"quote_precision"`
}

// Snap floors value onto the tick grid. The division runs in decimal space
// with a small epsilon, so values already on the grid stay put regardless of
// magnitude.
func (s *Spec) Snap(value float64) float64 {
	return snapTo(value, s, s.TickSize)
}

// SnapQty floors a quantity onto the lot-size grid
func (s *Spec) SnapQty(qty float64) float64 {
	return snapTo(qty, s, s.StepSize)
}

var snapEpsilon = decimal.New(1, -9) // 1e-9

func snapTo(value float64, s *Spec, grid float64) float64 {
	if s == nil || grid <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	step := decimal.NewFromFloat(grid)
	units := decimal.NewFromFloat(value).Div(step).Add(snapEpsilon).Floor()
	out, _ := units.Mul(step).Float64()
	return out
}

// SnapPlan snaps every price field of a plan core in place
func (s *Spec) SnapPlan(c *plan.Core) {
	if s == nil || c == nil {
		return
	}
	for i := range c.Entries {
		c.Entries[i].Price = s.Snap(c.Entries[i].Price)
	}
	for i := range c.TakeProfits {
		c.TakeProfits[i].Price = s.Snap(c.TakeProfits[i].Price)
	}
	c.Invalidation = s.Snap(c.Invalidation)
	if c.Support != 0 {
		c.Support = s.Snap(c.Support)
	}
	if c.Resistance != 0 {
		c.Resistance = s.Snap(c.Resistance)
	}
}
