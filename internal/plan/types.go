// Package plan defines the trade-plan value types and the candidate
// scorer/selector. Plans are fixed-schema tagged values (SpotPlan,
// FuturesPlan) rather than loose maps, so every consumer boundary can
// match on the concrete type.
package plan

import (
	"math"

	"github.com/google/uuid"
)

// Kind tags the plan family
type Kind string

const (
	KindSpot    Kind = "spot"
	KindFutures Kind = "futures"
)

// Side is the plan direction
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Entry is one laddered entry with its position weight
type Entry struct {
	Price  float64 `json:"price"`
	Weight float64 `json:"weight"`
}

// TakeProfit is one rung of the take-profit ladder
type TakeProfit struct {
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	QtyPct float64 `json:"qty_pct"`
	Logic  string  `json:"logic"`
}

// Core is the numeric core shared by spot and futures plans. The
// normalizer/validator operates on this type.
type Core struct {
	ID           string       `json:"id"`
	Kind         Kind         `json:"kind"`
	Strategy     string       `json:"strategy"`
	Side         Side         `json:"side"`
	Entries      []Entry      `json:"entries"`
	Invalidation float64      `json:"invalidation"`
	TakeProfits  []TakeProfit `json:"take_profits"`

	Support    float64 `json:"support"`
	Resistance float64 `json:"resistance"`

	Notes         []string `json:"notes,omitempty"`
	Confirmations []string `json:"confirmations,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`

	NoTrade       bool   `json:"no_trade"`
	NoTradeReason string `json:"no_trade_reason,omitempty"`
}

// SpotPlan is a plan for a spot instrument
type SpotPlan struct {
	Core
}

// FuturesPlan is a plan for a leveraged derivative
type FuturesPlan struct {
	Core
	Leverage   int  `json:"leverage"`
	ReduceOnly bool `json:"reduce_only"`
}

// Plan is implemented by both plan families; consumers that only need the
// numeric core go through it
type Plan interface {
	PlanCore() *Core
}

// PlanCore returns the mutable numeric core
func (p *SpotPlan) PlanCore() *Core { return &p.Core }

// PlanCore returns the mutable numeric core
func (p *FuturesPlan) PlanCore() *Core { return &p.Core }

// NewCore builds a plan core with a fresh ID
func NewCore(kind Kind, strategy string, side Side) Core {
	return Core{
		ID:       uuid.NewString(),
		Kind:     kind,
		Strategy: strategy,
		Side:     side,
	}
}

// WeightedEntry returns the weight-averaged entry price
func (c *Core) WeightedEntry() float64 {
	sumW := 0.0
	total := 0.0
	for _, e := range c.Entries {
		sumW += e.Weight
		total += e.Price * e.Weight
	}
	if sumW == 0 {
		if len(c.Entries) == 0 {
			return math.NaN()
		}
		for _, e := range c.Entries {
			total += e.Price
		}
		return total / float64(len(c.Entries))
	}
	return total / sumW
}

// Flag marks the plan no-trade with a reason, appending a warning
func (c *Core) Flag(reason string) {
	c.NoTrade = true
	c.NoTradeReason = reason
	c.Warnings = append(c.Warnings, reason)
}

// Round6 rounds to 6 decimals, the pre-precision-snap resolution for all
// plan prices
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
