package engine

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/precision"
	"trade-plan-engine/internal/scoring"
)

func series(n int, slope float64) []market.Kline {
	klines := make([]market.Kline, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += slope
		klines[i] = market.Kline{
			OpenTime: int64(i) * 60000,
			Open:     price - slope, High: price + 0.5, Low: price - 0.6, Close: price,
			Volume: 10,
		}
	}
	return klines
}

func trendingBundle(slope float64) market.CandleBundle {
	return market.CandleBundle{
		market.TF1h:  series(80, slope),
		market.TF15m: series(80, slope),
		market.TF5m:  series(80, slope),
	}
}

func testEngine() *Engine {
	return New(config.DefaultConfig(), zerolog.Nop())
}

// TestEvaluateRejectsBadInput tests the boundary validation
func TestEvaluateRejectsBadInput(t *testing.T) {
	e := testEngine()
	ctx := context.Background()

	if _, err := e.Evaluate(ctx, Request{Candles: trendingBundle(0.4)}); err == nil {
		t.Error("Expected an error for an empty symbol")
	}

	dup := trendingBundle(0.4)
	dup[market.TF1h][1].OpenTime = dup[market.TF1h][0].OpenTime
	if _, err := e.Evaluate(ctx, Request{Symbol: "BTCUSDT", Candles: dup}); err == nil {
		t.Error("Expected an error for duplicate timestamps")
	}
}

// TestEvaluateTrendingEmitsPlan tests the full spot pipeline on a clean
// uptrend: LONG signal, a pullback plan, snapped prices
func TestEvaluateTrendingEmitsPlan(t *testing.T) {
	e := testEngine()

	resp, err := e.Evaluate(context.Background(), Request{
		Symbol:    "BTCUSDT",
		Kind:      plan.KindSpot,
		Mode:      config.ModeMedium,
		Candles:   trendingBundle(0.4),
		Precision: &precision.Spec{TickSize: 0.01},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if resp.Signal.Side != scoring.SideLong {
		t.Fatalf("Expected LONG signal, got %s (total %f)", resp.Signal.Side, resp.Signal.TotalScore)
	}
	if resp.BiasVetoed {
		t.Error("No reference data, no veto expected")
	}
	if resp.Plan == nil {
		t.Fatalf("Expected a plan, no-trade reason: %s", resp.NoTradeWhy)
	}

	core := resp.Plan.PlanCore()
	if core.Side != plan.SideLong {
		t.Errorf("Expected a LONG plan, got %s", core.Side)
	}
	if core.Strategy != "pullback" {
		t.Errorf("Expected the pullback strategy on a clean trend, got %s", core.Strategy)
	}
	if resp.RR == nil {
		t.Fatal("Expected an RR readout")
	}

	// Prices must sit on the tick grid after snapping
	for _, entry := range core.Entries {
		snapped := (&precision.Spec{TickSize: 0.01}).Snap(entry.Price)
		if math.Abs(entry.Price-snapped) > 1e-12 {
			t.Errorf("Entry %f not on the tick grid", entry.Price)
		}
	}
}

// TestEvaluateBiasVeto tests that an opposing reference bias forces
// NO_TRADE end to end
func TestEvaluateBiasVeto(t *testing.T) {
	e := testEngine()

	// The instrument trends up while the reference trends down
	resp, err := e.Evaluate(context.Background(), Request{
		Symbol:     "ALTUSDT",
		Kind:       plan.KindSpot,
		Mode:       config.ModeMedium,
		Candles:    trendingBundle(0.4),
		RefCandles: market.CandleBundle{market.TF1h: series(80, -1.0)},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if !resp.BiasVetoed {
		t.Fatalf("Expected a bias veto, signal %s bias %s", resp.Signal.Side, resp.Bias.Direction)
	}
	if !resp.NoTrade || resp.Plan != nil {
		t.Error("Vetoed evaluation must carry no plan")
	}
	if resp.Signal.Side != scoring.SideNoTrade {
		t.Errorf("Expected NO_TRADE side, got %s", resp.Signal.Side)
	}
}

// TestEvaluateNoSignalNoPlan tests that a sub-threshold signal skips plan
// generation
func TestEvaluateNoSignalNoPlan(t *testing.T) {
	e := testEngine()

	// Alternating flat chop: indicator scores cancel
	klines := make([]market.Kline, 80)
	for i := range klines {
		c := 100 + 0.3*float64(i%2)
		klines[i] = market.Kline{
			OpenTime: int64(i) * 60000,
			Open:     c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 10,
		}
	}
	bundle := market.CandleBundle{
		market.TF1h: klines, market.TF15m: klines, market.TF5m: klines,
	}

	resp, err := e.Evaluate(context.Background(), Request{Symbol: "FLATUSDT", Candles: bundle})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if resp.Plan != nil && resp.Signal.Side == scoring.SideNoTrade {
		t.Error("A NO_TRADE signal must not emit a plan")
	}
}

// TestEvaluateBulkOrderAndCancel tests ordered results and cancellation
func TestEvaluateBulkOrderAndCancel(t *testing.T) {
	e := testEngine()

	reqs := []Request{
		{Symbol: "AAAUSDT", Candles: trendingBundle(0.4)},
		{Symbol: "BBBUSDT", Candles: trendingBundle(0.4)},
		{Symbol: "CCCUSDT", Candles: trendingBundle(0.4)},
	}

	out := e.EvaluateBulk(context.Background(), reqs, 2)
	if len(out) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(out))
	}
	for i, r := range out {
		if r.Request.Symbol != reqs[i].Symbol {
			t.Errorf("Result %d out of order: %s", i, r.Request.Symbol)
		}
		if r.Err != nil {
			t.Errorf("Unexpected error for %s: %v", r.Request.Symbol, r.Err)
		}
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	out = e.EvaluateBulk(canceled, reqs, 2)
	for _, r := range out {
		if r.Err == nil && r.Response == nil {
			t.Error("Canceled run must mark unprocessed entries")
		}
	}
}
