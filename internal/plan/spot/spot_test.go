package spot

import (
	"math"
	"testing"

	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/structure"
)

// trending builds a steadily rising series with small candles, so the EMA
// stack aligns upward
func trending(n int) []market.Kline {
	klines := make([]market.Kline, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 0.4
		klines[i] = market.Kline{
			OpenTime: int64(i) * 900000,
			Open:     price - 0.3,
			High:     price + 0.4,
			Low:      price - 0.5,
			Close:    price,
			Volume:   100,
		}
	}
	return klines
}

func inputsFor(klines []market.Kline) Inputs {
	st := structure.NewAnalyzer(5).Analyze(klines)
	if st == nil {
		st = &structure.Analysis{}
	}
	return Inputs{
		Candles:   market.CandleBundle{market.TF15m: klines},
		Primary:   market.TF15m,
		Snap:      indicators.NewSnapshot(klines),
		Structure: st,
		Price:     klines[len(klines)-1].Close,
	}
}

// TestPullbackTrendingShape tests the pullback draft in an uptrend: long
// side, both entries below the current close, a strictly ascending 3-rung
// ladder whose quantities sum to 100
func TestPullbackTrendingShape(t *testing.T) {
	in := inputsFor(trending(80))

	p := Pullback(in)
	if p == nil {
		t.Fatal("Expected a pullback draft in an aligned uptrend")
	}
	if p.Side != plan.SideLong {
		t.Fatalf("Expected LONG, got %s", p.Side)
	}

	if len(p.Entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(p.Entries))
	}
	for i, e := range p.Entries {
		if e.Price >= in.Price {
			t.Errorf("Entry %d at %f must sit below price %f", i, e.Price, in.Price)
		}
	}
	if p.Entries[0].Weight != 0.6 || p.Entries[1].Weight != 0.4 {
		t.Errorf("Expected 0.6/0.4 entry split, got %f/%f", p.Entries[0].Weight, p.Entries[1].Weight)
	}

	if len(p.TakeProfits) != 3 {
		t.Fatalf("Expected 3 targets, got %d", len(p.TakeProfits))
	}
	qty := 0.0
	for i, tp := range p.TakeProfits {
		qty += tp.QtyPct
		if i > 0 && tp.Price <= p.TakeProfits[i-1].Price {
			t.Errorf("Targets must ascend, %s=%f after %f", tp.Name, tp.Price, p.TakeProfits[i-1].Price)
		}
	}
	if math.Abs(qty-100) > 1e-9 {
		t.Errorf("Expected target quantities summing to 100, got %f", qty)
	}

	if p.Invalidation >= p.Entries[1].Price {
		t.Errorf("Invalidation %f must sit below the deep entry %f", p.Invalidation, p.Entries[1].Price)
	}
}

// TestPullbackDowntrendMirror tests the short branch: entries above price,
// invalidation above the deep entry
func TestPullbackDowntrendMirror(t *testing.T) {
	klines := make([]market.Kline, 80)
	price := 200.0
	for i := range klines {
		price -= 0.4
		klines[i] = market.Kline{
			OpenTime: int64(i) * 900000,
			Open:     price + 0.3, High: price + 0.5, Low: price - 0.4, Close: price,
			Volume: 100,
		}
	}
	in := inputsFor(klines)

	p := Pullback(in)
	if p == nil {
		t.Fatal("Expected a pullback draft in an aligned downtrend")
	}
	if p.Side != plan.SideShort {
		t.Fatalf("Expected SHORT, got %s", p.Side)
	}
	for i, e := range p.Entries {
		if e.Price <= in.Price {
			t.Errorf("Entry %d at %f must sit above price %f on a short", i, e.Price, in.Price)
		}
	}
	if p.Invalidation <= p.Entries[1].Price {
		t.Errorf("Invalidation %f must sit above the deep entry %f", p.Invalidation, p.Entries[1].Price)
	}
	for i := 1; i < len(p.TakeProfits); i++ {
		if p.TakeProfits[i].Price >= p.TakeProfits[i-1].Price {
			t.Error("Targets must descend on a short")
		}
	}
}

// TestSupportReclaimSweep tests the sweep-and-reclaim trigger
func TestSupportReclaimSweep(t *testing.T) {
	klines := trending(60)
	// Carve a swing low around bar 40 to create a support level, then a
	// recent sweep below it that closed back above
	support := klines[40].Low - 3
	klines[40].Low = support
	last := len(klines) - 3
	klines[last].Low = support - 1 // sweep
	in := inputsFor(klines)

	// Only run when the analyzer actually registered the level
	if in.Structure.NearestSupport == 0 {
		t.Skip("fixture did not register a support level")
	}

	p := SupportReclaim(in)
	if p == nil {
		t.Fatal("Expected a support reclaim draft")
	}
	if p.Invalidation >= in.Structure.NearestSupport {
		t.Errorf("Invalidation %f must sit below swept support %f", p.Invalidation, in.Structure.NearestSupport)
	}
}

// TestGapFillUsesNearestGap tests the imbalance generator trigger and shape
func TestGapFillUsesNearestGap(t *testing.T) {
	klines := trending(60)
	in := inputsFor(klines)
	atr := in.Snap.ATR14

	gapTop := in.Price - 1.5*atr
	in.FVGs = []structure.FVG{{
		Type:        structure.BullishFVG,
		TopPrice:    gapTop,
		BottomPrice: gapTop - 0.5*atr,
		CandleIndex: 50,
	}}

	p := GapFill(in)
	if p == nil {
		t.Fatal("Expected a gap fill draft")
	}
	if p.Entries[0].Price != plan.Round6(gapTop) {
		t.Errorf("Expected first entry at gap top %f, got %f", gapTop, p.Entries[0].Price)
	}
	if p.Invalidation >= p.Entries[1].Price {
		t.Errorf("Invalidation must sit below the gap, got %f", p.Invalidation)
	}
}

// TestGapFillIgnoresDistantGap tests the 3-ATR proximity guard
func TestGapFillIgnoresDistantGap(t *testing.T) {
	klines := trending(60)
	in := inputsFor(klines)
	atr := in.Snap.ATR14

	in.FVGs = []structure.FVG{{
		Type:        structure.BullishFVG,
		TopPrice:    in.Price - 5*atr,
		BottomPrice: in.Price - 6*atr,
	}}
	if p := GapFill(in); p != nil {
		t.Error("Expected distant gaps to be ignored")
	}
}

// TestGenerateNilOnEmptyInputs tests the defensive contract
func TestGenerateNilOnEmptyInputs(t *testing.T) {
	if out := Generate(Inputs{}); out != nil {
		t.Errorf("Expected no drafts from empty inputs, got %d", len(out))
	}
}
