package structure

import (
	"testing"

	"trade-plan-engine/internal/market"
)

func flatBar(i int, c float64) market.Kline {
	return market.Kline{OpenTime: int64(i) * 60000, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
}

// TestAnalyzeFindsSwings tests swing detection on a hand-built hill and
// valley
func TestAnalyzeFindsSwings(t *testing.T) {
	klines := make([]market.Kline, 15)
	for i := range klines {
		klines[i] = flatBar(i, 100)
	}
	klines[5].High = 110 // dominant swing high
	klines[9].Low = 90   // dominant swing low

	a := NewAnalyzer(3)
	st := a.Analyze(klines)
	if st == nil {
		t.Fatal("Expected an analysis")
	}

	if len(st.SwingHighs) != 1 || st.SwingHighs[0].Price != 110 {
		t.Fatalf("Expected one swing high at 110, got %v", st.SwingHighs)
	}
	if len(st.SwingLows) != 1 || st.SwingLows[0].Price != 90 {
		t.Fatalf("Expected one swing low at 90, got %v", st.SwingLows)
	}
	if st.NearestSupport != 90 {
		t.Errorf("Expected nearest support 90, got %f", st.NearestSupport)
	}
	if st.NearestResist != 110 {
		t.Errorf("Expected nearest resistance 110, got %f", st.NearestResist)
	}
	if st.RangeHigh != 110 || st.RangeLow != 90 {
		t.Errorf("Expected range 90..110, got %f..%f", st.RangeLow, st.RangeHigh)
	}
}

// TestAnalyzeTooShort tests the nil contract on thin data
func TestAnalyzeTooShort(t *testing.T) {
	klines := []market.Kline{flatBar(0, 100), flatBar(1, 100)}
	if st := NewAnalyzer(5).Analyze(klines); st != nil {
		t.Error("Expected nil on a series shorter than the swing window")
	}
}

// TestCountRising tests higher-high / lower-high counting
func TestCountRising(t *testing.T) {
	points := []SwingPoint{{Price: 100}, {Price: 105}, {Price: 103}, {Price: 108}}
	rising, falling := countRising(points)
	if rising != 2 || falling != 1 {
		t.Errorf("Expected 2 rising / 1 falling, got %d/%d", rising, falling)
	}
}

// TestNearestLevels tests the strict above/below selection
func TestNearestLevels(t *testing.T) {
	levels := []float64{90, 95, 105, 110}

	if got := NearestAbove(100, levels); got != 105 {
		t.Errorf("Expected 105, got %f", got)
	}
	if got := NearestBelow(100, levels); got != 95 {
		t.Errorf("Expected 95, got %f", got)
	}
	if got := NearestAbove(110, levels); got != 0 {
		t.Errorf("Expected 0 when nothing is above, got %f", got)
	}
	if got := NearestBelow(90, levels); got != 0 {
		t.Errorf("Expected 0 when nothing is below, got %f", got)
	}
}

// TestRoundSteps tests the magnitude-scaled step table
func TestRoundSteps(t *testing.T) {
	cases := []struct {
		price, step float64
	}{
		{43250, 100},
		{2510, 10},
		{180.4, 1},
		{23.7, 0.1},
		{1.84, 0.01},
		{0.42, 0.001},
	}
	for _, c := range cases {
		if got := RoundStep(c.price); got != c.step {
			t.Errorf("RoundStep(%f) = %f, want %f", c.price, got, c.step)
		}
	}

	if got := RoundNumberNear(43251); got != 43300 {
		t.Errorf("Expected 43300, got %f", got)
	}
	if got := RoundUpToStep(101.2); got != 102 {
		t.Errorf("Expected 102, got %f", got)
	}
	if got := RoundUpToStep(102); got != 102 {
		t.Errorf("On-step price must stay, got %f", got)
	}
}
