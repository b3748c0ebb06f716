package indicators

import (
	"math"
	"testing"

	"trade-plan-engine/internal/market"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// TestEMASeeding tests that the EMA is seeded with the first value
func TestEMASeeding(t *testing.T) {
	values := []float64{10, 11, 12}
	ema := EMA(values, 9)

	if ema[0] != 10 {
		t.Errorf("Expected EMA seed 10, got %f", ema[0])
	}

	// alpha = 2/(9+1) = 0.2
	want := 11*0.2 + 10*0.8
	if !almostEqual(ema[1], want, 1e-12) {
		t.Errorf("Expected EMA[1] %f, got %f", want, ema[1])
	}
}

// TestSMAWarmup tests that the warm-up portion is NaN and the rest correct
func TestSMAWarmup(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	sma := SMA(values, 3)

	if !math.IsNaN(sma[0]) || !math.IsNaN(sma[1]) {
		t.Error("Expected NaN warm-up before the first full window")
	}
	if sma[2] != 2 {
		t.Errorf("Expected SMA[2] 2, got %f", sma[2])
	}
	if sma[4] != 4 {
		t.Errorf("Expected SMA[4] 4, got %f", sma[4])
	}
}

// TestSMATooShort tests that a series shorter than the period is all NaN
func TestSMATooShort(t *testing.T) {
	sma := SMA([]float64{1, 2}, 5)
	for i, v := range sma {
		if !math.IsNaN(v) {
			t.Errorf("Expected NaN at %d for short series, got %f", i, v)
		}
	}
}

// TestRSIExtremes tests RSI on monotone series
func TestRSIExtremes(t *testing.T) {
	up := make([]float64, 30)
	down := make([]float64, 30)
	for i := range up {
		up[i] = 100 + float64(i)
		down[i] = 100 - float64(i)
	}

	rsiUp := RSI(up, 14, true)
	rsiDown := RSI(down, 14, true)

	if rsiUp[29] < 99 {
		t.Errorf("Expected RSI near 100 for all gains, got %f", rsiUp[29])
	}
	if rsiDown[29] > 1 {
		t.Errorf("Expected RSI near 0 for all losses, got %f", rsiDown[29])
	}
	if !math.IsNaN(rsiUp[13]) {
		t.Error("Expected NaN during RSI warm-up")
	}
}

// TestMACDCrossSign tests that a rising series keeps the MACD line above
// its signal
func TestMACDCrossSign(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + float64(i)*0.5
	}

	line, signal, hist := MACD(values)
	n := len(values) - 1
	if line[n] <= signal[n] {
		t.Errorf("Expected MACD line above signal on a rising series, line=%f signal=%f", line[n], signal[n])
	}
	if hist[n] != line[n]-signal[n] {
		t.Error("Histogram must equal line minus signal")
	}
}

// TestBollingerSymmetry tests that the bands are symmetric around the mid
func TestBollingerSymmetry(t *testing.T) {
	values := []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16, 15, 17, 16, 18, 17, 19, 18, 20, 19, 21}
	mid, upper, lower := Bollinger(values, 20, 2.0)

	n := len(values) - 1
	if math.IsNaN(mid[n]) || math.IsNaN(upper[n]) || math.IsNaN(lower[n]) {
		t.Fatal("Expected defined bands at the final index")
	}
	if !almostEqual(upper[n]-mid[n], mid[n]-lower[n], 1e-9) {
		t.Errorf("Expected symmetric bands, upper-mid=%f mid-lower=%f", upper[n]-mid[n], mid[n]-lower[n])
	}
}

// TestTrueRangeGap tests that a gap beyond the candle range widens TR
func TestTrueRangeGap(t *testing.T) {
	klines := []market.Kline{
		{High: 102, Low: 98, Close: 100},
		{High: 112, Low: 110, Close: 111}, // gapped up, range only 2 but TR 12
	}
	tr := TrueRange(klines)
	if tr[1] != 12 {
		t.Errorf("Expected TR 12 across the gap, got %f", tr[1])
	}
}

// TestVWAPConstantVolume tests VWAP against a hand-computed value
func TestVWAPConstantVolume(t *testing.T) {
	klines := []market.Kline{
		{High: 11, Low: 9, Close: 10, Volume: 1},
		{High: 21, Low: 19, Close: 20, Volume: 1},
	}
	vwap := VWAP(klines)
	if vwap[1] != 15 {
		t.Errorf("Expected VWAP 15, got %f", vwap[1])
	}
}

// TestVWAPZeroVolume tests that zero cumulative volume degrades to typical
// price
func TestVWAPZeroVolume(t *testing.T) {
	klines := []market.Kline{{High: 11, Low: 9, Close: 10, Volume: 0}}
	vwap := VWAP(klines)
	if vwap[0] != 10 {
		t.Errorf("Expected typical price 10, got %f", vwap[0])
	}
}

// TestSnapshotShortSeries tests that a snapshot over thin data carries NaN
// fields instead of failing
func TestSnapshotShortSeries(t *testing.T) {
	klines := []market.Kline{
		{OpenTime: 1, Open: 10, High: 11, Low: 9, Close: 10, Volume: 1},
		{OpenTime: 2, Open: 10, High: 12, Low: 10, Close: 11, Volume: 1},
	}
	snap := NewSnapshot(klines)
	if snap == nil {
		t.Fatal("Expected a snapshot even on short data")
	}
	if snap.Close != 11 {
		t.Errorf("Expected close 11, got %f", snap.Close)
	}
	if !math.IsNaN(snap.RSI14) {
		t.Errorf("Expected NaN RSI14 on short data, got %f", snap.RSI14)
	}
}

func BenchmarkEMA(b *testing.B) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = 100 + math.Sin(float64(i)/10)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		EMA(values, 50)
	}
}
