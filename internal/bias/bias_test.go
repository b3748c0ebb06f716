package bias

import (
	"testing"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/scoring"
)

func series(n int, slope float64) []market.Kline {
	klines := make([]market.Kline, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += slope
		klines[i] = market.Kline{
			OpenTime: int64(i) * 3600000,
			Open:     price - slope, High: price + 0.5, Low: price - 1, Close: price,
			Volume: 10,
		}
	}
	return klines
}

// TestComputeDirections tests the trend-group bias on rising, falling and
// missing reference data
func TestComputeDirections(t *testing.T) {
	cfg := config.DefaultConfig()

	up := Compute(market.CandleBundle{market.TF1h: series(80, 1.0)}, config.ModeMedium, cfg)
	if up.Direction != DirectionLong {
		t.Errorf("Expected LONG on a rising reference, got %s (score %f)", up.Direction, up.Score)
	}
	if up.Score < cfg.ModeFor(config.ModeMedium).EntryThreshold {
		t.Errorf("Expected score at or above the threshold, got %f", up.Score)
	}

	down := Compute(market.CandleBundle{market.TF1h: series(80, -1.0)}, config.ModeMedium, cfg)
	if down.Direction != DirectionShort {
		t.Errorf("Expected SHORT on a falling reference, got %s (score %f)", down.Direction, down.Score)
	}

	none := Compute(market.CandleBundle{}, config.ModeMedium, cfg)
	if none.Direction != DirectionNeutral {
		t.Errorf("Expected NEUTRAL without reference data, got %s", none.Direction)
	}
}

// TestComputeShortReference tests that a reference series too short to warm
// the supertrend still reads its real direction from the other indicators
func TestComputeShortReference(t *testing.T) {
	cfg := config.DefaultConfig()

	// 8 falling bars: EMA50 and MACD score short, supertrend is undefined.
	// A leaked up-trend seed would drag the score inside the neutral band.
	down := Compute(market.CandleBundle{market.TF1h: series(8, -1.0)}, config.ModeMedium, cfg)
	if down.Direction != DirectionShort {
		t.Errorf("Expected SHORT on a short falling reference, got %s (score %f)", down.Direction, down.Score)
	}
}

// TestGateVetoesConflict tests that a strong opposing bias forces NO_TRADE
// and never flips the side
func TestGateVetoesConflict(t *testing.T) {
	strong := Bias{Direction: DirectionLong, Score: 0.40}

	side, vetoed := Gate(scoring.SideShort, strong, true)
	if !vetoed || side != scoring.SideNoTrade {
		t.Fatalf("Expected a veto to NO_TRADE, got %s vetoed=%v", side, vetoed)
	}

	side, vetoed = Gate(scoring.SideLong, strong, true)
	if vetoed || side != scoring.SideLong {
		t.Errorf("Aligned side must pass, got %s vetoed=%v", side, vetoed)
	}
}

// TestGateRespectsStrictFlag tests that non-strict mode never vetoes
func TestGateRespectsStrictFlag(t *testing.T) {
	b := Bias{Direction: DirectionLong, Score: 0.40}

	side, vetoed := Gate(scoring.SideShort, b, false)
	if vetoed || side != scoring.SideShort {
		t.Errorf("Non-strict gate must pass through, got %s vetoed=%v", side, vetoed)
	}
}

// TestGateNeutralAndNoTrade tests the pass-through cases
func TestGateNeutralAndNoTrade(t *testing.T) {
	if side, vetoed := Gate(scoring.SideShort, Neutral(), true); vetoed || side != scoring.SideShort {
		t.Error("Neutral bias must pass any side")
	}
	if side, vetoed := Gate(scoring.SideNoTrade, Bias{Direction: DirectionLong}, true); vetoed || side != scoring.SideNoTrade {
		t.Error("NO_TRADE input must stay NO_TRADE without a veto")
	}
}
