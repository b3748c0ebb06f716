package indicators

import (
	"math"

	"trade-plan-engine/internal/market"
)

// Snapshot holds the derived indicator values for one timeframe.
// It is computed once per scoring pass and read-only afterwards.
// Warm-up values are NaN; consumers degrade to neutral on NaN.
type Snapshot struct {
	Close  float64 `json:"close"`
	EMA5   float64 `json:"ema_5"`
	EMA9   float64 `json:"ema_9"`
	EMA20  float64 `json:"ema_20"`
	EMA50  float64 `json:"ema_50"`
	EMA100 float64 `json:"ema_100"`
	EMA200 float64 `json:"ema_200"`

	BollMid   float64 `json:"boll_mid"`
	BollUpper float64 `json:"boll_upper"`
	BollLower float64 `json:"boll_lower"`

	RSI14 float64 `json:"rsi_14"`
	RSI6  float64 `json:"rsi_6"`

	MACDLine   float64 `json:"macd_line"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_hist"`

	ATR14 float64 `json:"atr_14"`
	VWAP  float64 `json:"vwap"`
}

// NewSnapshot computes the indicator snapshot for a candle series.
// Returns nil for an empty series.
func NewSnapshot(klines []market.Kline) *Snapshot {
	if len(klines) == 0 {
		return nil
	}

	closes := market.Closes(klines)

	snap := &Snapshot{
		Close:  closes[len(closes)-1],
		EMA5:   Last(EMA(closes, 5)),
		EMA9:   Last(EMA(closes, 9)),
		EMA20:  Last(EMA(closes, 20)),
		EMA50:  Last(EMA(closes, 50)),
		EMA100: Last(EMA(closes, 100)),
		EMA200: Last(EMA(closes, 200)),
		RSI14:  Last(RSI(closes, 14, true)),
		RSI6:   Last(RSI(closes, 6, true)),
		ATR14:  Last(ATR(klines, 14)),
		VWAP:   Last(VWAP(klines)),
	}

	mid, upper, lower := Bollinger(closes, 20, 2.0)
	snap.BollMid = Last(mid)
	snap.BollUpper = Last(upper)
	snap.BollLower = Last(lower)

	line, signal, hist := MACD(closes)
	snap.MACDLine = Last(line)
	snap.MACDSignal = Last(signal)
	snap.MACDHist = Last(hist)

	return snap
}

// ATRPercent returns ATR14 as a percentage of the close, 0 when undefined
func (s *Snapshot) ATRPercent() float64 {
	if s == nil || s.Close <= 0 || math.IsNaN(s.ATR14) {
		return 0
	}
	return s.ATR14 / s.Close * 100
}
