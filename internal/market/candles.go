package market

import (
	"errors"
	"fmt"
	"math"
)

// Timeframe represents different chart timeframes
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// Kline represents a single closed candle
type Kline struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// CandleBundle holds candles across different timeframes for one instrument.
// The engine only reads from it; ownership stays with the caller.
type CandleBundle map[Timeframe][]Kline

// Boundary validation errors. Malformed input shapes are rejected here,
// before entering the pipeline; data insufficiency deeper in is not an error.
var (
	ErrEmptySeries        = errors.New("market: empty candle series")
	ErrNonFinite          = errors.New("market: non-finite value in candle")
	ErrNotAscending       = errors.New("market: candles not in ascending time order")
	ErrDuplicateTimestamp = errors.New("market: duplicate candle timestamp")
	ErrInvertedRange      = errors.New("market: candle high below low")
)

// ValidateSeries checks a single timeframe series for well-formed shape:
// finite numbers, strictly ascending open times, sane high/low ordering.
func ValidateSeries(tf Timeframe, klines []Kline) error {
	if len(klines) == 0 {
		return fmt.Errorf("%w (%s)", ErrEmptySeries, tf)
	}

	var prevTime int64 = math.MinInt64
	for i, k := range klines {
		for _, v := range [5]float64{k.Open, k.High, k.Low, k.Close, k.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w (%s candle %d)", ErrNonFinite, tf, i)
			}
		}
		if k.High < k.Low {
			return fmt.Errorf("%w (%s candle %d)", ErrInvertedRange, tf, i)
		}
		if k.OpenTime == prevTime {
			return fmt.Errorf("%w (%s candle %d)", ErrDuplicateTimestamp, tf, i)
		}
		if k.OpenTime < prevTime {
			return fmt.Errorf("%w (%s candle %d)", ErrNotAscending, tf, i)
		}
		prevTime = k.OpenTime
	}

	return nil
}

// ValidateBundle validates every series in the bundle
func ValidateBundle(bundle CandleBundle) error {
	for tf, klines := range bundle {
		if err := ValidateSeries(tf, klines); err != nil {
			return err
		}
	}
	return nil
}

// Closes extracts the close price series
func Closes(klines []Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}

// LastClose returns the most recent close, or NaN for an empty series
func LastClose(klines []Kline) float64 {
	if len(klines) == 0 {
		return math.NaN()
	}
	return klines[len(klines)-1].Close
}
