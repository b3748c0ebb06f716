// Package supertrend implements an ATR-band trend/flip detector with two
// interchangeable execution modes: batch over a full series, and incremental
// bar-by-bar updates against a caller-owned State. Replaying the incremental
// updater over the same data yields the identical trend/flip sequence as the
// batch computation.
package supertrend

import (
	"math"

	"trade-plan-engine/internal/market"
)

// SourceKind selects the price source for the raw bands
type SourceKind string

const (
	SourceHL2   SourceKind = "hl2"
	SourceClose SourceKind = "close"
)

// Trend direction values
const (
	TrendUp   = 1
	TrendDown = -1
)

// Flip signal values emitted when the trend changes
const (
	SignalNone = 0
	SignalBuy  = 1
	SignalSell = -1
)

// Settings configures a supertrend computation
type Settings struct {
	Period       int        `json:"period"`
	Multiplier   float64    `json:"multiplier"`
	Source       SourceKind `json:"source"`
	UseWilderATR bool       `json:"use_wilder_atr"`
}

// DefaultSettings returns the conventional 10-period / 3x configuration
func DefaultSettings() Settings {
	return Settings{Period: 10, Multiplier: 3.0, Source: SourceHL2, UseWilderATR: true}
}

// State is the persisted incremental state. The caller owns it and carries
// it across calls; Update mutates it one bar at a time.
type State struct {
	Settings Settings `json:"settings"`

	LastClose  float64 `json:"last_close"`
	LastUpBand float64 `json:"last_up_band"` // rising band below price (support)
	LastDnBand float64 `json:"last_dn_band"` // falling band above price (resistance)
	LastTrend  int     `json:"last_trend"`
	ATRPrev    float64 `json:"atr_prev"`

	BarsSeen int       `json:"bars_seen"`
	TRWindow []float64 `json:"tr_window"` // pending/true-range window for ATR warm-up
}

// NewState creates an empty incremental state
func NewState(settings Settings) *State {
	if settings.Period <= 0 {
		settings.Period = 10
	}
	if settings.Multiplier <= 0 {
		settings.Multiplier = 3.0
	}
	if settings.Source == "" {
		settings.Source = SourceHL2
	}
	return &State{
		Settings:   settings,
		LastClose:  math.NaN(),
		LastUpBand: math.NaN(),
		LastDnBand: math.NaN(),
		LastTrend:  TrendUp,
		ATRPrev:    math.NaN(),
	}
}

// Warm reports whether the ATR window has filled. Until then the bands do
// not exist and LastTrend still holds its seed value, carrying no
// information about the data.
func (st *State) Warm() bool {
	return st.BarsSeen >= st.Settings.Period
}

// WarmUp builds a state by replaying a full series bar-by-bar
func WarmUp(klines []market.Kline, settings Settings) *State {
	st := NewState(settings)
	for _, k := range klines {
		st.Update(k)
	}
	return st
}

// Update applies one new closed bar to the state and returns the flip
// signal for that bar: SignalBuy, SignalSell or SignalNone.
func (st *State) Update(k market.Kline) int {
	tr := trueRange(k, st.LastClose)
	atr := st.updateATR(tr)
	st.BarsSeen++

	if math.IsNaN(atr) {
		// ATR still warming up; trend holds its seed value
		st.LastClose = k.Close
		return SignalNone
	}

	src := k.Close
	if st.Settings.Source == SourceHL2 {
		src = (k.High + k.Low) / 2
	}

	rawUp := src - st.Settings.Multiplier*atr
	rawDn := src + st.Settings.Multiplier*atr

	// Sticky band rule: the up-band only ratchets upward while the prior
	// close stays above it, the down-band only ratchets downward while the
	// prior close stays below it.
	up := rawUp
	if !math.IsNaN(st.LastUpBand) && st.LastClose > st.LastUpBand {
		up = math.Max(rawUp, st.LastUpBand)
	}
	dn := rawDn
	if !math.IsNaN(st.LastDnBand) && st.LastClose < st.LastDnBand {
		dn = math.Min(rawDn, st.LastDnBand)
	}

	signal := SignalNone
	trend := st.LastTrend
	if trend == TrendDown && !math.IsNaN(st.LastDnBand) && k.Close > st.LastDnBand {
		trend = TrendUp
		signal = SignalBuy
	} else if trend == TrendUp && !math.IsNaN(st.LastUpBand) && k.Close < st.LastUpBand {
		trend = TrendDown
		signal = SignalSell
	}

	st.LastClose = k.Close
	st.LastUpBand = up
	st.LastDnBand = dn
	st.LastTrend = trend

	return signal
}

// updateATR advances the smoothed ATR by one true-range observation.
// Returns NaN until the initial window is full. Wilder mode seeds with the
// simple mean of the first window then applies rma smoothing; otherwise a
// rolling simple mean over the window is kept.
func (st *State) updateATR(tr float64) float64 {
	period := st.Settings.Period

	if st.Settings.UseWilderATR && !math.IsNaN(st.ATRPrev) {
		st.ATRPrev = (st.ATRPrev*float64(period-1) + tr) / float64(period)
		return st.ATRPrev
	}

	st.TRWindow = append(st.TRWindow, tr)
	if len(st.TRWindow) > period {
		st.TRWindow = st.TRWindow[1:]
	}
	if len(st.TRWindow) < period {
		return math.NaN()
	}

	sum := 0.0
	for _, v := range st.TRWindow {
		sum += v
	}
	atr := sum / float64(period)

	if st.Settings.UseWilderATR {
		st.ATRPrev = atr
		st.TRWindow = nil
	}

	return atr
}

// Result holds the batch computation output, index-aligned with the input
type Result struct {
	Trend   []int     `json:"trend"`   // +1 / -1 per bar
	Signals []int     `json:"signals"` // SignalBuy / SignalSell / SignalNone per bar
	UpBand  []float64 `json:"up_band"`
	DnBand  []float64 `json:"dn_band"`
}

// Compute runs the batch computation over a full series. It drives the same
// per-bar update rule as the incremental mode, which is what guarantees the
// parity property between the two.
func Compute(klines []market.Kline, settings Settings) Result {
	res := Result{
		Trend:   make([]int, len(klines)),
		Signals: make([]int, len(klines)),
		UpBand:  make([]float64, len(klines)),
		DnBand:  make([]float64, len(klines)),
	}

	st := NewState(settings)
	for i, k := range klines {
		res.Signals[i] = st.Update(k)
		res.Trend[i] = st.LastTrend
		res.UpBand[i] = st.LastUpBand
		res.DnBand[i] = st.LastDnBand
	}

	return res
}

func trueRange(k market.Kline, prevClose float64) float64 {
	if math.IsNaN(prevClose) {
		return k.High - k.Low
	}
	return math.Max(k.High-k.Low,
		math.Max(math.Abs(k.High-prevClose), math.Abs(k.Low-prevClose)))
}
