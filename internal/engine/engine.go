// Package engine wires the full evaluation pipeline: candle validation,
// layered signal scoring, reference bias gating, regime classification,
// candidate plan generation, selection, normalization, derivatives risk
// checks and precision snapping.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"trade-plan-engine/internal/bias"
	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/indicators"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/plan/futures"
	"trade-plan-engine/internal/plan/spot"
	"trade-plan-engine/internal/precision"
	"trade-plan-engine/internal/regime"
	"trade-plan-engine/internal/scoring"
	"trade-plan-engine/internal/structure"
	"trade-plan-engine/internal/validate"
)

// Engine is the long-lived evaluator. It owns the smoother state, so one
// Engine instance should serve all evaluations for score continuity.
type Engine struct {
	cfg      *config.Config
	logger   zerolog.Logger
	smoother *scoring.SmootherStore
	analyzer *structure.Analyzer
}

// New builds an engine around an injected configuration
func New(cfg *config.Config, logger zerolog.Logger) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		smoother: scoring.NewSmootherStore(),
		analyzer: structure.NewAnalyzer(5),
	}
}

// Request is one evaluation call
type Request struct {
	Symbol     string              `json:"symbol"`
	Kind       plan.Kind           `json:"kind"`
	Mode       config.Mode         `json:"mode"`
	Candles    market.CandleBundle `json:"candles"`
	RefCandles market.CandleBundle `json:"ref_candles,omitempty"`

	Precision           *precision.Spec               `json:"precision,omitempty"`
	Derivatives         *validate.DerivativesSnapshot `json:"derivatives,omitempty"`
	LiquidationEstimate float64                       `json:"liquidation_estimate,omitempty"`
}

// Response is the full pipeline output for one request
type Response struct {
	Symbol      string                  `json:"symbol"`
	Mode        config.Mode             `json:"mode"`
	Kind        plan.Kind               `json:"kind"`
	Signal      scoring.Result          `json:"signal"`
	Bias        bias.Bias               `json:"bias"`
	BiasVetoed  bool                    `json:"bias_vetoed"`
	Regime      regime.Classification   `json:"regime"`
	Selection   plan.Selection          `json:"selection"`
	Plan        plan.Plan               `json:"plan,omitempty"`
	RR          *validate.RR            `json:"rr,omitempty"`
	Futures     *validate.FuturesChecks `json:"futures_checks,omitempty"`
	NoTrade     bool                    `json:"no_trade"`
	NoTradeWhy  string                  `json:"no_trade_reason,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// Evaluate runs the full pipeline for one instrument
func (e *Engine) Evaluate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("engine: empty symbol")
	}
	if err := market.ValidateBundle(req.Candles); err != nil {
		return nil, fmt.Errorf("engine: %s candles: %w", req.Symbol, err)
	}
	if req.Kind == "" {
		req.Kind = plan.KindSpot
	}
	if req.Mode == "" {
		req.Mode = config.ModeMedium
	}

	log := e.logger.With().Str("symbol", req.Symbol).Str("mode", string(req.Mode)).Logger()

	resp := &Response{
		Symbol:      req.Symbol,
		Mode:        req.Mode,
		Kind:        req.Kind,
		GeneratedAt: time.Now().UTC(),
	}

	resp.Signal = scoring.ComputeSignal(req.Symbol, req.Mode, req.Candles, e.cfg, e.smoother, log)

	resp.Bias = bias.Neutral()
	if len(req.RefCandles) > 0 {
		if err := market.ValidateBundle(req.RefCandles); err != nil {
			return nil, fmt.Errorf("engine: %s reference candles: %w", req.Symbol, err)
		}
		resp.Bias = bias.Compute(req.RefCandles, req.Mode, e.cfg)
	}

	side, vetoed := bias.Gate(resp.Signal.Side, resp.Bias, e.cfg.StrictBias)
	resp.BiasVetoed = vetoed
	if vetoed {
		log.Info().Str("signal_side", string(resp.Signal.Side)).
			Str("bias", string(resp.Bias.Direction)).Msg("reference bias veto")
	}
	resp.Signal.Side = side
	resp.Signal.BiasUsed = resp.Bias.Direction != bias.DirectionNeutral

	if side == scoring.SideNoTrade {
		resp.NoTrade = true
		resp.NoTradeWhy = "no directional signal"
		if vetoed {
			resp.NoTradeWhy = "reference bias conflict"
		}
		return resp, nil
	}

	// Plans are shaped on the mode's trend timeframe
	mc := e.cfg.ModeFor(req.Mode)
	primary := market.Timeframe(mc.Groups[config.GroupTrend].Timeframe)
	klines := req.Candles[primary]
	if len(klines) == 0 {
		resp.NoTrade = true
		resp.NoTradeWhy = fmt.Sprintf("no %s candles to shape a plan", primary)
		return resp, nil
	}

	snap := indicators.NewSnapshot(klines)
	st := e.analyzer.Analyze(klines)
	if st == nil {
		resp.NoTrade = true
		resp.NoTradeWhy = "series too short for structure analysis"
		return resp, nil
	}
	resp.Regime = regime.Classify(klines)

	// All triggered setups are scored together, both sides, so the contested
	// market veto can see opposing candidates
	candidates := e.generate(req, primary, snap, st, klines)
	if len(candidates) == 0 {
		resp.NoTrade = true
		resp.NoTradeWhy = "no setup triggered"
		return resp, nil
	}

	ctxScore := plan.ScoreContext{
		Regime:    resp.Regime.Regime,
		Snap:      snap,
		Structure: st,
		Price:     klines[len(klines)-1].Close,
		RRFloor:   e.cfg.Plan.RRFloor,
	}
	resp.Selection = plan.Select(candidates, ctxScore, e.cfg.Plan.VetoScoreDelta)
	if resp.Selection.Vetoed || resp.Selection.Best == nil {
		resp.NoTrade = true
		resp.NoTradeWhy = resp.Selection.VetoReason
		if resp.NoTradeWhy == "" {
			resp.NoTradeWhy = "no candidate selected"
		}
		return resp, nil
	}

	best := resp.Selection.Best
	core := best.PlanCore()
	if string(core.Side) != string(side) {
		resp.NoTrade = true
		resp.NoTradeWhy = fmt.Sprintf("best setup is %s against a %s signal", core.Side, side)
		return resp, nil
	}
	rr := validate.Normalize(core, st, e.cfg.Plan)
	resp.RR = &rr

	if fp, ok := best.(*plan.FuturesPlan); ok {
		checks := validate.FuturesValidate(fp, snap.ATR14, req.LiquidationEstimate, req.Derivatives, e.cfg.Plan, e.cfg.Futures)
		resp.Futures = &checks
	}

	req.Precision.SnapPlan(core)

	resp.Plan = best
	if core.NoTrade {
		resp.NoTrade = true
		resp.NoTradeWhy = core.NoTradeReason
	}

	log.Info().Str("strategy", core.Strategy).Str("side", string(core.Side)).
		Bool("no_trade", resp.NoTrade).Float64("score", resp.Signal.TotalScore).
		Msg("evaluation complete")
	return resp, nil
}

func (e *Engine) generate(req Request, primary market.Timeframe, snap *indicators.Snapshot, st *structure.Analysis, klines []market.Kline) []plan.Plan {
	price := klines[len(klines)-1].Close

	var out []plan.Plan
	if req.Kind == plan.KindFutures {
		drafts := futures.Generate(futures.Inputs{
			Candles:   req.Candles,
			Primary:   primary,
			Snap:      snap,
			Structure: st,
			Price:     price,
			Leverage:  validate.SuggestedLeverage(e.cfg.Futures),
		})
		for _, d := range drafts {
			out = append(out, d)
		}
		return out
	}

	drafts := spot.Generate(spot.Inputs{
		Candles:   req.Candles,
		Primary:   primary,
		Snap:      snap,
		Structure: st,
		FVGs:      structure.DetectFVGs(klines, 0.1),
		Price:     price,
	})
	for _, d := range drafts {
		out = append(out, d)
	}
	return out
}
