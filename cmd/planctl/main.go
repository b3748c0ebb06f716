package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"trade-plan-engine/internal/config"
	"trade-plan-engine/internal/engine"
	"trade-plan-engine/internal/market"
	"trade-plan-engine/internal/plan"
	"trade-plan-engine/internal/precision"
)

func main() {
	godotenv.Load()

	var (
		candlesPath = flag.String("candles", "", "path to candle bundle JSON (timeframe -> klines)")
		refPath     = flag.String("ref", "", "optional path to reference instrument candle bundle JSON")
		configPath  = flag.String("config", "", "optional path to YAML configuration")
		symbol      = flag.String("symbol", "", "instrument symbol, e.g. BTCUSDT")
		mode        = flag.String("mode", string(config.ModeMedium), "scoring mode: fast, medium or swing")
		kind        = flag.String("kind", string(plan.KindSpot), "plan kind: spot or futures")
		tickSize    = flag.Float64("tick", 0, "optional venue tick size for price snapping")
		stepSize    = flag.Float64("step", 0, "optional venue lot step size")
		timeout     = flag.Duration("timeout", 30*time.Second, "evaluation timeout")
		debug       = flag.Bool("debug", false, "enable debug logging")
		pretty      = flag.Bool("pretty", true, "indent the JSON output")
	)
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if *candlesPath == "" || *symbol == "" {
		fmt.Fprintln(os.Stderr, "usage: planctl -candles <file> -symbol <symbol> [-ref <file>] [-config <file>] [-mode fast|medium|swing] [-kind spot|futures]")
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("load configuration")
		}
	}

	candles, err := loadBundle(*candlesPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *candlesPath).Msg("load candles")
	}

	req := engine.Request{
		Symbol:  *symbol,
		Kind:    plan.Kind(*kind),
		Mode:    config.Mode(*mode),
		Candles: candles,
	}
	if *refPath != "" {
		ref, err := loadBundle(*refPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", *refPath).Msg("load reference candles")
		}
		req.RefCandles = ref
	}
	if *tickSize > 0 || *stepSize > 0 {
		req.Precision = &precision.Spec{TickSize: *tickSize, StepSize: *stepSize}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	eng := engine.New(cfg, logger)
	resp, err := eng.Evaluate(ctx, req)
	if err != nil {
		logger.Fatal().Err(err).Msg("evaluation failed")
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(resp); err != nil {
		logger.Fatal().Err(err).Msg("encode response")
	}
}

func loadBundle(path string) (market.CandleBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var bundle market.CandleBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return bundle, nil
}
