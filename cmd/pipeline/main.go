// Package main runs the forecasting pipeline once:
// reload → features → train → predict → output.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/config"
	"kickbase-market-lab/internal/logging"
	"kickbase-market-lab/internal/orchestrator"
	"kickbase-market-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	forceReload := flag.Bool("force-reload", false, "Reload player data regardless of the reload policy")
	outputDir := flag.String("output-dir", "", "Output directory (overrides output.dir)")
	fixture := flag.String("fixture", "", "Run offline from a JSON player fixture")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, pipeline.Options{
		ForceReload: *forceReload,
		OutputDir:   *outputDir,
		FixturePath: *fixture,
	}); err != nil {
		logger.Error().Err(err).Msg("pipeline failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts pipeline.Options) error {
	p, err := pipeline.Build(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	result, err := p.Orchestrator.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoData) {
			logger.Warn().Msg("no observations stored, run with -force-reload")
		}
		return err
	}

	if result.ReloadErr != nil {
		logger.Warn().Err(result.ReloadErr).Msg("forecast built on stale data")
	}
	logger.Info().
		Str("run_id", result.RunID).
		Bool("reloaded", result.Reloaded).
		Int("predictions", len(result.Predictions)).
		Int("market", len(result.Market)).
		Int("squad", len(result.Squad)).
		Float64("rmse", result.Evaluation.RMSE).
		Float64("r2", result.Evaluation.R2).
		Float64("signs_correct_pct", result.Evaluation.DirectionalPercent).
		Strs("files", result.Files).
		Msg("pipeline completed")
	return nil
}
