// Package main reloads the player_data_1d table without training a model.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/config"
	"kickbase-market-lab/internal/logging"
	"kickbase-market-lab/internal/observability"
	"kickbase-market-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	force := flag.Bool("force", false, "Reload regardless of the reload policy")
	fixture := flag.String("fixture", "", "Load players from a JSON fixture instead of the API")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
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

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := reload(ctx, cfg, logger, pipeline.Options{ForceReload: *force, FixturePath: *fixture}); err != nil {
		logger.Error().Err(err).Msg("reload failed")
		os.Exit(1)
	}
}

func reload(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts pipeline.Options) error {
	p, err := pipeline.Build(ctx, cfg, logger, opts)
	if err != nil {
		return err
	}
	defer p.Close()

	ok, reason, err := p.Gate.ShouldReload(ctx, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		logger.Info().Str("reason", reason).Msg("reload skipped")
		return nil
	}

	result, err := p.Merger.Reload(ctx, p.CompetitionIDs)
	if err != nil {
		return err
	}
	logger.Info().
		Str("reason", reason).
		Int("players", result.Players).
		Int("rows", result.Rows).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("reload completed")
	return nil
}
