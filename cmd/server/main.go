// Package main runs the pipeline on a schedule and serves the latest
// recommendations over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kickbase-market-lab/internal/api"
	"kickbase-market-lab/internal/config"
	"kickbase-market-lab/internal/logging"
	"kickbase-market-lab/internal/orchestrator"
	"kickbase-market-lab/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
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

	if err := serve(ctx, cfg, logger, *fixture); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, fixture string) error {
	p, err := pipeline.Build(ctx, cfg, logger, pipeline.Options{FixturePath: fixture})
	if err != nil {
		return err
	}
	defer p.Close()

	r := newRunner(p.Orchestrator, api.NewSnapshot(), logging.Component(logger, "scheduler"))

	g, gctx := errgroup.WithContext(ctx)

	handler := api.NewHandler(r.snapshot, r.trigger(gctx), logging.Component(logger, "api"))
	e := api.NewServer(handler, logging.Component(logger, "http"))

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.Addr).Msg("http server listening")
		if err := e.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return r.schedule(gctx, cfg.Server.RunInterval)
	})

	err = g.Wait()
	// Runs started over HTTP still use the store closed by p.Close.
	r.drain()
	return err
}

// pipelineRun is the part of the orchestrator the runner drives.
type pipelineRun interface {
	Run(ctx context.Context) (*orchestrator.RunResult, error)
}

// runner serializes pipeline runs and publishes their results to the snapshot.
type runner struct {
	orch     pipelineRun
	snapshot *api.Snapshot
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	wg      sync.WaitGroup
}

func newRunner(orch pipelineRun, snapshot *api.Snapshot, logger zerolog.Logger) *runner {
	return &runner{orch: orch, snapshot: snapshot, logger: logger}
}

// schedule runs the pipeline immediately and then every interval.
func (r *runner) schedule(ctx context.Context, interval time.Duration) error {
	r.logger.Info().Dur("interval", interval).Msg("starting pipeline scheduler")

	r.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// trigger starts a background run bound to ctx rather than the request.
// Triggers are refused once ctx is done or drain has been called.
func (r *runner) trigger(ctx context.Context) api.Trigger {
	return func(context.Context) error {
		if err := r.acquire(ctx, true); err != nil {
			return err
		}
		go func() {
			defer r.wg.Done()
			defer r.release()
			r.execute(ctx)
		}()
		return nil
	}
}

func (r *runner) runOnce(ctx context.Context) {
	if err := r.acquire(ctx, false); err != nil {
		r.logger.Info().Err(err).Msg("skipping scheduled run")
		return
	}
	defer r.release()
	r.execute(ctx)
}

// drain refuses further triggers and waits for background runs to finish.
func (r *runner) drain() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *runner) execute(ctx context.Context) {
	result, err := r.orch.Run(ctx)
	r.snapshot.Set(result, err, time.Now())
	if err != nil {
		r.logger.Error().Err(err).Msg("pipeline run failed")
		return
	}
	r.logger.Info().
		Str("run_id", result.RunID).
		Int("market", len(result.Market)).
		Int("squad", len(result.Squad)).
		Msg("pipeline run completed")
}

// acquire marks a run as started. background runs are counted in r.wg under
// the same lock that drain takes, so no Add can follow its Wait.
func (r *runner) acquire(ctx context.Context, background bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || ctx.Err() != nil {
		return api.ErrShuttingDown
	}
	if r.running {
		return api.ErrRunInProgress
	}
	r.running = true
	if background {
		r.wg.Add(1)
	}
	return nil
}

func (r *runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}
