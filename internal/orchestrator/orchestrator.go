// Package orchestrator runs the daily forecasting pipeline end to end.
// It coordinates: reload → features → split → train → evaluate → predict → join → report → publish
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/features"
	"kickbase-market-lab/internal/ingestion"
	"kickbase-market-lab/internal/modeling"
	"kickbase-market-lab/internal/observability"
	"kickbase-market-lab/internal/prediction"
	"kickbase-market-lab/internal/reporting"
	"kickbase-market-lab/internal/split"
	"kickbase-market-lab/internal/storage"
)

// ErrNoData is returned when neither a reload nor the store produced rows.
var ErrNoData = errors.New("no observations available")

// Reloader refreshes the observation table.
type Reloader interface {
	Reload(ctx context.Context, competitionIDs []int) (*ingestion.ReloadResult, error)
}

// Publisher delivers recommendations downstream.
type Publisher interface {
	Publish(ctx context.Context, runID string, market []domain.MarketRecommendation, squad []domain.SquadRecommendation) error
}

// Orchestrator coordinates the pipeline execution.
type Orchestrator struct {
	store          storage.ObservationStore
	reloader       Reloader
	gate           ingestion.Gate
	competitionIDs []int

	features      *features.Engine
	trainer       *modeling.Trainer
	trainFraction float64
	joiner        *prediction.Joiner

	live     prediction.LiveSource
	leagueID string

	reporter  *reporting.Generator
	outputDir string
	publisher Publisher

	now    func() time.Time
	logger zerolog.Logger
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Store    storage.ObservationStore
	Features *features.Engine
	Trainer  *modeling.Trainer
	Joiner   *prediction.Joiner

	// Reload; without a Reloader the stored table is used as is
	Reloader       Reloader
	Gate           ingestion.Gate // Default: ingestion.AlwaysReload
	CompetitionIDs []int

	TrainFraction float64 // Default: 0.75

	// Live snapshots; without a LiveSource the joins are skipped
	Live     prediction.LiveSource
	LeagueID string

	// Outputs, all optional
	Reporter  *reporting.Generator
	OutputDir string
	Publisher Publisher

	Now    func() time.Time
	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		store:          opts.Store,
		reloader:       opts.Reloader,
		gate:           opts.Gate,
		competitionIDs: opts.CompetitionIDs,
		features:       opts.Features,
		trainer:        opts.Trainer,
		trainFraction:  opts.TrainFraction,
		joiner:         opts.Joiner,
		live:           opts.Live,
		leagueID:       opts.LeagueID,
		reporter:       opts.Reporter,
		outputDir:      opts.OutputDir,
		publisher:      opts.Publisher,
		now:            opts.Now,
		logger:         opts.Logger,
	}
	if o.gate == nil {
		o.gate = ingestion.AlwaysReload{}
	}
	if o.trainFraction <= 0 {
		o.trainFraction = split.DefaultTrainFraction
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// RunResult contains results from one pipeline run.
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Reloaded  bool
	Reload    *ingestion.ReloadResult
	ReloadErr error // set when the run continued on stale data

	Features    *domain.FeatureSet
	SplitDate   time.Time
	Evaluation  domain.Evaluation
	Predictions []domain.Prediction
	Market      []domain.MarketRecommendation
	Squad       []domain.SquadRecommendation

	Report *reporting.Report
	Files  []string
}

// Run executes the full pipeline.
// Phases:
//  1. Reload the observation table if the gate asks for it
//  2. Build features from the stored table
//  3. Split chronologically, train, evaluate on the hold-out
//  4. Predict live rows and join with market and squad
//  5. Write the report and publish recommendations
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{RunID: uuid.NewString(), StartedAt: o.now()}
	logger := o.logger.With().Str("run_id", result.RunID).Logger()
	logger.Info().Msg("pipeline started")

	// Phase 1: Reload
	if err := o.phase(logger, "reload", func() error { return o.runReload(ctx, logger, result) }); err != nil {
		return nil, fmt.Errorf("phase 1 (reload) failed: %w", err)
	}

	// Phase 2: Features
	var observations []*domain.Observation
	if err := o.phase(logger, "features", func() error {
		var err error
		observations, err = o.store.GetAll(ctx)
		if err != nil {
			return fmt.Errorf("load observations: %w", err)
		}
		if len(observations) == 0 {
			return ErrNoData
		}
		result.Features, err = o.features.BuildAt(ctx, observations, result.StartedAt)
		if err != nil {
			return err
		}
		observability.RecordFeatureRows(len(result.Features.Historical), len(result.Features.Live))
		return nil
	}); err != nil {
		return nil, fmt.Errorf("phase 2 (features) failed: %w", err)
	}

	// Phase 3: Train and evaluate
	var model *modeling.Forest
	if err := o.phase(logger, "train", func() error {
		var err error
		model, err = o.trainAndEvaluate(ctx, result)
		return err
	}); err != nil {
		return nil, fmt.Errorf("phase 3 (train) failed: %w", err)
	}

	// Phase 4: Predict and join
	if err := o.phase(logger, "predict", func() error { return o.predictAndJoin(ctx, logger, model, result) }); err != nil {
		return nil, fmt.Errorf("phase 4 (predict) failed: %w", err)
	}

	// Phase 5: Outputs
	if err := o.phase(logger, "output", func() error { return o.writeOutputs(ctx, logger, result) }); err != nil {
		return nil, fmt.Errorf("phase 5 (output) failed: %w", err)
	}

	result.FinishedAt = o.now()
	observability.MarkPipelineSuccess(result.FinishedAt)
	logger.Info().
		Int("historical", len(result.Features.Historical)).
		Int("live", len(result.Features.Live)).
		Int("market", len(result.Market)).
		Int("squad", len(result.Squad)).
		Float64("rmse", result.Evaluation.RMSE).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("pipeline completed")
	return result, nil
}

// runReload refreshes the table. A failed reload over a non-empty table is
// reported and the run continues on the previous data.
func (o *Orchestrator) runReload(ctx context.Context, logger zerolog.Logger, result *RunResult) error {
	if o.reloader == nil {
		logger.Debug().Msg("no reloader configured, using stored table")
		return nil
	}

	ok, reason, err := o.gate.ShouldReload(ctx, result.StartedAt)
	if err != nil {
		return err
	}
	if !ok {
		logger.Info().Str("reason", reason).Msg("reload skipped")
		return nil
	}
	logger.Info().Str("reason", reason).Ints("competitions", o.competitionIDs).Msg("reloading observations")

	reload, err := o.reloader.Reload(ctx, o.competitionIDs)
	if err == nil {
		result.Reloaded = true
		result.Reload = reload
		return nil
	}
	if ctx.Err() != nil {
		return err
	}

	summary, sErr := o.store.Summary(ctx, 1)
	if sErr != nil || summary.Rows == 0 {
		return err
	}
	result.ReloadErr = err
	logger.Warn().Err(err).Int("rows", summary.Rows).Msg("reload failed, stale data still available")
	return nil
}

func (o *Orchestrator) trainAndEvaluate(ctx context.Context, result *RunResult) (*modeling.Forest, error) {
	sp, err := split.Chronological(result.Features.Historical, o.trainFraction)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	result.SplitDate = sp.SplitDate

	model, err := o.trainer.Fit(ctx, sp.Train.X, sp.Train.Y)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}

	if sp.Test.Len() > 0 {
		predicted, err := model.PredictAll(sp.Test.X)
		if err != nil {
			return nil, fmt.Errorf("predict hold-out: %w", err)
		}
		result.Evaluation, err = modeling.Evaluate(sp.Test.Y, predicted)
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
	}
	result.Evaluation.TrainRows = sp.Train.Len()
	result.Evaluation.TestRows = sp.Test.Len()
	observability.RecordEvaluation(result.Evaluation)
	return model, nil
}

func (o *Orchestrator) predictAndJoin(ctx context.Context, logger zerolog.Logger, model *modeling.Forest, result *RunResult) error {
	preds, err := prediction.NewPredictor(model, logger).Predict(result.Features.Live)
	if err != nil {
		return err
	}
	result.Predictions = preds

	if o.live == nil || o.leagueID == "" {
		logger.Debug().Msg("no live source configured, skipping joins")
		return nil
	}

	listings, err := o.live.Market(ctx, o.leagueID)
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}
	slots, err := o.live.Squad(ctx, o.leagueID)
	if err != nil {
		return fmt.Errorf("fetch squad: %w", err)
	}

	result.Market = o.joiner.Market(preds, listings, result.StartedAt)
	result.Squad = o.joiner.Squad(preds, slots)
	observability.RecordRecommendations("market", len(result.Market))
	observability.RecordRecommendations("squad", len(result.Squad))
	return nil
}

func (o *Orchestrator) writeOutputs(ctx context.Context, logger zerolog.Logger, result *RunResult) error {
	if o.reporter != nil {
		report, err := o.reporter.Generate(ctx, reporting.RunOutput{
			RunID:       result.RunID,
			Features:    result.Features,
			Evaluation:  result.Evaluation,
			Predictions: result.Predictions,
			Market:      result.Market,
			Squad:       result.Squad,
		})
		if err != nil {
			return fmt.Errorf("generate report: %w", err)
		}
		result.Report = report

		if o.outputDir != "" {
			files, err := reporting.WriteFiles(o.outputDir, report, result.Predictions)
			if err != nil {
				return err
			}
			result.Files = files
			logger.Info().Strs("files", files).Msg("report written")
		}
	}

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, result.RunID, result.Market, result.Squad); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
	}
	return nil
}

// phase runs fn and records its duration and outcome.
func (o *Orchestrator) phase(logger zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	status := "success"
	if err != nil {
		status = "failed"
	}
	elapsed := time.Since(start)
	observability.RecordPipelineRun(name, status, elapsed.Seconds())
	logger.Debug().Str("phase", name).Str("status", status).Dur("duration", elapsed).Msg("phase finished")
	return err
}
