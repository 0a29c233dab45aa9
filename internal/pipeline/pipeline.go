package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"kickbase-market-lab/internal/config"
	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/features"
	"kickbase-market-lab/internal/ingestion"
	"kickbase-market-lab/internal/ingestion/stub"
	"kickbase-market-lab/internal/kickbase"
	"kickbase-market-lab/internal/logging"
	"kickbase-market-lab/internal/modeling"
	"kickbase-market-lab/internal/orchestrator"
	"kickbase-market-lab/internal/prediction"
	"kickbase-market-lab/internal/publish"
	"kickbase-market-lab/internal/reporting"
	"kickbase-market-lab/internal/storage"
)

// Options adjust a build beyond the configuration file.
type Options struct {
	// ForceReload bypasses the reload gate.
	ForceReload bool
	// OutputDir overrides cfg.Output.Dir when set.
	OutputDir string
	// FixturePath runs offline from a JSON player fixture instead of the API.
	FixturePath string
	// Now overrides the wall clock.
	Now func() time.Time
}

// Pipeline is a wired orchestrator with the resources it owns.
type Pipeline struct {
	Orchestrator *orchestrator.Orchestrator
	Store        storage.ObservationStore
	Merger       *ingestion.Merger
	Gate         ingestion.Gate
	// CompetitionIDs are the competitions a reload fetches.
	CompetitionIDs []int

	closers []func()
}

// Close releases the store connection and the publisher.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// Build opens the store, logs in to the API and assembles every component.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Pipeline, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	outputDir := cfg.Output.Dir
	if opts.OutputDir != "" {
		outputDir = opts.OutputDir
	}

	store, closeStore, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Store: store, closers: []func(){closeStore}}

	settlement, err := boundary(cfg.Features.Timezone, cfg.Features.Cutoff)
	if err != nil {
		p.Close()
		return nil, err
	}
	marketClose, err := boundary(cfg.Features.Timezone, cfg.Recommendations.MarketClose)
	if err != nil {
		p.Close()
		return nil, err
	}

	var (
		source   ingestion.PlayerSource
		live     prediction.LiveSource
		leagueID string
	)
	if opts.FixturePath != "" {
		fixture, err := stub.LoadPlayerSource(opts.FixturePath)
		if err != nil {
			p.Close()
			return nil, err
		}
		source = fixture
		logger.Info().Str("fixture", opts.FixturePath).Msg("running offline, live joins disabled")
	} else {
		client, league, err := connect(ctx, cfg.Kickbase, logger)
		if err != nil {
			p.Close()
			return nil, err
		}
		source, live, leagueID = client, client, league
	}

	var publisher orchestrator.Publisher
	if cfg.Kafka.Enabled {
		pub, err := publish.New(publish.Config{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logging.Component(logger, "publish"))
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create publisher: %w", err)
		}
		publisher = pub
		p.closers = append(p.closers, func() { pub.Close() })
	}

	merger := ingestion.NewMerger(ingestion.MergerOptions{
		Source:               source,
		Store:                store,
		Workers:              cfg.Ingestion.Workers,
		FailurePolicy:        ingestion.FailurePolicy(cfg.Ingestion.FailurePolicy),
		MarketValueDays:      cfg.Ingestion.MarketValueDays,
		PerformanceMatchdays: cfg.Ingestion.PerformanceMatchdays,
		Now:                  opts.Now,
		Logger:               logging.Component(logger, "ingestion"),
	})

	gate := ingestion.NewGate(ingestion.ReloadPolicy(cfg.Ingestion.ReloadPolicy), opts.ForceReload, store, cfg.Ingestion.MinSettledRows)
	if fg, ok := gate.(ingestion.FreshnessGate); ok {
		fg.Boundary = settlement
		gate = fg
	}

	p.Merger, p.Gate, p.CompetitionIDs = merger, gate, cfg.Ingestion.CompetitionIDs
	p.Orchestrator = orchestrator.New(orchestrator.Options{
		Store:          store,
		Reloader:       merger,
		Gate:           gate,
		CompetitionIDs: cfg.Ingestion.CompetitionIDs,
		Features: features.New(features.Options{
			Boundary:      settlement,
			IQRMultiplier: cfg.Features.IQRMultiplier,
			Now:           opts.Now,
			Logger:        logging.Component(logger, "features"),
		}),
		Trainer: modeling.NewTrainer(modeling.Params{
			Trees:           cfg.Model.Trees,
			MaxDepth:        cfg.Model.MaxDepth,
			MinSamplesSplit: cfg.Model.MinSamplesSplit,
			MinSamplesLeaf:  cfg.Model.MinSamplesLeaf,
			Seed:            cfg.Model.Seed,
			Parallelism:     cfg.Model.Parallelism,
		}, logging.Component(logger, "modeling")),
		TrainFraction: cfg.Model.TrainFraction,
		Joiner:        prediction.NewJoiner(marketClose, cfg.Recommendations.MinPredictedGain),
		Live:          live,
		LeagueID:      leagueID,
		Reporter:      reporting.NewGenerator(store).WithClock(opts.Now),
		OutputDir:     outputDir,
		Publisher:     publisher,
		Now:           opts.Now,
		Logger:        logging.Component(logger, "orchestrator"),
	})
	return p, nil
}

// connect logs in and resolves the configured league.
func connect(ctx context.Context, cfg config.Kickbase, logger zerolog.Logger) (*kickbase.Client, string, error) {
	client := kickbase.NewClient(cfg.BaseURL, cfg.Email, cfg.Password,
		kickbase.WithTimeout(cfg.Timeout),
		kickbase.WithMaxRetries(cfg.MaxRetries),
		kickbase.WithRetryDelay(cfg.RetryDelay),
	)
	if err := client.Login(ctx); err != nil {
		return nil, "", fmt.Errorf("kickbase login: %w", err)
	}

	league, matched, err := client.ResolveLeague(ctx, cfg.LeagueName)
	if err != nil {
		return nil, "", fmt.Errorf("resolve league: %w", err)
	}
	if !matched && cfg.LeagueName != "" {
		logger.Warn().Str("wanted", cfg.LeagueName).Str("using", league.Name).Msg("league not found, falling back to first league")
	}
	return client, league.ID, nil
}

func boundary(timezone, clock string) (cutoff.Boundary, error) {
	h, m, err := config.ParseClock(clock)
	if err != nil {
		return cutoff.Boundary{}, err
	}
	return cutoff.New(timezone, h, m)
}
