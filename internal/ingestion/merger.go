package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/observability"
	"kickbase-market-lab/internal/storage"
)

// DefaultWorkers is the width of the per-player fetch pool.
const DefaultWorkers = 12

// Merger fetches every player of the configured competitions, merges their
// histories and replaces the stored observation table.
type Merger struct {
	source        PlayerSource
	store         storage.ObservationStore
	workers       int
	policy        FailurePolicy
	mvDays        int
	perfMatchdays int
	now           func() time.Time
	logger        zerolog.Logger
}

// MergerOptions contains configuration for creating a Merger.
type MergerOptions struct {
	Source PlayerSource
	Store  storage.ObservationStore

	Workers              int           // Default: 12
	FailurePolicy        FailurePolicy // Default: FailAbort
	MarketValueDays      int           // Default: 365
	PerformanceMatchdays int           // Default: 50

	Now    func() time.Time
	Logger zerolog.Logger
}

// NewMerger creates a new Merger.
func NewMerger(opts MergerOptions) *Merger {
	m := &Merger{
		source:        opts.Source,
		store:         opts.Store,
		workers:       opts.Workers,
		policy:        opts.FailurePolicy,
		mvDays:        opts.MarketValueDays,
		perfMatchdays: opts.PerformanceMatchdays,
		now:           opts.Now,
		logger:        opts.Logger,
	}
	if m.workers <= 0 {
		m.workers = DefaultWorkers
	}
	if m.policy == "" {
		m.policy = FailAbort
	}
	if m.mvDays <= 0 {
		m.mvDays = 365
	}
	if m.perfMatchdays <= 0 {
		m.perfMatchdays = 50
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// PlayerFailure records a player whose fetch failed under FailBestEffort.
type PlayerFailure struct {
	CompetitionID int
	PlayerID      string
	Err           error
}

// ReloadResult summarizes one reload.
type ReloadResult struct {
	Players      int
	Rows         int
	Failed       []PlayerFailure
	Duration     time.Duration
	Competitions []int
}

// outcome is the result slot of one worker.
type outcome struct {
	rows []*domain.Observation
	err  error
}

// Reload fetches all competitions and swaps the merged rows into the store.
// Any error is wrapped in ErrReloadFailed and leaves the stored table untouched.
func (m *Merger) Reload(ctx context.Context, competitionIDs []int) (*ReloadResult, error) {
	start := m.now()
	result := &ReloadResult{Competitions: competitionIDs}

	var all []*domain.Observation
	seen := make(map[string]struct{})
	for _, competitionID := range competitionIDs {
		rows, failed, players, err := m.fetchCompetition(ctx, competitionID, seen)
		if err != nil {
			observability.RecordReload("failed", 0, start)
			return nil, fmt.Errorf("%w: competition %d: %w", ErrReloadFailed, competitionID, err)
		}
		all = append(all, rows...)
		result.Failed = append(result.Failed, failed...)
		result.Players += players
	}

	if err := m.store.ReplaceAll(ctx, all); err != nil {
		observability.RecordReload("failed", 0, start)
		return nil, fmt.Errorf("%w: store: %w", ErrReloadFailed, err)
	}

	result.Rows = len(all)
	result.Duration = m.now().Sub(start)
	observability.RecordReload("success", result.Rows, m.now())

	m.logger.Info().
		Int("players", result.Players).
		Int("rows", result.Rows).
		Int("failed", len(result.Failed)).
		Dur("duration", result.Duration).
		Msg("observation table reloaded")
	return result, nil
}

// fetchCompetition fans out one worker per player, at most m.workers at a time.
// Each worker writes only its own outcome slot. Players already in seen are
// skipped so a player listed twice is fetched and stored once.
func (m *Merger) fetchCompetition(ctx context.Context, competitionID int, seen map[string]struct{}) ([]*domain.Observation, []PlayerFailure, int, error) {
	listed, err := m.source.PlayerIDs(ctx, competitionID)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("list players: %w", err)
	}
	playerIDs := dedupe(listed, seen)
	if skipped := len(listed) - len(playerIDs); skipped > 0 {
		m.logger.Warn().
			Int("competition_id", competitionID).
			Int("skipped", skipped).
			Msg("skipping duplicate player listings")
	}
	m.logger.Debug().Int("competition_id", competitionID).Int("players", len(playerIDs)).Msg("fetching players")

	outcomes := make([]outcome, len(playerIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i, playerID := range playerIDs {
		g.Go(func() error {
			began := time.Now()
			rows, err := m.fetchPlayer(gctx, competitionID, playerID)
			outcomes[i] = outcome{rows: rows, err: err}
			if err != nil {
				observability.RecordPlayerFetchError()
				if m.policy == FailAbort {
					return fmt.Errorf("player %s: %w", playerID, err)
				}
				return nil
			}
			observability.RecordPlayerFetched(time.Since(began))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, 0, err
	}

	var (
		rows   []*domain.Observation
		failed []PlayerFailure
	)
	for i, o := range outcomes {
		if o.err != nil {
			failed = append(failed, PlayerFailure{CompetitionID: competitionID, PlayerID: playerIDs[i], Err: o.err})
			m.logger.Warn().Err(o.err).Str("player_id", playerIDs[i]).Msg("skipping player")
			continue
		}
		rows = append(rows, o.rows...)
	}
	if len(failed) == len(playerIDs) && len(playerIDs) > 0 {
		return nil, failed, 0, errors.Join(failureErrors(failed)...)
	}
	return rows, failed, len(playerIDs) - len(failed), nil
}

func (m *Merger) fetchPlayer(ctx context.Context, competitionID int, playerID string) ([]*domain.Observation, error) {
	info, err := m.source.PlayerInfo(ctx, competitionID, playerID)
	if err != nil {
		return nil, err
	}
	values, err := m.source.MarketValues(ctx, competitionID, playerID, m.mvDays)
	if err != nil {
		return nil, err
	}
	perfs, err := m.source.Performances(ctx, competitionID, playerID, info.TeamID, m.perfMatchdays)
	if err != nil {
		return nil, err
	}
	return MergePlayer(*info, competitionID, values, perfs), nil
}

// dedupe keeps the first listing of every id not yet in seen and records it there.
func dedupe(ids []string, seen map[string]struct{}) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func failureErrors(failed []PlayerFailure) []error {
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		errs = append(errs, fmt.Errorf("player %s: %w", f.PlayerID, f.Err))
	}
	return errs
}
