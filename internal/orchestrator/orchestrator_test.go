package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/features"
	"kickbase-market-lab/internal/ingestion"
	"kickbase-market-lab/internal/ingestion/stub"
	"kickbase-market-lab/internal/modeling"
	"kickbase-market-lab/internal/prediction"
	"kickbase-market-lab/internal/reporting"
	"kickbase-market-lab/internal/storage/memory"
)

const days = 40

func day(d int) time.Time {
	return time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// runTime is 23:00 Berlin on the last market value day.
func runTime() time.Time {
	last := day(days - 1)
	return time.Date(last.Year(), last.Month(), last.Day(), 23, 0, 0, 0, cutoff.Settlement().Location())
}

func fixturePlayers() []stub.Player {
	var players []stub.Player
	for p := 0; p < 6; p++ {
		id := fmt.Sprintf("p%d", p)
		player := stub.Player{
			Identity:      domain.PlayerIdentity{PlayerID: id, TeamID: "t1", TeamName: "Club", LastName: "Player " + id},
			CompetitionID: 1,
		}
		for d := 0; d < days; d++ {
			v := 1_000_000 + float64(p*100_000) + float64(d*d*(p+1)*500)
			player.MarketValues = append(player.MarketValues, domain.MarketValuePoint{Date: day(d), Value: v})
		}
		for d := 0; d <= days+2; d += 7 {
			player.Performances = append(player.Performances, domain.Performance{
				Matchday:      day(d),
				Points:        domain.Ptr(float64(50 + p*10)),
				MinutesPlayed: 90,
				Team1ID:       domain.Ptr("t1"),
				Team2ID:       domain.Ptr("t2"),
			})
		}
		players = append(players, player)
	}
	return players
}

type fakeLive struct {
	market []domain.MarketListing
	squad  []domain.SquadSlot
	err    error
}

func (f fakeLive) Market(context.Context, string) ([]domain.MarketListing, error) {
	return f.market, f.err
}

func (f fakeLive) Squad(context.Context, string) ([]domain.SquadSlot, error) {
	return f.squad, f.err
}

type fakePublisher struct {
	runID  string
	market int
	squad  int
}

func (f *fakePublisher) Publish(_ context.Context, runID string, market []domain.MarketRecommendation, squad []domain.SquadRecommendation) error {
	f.runID = runID
	f.market = len(market)
	f.squad = len(squad)
	return nil
}

type failingReloader struct{}

func (failingReloader) Reload(context.Context, []int) (*ingestion.ReloadResult, error) {
	return nil, fmt.Errorf("%w: upstream down", ingestion.ErrReloadFailed)
}

func newOptions(t *testing.T, store *memory.ObservationStore) Options {
	t.Helper()
	now := runTime
	return Options{
		Store: store,
		Reloader: ingestion.NewMerger(ingestion.MergerOptions{
			Source: stub.NewPlayerSource(fixturePlayers()),
			Store:  store,
			Now:    now,
			Logger: zerolog.Nop(),
		}),
		CompetitionIDs: []int{1},
		Features:       features.New(features.Options{Now: now, Logger: zerolog.Nop()}),
		Trainer:        modeling.NewTrainer(modeling.Params{Trees: 10, Seed: 1}, zerolog.Nop()),
		Joiner:         prediction.NewJoiner(cutoff.MarketClose(), 0),
		Live: fakeLive{
			market: []domain.MarketListing{{PlayerID: "p1", ExpirySeconds: 1800}, {PlayerID: "p4", ExpirySeconds: 86400}},
			squad:  []domain.SquadSlot{{PlayerID: "p0", StartingProb: domain.Ptr(0.5)}},
		},
		LeagueID: "league-1",
		Now:      now,
		Logger:   zerolog.Nop(),
	}
}

func TestOrchestrator_Run(t *testing.T) {
	store := memory.NewObservationStore()
	pub := &fakePublisher{}
	dir := t.TempDir()

	opts := newOptions(t, store)
	opts.Reporter = reporting.NewGenerator(store).WithClock(runTime)
	opts.OutputDir = dir
	opts.Publisher = pub

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.True(t, result.Reloaded)
	require.NotNil(t, result.Reload)
	assert.Equal(t, 6, result.Reload.Players)

	require.NotNil(t, result.Features)
	assert.True(t, result.Features.EffectiveDate.Equal(day(days-1)))
	assert.NotEmpty(t, result.Features.Historical)
	for _, r := range result.Features.Historical {
		assert.True(t, r.Date.Before(result.Features.EffectiveDate))
	}

	assert.Positive(t, result.Evaluation.TrainRows)
	assert.Positive(t, result.Evaluation.TestRows)
	assert.GreaterOrEqual(t, result.Evaluation.RMSE, result.Evaluation.MAE)

	// One live row with a market value per player.
	require.Len(t, result.Predictions, 6)
	for i := 1; i < len(result.Predictions); i++ {
		assert.GreaterOrEqual(t, result.Predictions[i-1].PredictedMVTarget, result.Predictions[i].PredictedMVTarget)
	}

	require.Len(t, result.Squad, 1)
	assert.Equal(t, "p0", result.Squad[0].PlayerID)
	for _, m := range result.Market {
		assert.Greater(t, m.PredictedMVTarget, 0.0)
		if m.PlayerID == "p1" {
			assert.True(t, m.ExpiringToday)
		}
	}

	assert.Equal(t, result.RunID, pub.runID)
	assert.Equal(t, len(result.Market), pub.market)
	assert.Equal(t, 1, pub.squad)

	require.NotNil(t, result.Report)
	require.Len(t, result.Files, 4)
	for _, f := range result.Files {
		_, err := os.Stat(f)
		assert.NoError(t, err)
	}
}

func TestOrchestrator_Run_SingleReferenceInstant(t *testing.T) {
	store := memory.NewObservationStore()
	opts := newOptions(t, store)
	// 23:00 Berlin is 23h before the next 22:00 close. Any later reading of
	// the clock lands on that close, where nothing counts as expiring today.
	calls := 0
	opts.Now = func() time.Time {
		calls++
		if calls == 1 {
			return runTime()
		}
		return runTime().Add(23 * time.Hour)
	}
	opts.Live = fakeLive{market: []domain.MarketListing{{PlayerID: "p1", ExpirySeconds: 20 * 3600}}}

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Market, 1)
	assert.Equal(t, 20.0, result.Market[0].HoursToExp)
	assert.True(t, result.Market[0].ExpiringToday)
}

func TestOrchestrator_Run_GateSkipsReload(t *testing.T) {
	store := memory.NewObservationStore()
	opts := newOptions(t, store)
	_, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	opts.Gate = ingestion.FreshnessGate{Store: store, Boundary: cutoff.Settlement(), MinSettledRows: 6}
	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Reloaded)
	assert.Len(t, result.Predictions, 6)
}

func TestOrchestrator_Run_StaleDataAfterFailedReload(t *testing.T) {
	store := memory.NewObservationStore()
	opts := newOptions(t, store)
	_, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	opts.Reloader = failingReloader{}
	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Reloaded)
	assert.ErrorIs(t, result.ReloadErr, ingestion.ErrReloadFailed)
	assert.Len(t, result.Predictions, 6)
}

func TestOrchestrator_Run_FailedReloadOnEmptyStore(t *testing.T) {
	opts := newOptions(t, memory.NewObservationStore())
	opts.Reloader = failingReloader{}

	_, err := New(opts).Run(context.Background())
	assert.ErrorIs(t, err, ingestion.ErrReloadFailed)
}

func TestOrchestrator_Run_NoData(t *testing.T) {
	opts := newOptions(t, memory.NewObservationStore())
	opts.Reloader = nil

	_, err := New(opts).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoData)
}

func TestOrchestrator_Run_LiveSourceError(t *testing.T) {
	opts := newOptions(t, memory.NewObservationStore())
	boom := errors.New("market unavailable")
	opts.Live = fakeLive{err: boom}

	_, err := New(opts).Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestOrchestrator_Run_WithoutLiveSource(t *testing.T) {
	opts := newOptions(t, memory.NewObservationStore())
	opts.Live = nil

	result, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.Predictions)
	assert.Empty(t, result.Market)
	assert.Empty(t, result.Squad)
}
