package reporting

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage/memory"
)

func date(d int) time.Time {
	return time.Date(2025, time.October, d, 0, 0, 0, 0, time.UTC)
}

func featureRow(playerID string, d int) domain.FeatureRow {
	r := domain.FeatureRow{}
	r.PlayerID = playerID
	r.Date = date(d)
	return r
}

func sampleOutput() RunOutput {
	return RunOutput{
		RunID: "run-1",
		Features: &domain.FeatureSet{
			Historical:    []domain.FeatureRow{featureRow("p1", 1), featureRow("p2", 2)},
			Live:          []domain.FeatureRow{featureRow("p1", 3)},
			EffectiveDate: date(3),
			ClipLower:     -100000,
			ClipUpper:     120000,
		},
		Evaluation: domain.Evaluation{RMSE: 1234.5, MAE: 800, R2: 0.42, DirectionalPercent: 61.5, TrainRows: 75, TestRows: 25},
		Predictions: []domain.Prediction{
			{PlayerID: "p1", FirstName: "Max", LastName: "Muster", TeamName: "Club, FC", Date: date(3), MarketValue: 5_000_000, PredictedMVTarget: 12000},
		},
		Market: []domain.MarketRecommendation{
			{PlayerID: "p1", LastName: "Muster", TeamName: "Club, FC", MarketValue: 5_000_000, PredictedMVTarget: 12000, HoursToExp: 1.5, ExpiringToday: true},
		},
		Squad: []domain.SquadRecommendation{
			{PlayerID: "p2", LastName: "Beispiel", TeamName: "Verein", MarketValue: 2_000_000, MVChangeYesterday: domain.Ptr(-3000.0), PredictedMVTarget: -1500, S11Prob: domain.Ptr(0.9)},
		},
	}
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	store := memory.NewObservationStore()
	require.NoError(t, store.ReplaceAll(context.Background(), []*domain.Observation{
		{PlayerID: "p1", Date: date(1), MarketValue: domain.Ptr(1.0)},
		{PlayerID: "p1", Date: date(2), MarketValue: domain.Ptr(1.0)},
		{PlayerID: "p2", Date: date(2), MarketValue: domain.Ptr(1.0)},
	}))
	fixed := time.Date(2025, time.October, 3, 23, 0, 0, 0, time.UTC)
	return NewGenerator(store).WithClock(func() time.Time { return fixed })
}

func TestGenerate(t *testing.T) {
	r, err := newGenerator(t).Generate(context.Background(), sampleOutput())
	require.NoError(t, err)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, 3, r.DataSummary.Observations)
	assert.Equal(t, 2, r.DataSummary.Players)
	assert.Equal(t, 2, r.DataSummary.HistoricalRows)
	assert.Equal(t, 1, r.DataSummary.LiveRows)
	assert.True(t, r.DataSummary.DateRangeStart.Equal(date(1)))
	assert.True(t, r.DataSummary.DateRangeEnd.Equal(date(3)))
	require.NotNil(t, r.DataSummary.LatestSettled)
	assert.True(t, r.DataSummary.LatestSettled.Equal(date(2)))
	assert.True(t, r.EffectiveDate.Equal(date(3)))
	assert.Len(t, r.TopPredictions, 1)
}

func TestGenerate_TruncatesTopPredictions(t *testing.T) {
	out := sampleOutput()
	out.Predictions = make([]domain.Prediction, DefaultTopPredictions+5)

	r, err := newGenerator(t).Generate(context.Background(), out)
	require.NoError(t, err)
	assert.Len(t, r.TopPredictions, DefaultTopPredictions)
}

func TestRenderMarkdown(t *testing.T) {
	r, err := newGenerator(t).Generate(context.Background(), sampleOutput())
	require.NoError(t, err)

	md := RenderMarkdown(r)
	assert.Contains(t, md, "# Market Value Forecast")
	assert.Contains(t, md, "Effective date: 2025-10-03")
	assert.Contains(t, md, "| RMSE | 1234.50 |")
	assert.Contains(t, md, "| Signs Correct | 61.50% |")
	assert.Contains(t, md, "| Muster | Club, FC | 5000000 |  | 12000.00 | n/a | 1.50 | yes |")
	assert.Contains(t, md, "| Beispiel | Verein | 2000000 | -3000 | -1500.00 | 0.90 |")
}

func TestRenderMarkdown_Empty(t *testing.T) {
	md := RenderMarkdown(&Report{})
	assert.Contains(t, md, "No evaluation available.")
	assert.Contains(t, md, "No market recommendations.")
	assert.Contains(t, md, "No squad data.")
	assert.Contains(t, md, "No live predictions.")
}

func TestRenderMarketCSV(t *testing.T) {
	csv := RenderMarketCSV(sampleOutput().Market)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "player_id,last_name,team_name,mv,mv_change_yesterday,predicted_mv_target,s_11_prob,hours_to_exp,expiring_today", lines[0])
	assert.Equal(t, `p1,Muster,"Club, FC",5000000,,12000.00,,1.50,true`, lines[1])
}

func TestRenderSquadCSV(t *testing.T) {
	csv := RenderSquadCSV(sampleOutput().Squad)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "p2,Beispiel,Verein,2000000,-3000,-1500.00,0.90", lines[1])
}

func TestWriteFiles(t *testing.T) {
	r, err := newGenerator(t).Generate(context.Background(), sampleOutput())
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, r, sampleOutput().Predictions)
	require.NoError(t, err)
	require.Len(t, paths, 4)

	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	data, err := os.ReadFile(filepath.Join(dir, PredictionsFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "p1,Max,Muster,0,\"Club, FC\",2025-10-03,,0.000000,5000000,12000.00")
}
