package features

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kickbase-market-lab/internal/cutoff"
	"kickbase-market-lab/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// afterBoundary is 23:00 Berlin on day(d): the effective date is day(d).
func afterBoundary(d int) time.Time {
	berlin := cutoff.Settlement().Location()
	x := day(d)
	return time.Date(x.Year(), x.Month(), x.Day(), 23, 0, 0, 0, berlin)
}

func newEngine() *Engine {
	return New(Options{Boundary: cutoff.Settlement()})
}

// series builds one player's rows with a matchday every four days.
func series(playerID string, values ...float64) []*domain.Observation {
	rows := make([]*domain.Observation, 0, len(values))
	for i, v := range values {
		md := day(i - i%4)
		rows = append(rows, &domain.Observation{
			PlayerID:    playerID,
			TeamID:      "t1",
			Date:        day(i),
			Matchday:    &md,
			Team1ID:     domain.Ptr("t1"),
			Team2ID:     domain.Ptr("t2"),
			Points:      domain.Ptr(float64(10 * i)),
			MarketValue: domain.Ptr(v),
		})
	}
	return rows
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestBuild_EmptyInput(t *testing.T) {
	_, err := newEngine().BuildAt(context.Background(), nil, afterBoundary(0))
	assert.ErrorIs(t, err, ErrNoObservations)
}

func TestBuild_FlatMarketValue(t *testing.T) {
	rows := series("p1", flat(10, 1_000_000)...)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(20))
	require.NoError(t, err)

	all := append(append([]domain.FeatureRow(nil), set.Historical...), set.Live...)
	require.NotEmpty(t, all)
	for _, r := range all {
		if r.Date.Before(day(2)) {
			continue
		}
		require.NotNil(t, r.MVChange1D)
		assert.Zero(t, *r.MVChange1D)
		assert.Zero(t, r.MVTrend1D)
		assert.Zero(t, r.MVVol3D)
	}
}

func TestBuild_TargetIsNextDayChange(t *testing.T) {
	rows := series("p1", 100, 110, 105, 120, 130)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(20))
	require.NoError(t, err)

	// The last row has no next day and the first has no lag: three remain.
	require.Len(t, set.Historical, 3)
	assert.Empty(t, set.Live)
	for _, r := range set.Historical {
		require.NotNil(t, r.MVNextDay)
		assert.Equal(t, *r.MVNextDay-*r.MarketValue, *r.MVTarget)
		assert.True(t, r.NextDay.Equal(r.Date.AddDate(0, 0, 1)))
	}
	assert.Equal(t, -5.0, *set.Historical[0].MVTarget)
	assert.Equal(t, 10.0, *set.Historical[0].MVChange1D)
	assert.InDelta(t, 0.1, set.Historical[0].MVTrend1D, 1e-12)
}

func TestBuild_NoLookAhead(t *testing.T) {
	base := []float64{100, 110, 105, 120, 130, 125, 140, 150, 145, 160, 170, 165}
	changed := append([]float64(nil), base...)
	changed[len(changed)-1] = 999_999

	now := afterBoundary(30)
	a, err := newEngine().BuildAt(context.Background(), series("p1", base...), now)
	require.NoError(t, err)
	b, err := newEngine().BuildAt(context.Background(), series("p1", changed...), now)
	require.NoError(t, err)

	all := func(s *domain.FeatureSet) []domain.FeatureRow {
		return append(append([]domain.FeatureRow(nil), s.Historical...), s.Live...)
	}
	ra, rb := all(a), all(b)
	require.Equal(t, len(ra), len(rb))
	for i := range ra {
		if !ra[i].Date.Before(day(len(base) - 1)) {
			continue
		}
		assert.Equal(t, ra[i].FeatureVector(), rb[i].FeatureVector(), "features of %s changed", ra[i].Date)
	}
}

func TestBuild_CutoffPartition(t *testing.T) {
	rows := series("p1", 100, 110, 120, 130, 140, 150)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(4))
	require.NoError(t, err)

	assert.True(t, set.EffectiveDate.Equal(day(4)))
	require.Len(t, set.Live, 2)
	assert.True(t, set.Live[0].Date.Equal(day(4)))
	assert.True(t, set.Live[1].Date.Equal(day(5)))
	for _, r := range set.Historical {
		assert.True(t, r.Date.Before(day(4)))
	}
}

func TestBuild_CutoffBeforeBoundaryUsesYesterday(t *testing.T) {
	berlin := cutoff.Settlement().Location()
	x := day(4)
	morning := time.Date(x.Year(), x.Month(), x.Day(), 9, 0, 0, 0, berlin)

	set, err := newEngine().BuildAt(context.Background(), series("p1", 100, 110, 120, 130, 140, 150), morning)
	require.NoError(t, err)
	assert.True(t, set.EffectiveDate.Equal(day(3)))
	assert.Len(t, set.Live, 3)
}

func TestBuild_TransferFilter(t *testing.T) {
	rows := series("p1", 100, 110, 120, 130, 140)
	// After a transfer the stale match row names the old club on both sides.
	rows[2].Team1ID = domain.Ptr("old1")
	rows[2].Team2ID = domain.Ptr("old2")
	// A row without match context is kept.
	rows[3].Team1ID = nil
	rows[3].Team2ID = nil

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(2))
	require.NoError(t, err)

	for _, r := range append(set.Historical, set.Live...) {
		assert.False(t, r.Date.Equal(day(2)), "foreign team row kept")
	}
	found := false
	for _, r := range set.Live {
		if r.Date.Equal(day(3)) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuild_DropsZeroMarketValue(t *testing.T) {
	rows := series("p1", 100, 0, 120, 130)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(10))
	require.NoError(t, err)
	for _, r := range append(set.Historical, set.Live...) {
		assert.NotZero(t, *r.MarketValue)
	}
}

func TestBuild_DaysToNextMatchday(t *testing.T) {
	rows := series("p1", flat(10, 500)...)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(30))
	require.NoError(t, err)

	for _, r := range set.Historical {
		// Matchdays are on days 0, 4 and 8; day 8 onwards has no next.
		require.NotNil(t, r.NextMatchday)
		md := *r.Matchday
		assert.True(t, r.NextMatchday.Equal(md.AddDate(0, 0, 4)), "date %s", r.Date)
		assert.Equal(t, float64(domain.DaysBetween(r.Date, *r.NextMatchday)), *r.DaysToNext)
	}
}

func TestBuild_ClipBoundsSharedAcrossPartition(t *testing.T) {
	values := []float64{100, 101, 102, 103, 104, 105, 106, 10_000, 107, 108, 109}
	rows := series("p1", values...)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(8))
	require.NoError(t, err)

	// The pool includes rows later dropped for missing history.
	var raw []float64
	for i := 0; i+1 < len(values); i++ {
		raw = append(raw, values[i+1]-values[i])
	}
	lower, upper, ok := ClipBounds(raw, DefaultIQRMultiplier)
	require.True(t, ok)
	assert.Equal(t, lower, set.ClipLower)
	assert.Equal(t, upper, set.ClipUpper)

	for _, r := range append(set.Historical, set.Live...) {
		if r.MVTargetClipped == nil {
			continue
		}
		assert.GreaterOrEqual(t, *r.MVTargetClipped, set.ClipLower)
		assert.LessOrEqual(t, *r.MVTargetClipped, set.ClipUpper)
		if *r.MVTarget >= set.ClipLower && *r.MVTarget <= set.ClipUpper {
			assert.Equal(t, *r.MVTarget, *r.MVTargetClipped)
		}
	}
}

func TestBuild_Imputation(t *testing.T) {
	rows := series("p1", 100, 110)
	rows[0].Points = nil

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(0))
	require.NoError(t, err)

	require.Len(t, set.Live, 2)
	r := set.Live[0]
	assert.Equal(t, 0.0, *r.Points)
	assert.Equal(t, 0.0, *r.PointsPerMin)
	assert.Equal(t, -1, *r.Won)
	assert.Equal(t, 1.0, r.MarketDivergence)
	assert.Zero(t, r.MVChange3D)
	assert.Zero(t, r.MVVol3D)
}

func TestBuild_MarketDivergence(t *testing.T) {
	// Two players on the same matchday; p1 is always worth twice p2.
	rows := append(series("p1", 200, 200, 200, 200), series("p2", 100, 100, 100, 100)...)

	set, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(0))
	require.NoError(t, err)

	for _, r := range set.Live {
		if r.Date.Before(day(2)) {
			assert.Equal(t, 1.0, r.MarketDivergence)
			continue
		}
		want := 2.0 / 1.5
		if r.PlayerID == "p2" {
			want = 1.0 / 1.5
		}
		assert.InDelta(t, want, r.MarketDivergence, 1e-12)
	}
}

func TestBuild_Idempotent(t *testing.T) {
	var rows []*domain.Observation
	for p := 0; p < 5; p++ {
		values := make([]float64, 15)
		for i := range values {
			values[i] = 1_000_000 + float64((p+1)*i*i*1000)
		}
		rows = append(rows, series(fmt.Sprintf("p%d", p), values...)...)
	}
	now := afterBoundary(12)

	a, err := newEngine().BuildAt(context.Background(), rows, now)
	require.NoError(t, err)
	b, err := newEngine().BuildAt(context.Background(), rows, now)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	rows := series("p1", 100, 110, 120)
	rows[0].Points = nil

	_, err := newEngine().BuildAt(context.Background(), rows, afterBoundary(10))
	require.NoError(t, err)
	assert.Nil(t, rows[0].Points)
}

func TestPctChange(t *testing.T) {
	assert.Zero(t, pctChange(5, 0))
	assert.Zero(t, pctChange(0, 0))
	assert.InDelta(t, -0.5, pctChange(50, 100), 1e-12)
	assert.False(t, math.IsNaN(pctChange(math.NaN(), 1)))
}
