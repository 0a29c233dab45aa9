package prediction

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kickbase-market-lab/internal/domain"
)

// fixedModel predicts the market value scaled by factor.
type fixedModel struct {
	factor float64
	err    error
}

func (m fixedModel) Predict(x []float64) (float64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return x[1] * m.factor, nil
}

func liveRow(playerID string, mv *float64) domain.FeatureRow {
	r := domain.FeatureRow{}
	r.PlayerID = playerID
	r.LastName = "Name " + playerID
	r.Date = time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC)
	r.MarketValue = mv
	return r
}

func TestPredict_DropsMissingMarketValueAndSorts(t *testing.T) {
	live := []domain.FeatureRow{
		liveRow("a", domain.Ptr(100.0)),
		liveRow("b", nil),
		liveRow("c", domain.Ptr(300.0)),
		liveRow("d", domain.Ptr(200.0)),
	}

	preds, err := NewPredictor(fixedModel{factor: 0.01234}, zerolog.Nop()).Predict(live)
	require.NoError(t, err)
	require.Len(t, preds, 3)

	assert.Equal(t, "c", preds[0].PlayerID)
	assert.Equal(t, "d", preds[1].PlayerID)
	assert.Equal(t, "a", preds[2].PlayerID)
	assert.Equal(t, 3.7, preds[0].PredictedMVTarget)
	assert.Equal(t, 1.23, preds[2].PredictedMVTarget)
	assert.Equal(t, 300.0, preds[0].MarketValue)
}

func TestPredict_TieBreaksOnPlayerID(t *testing.T) {
	live := []domain.FeatureRow{liveRow("z", domain.Ptr(1.0)), liveRow("y", domain.Ptr(1.0))}
	preds, err := NewPredictor(fixedModel{factor: 1}, zerolog.Nop()).Predict(live)
	require.NoError(t, err)
	assert.Equal(t, "y", preds[0].PlayerID)
}

func TestPredict_ModelError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewPredictor(fixedModel{err: boom}, zerolog.Nop()).Predict([]domain.FeatureRow{liveRow("a", domain.Ptr(1.0))})
	assert.ErrorIs(t, err, boom)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.01, Round(1.005, 2))
	assert.Equal(t, -2.35, Round(-2.345, 2))
	assert.Equal(t, 7.0, Round(7, 2))
}
