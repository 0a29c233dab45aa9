// Package prediction scores live feature rows and joins the forecasts with
// the league market and the user's squad.
package prediction

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"kickbase-market-lab/internal/domain"
)

// Model maps a feature vector to a predicted target.
type Model interface {
	Predict(x []float64) (float64, error)
}

// LiveSource returns the current league snapshots.
// kickbase.Client implements it.
type LiveSource interface {
	Market(ctx context.Context, leagueID string) ([]domain.MarketListing, error)
	Squad(ctx context.Context, leagueID string) ([]domain.SquadSlot, error)
}

// Predictor applies a trained model to live rows.
type Predictor struct {
	model  Model
	logger zerolog.Logger
}

// NewPredictor creates a Predictor.
func NewPredictor(model Model, logger zerolog.Logger) *Predictor {
	return &Predictor{model: model, logger: logger}
}

// Predict scores every live row that has a market value. Predictions are
// rounded to cents and sorted by predicted target, highest first.
func (p *Predictor) Predict(live []domain.FeatureRow) ([]domain.Prediction, error) {
	out := make([]domain.Prediction, 0, len(live))
	skipped := 0
	for i := range live {
		r := &live[i]
		if r.MarketValue == nil {
			skipped++
			continue
		}
		v, err := p.model.Predict(r.FeatureVector())
		if err != nil {
			return nil, fmt.Errorf("predict %s on %s: %w", r.PlayerID, r.Date.Format("2006-01-02"), err)
		}
		out = append(out, domain.Prediction{
			PlayerID:          r.PlayerID,
			FirstName:         r.FirstName,
			LastName:          r.LastName,
			Position:          r.Position,
			TeamName:          r.TeamName,
			Date:              r.Date,
			MVChange1D:        r.MVChange1D,
			MVTrend1D:         r.MVTrend1D,
			MarketValue:       *r.MarketValue,
			PredictedMVTarget: Round(v, 2),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].PredictedMVTarget != out[j].PredictedMVTarget {
			return out[i].PredictedMVTarget > out[j].PredictedMVTarget
		}
		if out[i].PlayerID != out[j].PlayerID {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].Date.Before(out[j].Date)
	})

	p.logger.Debug().Int("predictions", len(out)).Int("skipped", skipped).Msg("live rows scored")
	return out, nil
}

// Round rounds v half away from zero to places decimals.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
