package domain

import (
	"math"
	"time"
)

// Prediction is a live row with the model's forecast of tomorrow's market value change.
type Prediction struct {
	PlayerID          string    `json:"player_id"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Position          int       `json:"position"`
	TeamName          string    `json:"team_name"`
	Date              time.Time `json:"date"`
	MVChange1D        *float64  `json:"mv_change_1d"`
	MVTrend1D         float64   `json:"mv_trend_1d"`
	MarketValue       float64   `json:"mv"`
	PredictedMVTarget float64   `json:"predicted_mv_target"`
}

// MarketListing is a player currently offered on the league transfer market.
type MarketListing struct {
	PlayerID string
	// StartingProb is the starting-eleven probability; nil when the account lacks access.
	StartingProb *float64
	// ExpirySeconds is the time until the listing expires.
	ExpirySeconds float64
}

// SquadSlot is a player currently owned by the user.
type SquadSlot struct {
	PlayerID     string
	StartingProb *float64
}

// MarketRecommendation is a buy candidate from the live market.
type MarketRecommendation struct {
	PlayerID          string   `json:"player_id"`
	LastName          string   `json:"last_name"`
	TeamName          string   `json:"team_name"`
	MarketValue       float64  `json:"mv"`
	MVChangeYesterday *float64 `json:"mv_change_yesterday"`
	PredictedMVTarget float64  `json:"predicted_mv_target"`
	S11Prob           *float64 `json:"s_11_prob"`
	HoursToExp        float64  `json:"hours_to_exp"`
	ExpiringToday     bool     `json:"expiring_today"`
}

// SquadRecommendation is a hold or sell signal for an owned player.
type SquadRecommendation struct {
	PlayerID          string   `json:"player_id"`
	LastName          string   `json:"last_name"`
	TeamName          string   `json:"team_name"`
	MarketValue       float64  `json:"mv"`
	MVChangeYesterday *float64 `json:"mv_change_yesterday"`
	PredictedMVTarget float64  `json:"predicted_mv_target"`
	S11Prob           *float64 `json:"s_11_prob"`
}

// Evaluation holds hold-out metrics of a trained model.
type Evaluation struct {
	RMSE               float64 `json:"rmse"`
	MAE                float64 `json:"mae"`
	R2                 float64 `json:"r2"`
	DirectionalPercent float64 `json:"signs_correct_pct"`
	TrainRows          int     `json:"train_rows"`
	TestRows           int     `json:"test_rows"`
}

func valueOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
