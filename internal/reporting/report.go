package reporting

import (
	"time"

	"kickbase-market-lab/internal/domain"
)

// Report is the daily run report.
type Report struct {
	// Metadata
	RunID         string
	GeneratedAt   time.Time
	EffectiveDate time.Time

	// Data Summary
	DataSummary DataSummary

	// Model quality on the hold-out set
	Evaluation domain.Evaluation

	// Recommendations (sorted by predicted_mv_target desc)
	Market []domain.MarketRecommendation
	Squad  []domain.SquadRecommendation

	// Top live predictions regardless of market or squad
	TopPredictions []domain.Prediction
}

// DataSummary describes the table the model was trained on.
type DataSummary struct {
	Observations   int
	Players        int
	HistoricalRows int
	LiveRows       int
	DateRangeStart time.Time
	DateRangeEnd   time.Time
	ClipLower      float64
	ClipUpper      float64
	LatestSettled  *time.Time
}
