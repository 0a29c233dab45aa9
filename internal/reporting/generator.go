package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage"
)

// DefaultTopPredictions is the number of live predictions listed in the report.
const DefaultTopPredictions = 20

// Output file names.
const (
	ReportFile      = "REPORT.md"
	MarketFile      = "market_recommendations.csv"
	SquadFile       = "squad_recommendations.csv"
	PredictionsFile = "live_predictions.csv"
)

// RunOutput is everything a pipeline run produced that the report shows.
type RunOutput struct {
	RunID       string
	Features    *domain.FeatureSet
	Evaluation  domain.Evaluation
	Predictions []domain.Prediction
	Market      []domain.MarketRecommendation
	Squad       []domain.SquadRecommendation
}

// Generator produces reports from stored data and run results.
type Generator struct {
	store storage.ObservationStore
	now   func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.ObservationStore) *Generator {
	return &Generator{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report of one run.
func (g *Generator) Generate(ctx context.Context, out RunOutput) (*Report, error) {
	summary, err := g.generateDataSummary(ctx, out.Features)
	if err != nil {
		return nil, err
	}

	top := out.Predictions
	if len(top) > DefaultTopPredictions {
		top = top[:DefaultTopPredictions]
	}

	r := &Report{
		RunID:          out.RunID,
		GeneratedAt:    g.now(),
		DataSummary:    *summary,
		Evaluation:     out.Evaluation,
		Market:         out.Market,
		Squad:          out.Squad,
		TopPredictions: top,
	}
	if out.Features != nil {
		r.EffectiveDate = out.Features.EffectiveDate
	}
	return r, nil
}

// generateDataSummary combines the stored table summary with the feature set.
func (g *Generator) generateDataSummary(ctx context.Context, fs *domain.FeatureSet) (*DataSummary, error) {
	stored, err := g.store.Summary(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("summarize observations: %w", err)
	}

	s := &DataSummary{
		Observations:  stored.Rows,
		LatestSettled: stored.LatestSettled,
	}
	if fs == nil {
		return s, nil
	}

	s.HistoricalRows = len(fs.Historical)
	s.LiveRows = len(fs.Live)
	s.ClipLower = fs.ClipLower
	s.ClipUpper = fs.ClipUpper

	players := make(map[string]struct{})
	for _, rows := range [][]domain.FeatureRow{fs.Historical, fs.Live} {
		for _, r := range rows {
			players[r.PlayerID] = struct{}{}
			if s.DateRangeStart.IsZero() || r.Date.Before(s.DateRangeStart) {
				s.DateRangeStart = r.Date
			}
			if r.Date.After(s.DateRangeEnd) {
				s.DateRangeEnd = r.Date
			}
		}
	}
	s.Players = len(players)
	return s, nil
}

// WriteFiles renders the report and writes it with the CSV tables into dir.
// It returns the written paths.
func WriteFiles(dir string, r *Report, predictions []domain.Prediction) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{ReportFile, RenderMarkdown(r)},
		{MarketFile, RenderMarketCSV(r.Market)},
		{SquadFile, RenderSquadCSV(r.Squad)},
		{PredictionsFile, RenderPredictionsCSV(predictions)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
