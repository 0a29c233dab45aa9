package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Market Value Forecast\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n\n", r.RunID))
	}
	if !r.EffectiveDate.IsZero() {
		sb.WriteString(fmt.Sprintf("Effective date: %s\n\n", r.EffectiveDate.Format(time.DateOnly)))
	}

	// Data Summary
	d := r.DataSummary
	sb.WriteString("## Data Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Stored Observations | %d |\n", d.Observations))
	sb.WriteString(fmt.Sprintf("| Players | %d |\n", d.Players))
	sb.WriteString(fmt.Sprintf("| Historical Rows | %d |\n", d.HistoricalRows))
	sb.WriteString(fmt.Sprintf("| Live Rows | %d |\n", d.LiveRows))
	sb.WriteString(fmt.Sprintf("| Date Range | %s .. %s |\n", formatDate(d.DateRangeStart), formatDate(d.DateRangeEnd)))
	if d.LatestSettled != nil {
		sb.WriteString(fmt.Sprintf("| Latest Market Value Date | %s |\n", formatDate(*d.LatestSettled)))
	}
	sb.WriteString(fmt.Sprintf("| Target Clip | [%.0f, %.0f] |\n", d.ClipLower, d.ClipUpper))
	sb.WriteString("\n")

	// Evaluation
	e := r.Evaluation
	sb.WriteString("## Model Evaluation\n\n")
	if e.TestRows > 0 {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Train Rows | %d |\n", e.TrainRows))
		sb.WriteString(fmt.Sprintf("| Test Rows | %d |\n", e.TestRows))
		sb.WriteString(fmt.Sprintf("| RMSE | %.2f |\n", e.RMSE))
		sb.WriteString(fmt.Sprintf("| MAE | %.2f |\n", e.MAE))
		sb.WriteString(fmt.Sprintf("| R² | %.4f |\n", e.R2))
		sb.WriteString(fmt.Sprintf("| Signs Correct | %.2f%% |\n", e.DirectionalPercent))
	} else {
		sb.WriteString("No evaluation available.\n")
	}
	sb.WriteString("\n")

	// Market
	sb.WriteString("## Market Recommendations\n\n")
	if len(r.Market) > 0 {
		sb.WriteString("| Player | Team | MV | Yesterday | Predicted | S11 | Hours Left | Expiring Today |\n")
		sb.WriteString("|--------|------|----|-----------|-----------|-----|------------|----------------|\n")
		for _, m := range r.Market {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.0f | %s | %.2f | %s | %.2f | %s |\n",
				m.LastName, m.TeamName, m.MarketValue, optional(m.MVChangeYesterday, 0),
				m.PredictedMVTarget, probability(m.S11Prob), m.HoursToExp, yesNo(m.ExpiringToday)))
		}
	} else {
		sb.WriteString("No market recommendations.\n")
	}
	sb.WriteString("\n")

	// Squad
	sb.WriteString("## Squad\n\n")
	if len(r.Squad) > 0 {
		sb.WriteString("| Player | Team | MV | Yesterday | Predicted | S11 |\n")
		sb.WriteString("|--------|------|----|-----------|-----------|-----|\n")
		for _, s := range r.Squad {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.0f | %s | %.2f | %s |\n",
				s.LastName, s.TeamName, s.MarketValue, optional(s.MVChangeYesterday, 0),
				s.PredictedMVTarget, probability(s.S11Prob)))
		}
	} else {
		sb.WriteString("No squad data.\n")
	}
	sb.WriteString("\n")

	// Top predictions
	sb.WriteString("## Top Predictions\n\n")
	if len(r.TopPredictions) > 0 {
		sb.WriteString("| Player | Team | Date | MV | Predicted |\n")
		sb.WriteString("|--------|------|------|----|-----------|\n")
		for _, p := range r.TopPredictions {
			sb.WriteString(fmt.Sprintf("| %s %s | %s | %s | %.0f | %.2f |\n",
				p.FirstName, p.LastName, p.TeamName, formatDate(p.Date), p.MarketValue, p.PredictedMVTarget))
		}
	} else {
		sb.WriteString("No live predictions.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func probability(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return optional(p, 2)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
