package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kickbase-market-lab/internal/domain"
)

// RenderMarketCSV renders market recommendations as CSV string.
func RenderMarketCSV(rows []domain.MarketRecommendation) string {
	var sb strings.Builder

	// Header
	sb.WriteString("player_id,last_name,team_name,mv,mv_change_yesterday,predicted_mv_target,s_11_prob,hours_to_exp,expiring_today\n")

	// Rows
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.0f,%s,%.2f,%s,%.2f,%t\n",
			r.PlayerID,
			csvField(r.LastName),
			csvField(r.TeamName),
			r.MarketValue,
			optional(r.MVChangeYesterday, 0),
			r.PredictedMVTarget,
			optional(r.S11Prob, 2),
			r.HoursToExp,
			r.ExpiringToday,
		))
	}

	return sb.String()
}

// RenderSquadCSV renders squad recommendations as CSV string.
func RenderSquadCSV(rows []domain.SquadRecommendation) string {
	var sb strings.Builder

	sb.WriteString("player_id,last_name,team_name,mv,mv_change_yesterday,predicted_mv_target,s_11_prob\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%.0f,%s,%.2f,%s\n",
			r.PlayerID,
			csvField(r.LastName),
			csvField(r.TeamName),
			r.MarketValue,
			optional(r.MVChangeYesterday, 0),
			r.PredictedMVTarget,
			optional(r.S11Prob, 2),
		))
	}

	return sb.String()
}

// RenderPredictionsCSV renders live predictions as CSV string.
func RenderPredictionsCSV(rows []domain.Prediction) string {
	var sb strings.Builder

	sb.WriteString("player_id,first_name,last_name,position,team_name,date,mv_change_1d,mv_trend_1d,mv,predicted_mv_target\n")

	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%d,%s,%s,%s,%.6f,%.0f,%.2f\n",
			r.PlayerID,
			csvField(r.FirstName),
			csvField(r.LastName),
			r.Position,
			csvField(r.TeamName),
			r.Date.Format(time.DateOnly),
			optional(r.MVChange1D, 0),
			r.MVTrend1D,
			r.MarketValue,
			r.PredictedMVTarget,
		))
	}

	return sb.String()
}

// optional renders nil as an empty field.
func optional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

// csvField quotes values containing separators.
func csvField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
