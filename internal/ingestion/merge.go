package ingestion

import (
	"sort"
	"time"

	"kickbase-market-lab/internal/domain"
)

// MergePlayer joins a player's market value history with their performance
// history into one Observation per date.
//
// Every market value date receives the latest performance record whose
// matchday is at or before it. Performance records dated after the last
// market value become trailing rows without a market value. A player without
// market values yields no rows. When a date repeats, the later entry wins.
func MergePlayer(
	identity domain.PlayerIdentity,
	competitionID int,
	values []domain.MarketValuePoint,
	perfs []domain.Performance,
) []*domain.Observation {
	if len(values) == 0 {
		return nil
	}

	mv := append([]domain.MarketValuePoint(nil), values...)
	sort.SliceStable(mv, func(i, j int) bool { return mv[i].Date.Before(mv[j].Date) })
	ph := append([]domain.Performance(nil), perfs...)
	sort.SliceStable(ph, func(i, j int) bool { return ph[i].Matchday.Before(ph[j].Matchday) })

	rows := make([]*domain.Observation, 0, len(mv)+1)
	next := 0
	var current *domain.Performance
	for _, point := range mv {
		date := domain.DateOf(point.Date)
		for next < len(ph) && !ph[next].Matchday.After(date) {
			current = &ph[next]
			next++
		}

		row := newObservation(identity, competitionID, date)
		row.MarketValue = domain.Ptr(point.Value)
		if current != nil {
			attachPerformance(row, current)
		}
		rows = appendOrReplace(rows, row)
	}

	lastDate := rows[len(rows)-1].Date
	for i := range ph {
		if !ph[i].Matchday.After(lastDate) {
			continue
		}
		row := newObservation(identity, competitionID, domain.DateOf(ph[i].Matchday))
		attachPerformance(row, &ph[i])
		rows = appendOrReplace(rows, row)
	}

	return rows
}

func newObservation(id domain.PlayerIdentity, competitionID int, date time.Time) *domain.Observation {
	return &domain.Observation{
		PlayerID:      id.PlayerID,
		TeamID:        id.TeamID,
		TeamName:      id.TeamName,
		FirstName:     id.FirstName,
		LastName:      id.LastName,
		Position:      id.Position,
		CompetitionID: competitionID,
		Date:          date,
	}
}

func attachPerformance(row *domain.Observation, p *domain.Performance) {
	md := p.Matchday
	row.Matchday = &md
	row.Points = p.Points
	row.MinutesPlayed = domain.Ptr(p.MinutesPlayed)
	row.PointsPerMin = p.PointsPerMin
	row.Team1ID = p.Team1ID
	row.Team2ID = p.Team2ID
	row.Team1Goals = p.Team1Goals
	row.Team2Goals = p.Team2Goals
	row.Won = p.Won
	row.MatchToken = p.MatchToken
}

// appendOrReplace keeps dates unique; rows arrive in non-decreasing date order.
func appendOrReplace(rows []*domain.Observation, row *domain.Observation) []*domain.Observation {
	if n := len(rows); n > 0 && rows[n-1].Date.Equal(row.Date) {
		rows[n-1] = row
		return rows
	}
	return append(rows, row)
}
