package kickbase

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"kickbase-market-lab/internal/domain"
)

type tableResponse struct {
	Items []struct {
		TeamID   string `json:"tid"`
		TeamName string `json:"tn"`
	} `json:"it"`
}

type teamProfileResponse struct {
	Items []struct {
		PlayerID string `json:"i"`
	} `json:"it"`
}

type playerResponse struct {
	PlayerID  *string `json:"i"`
	TeamID    string  `json:"tid"`
	TeamName  string  `json:"tn"`
	FirstName string  `json:"fn"`
	LastName  string  `json:"ln"`
	Position  int     `json:"pos"`
}

type marketValueResponse struct {
	Items []struct {
		// Days since the Unix epoch.
		Day   *int64   `json:"dt"`
		Value *float64 `json:"mv"`
	} `json:"it"`
}

type performanceResponse struct {
	Items []struct {
		History []performanceEntry `json:"ph"`
	} `json:"it"`
}

type performanceEntry struct {
	Matchday   *string  `json:"md"`
	Points     *float64 `json:"p"`
	Minutes    *string  `json:"mp"`
	Team1ID    *string  `json:"t1"`
	Team2ID    *string  `json:"t2"`
	Team1Goals *int     `json:"t1g"`
	Team2Goals *int     `json:"t2g"`
	Tokens     []any    `json:"k"`
}

type leagueSelectionResponse struct {
	Items []struct {
		ID   string `json:"i"`
		Name string `json:"n"`
	} `json:"it"`
}

type marketResponse struct {
	Items []struct {
		PlayerID      string   `json:"i"`
		StartingProb  *float64 `json:"prob"`
		ExpirySeconds float64  `json:"exs"`
	} `json:"it"`
}

type squadResponse struct {
	Items []struct {
		PlayerID     string   `json:"i"`
		StartingProb *float64 `json:"prob"`
	} `json:"it"`
}

var unixEpoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// toMarketValues converts the history, keeps the last lastN points and sorts them by date.
func (r *marketValueResponse) toMarketValues(lastN int) ([]domain.MarketValuePoint, error) {
	items := r.Items
	if lastN > 0 && len(items) > lastN {
		items = items[len(items)-lastN:]
	}

	out := make([]domain.MarketValuePoint, 0, len(items))
	for _, it := range items {
		if it.Day == nil || it.Value == nil {
			return nil, fmt.Errorf("%w: market value entry without dt or mv", ErrMalformedPayload)
		}
		out = append(out, domain.MarketValuePoint{
			Date:  unixEpoch.AddDate(0, 0, int(*it.Day)),
			Value: *it.Value,
		})
	}
	sortMarketValues(out)
	return out, nil
}

// toPerformances flattens the per-season history, keeps matchdays up to and
// including the next matchday after today, then the last lastN of those.
func (r *performanceResponse) toPerformances(today time.Time, lastN int, playerTeam string) ([]domain.Performance, error) {
	type dated struct {
		entry performanceEntry
		md    time.Time
	}

	var all []dated
	for _, season := range r.Items {
		for _, e := range season.History {
			if e.Matchday == nil {
				return nil, fmt.Errorf("%w: performance entry without md", ErrMalformedPayload)
			}
			md, err := parseMatchday(*e.Matchday)
			if err != nil {
				return nil, err
			}
			all = append(all, dated{entry: e, md: md})
		}
	}

	today = domain.DateOf(today)
	nextMatchday := today
	for _, d := range all {
		if d.md.After(today) && (nextMatchday.Equal(today) || d.md.Before(nextMatchday)) {
			nextMatchday = d.md
		}
	}

	kept := all[:0]
	for _, d := range all {
		if !d.md.After(nextMatchday) {
			kept = append(kept, d)
		}
	}
	if lastN > 0 && len(kept) > lastN {
		kept = kept[len(kept)-lastN:]
	}

	out := make([]domain.Performance, 0, len(kept))
	for _, d := range kept {
		e := d.entry
		minutes := parseMinutes(e.Minutes)
		p := domain.Performance{
			Matchday:      d.md,
			Points:        e.Points,
			MinutesPlayed: minutes,
			Team1ID:       e.Team1ID,
			Team2ID:       e.Team2ID,
			Team1Goals:    e.Team1Goals,
			Team2Goals:    e.Team2Goals,
			Won:           matchResult(playerTeam, e.Team1ID, e.Team2ID, e.Team1Goals, e.Team2Goals),
			MatchToken:    joinTokens(e.Tokens),
		}
		if e.Points != nil && minutes > 0 {
			p.PointsPerMin = domain.Ptr(*e.Points / float64(minutes))
		}
		out = append(out, p)
	}
	return out, nil
}

// parseMatchday returns the UTC calendar date of an ISO-8601 matchday timestamp.
func parseMatchday(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t.UTC()), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable matchday %q", ErrMalformedPayload, s)
}

// parseMinutes reads values like "90'". Missing or unparseable values count as 0.
func parseMinutes(s *string) int {
	if s == nil {
		return 0
	}
	v := strings.TrimSpace(strings.ReplaceAll(*s, "'", ""))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

// matchResult is 1 for a win and 0 for a loss of the player's team. Draws,
// unknown scores and fixtures without the player's team are nil.
func matchResult(playerTeam string, t1, t2 *string, t1g, t2g *int) *int {
	if t1g == nil || t2g == nil {
		return nil
	}

	var own, other int
	switch {
	case t1 != nil && *t1 == playerTeam:
		own, other = *t1g, *t2g
	case t2 != nil && *t2 == playerTeam:
		own, other = *t2g, *t1g
	default:
		return nil
	}

	switch {
	case own > other:
		return domain.Ptr(1)
	case own < other:
		return domain.Ptr(0)
	default:
		return nil
	}
}

func joinTokens(tokens []any) *string {
	if tokens == nil {
		return nil
	}
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		switch v := t.(type) {
		case float64:
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
		default:
			parts = append(parts, fmt.Sprint(v))
		}
	}
	s := strings.Join(parts, ",")
	return &s
}
