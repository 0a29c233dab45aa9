package domain

import "time"

// Observation is one stored row of player_data_1d: a player's market value on a
// calendar date joined with the most recent matchday performance at or before it.
// Nil pointers are NULL columns.
type Observation struct {
	PlayerID      string
	TeamID        string
	TeamName      string
	FirstName     string
	LastName      string
	Position      int
	CompetitionID int

	// Matchday is the matchday date of the attached performance record.
	Matchday *time.Time
	Date     time.Time

	Points        *float64
	MinutesPlayed *int
	PointsPerMin  *float64
	Team1ID       *string
	Team2ID       *string
	Team1Goals    *int
	Team2Goals    *int
	Won           *int
	MatchToken    *string

	// MarketValue is nil for trailing performance rows after the last market value date.
	MarketValue *float64
}

// Settled reports whether the row carries a market value.
func (o *Observation) Settled() bool {
	return o.MarketValue != nil
}

// PlayerIdentity is the static part of an Observation taken from the player profile.
type PlayerIdentity struct {
	PlayerID  string
	TeamID    string
	TeamName  string
	FirstName string
	LastName  string
	Position  int
}

// MarketValuePoint is a single day of a player's market value history.
type MarketValuePoint struct {
	Date  time.Time
	Value float64
}

// Performance is one matchday record from a player's performance history.
type Performance struct {
	Matchday      time.Time
	Points        *float64
	MinutesPlayed int
	PointsPerMin  *float64
	Team1ID       *string
	Team2ID       *string
	Team1Goals    *int
	Team2Goals    *int
	Won           *int
	MatchToken    *string
}
