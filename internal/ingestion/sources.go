package ingestion

import (
	"context"

	"kickbase-market-lab/internal/domain"
)

// PlayerSource provides raw per-player histories from the upstream API.
// kickbase.Client implements it.
type PlayerSource interface {
	// PlayerIDs lists every player of a competition.
	PlayerIDs(ctx context.Context, competitionID int) ([]string, error)

	// PlayerInfo returns the static profile of a player.
	PlayerInfo(ctx context.Context, competitionID int, playerID string) (*domain.PlayerIdentity, error)

	// MarketValues returns the last lastN daily market values, oldest first.
	MarketValues(ctx context.Context, competitionID int, playerID string, lastN int) ([]domain.MarketValuePoint, error)

	// Performances returns the last lastN matchday records up to the next
	// upcoming matchday. teamID is the player's current team.
	Performances(ctx context.Context, competitionID int, playerID, teamID string, lastN int) ([]domain.Performance, error)
}
