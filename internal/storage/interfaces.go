package storage

import (
	"context"
	"time"

	"kickbase-market-lab/internal/domain"
)

// ObservationStore provides access to the player_data_1d table.
//
// The table is only ever replaced wholesale. Implementations stage the new rows
// first and swap them in as a single step so that a failed reload leaves the
// previous table readable.
type ObservationStore interface {
	// ReplaceAll stages rows and swaps them in as the new table.
	// Returns ErrInvalidInput for rows without player id or date and
	// ErrDuplicateKey when (player_id, date) repeats. The stored table is
	// unchanged on any error.
	ReplaceAll(ctx context.Context, rows []*domain.Observation) error

	// GetAll retrieves every row ordered by player_id, date ASC.
	GetAll(ctx context.Context) ([]*domain.Observation, error)

	// Summary reports the date coverage of the stored table.
	// minSettledRows is the number of rows with a market value a date needs
	// before it counts as settled for the whole competition.
	Summary(ctx context.Context, minSettledRows int) (*Summary, error)
}

// Summary describes the date coverage of the stored observation table.
type Summary struct {
	Rows int
	// EarliestUnsettled is the first date with a NULL market value, nil if none.
	EarliestUnsettled *time.Time
	// LatestSettled is the last date with at least minSettledRows market values, nil if none.
	LatestSettled *time.Time
}

// ValidateObservations checks rows before they are staged.
func ValidateObservations(rows []*domain.Observation) error {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		if r == nil || r.PlayerID == "" || r.Date.IsZero() {
			return ErrInvalidInput
		}
		key := ObservationKey(r.PlayerID, r.Date)
		if _, ok := seen[key]; ok {
			return ErrDuplicateKey
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ObservationKey is the unique key of a stored row.
func ObservationKey(playerID string, date time.Time) string {
	return playerID + "|" + date.Format(time.DateOnly)
}
