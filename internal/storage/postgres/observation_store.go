package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage"
)

var observationColumns = []string{
	"player_id", "team_id", "team_name", "first_name", "last_name", "position",
	"md", "date", "p", "mp", "ppm", "t1", "t2", "t1g", "t2g", "won", "k", "mv", "competition_id",
}

// ObservationStore implements storage.ObservationStore using PostgreSQL.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// ReplaceAll copies rows into a transaction-scoped staging table, then truncates
// player_data_1d and fills it from staging before committing.
func (s *ObservationStore) ReplaceAll(ctx context.Context, rows []*domain.Observation) error {
	if err := storage.ValidateObservations(rows); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		CREATE TEMP TABLE player_data_1d_staging
		(LIKE player_data_1d INCLUDING DEFAULTS) ON COMMIT DROP
	`); err != nil {
		return fmt.Errorf("create staging table: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"player_data_1d_staging"},
		observationColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{
				r.PlayerID, r.TeamID, r.TeamName, r.FirstName, r.LastName, r.Position,
				r.Matchday, r.Date, r.Points, r.MinutesPlayed, r.PointsPerMin,
				r.Team1ID, r.Team2ID, r.Team1Goals, r.Team2Goals, r.Won,
				r.MatchToken, r.MarketValue, r.CompetitionID,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copy into staging: %w", err)
	}
	if int(copied) != len(rows) {
		return fmt.Errorf("copy into staging: wrote %d of %d rows", copied, len(rows))
	}

	if _, err := tx.Exec(ctx, `TRUNCATE player_data_1d`); err != nil {
		return fmt.Errorf("truncate player_data_1d: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO player_data_1d SELECT * FROM player_data_1d_staging`); err != nil {
		return fmt.Errorf("swap staging into player_data_1d: %w", translateError(err))
	}

	return tx.Commit(ctx)
}

// GetAll retrieves every row ordered by player_id, date ASC.
func (s *ObservationStore) GetAll(ctx context.Context) ([]*domain.Observation, error) {
	query := `
		SELECT player_id, team_id, team_name, first_name, last_name, position,
			md, date, p, mp, ppm, t1, t2, t1g, t2g, won, k, mv, competition_id
		FROM player_data_1d
		ORDER BY player_id, date
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query player_data_1d: %w", err)
	}
	defer rows.Close()

	var result []*domain.Observation
	for rows.Next() {
		var o domain.Observation
		var won *int16
		if err := rows.Scan(
			&o.PlayerID, &o.TeamID, &o.TeamName, &o.FirstName, &o.LastName, &o.Position,
			&o.Matchday, &o.Date, &o.Points, &o.MinutesPlayed, &o.PointsPerMin,
			&o.Team1ID, &o.Team2ID, &o.Team1Goals, &o.Team2Goals, &won,
			&o.MatchToken, &o.MarketValue, &o.CompetitionID,
		); err != nil {
			return nil, fmt.Errorf("scan player_data_1d: %w", err)
		}
		if won != nil {
			o.Won = domain.Ptr(int(*won))
		}
		result = append(result, &o)
	}
	return result, rows.Err()
}

// Summary reports the date coverage of player_data_1d.
func (s *ObservationStore) Summary(ctx context.Context, minSettledRows int) (*storage.Summary, error) {
	summary := &storage.Summary{}

	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM player_data_1d),
			(SELECT MIN(date) FROM player_data_1d WHERE mv IS NULL),
			(SELECT date FROM player_data_1d
				WHERE mv IS NOT NULL
				GROUP BY date
				HAVING COUNT(*) >= $1
				ORDER BY date DESC
				LIMIT 1)
	`, minSettledRows).Scan(&summary.Rows, &summary.EarliestUnsettled, &summary.LatestSettled)
	if err := translateError(err); err != nil {
		return nil, fmt.Errorf("summarize player_data_1d: %w", err)
	}
	return summary, nil
}
