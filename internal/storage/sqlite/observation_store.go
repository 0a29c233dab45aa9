package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage"
)

const observationColumns = `player_id, team_id, team_name, first_name, last_name, position,
	md, date, p, mp, ppm, t1, t2, t1g, t2g, won, k, mv, competition_id`

// ObservationStore implements storage.ObservationStore on SQLite.
type ObservationStore struct {
	db *DB
}

// NewObservationStore creates a new SQLite observation store.
func NewObservationStore(db *DB) *ObservationStore {
	return &ObservationStore{db: db}
}

// ReplaceAll loads rows into a temp staging table and swaps them into
// player_data_1d inside one transaction.
func (s *ObservationStore) ReplaceAll(ctx context.Context, rows []*domain.Observation) error {
	if err := storage.ValidateObservations(rows); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS temp.player_data_1d_staging`); err != nil {
		return fmt.Errorf("drop staging: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`CREATE TEMP TABLE player_data_1d_staging AS SELECT * FROM main.player_data_1d WHERE 0`); err != nil {
		return fmt.Errorf("create staging: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO temp.player_data_1d_staging (`+observationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare staging insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx,
			r.PlayerID, r.TeamID, r.TeamName, r.FirstName, r.LastName, r.Position,
			formatDatePtr(r.Matchday), r.Date.Format(time.DateOnly),
			r.Points, r.MinutesPlayed, r.PointsPerMin,
			r.Team1ID, r.Team2ID, r.Team1Goals, r.Team2Goals, r.Won,
			r.MatchToken, r.MarketValue, r.CompetitionID,
		)
		if err != nil {
			return fmt.Errorf("stage player %s: %w", r.PlayerID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM main.player_data_1d`); err != nil {
		return fmt.Errorf("clear player_data_1d: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO main.player_data_1d (`+observationColumns+`)
		SELECT `+observationColumns+` FROM temp.player_data_1d_staging`); err != nil {
		return fmt.Errorf("swap staging into player_data_1d: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DROP TABLE temp.player_data_1d_staging`); err != nil {
		return fmt.Errorf("drop staging: %w", err)
	}

	return tx.Commit()
}

// GetAll retrieves every row ordered by player_id, date ASC.
func (s *ObservationStore) GetAll(ctx context.Context) ([]*domain.Observation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+observationColumns+` FROM player_data_1d ORDER BY player_id, date`)
	if err != nil {
		return nil, fmt.Errorf("query player_data_1d: %w", err)
	}
	defer rows.Close()

	var result []*domain.Observation
	for rows.Next() {
		var (
			o    domain.Observation
			md   *string
			date string
		)
		if err := rows.Scan(
			&o.PlayerID, &o.TeamID, &o.TeamName, &o.FirstName, &o.LastName, &o.Position,
			&md, &date, &o.Points, &o.MinutesPlayed, &o.PointsPerMin,
			&o.Team1ID, &o.Team2ID, &o.Team1Goals, &o.Team2Goals, &o.Won,
			&o.MatchToken, &o.MarketValue, &o.CompetitionID,
		); err != nil {
			return nil, fmt.Errorf("scan player_data_1d: %w", err)
		}
		if o.Date, err = time.Parse(time.DateOnly, date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if o.Matchday, err = parseDatePtr(md); err != nil {
			return nil, err
		}
		result = append(result, &o)
	}
	return result, rows.Err()
}

// Summary reports the date coverage of player_data_1d.
func (s *ObservationStore) Summary(ctx context.Context, minSettledRows int) (*storage.Summary, error) {
	summary := &storage.Summary{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM player_data_1d`).Scan(&summary.Rows); err != nil {
		return nil, fmt.Errorf("count player_data_1d: %w", err)
	}

	var unsettled *string
	err := s.db.QueryRowContext(ctx,
		`SELECT date FROM player_data_1d WHERE mv IS NULL ORDER BY date ASC LIMIT 1`).Scan(&unsettled)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query earliest unsettled date: %w", err)
	}
	if summary.EarliestUnsettled, err = parseDatePtr(unsettled); err != nil {
		return nil, err
	}

	var settled *string
	err = s.db.QueryRowContext(ctx, `
		SELECT date FROM player_data_1d
		WHERE mv IS NOT NULL
		GROUP BY date
		HAVING COUNT(*) >= ?
		ORDER BY date DESC
		LIMIT 1`, minSettledRows).Scan(&settled)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("query latest settled date: %w", err)
	}
	if summary.LatestSettled, err = parseDatePtr(settled); err != nil {
		return nil, err
	}

	return summary, nil
}

func formatDatePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func parseDatePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", *s, err)
	}
	return &t, nil
}

var _ storage.ObservationStore = (*ObservationStore)(nil)
