package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kickbase-market-lab/internal/domain"
	"kickbase-market-lab/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
//
// Reloads are written to player_data_1d_staging and exchanged with
// player_data_1d, which requires an Atomic database engine.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// ReplaceAll fills the staging table and atomically exchanges it with player_data_1d.
func (s *ObservationStore) ReplaceAll(ctx context.Context, rows []*domain.Observation) error {
	if err := storage.ValidateObservations(rows); err != nil {
		return err
	}

	if err := s.conn.Exec(ctx, `TRUNCATE TABLE IF EXISTS player_data_1d_staging`); err != nil {
		return fmt.Errorf("truncate staging: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO player_data_1d_staging (
			player_id, team_id, team_name, first_name, last_name, position,
			md, date, p, mp, ppm, t1, t2, t1g, t2g, won, k, mv, competition_id
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.PlayerID, r.TeamID, r.TeamName, r.FirstName, r.LastName, int32(r.Position),
			r.Matchday, r.Date, r.Points, toNullableInt32(r.MinutesPlayed), r.PointsPerMin,
			r.Team1ID, r.Team2ID, toNullableInt32(r.Team1Goals), toNullableInt32(r.Team2Goals), toNullableInt8(r.Won),
			r.MatchToken, r.MarketValue, int32(r.CompetitionID),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	if err := s.conn.Exec(ctx, `EXCHANGE TABLES player_data_1d_staging AND player_data_1d`); err != nil {
		return fmt.Errorf("exchange staging with player_data_1d: %w", err)
	}

	// Staging now holds the previous table.
	if err := s.conn.Exec(ctx, `TRUNCATE TABLE player_data_1d_staging`); err != nil {
		return fmt.Errorf("truncate previous table: %w", err)
	}
	return nil
}

// GetAll retrieves every row ordered by player_id, date ASC.
func (s *ObservationStore) GetAll(ctx context.Context) ([]*domain.Observation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT player_id, team_id, team_name, first_name, last_name, position,
			md, date, p, mp, ppm, t1, t2, t1g, t2g, won, k, mv, competition_id
		FROM player_data_1d
		ORDER BY player_id, date
	`)
	if err != nil {
		return nil, fmt.Errorf("query player_data_1d: %w", err)
	}
	defer rows.Close()

	var result []*domain.Observation
	for rows.Next() {
		var (
			o                domain.Observation
			position, compID int32
			mp, t1g, t2g     *int32
			won              *int8
		)
		if err := rows.Scan(
			&o.PlayerID, &o.TeamID, &o.TeamName, &o.FirstName, &o.LastName, &position,
			&o.Matchday, &o.Date, &o.Points, &mp, &o.PointsPerMin,
			&o.Team1ID, &o.Team2ID, &t1g, &t2g, &won,
			&o.MatchToken, &o.MarketValue, &compID,
		); err != nil {
			return nil, fmt.Errorf("scan player_data_1d: %w", err)
		}
		o.Position = int(position)
		o.CompetitionID = int(compID)
		o.MinutesPlayed = fromNullableInt32(mp)
		o.Team1Goals = fromNullableInt32(t1g)
		o.Team2Goals = fromNullableInt32(t2g)
		if won != nil {
			o.Won = domain.Ptr(int(*won))
		}
		o.Date = domain.DateOf(o.Date)
		if o.Matchday != nil {
			md := domain.DateOf(*o.Matchday)
			o.Matchday = &md
		}
		result = append(result, &o)
	}
	return result, rows.Err()
}

// Summary reports the date coverage of player_data_1d.
func (s *ObservationStore) Summary(ctx context.Context, minSettledRows int) (*storage.Summary, error) {
	var (
		count      uint64
		unsettled  *time.Time
		settledDay time.Time
	)

	if err := s.conn.QueryRow(ctx, `
		SELECT count(), minOrNull(if(mv IS NULL, date, NULL)) FROM player_data_1d
	`).Scan(&count, &unsettled); err != nil {
		return nil, fmt.Errorf("summarize player_data_1d: %w", err)
	}

	summary := &storage.Summary{Rows: int(count)}
	if unsettled != nil {
		d := domain.DateOf(*unsettled)
		summary.EarliestUnsettled = &d
	}

	err := s.conn.QueryRow(ctx, `
		SELECT date FROM player_data_1d
		WHERE mv IS NOT NULL
		GROUP BY date
		HAVING count() >= ?
		ORDER BY date DESC
		LIMIT 1
	`, uint64(minSettledRows)).Scan(&settledDay)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return summary, nil
		}
		return nil, fmt.Errorf("query latest settled date: %w", err)
	}
	d := domain.DateOf(settledDay)
	summary.LatestSettled = &d
	return summary, nil
}

func toNullableInt32(v *int) *int32 {
	if v == nil {
		return nil
	}
	x := int32(*v)
	return &x
}

func toNullableInt8(v *int) *int8 {
	if v == nil {
		return nil
	}
	x := int8(*v)
	return &x
}

func fromNullableInt32(v *int32) *int {
	if v == nil {
		return nil
	}
	x := int(*v)
	return &x
}
