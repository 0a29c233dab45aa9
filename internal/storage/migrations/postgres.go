package migrations

import (
	"context"
	"fmt"

	"kickbase-market-lab/internal/storage/postgres"
)

// RunPostgresMigrations creates the player_data_1d schema through pool.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	err := apply(ctx, Postgres, func(ctx context.Context, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	return nil
}
