package migrations

import (
	"context"
	"fmt"

	"kickbase-market-lab/internal/storage/sqlite"
)

// RunSQLiteMigrations creates the player_data_1d schema in db.
func RunSQLiteMigrations(ctx context.Context, db *sqlite.DB) error {
	err := apply(ctx, SQLite, func(ctx context.Context, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return nil
}
