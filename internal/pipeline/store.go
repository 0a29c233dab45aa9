// Package pipeline wires configuration into a runnable orchestrator.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"kickbase-market-lab/internal/config"
	"kickbase-market-lab/internal/storage"
	chstore "kickbase-market-lab/internal/storage/clickhouse"
	"kickbase-market-lab/internal/storage/memory"
	"kickbase-market-lab/internal/storage/migrations"
	pgstore "kickbase-market-lab/internal/storage/postgres"
	sqlitestore "kickbase-market-lab/internal/storage/sqlite"
)

const connectTimeout = 15 * time.Second

// OpenStore connects the configured backend, applies migrations and returns
// the store with a function releasing its connections.
func OpenStore(ctx context.Context, cfg config.Storage) (storage.ObservationStore, func(), error) {
	switch cfg.Backend {
	case "memory":
		return memory.NewObservationStore(), func() {}, nil

	case "sqlite":
		db, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.RunSQLiteMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("sqlite migrations: %w", err)
		}
		return sqlitestore.NewObservationStore(db), func() { db.Close() }, nil

	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.WithConnectTimeout(connectTimeout))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		return pgstore.NewObservationStore(pool), pool.Close, nil

	case "clickhouse":
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		return chstore.NewObservationStore(conn), func() { conn.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
