package migrations

import (
	"context"
	"fmt"

	chstore "kickbase-market-lab/internal/storage/clickhouse"
)

// RunClickhouseMigrations creates the database named in dsn when missing,
// applies the schema and returns a connection to that database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (*chstore.Conn, error) {
	database, err := chstore.DatabaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	if err := createDatabase(ctx, dsn, database); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConn(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse %s: %w", database, err)
	}
	// The native protocol takes one statement per Exec.
	err = apply(ctx, ClickHouse, func(ctx context.Context, stmt string) error {
		return conn.Exec(ctx, stmt)
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse: %w", err)
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, database string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "default")
	if err != nil {
		return fmt.Errorf("connect clickhouse default database: %w", err)
	}
	defer admin.Close()

	if err := admin.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", database)); err != nil {
		return fmt.Errorf("create database %s: %w", database, err)
	}
	return nil
}
