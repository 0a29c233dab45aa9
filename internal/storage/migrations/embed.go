package migrations

import "embed"

//go:embed postgres/*.sql clickhouse/*.sql sqlite/*.sql
var files embed.FS

// Dialect names a backend with its own migration directory.
type Dialect string

const (
	Postgres   Dialect = "postgres"
	ClickHouse Dialect = "clickhouse"
	SQLite     Dialect = "sqlite"
)
