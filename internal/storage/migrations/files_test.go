package migrations

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	sql := `-- header comment
CREATE TABLE a (x Int32);

-- second
CREATE TABLE b AS a;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x Int32)", stmts[0])
	assert.Equal(t, "CREATE TABLE b AS a", stmts[1])
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings("SELECT 'it''s'; SELECT 1;"))
	assert.Error(t, validateNoSemicolonInStrings("SELECT 'a;b';"))
}

func TestReadMigrations_OrderAndSkipsEmpty(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/002_index.sql":   {Data: []byte("CREATE INDEX i ON t (x);")},
		"sqlite/001_table.sql":   {Data: []byte("-- table\nCREATE TABLE t (x INTEGER);")},
		"sqlite/000_empty.sql":   {Data: []byte("-- nothing yet\n")},
		"sqlite/readme.txt":      {Data: []byte("ignored")},
		"postgres/001_other.sql": {Data: []byte("SELECT 1;")},
	}

	ms, err := readMigrations(fsys, SQLite)
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "001_table.sql", ms[0].name)
	assert.Equal(t, []string{"CREATE TABLE t (x INTEGER)"}, ms[0].statements)
	assert.Equal(t, "002_index.sql", ms[1].name)
}

func TestReadMigrations_RejectsSemicolonInLiteral(t *testing.T) {
	fsys := fstest.MapFS{"sqlite/001.sql": {Data: []byte("INSERT INTO t VALUES ('a;b');")}}
	_, err := readMigrations(fsys, SQLite)
	assert.Error(t, err)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	for _, d := range []Dialect{Postgres, SQLite, ClickHouse} {
		ms, err := readMigrations(files, d)
		require.NoError(t, err, d)
		require.NotEmpty(t, ms, d)
		assert.Contains(t, ms[0].statements[0], "player_data_1d", d)
	}
}

func TestApply_StopsAtFirstError(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	err := apply(context.Background(), ClickHouse, func(_ context.Context, stmt string) error {
		ran = append(ran, stmt)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ran, 1)
}
