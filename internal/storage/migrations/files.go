package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// migration is one embedded SQL file split into statements.
type migration struct {
	name       string
	statements []string
}

// execFunc runs a single statement on a backend.
type execFunc func(ctx context.Context, stmt string) error

// apply runs every statement of d in file order and stops at the first error.
// Statements must be idempotent since nothing records applied files.
func apply(ctx context.Context, d Dialect, exec execFunc) error {
	ms, err := readMigrations(files, d)
	if err != nil {
		return err
	}
	for _, m := range ms {
		for i, stmt := range m.statements {
			if err := exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply %s statement %d: %w", m.name, i+1, err)
			}
		}
	}
	return nil
}

// readMigrations returns the non-empty .sql files of d in lexical order.
func readMigrations(fsys fs.FS, d Dialect) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(string(d), "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", d, err)
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", name, err)
		}
		stmts := splitStatements(string(data))
		if len(stmts) == 0 {
			continue
		}
		out = append(out, migration{name: path.Base(name), statements: stmts})
	}
	return out, nil
}

// splitStatements drops -- comment lines and splits on semicolons.
// Literals are not parsed; validateNoSemicolonInStrings guards that.
func splitStatements(input string) []string {
	var b strings.Builder
	for _, line := range strings.Split(input, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var stmts []string
	for _, part := range strings.Split(b.String(), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects a semicolon inside a single-quoted literal.
func validateNoSemicolonInStrings(sql string) error {
	quoted := false
	for i := 0; i < len(sql); i++ {
		switch sql[i] {
		case '\'':
			if quoted && i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			quoted = !quoted
		case ';':
			if quoted {
				return fmt.Errorf("semicolon inside string literal at offset %d", i)
			}
		}
	}
	return nil
}
