// Package store is the sole owner of persistent state: every entity in
// internal/domain is read and written here, and the four claim
// primitives that make trigger dispatch safe under concurrency live on
// Store.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store wraps two handles onto the same SQLite file: a single-connection
// writer (SQLite serializes writers at the connection level, so
// SetMaxOpenConns(1) is the concurrency primitive here, standing in for
// the Postgres row locks the teacher relies on) and a multi-connection
// reader for concurrent lookups that don't need write access.
type Store struct {
	write *sql.DB
	read  *sql.DB
}

const busyTimeoutMS = 5000

// Open opens (creating if absent) the SQLite database at path, applies
// the schema, and runs the forward-only column migration.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", path, busyTimeoutMS)

	write, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open writer handle: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", dsn)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open reader handle: %w", err)
	}

	s := &Store{write: write, read: read}

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := write.ExecContext(ctx, string(schema)); err != nil {
		s.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close releases both underlying connection pools.
func (s *Store) Close() error {
	var firstErr error
	if err := s.write.Close(); err != nil {
		firstErr = err
	}
	if err := s.read.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Ping verifies the store is reachable, used by the readiness check.
func (s *Store) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

// migrate adds any column missing from a prior schema version. Additive
// only — it never drops a column, matching the original implementation's
// `Database.migrate()`.
func (s *Store) migrate(ctx context.Context) error {
	hasColumn := func(table, column string) (bool, error) {
		rows, err := s.write.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return false, err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				cid        int
				name       string
				ctype      string
				notnull    int
				dfltValue  any
				pk         int
			)
			if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
				return false, err
			}
			if name == column {
				return true, nil
			}
		}
		return false, rows.Err()
	}

	additions := []struct{ table, column, ddl string }{
		{"runs", "trigger", "ALTER TABLE runs ADD COLUMN trigger TEXT"},
		{"schedules", "cron", "ALTER TABLE schedules ADD COLUMN cron TEXT"},
		{"schedules", "tz", "ALTER TABLE schedules ADD COLUMN tz TEXT"},
	}
	for _, a := range additions {
		ok, err := hasColumn(a.table, a.column)
		if err != nil {
			return fmt.Errorf("inspect %s.%s: %w", a.table, a.column, err)
		}
		if ok {
			continue
		}
		if _, err := s.write.ExecContext(ctx, a.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", a.table, a.column, err)
		}
	}
	return nil
}

// nowUTC returns the current instant truncated to second precision with
// an explicit UTC offset, matching the store layout's timestamp format.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullableTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
