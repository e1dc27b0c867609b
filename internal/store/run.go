package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mjarkko/scripter/internal/domain"
)

// CreateRunningRun inserts a run row in the running state, the first
// step of the run service's execute algorithm.
func (s *Store) CreateRunningRun(ctx context.Context, scriptID int64, trigger string) (*domain.Run, error) {
	now := nowUTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO runs (script_id, status, started_at, trigger) VALUES (?, ?, ?, ?)`,
		scriptID, domain.RunStatusRunning, formatTime(now), trigger)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run last insert id: %w", err)
	}
	return &domain.Run{ID: id, ScriptID: scriptID, Status: domain.RunStatusRunning, StartedAt: now, Trigger: trigger}, nil
}

// FinishRun sets the terminal status, finished_at, exit code and
// captured output. Must be called exactly once per run.
func (s *Store) FinishRun(ctx context.Context, id int64, status domain.RunStatus, exitCode *int, stdout, stderr string) error {
	now := formatTime(nowUTC())
	if _, err := s.write.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, exit_code = ?, stdout = ?, stderr = ? WHERE id = ?`,
		status, now, exitCode, stdout, stderr, id); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id int64) (*domain.Run, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT id, script_id, status, started_at, finished_at, exit_code, stdout, stderr, trigger FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs newest-first, optionally filtered by script id,
// bounded by limit (0 means unbounded).
func (s *Store) ListRuns(ctx context.Context, scriptID int64, limit int) ([]domain.Run, error) {
	query := `SELECT id, script_id, status, started_at, finished_at, exit_code, stdout, stderr, trigger FROM runs`
	var args []any
	if scriptID != 0 {
		query += ` WHERE script_id = ?`
		args = append(args, scriptID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []domain.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ClearRuns deletes all run history. Supplements the CLI's `runs clear`.
func (s *Store) ClearRuns(ctx context.Context) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM runs`); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}

// CountRunningByScript returns how many runs of script scriptID are
// currently in the running state. The run service does not call it; it
// relies on the lock, not a count.
func (s *Store) CountRunningByScript(ctx context.Context, scriptID int64) (int, error) {
	var n int
	row := s.read.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE script_id = ? AND status = ?`, scriptID, domain.RunStatusRunning)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count running runs: %w", err)
	}
	return n, nil
}

func scanRun(row scannable) (*domain.Run, error) {
	var (
		r          domain.Run
		startedAt  sql.NullString
		finishedAt sql.NullString
		exitCode   sql.NullInt64
		stdout     sql.NullString
		stderr     sql.NullString
		trigger    sql.NullString
	)
	if err := row.Scan(&r.ID, &r.ScriptID, &r.Status, &startedAt, &finishedAt, &exitCode, &stdout, &stderr, &trigger); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	if startedAt.Valid {
		t, err := parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse run started_at: %w", err)
		}
		r.StartedAt = t
	}
	fa, err := nullableTime(finishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse run finished_at: %w", err)
	}
	r.FinishedAt = fa
	if exitCode.Valid {
		v := int(exitCode.Int64)
		r.ExitCode = &v
	}
	r.Stdout = stdout.String
	r.Stderr = stderr.String
	r.Trigger = trigger.String
	return &r, nil
}
