package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
)

func (s *Store) CreateOneShot(ctx context.Context, scriptID int64, runAt time.Time, tz *string) (*domain.OneShot, error) {
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO one_shots (script_id, run_at_utc, tz, fired_at_utc, created_at_utc) VALUES (?, ?, ?, NULL, ?)`,
		scriptID, formatTime(runAt), tz, formatTime(nowUTC()))
	if err != nil {
		return nil, fmt.Errorf("insert one-shot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("one-shot last insert id: %w", err)
	}
	return &domain.OneShot{ID: id, ScriptID: scriptID, RunAtUTC: runAt, TZ: tz}, nil
}

func (s *Store) ListOneShots(ctx context.Context, includeFired bool) ([]domain.OneShot, error) {
	query := `SELECT id, script_id, run_at_utc, tz, fired_at_utc FROM one_shots`
	if !includeFired {
		query += ` WHERE fired_at_utc IS NULL`
	}
	query += ` ORDER BY run_at_utc ASC`

	rows, err := s.read.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list one-shots: %w", err)
	}
	defer rows.Close()

	var out []domain.OneShot
	for rows.Next() {
		os, err := scanOneShot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *os)
	}
	return out, rows.Err()
}

func (s *Store) RemoveOneShot(ctx context.Context, id int64) error {
	res, err := s.write.ExecContext(ctx, `DELETE FROM one_shots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove one-shot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("one-shot rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOneShotNotFound
	}
	return nil
}

// ClaimDueOneShots atomically sets fired_at_utc = now on up to limit rows
// where fired_at_utc IS NULL AND run_at_utc <= now, returning the claimed
// rows. Two concurrent callers can never observe the same row unclaimed:
// the UPDATE...RETURNING is a single statement against the writer's
// single-connection handle, so SQLite serializes it the same way a
// Postgres FOR UPDATE SKIP LOCKED would.
func (s *Store) ClaimDueOneShots(ctx context.Context, now time.Time, limit int) ([]domain.OneShot, error) {
	nowStr := formatTime(now)
	rows, err := s.write.QueryContext(ctx, `
		UPDATE one_shots
		SET fired_at_utc = ?
		WHERE id IN (
			SELECT id FROM one_shots
			WHERE fired_at_utc IS NULL AND run_at_utc <= ?
			ORDER BY run_at_utc ASC
			LIMIT ?
		)
		RETURNING id, script_id, run_at_utc, tz, fired_at_utc
	`, nowStr, nowStr, limit)
	if err != nil {
		return nil, fmt.Errorf("claim due one-shots: %w", err)
	}
	defer rows.Close()

	var out []domain.OneShot
	for rows.Next() {
		os, err := scanOneShot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *os)
	}
	return out, rows.Err()
}

func scanOneShot(row scannable) (*domain.OneShot, error) {
	var (
		os         domain.OneShot
		tz         sql.NullString
		firedAt    sql.NullString
		runAtStr   string
	)
	if err := row.Scan(&os.ID, &os.ScriptID, &runAtStr, &tz, &firedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOneShotNotFound
		}
		return nil, fmt.Errorf("scan one-shot: %w", err)
	}
	runAt, err := parseTime(runAtStr)
	if err != nil {
		return nil, fmt.Errorf("parse one-shot run_at_utc: %w", err)
	}
	os.RunAtUTC = runAt
	if tz.Valid {
		v := tz.String
		os.TZ = &v
	}
	fa, err := nullableTime(firedAt)
	if err != nil {
		return nil, fmt.Errorf("parse one-shot fired_at_utc: %w", err)
	}
	os.FiredAtUTC = fa
	return &os, nil
}
