package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mjarkko/scripter/internal/cronexpr"
	"github.com/mjarkko/scripter/internal/domain"
)

func (s *Store) CreateIntervalSchedule(ctx context.Context, scriptID, intervalSeconds int64) (*domain.Schedule, error) {
	now := nowUTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO schedules (script_id, interval_seconds, cron, tz, last_run, created_at) VALUES (?, ?, NULL, NULL, NULL, ?)`,
		scriptID, intervalSeconds, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert interval schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("schedule last insert id: %w", err)
	}
	return &domain.Schedule{ID: id, ScriptID: scriptID, IntervalSeconds: &intervalSeconds, CreatedAt: now}, nil
}

// CreateCronSchedule rejects a malformed cron expression at the
// boundary rather than storing it and failing later when a schedule
// source tries to evaluate it.
func (s *Store) CreateCronSchedule(ctx context.Context, scriptID int64, cron string, tz *string) (*domain.Schedule, error) {
	if err := cronexpr.Validate(cron); err != nil {
		return nil, err
	}

	now := nowUTC()
	res, err := s.write.ExecContext(ctx,
		`INSERT INTO schedules (script_id, interval_seconds, cron, tz, last_run, created_at) VALUES (?, NULL, ?, ?, NULL, ?)`,
		scriptID, cron, tz, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert cron schedule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("schedule last insert id: %w", err)
	}
	return &domain.Schedule{ID: id, ScriptID: scriptID, Cron: &cron, TZ: tz, CreatedAt: now}, nil
}

// ListSchedules returns every schedule, unfiltered — the CLI's `schedule
// list` command applies any filtering it needs on the result.
func (s *Store) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, script_id, interval_seconds, cron, tz, last_run, created_at FROM schedules ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sch)
	}
	return out, rows.Err()
}

// MarkScheduleRun sets last_run = now; the de-duplicator a schedule
// source applies to every row it judges due, before emitting its event.
func (s *Store) MarkScheduleRun(ctx context.Context, id int64, now time.Time) error {
	if _, err := s.write.ExecContext(ctx, `UPDATE schedules SET last_run = ? WHERE id = ?`, formatTime(now), id); err != nil {
		return fmt.Errorf("mark schedule run: %w", err)
	}
	return nil
}

func scanSchedule(row scannable) (*domain.Schedule, error) {
	var (
		sch             domain.Schedule
		intervalSeconds sql.NullInt64
		cron            sql.NullString
		tz              sql.NullString
		lastRun         sql.NullString
		createdAt       string
	)
	if err := row.Scan(&sch.ID, &sch.ScriptID, &intervalSeconds, &cron, &tz, &lastRun, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrScheduleNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	if intervalSeconds.Valid {
		v := intervalSeconds.Int64
		sch.IntervalSeconds = &v
	}
	if cron.Valid {
		v := cron.String
		sch.Cron = &v
	}
	if tz.Valid {
		v := tz.String
		sch.TZ = &v
	}
	lr, err := nullableTime(lastRun)
	if err != nil {
		return nil, fmt.Errorf("parse schedule last_run: %w", err)
	}
	sch.LastRun = lr
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse schedule created_at: %w", err)
	}
	sch.CreatedAt = t
	return &sch, nil
}
