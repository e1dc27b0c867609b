package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mjarkko/scripter/internal/cronexpr"
	"github.com/mjarkko/scripter/internal/domain"
)

type scheduleStore interface {
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	MarkScheduleRun(ctx context.Context, id int64, now time.Time) error
}

// ScheduleSource evaluates every interval/cron schedule row each tick.
// A row is due when its interval has elapsed or its cron expression's
// next fire time (computed from last_run, or now-1m if never run) has
// passed. last_run is advanced to now before the event is emitted —
// that write is the de-duplicator against the next tick picking up the
// same fire.
type ScheduleSource struct {
	store scheduleStore
	log   *slog.Logger
}

func NewScheduleSource(store scheduleStore, log *slog.Logger) *ScheduleSource {
	return &ScheduleSource{store: store, log: log}
}

// Label identifies this source in the trigger_poll_duration_seconds /
// trigger_events_emitted_total metrics.
func (s *ScheduleSource) Label() string { return "schedule" }

func (s *ScheduleSource) Poll(ctx context.Context) ([]Event, error) {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}

	now := time.Now().UTC()
	var events []Event
	for _, sch := range schedules {
		due, err := s.isDue(sch, now)
		if err != nil {
			s.log.Warn("schedule source: skipping row", "schedule_id", sch.ID, "error", err)
			continue
		}
		if !due {
			continue
		}
		if err := s.store.MarkScheduleRun(ctx, sch.ID, now); err != nil {
			s.log.Warn("schedule source: mark run failed", "schedule_id", sch.ID, "error", err)
			continue
		}
		events = append(events, Event{
			TriggerID: fmt.Sprintf("schedule:%d", sch.ID),
			ScriptID:  sch.ScriptID,
		})
	}
	return events, nil
}

func (s *ScheduleSource) isDue(sch domain.Schedule, now time.Time) (bool, error) {
	if sch.IntervalSeconds != nil {
		if sch.LastRun == nil {
			return true, nil
		}
		return !now.Before(sch.LastRun.Add(time.Duration(*sch.IntervalSeconds) * time.Second)), nil
	}

	if sch.Cron == nil {
		return false, fmt.Errorf("schedule has neither interval_seconds nor cron")
	}

	tz := ""
	if sch.TZ != nil {
		tz = *sch.TZ
	}

	base := now.Add(-time.Minute)
	if sch.LastRun != nil {
		base = *sch.LastRun
	}

	next, err := cronexpr.NextAfter(*sch.Cron, tz, base)
	if err != nil {
		return false, err
	}
	return !next.After(now), nil
}
