package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/fswatch"
)

type fileTriggerStore interface {
	ListFileTriggers(ctx context.Context) ([]domain.FileTrigger, error)
}

type triggerClock struct {
	lastChangeSeen       time.Time
	lastExecutedForChange time.Time
	lastExecTime         time.Time
}

// FileWatchSource polls the file-mutation oracle for every registered
// file trigger and applies a debounce + rate-cap before firing: a
// change must sit quiet for QuietPeriod, must not already have fired an
// execution, and the trigger's previous execution must be at least
// MinInterval in the past. These clocks are in-memory only and reset on
// restart by design — losing them only widens the coalescing window, it
// never breaks at-most-once (that guarantee lives in the claim
// primitives, which file-watch doesn't use).
type FileWatchSource struct {
	store       fileTriggerStore
	oracle      *fswatch.Oracle
	clocks      map[int64]*triggerClock
	quietPeriod time.Duration
	minInterval time.Duration
	log         *slog.Logger
}

func NewFileWatchSource(store fileTriggerStore, quietPeriod, minInterval time.Duration, log *slog.Logger) *FileWatchSource {
	return &FileWatchSource{
		store:       store,
		oracle:      fswatch.New(),
		clocks:      make(map[int64]*triggerClock),
		quietPeriod: quietPeriod,
		minInterval: minInterval,
		log:         log,
	}
}

// Label identifies this source in the trigger_poll_duration_seconds /
// trigger_events_emitted_total metrics.
func (s *FileWatchSource) Label() string { return "filewatch" }

func (s *FileWatchSource) Poll(ctx context.Context) ([]Event, error) {
	triggers, err := s.store.ListFileTriggers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list file triggers: %w", err)
	}

	now := time.Now()
	var events []Event
	for _, ft := range triggers {
		clock, ok := s.clocks[ft.ID]
		if !ok {
			clock = &triggerClock{}
			s.clocks[ft.ID] = clock
		}

		changed := s.oracle.Scan(ft.Path, ft.Recursive)
		if changed {
			clock.lastChangeSeen = now
		}

		if clock.lastChangeSeen.IsZero() {
			continue
		}
		if now.Sub(clock.lastChangeSeen) < s.quietPeriod {
			continue
		}
		if !clock.lastExecutedForChange.Before(clock.lastChangeSeen) {
			continue
		}
		if !clock.lastExecTime.IsZero() && now.Sub(clock.lastExecTime) < s.minInterval {
			continue
		}

		clock.lastExecTime = now
		clock.lastExecutedForChange = clock.lastChangeSeen

		events = append(events, Event{
			TriggerID: fmt.Sprintf("file:%d", ft.ID),
			ScriptID:  ft.ScriptID,
		})
	}
	return events, nil
}
