package trigger

import (
	"context"
	"fmt"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
)

type oneShotStore interface {
	ClaimDueOneShots(ctx context.Context, now time.Time, limit int) ([]domain.OneShot, error)
}

// OneShotSource claims due one-shots atomically; the UPDATE...RETURNING
// behind ClaimDueOneShots is what guarantees at-most-once under
// concurrent pollers.
type OneShotSource struct {
	store oneShotStore
	limit int
}

func NewOneShotSource(store oneShotStore, limit int) *OneShotSource {
	if limit <= 0 {
		limit = 50
	}
	return &OneShotSource{store: store, limit: limit}
}

// Label identifies this source in the trigger_poll_duration_seconds /
// trigger_events_emitted_total metrics.
func (s *OneShotSource) Label() string { return "oneshot" }

func (s *OneShotSource) Poll(ctx context.Context) ([]Event, error) {
	claimed, err := s.store.ClaimDueOneShots(ctx, time.Now().UTC(), s.limit)
	if err != nil {
		return nil, fmt.Errorf("claim due one-shots: %w", err)
	}

	events := make([]Event, 0, len(claimed))
	for _, os := range claimed {
		events = append(events, Event{
			TriggerID: fmt.Sprintf("oneshot:%d", os.ID),
			ScriptID:  os.ScriptID,
		})
	}
	return events, nil
}
