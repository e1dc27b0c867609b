package trigger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/store"
)

type eventBusStore interface {
	ClaimReadyDeliveries(ctx context.Context, owner string, limit int) ([]store.ReadyDelivery, error)
	MarkDeliveryProcessed(ctx context.Context, deliveryID int64) error
}

// EventBusSource claims ready deliveries and emits one event per claim.
// Processing is not marked until the run it causes terminates — the run
// service's onFinished hook calls MarkDeliveryProcessed, closing the
// claimed -> processed transition. A crash between claim and process
// leaves the delivery claimed by a dead owner forever; recovering that
// requires operator intervention or a future sweeper, same open
// question the original left unresolved.
type EventBusSource struct {
	store eventBusStore
	owner string
	limit int
	log   *slog.Logger
}

func NewEventBusSource(s eventBusStore, owner string, limit int, log *slog.Logger) *EventBusSource {
	if limit <= 0 {
		limit = 50
	}
	return &EventBusSource{store: s, owner: owner, limit: limit, log: log}
}

// Label identifies this source in the trigger_poll_duration_seconds /
// trigger_events_emitted_total metrics.
func (s *EventBusSource) Label() string { return "eventbus" }

func (s *EventBusSource) Poll(ctx context.Context) ([]Event, error) {
	deliveries, err := s.store.ClaimReadyDeliveries(ctx, s.owner, s.limit)
	if err != nil {
		return nil, fmt.Errorf("claim ready deliveries: %w", err)
	}

	events := make([]Event, 0, len(deliveries))
	for _, d := range deliveries {
		deliveryID := d.DeliveryID
		events = append(events, Event{
			TriggerID: fmt.Sprintf("event:%s", d.Topic),
			ScriptID:  d.ScriptID,
			OnFinished: func(status domain.RunStatus, runID int64) {
				if err := s.store.MarkDeliveryProcessed(ctx, deliveryID); err != nil {
					s.log.Error("event bus source: mark delivery processed failed", "delivery_id", deliveryID, "run_id", runID, "error", err)
				}
			},
		})
	}
	return events, nil
}
