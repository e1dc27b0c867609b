package trigger_test

import (
	"context"
	"testing"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/store"
	"github.com/mjarkko/scripter/internal/trigger"
)

type fakeEventBusStore struct {
	ready     []store.ReadyDelivery
	processed []int64
}

func (s *fakeEventBusStore) ClaimReadyDeliveries(ctx context.Context, owner string, limit int) ([]store.ReadyDelivery, error) {
	if len(s.ready) > limit {
		claimed := s.ready[:limit]
		s.ready = s.ready[limit:]
		return claimed, nil
	}
	claimed := s.ready
	s.ready = nil
	return claimed, nil
}

func (s *fakeEventBusStore) MarkDeliveryProcessed(ctx context.Context, deliveryID int64) error {
	s.processed = append(s.processed, deliveryID)
	return nil
}

func TestEventBusSource_EmitsOneEventPerClaim(t *testing.T) {
	fake := &fakeEventBusStore{ready: []store.ReadyDelivery{
		{DeliveryID: 1, EventID: 10, ScriptID: 3, Topic: "deploy.finished"},
		{DeliveryID: 2, EventID: 11, ScriptID: 4, Topic: "deploy.finished"},
	}}
	src := trigger.NewEventBusSource(fake, "owner-1", 10, discardLogger())

	events, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two events, got %+v", events)
	}
	if events[0].TriggerID != "event:deploy.finished" || events[0].ScriptID != 3 {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
}

func TestEventBusSource_OnFinishedMarksDeliveryProcessed(t *testing.T) {
	fake := &fakeEventBusStore{ready: []store.ReadyDelivery{
		{DeliveryID: 7, EventID: 20, ScriptID: 3, Topic: "deploy.finished"},
	}}
	src := trigger.NewEventBusSource(fake, "owner-1", 10, discardLogger())

	events, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(events) != 1 || events[0].OnFinished == nil {
		t.Fatalf("expected one event with an OnFinished hook, got %+v", events)
	}

	events[0].OnFinished(domain.RunStatusSuccess, 99)

	if len(fake.processed) != 1 || fake.processed[0] != 7 {
		t.Fatalf("expected delivery 7 to be marked processed, got %+v", fake.processed)
	}
}

func TestEventBusSource_ClaimedDeliveryNotReclaimedBeforeProcessed(t *testing.T) {
	fake := &fakeEventBusStore{ready: []store.ReadyDelivery{
		{DeliveryID: 1, EventID: 10, ScriptID: 3, Topic: "deploy.finished"},
	}}
	src := trigger.NewEventBusSource(fake, "owner-1", 10, discardLogger())

	first, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected one event on first poll, got %+v", first)
	}

	second, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("claimed delivery should not be claimable again until processed, got %+v", second)
	}
}
