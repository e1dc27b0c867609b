package scheduler_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/lockservice"
	"github.com/mjarkko/scripter/internal/runservice"
	"github.com/mjarkko/scripter/internal/scheduler"
	"github.com/mjarkko/scripter/internal/trigger"
)

type fakeLockStore struct {
	held map[string]string
}

func (s *fakeLockStore) InsertLock(ctx context.Context, key, owner string) (bool, error) {
	if s.held == nil {
		s.held = make(map[string]string)
	}
	if _, ok := s.held[key]; ok {
		return false, nil
	}
	s.held[key] = owner
	return true, nil
}

func (s *fakeLockStore) DeleteLock(ctx context.Context, key, owner string) error {
	delete(s.held, key)
	return nil
}

// fakeRunStore is shared across tests that dispatch through the real
// scheduler.Loop, which since the bounded worker pool may invoke it
// concurrently from more than one goroutine — hence the mutex. It also
// tracks how many runs are open between CreateRunningRun and FinishRun,
// which lets tests assert the worker pool's semaphore actually bounds
// how many executions overlap.
type fakeRunStore struct {
	mu        sync.Mutex
	scripts   map[int64]domain.Script
	nextID    int64
	active    int
	maxActive int
}

func newFakeRunStore(scripts ...domain.Script) *fakeRunStore {
	s := &fakeRunStore{scripts: make(map[int64]domain.Script)}
	for _, sc := range scripts {
		s.scripts[sc.ID] = sc
	}
	return s
}

func (s *fakeRunStore) GetScript(ctx context.Context, id int64) (*domain.Script, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.scripts[id]
	if !ok {
		return nil, domain.ErrScriptNotFound
	}
	return &sc, nil
}

func (s *fakeRunStore) CreateRunningRun(ctx context.Context, scriptID int64, trig string) (*domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	return &domain.Run{ID: s.nextID, ScriptID: scriptID, Status: domain.RunStatusRunning, Trigger: trig}, nil
}

func (s *fakeRunStore) FinishRun(ctx context.Context, id int64, status domain.RunStatus, exitCode *int, stdout, stderr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active--
	return nil
}

type recordingSource struct {
	id     string
	events []trigger.Event
	polls  int
	order  *[]string
}

func (s *recordingSource) Poll(ctx context.Context) ([]trigger.Event, error) {
	s.polls++
	if s.order != nil {
		*s.order = append(*s.order, s.id)
	}
	ev := s.events
	s.events = nil
	return ev, nil
}

type erroringSource struct{ polled bool }

func (s *erroringSource) Poll(ctx context.Context) ([]trigger.Event, error) {
	s.polled = true
	return nil, context.DeadlineExceeded
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestLoop_OnceModeReturnsAfterSinglePass(t *testing.T) {
	store := newFakeRunStore(domain.Script{ID: 1, Command: "true"})
	locks := lockservice.New(&fakeLockStore{})
	runs := runservice.New(store, locks, "owner-1", time.Second, discardLogger())

	src := &recordingSource{id: "a", events: []trigger.Event{{ScriptID: 1, TriggerID: "schedule:1"}}}
	loop := scheduler.NewLoop([]trigger.Source{src}, runs, time.Hour, 1, discardLogger())

	if err := loop.Run(context.Background(), true); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if src.polls != 1 {
		t.Fatalf("expected exactly one poll in once-mode, got %d", src.polls)
	}
}

func TestLoop_PollsSourcesInFixedOrder(t *testing.T) {
	store := newFakeRunStore(domain.Script{ID: 1, Command: "true"})
	locks := lockservice.New(&fakeLockStore{})
	runs := runservice.New(store, locks, "owner-1", time.Second, discardLogger())

	var order []string
	first := &recordingSource{id: "first", order: &order}
	second := &recordingSource{id: "second", order: &order}
	loop := scheduler.NewLoop([]trigger.Source{first, second}, runs, time.Hour, 1, discardLogger())

	if err := loop.Run(context.Background(), true); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if first.polls != 1 || second.polls != 1 {
		t.Fatalf("expected both sources polled exactly once, got first=%d second=%d", first.polls, second.polls)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected poll order [first second], got %v", order)
	}
}

func TestLoop_SourceErrorDoesNotAbortRemainingSources(t *testing.T) {
	store := newFakeRunStore(domain.Script{ID: 1, Command: "true"})
	locks := lockservice.New(&fakeLockStore{})
	runs := runservice.New(store, locks, "owner-1", time.Second, discardLogger())

	bad := &erroringSource{}
	good := &recordingSource{id: "good", events: []trigger.Event{{ScriptID: 1, TriggerID: "schedule:1"}}}
	loop := scheduler.NewLoop([]trigger.Source{bad, good}, runs, time.Hour, 1, discardLogger())

	if err := loop.Run(context.Background(), true); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if !bad.polled {
		t.Fatalf("expected the erroring source to be polled")
	}
	if good.polls != 1 {
		t.Fatalf("expected the source after the erroring one to still be polled")
	}
}

// TestLoop_ConcurrencyNeverExceedsLimit runs distinct scripts under a
// small concurrency cap and asserts the bounded worker pool never lets
// more than `limit` executions overlap.
func TestLoop_ConcurrencyNeverExceedsLimit(t *testing.T) {
	const scripts = 6
	const limit = 2

	sc := make([]domain.Script, scripts)
	events := make([]trigger.Event, scripts)
	for i := range sc {
		sc[i] = domain.Script{ID: int64(i + 1), Command: "sleep 0.05"}
		events[i] = trigger.Event{ScriptID: sc[i].ID, TriggerID: "schedule:test"}
	}

	store := newFakeRunStore(sc...)
	locks := lockservice.New(&fakeLockStore{})
	runs := runservice.New(store, locks, "owner-1", time.Second, discardLogger())

	src := &recordingSource{id: "a", events: events}
	loop := scheduler.NewLoop([]trigger.Source{src}, runs, time.Hour, limit, discardLogger())

	if err := loop.Run(context.Background(), true); err != nil {
		t.Fatalf("run once: %v", err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	// All six scripts ran (each got its own run id), proving the pool
	// drained the whole batch rather than dropping anything once the
	// semaphore filled up.
	if store.nextID != scripts {
		t.Fatalf("expected %d runs created, got %d", scripts, store.nextID)
	}
	if store.maxActive > limit {
		t.Fatalf("expected at most %d concurrent runs, saw %d", limit, store.maxActive)
	}
}
