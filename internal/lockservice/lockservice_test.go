package lockservice_test

import (
	"context"
	"testing"

	"github.com/mjarkko/scripter/internal/lockservice"
)

type fakeStore struct {
	held map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{held: make(map[string]string)}
}

func (s *fakeStore) InsertLock(ctx context.Context, key, owner string) (bool, error) {
	if _, ok := s.held[key]; ok {
		return false, nil
	}
	s.held[key] = owner
	return true, nil
}

func (s *fakeStore) DeleteLock(ctx context.Context, key, owner string) error {
	if s.held[key] != owner {
		return nil
	}
	delete(s.held, key)
	return nil
}

func TestTryAcquire_SecondCallerLoses(t *testing.T) {
	store := newFakeStore()
	svc := lockservice.New(store)
	ctx := context.Background()

	ok, err := svc.TryAcquire(ctx, "script:1", "host-a:100")
	if err != nil || !ok {
		t.Fatalf("first acquire should succeed: ok=%v err=%v", ok, err)
	}

	ok, err = svc.TryAcquire(ctx, "script:1", "host-b:200")
	if err != nil || ok {
		t.Fatalf("second acquire should lose the race: ok=%v err=%v", ok, err)
	}
}

func TestRelease_ThenReacquireSucceeds(t *testing.T) {
	store := newFakeStore()
	svc := lockservice.New(store)
	ctx := context.Background()

	owner := "host-a:100"
	if ok, _ := svc.TryAcquire(ctx, "script:1", owner); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if err := svc.Release(ctx, "script:1", owner); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err := svc.TryAcquire(ctx, "script:1", "host-b:200")
	if err != nil || !ok {
		t.Fatalf("acquire after release should succeed: ok=%v err=%v", ok, err)
	}
}

func TestRelease_WrongOwnerDoesNotStealLock(t *testing.T) {
	store := newFakeStore()
	svc := lockservice.New(store)
	ctx := context.Background()

	if ok, _ := svc.TryAcquire(ctx, "script:1", "host-a:100"); !ok {
		t.Fatalf("first acquire should succeed")
	}
	if err := svc.Release(ctx, "script:1", "host-b:999"); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err := svc.TryAcquire(ctx, "script:1", "host-c:300")
	if err != nil || ok {
		t.Fatalf("lock should still be held by the original owner: ok=%v err=%v", ok, err)
	}
}

func TestScriptLockKey(t *testing.T) {
	if got, want := lockservice.ScriptLockKey(42), "script:42"; got != want {
		t.Fatalf("ScriptLockKey(42) = %q, want %q", got, want)
	}
}

func TestOwnerID_NonEmpty(t *testing.T) {
	if id := lockservice.OwnerID(); id == "" {
		t.Fatalf("OwnerID() returned empty string")
	}
}
