// Package lockservice provides the named mutex the run service uses to
// guarantee at most one execution per script at a time. It is a thin
// wrapper over the store's lock primitives — the core does not
// interpret the owner string, it only compares it for equality.
//
// There is no lock timeout: a lock row is removed only by a matching
// Release, so a process that crashes while holding a lock leaves a stale
// row that an operator has to delete by hand.
package lockservice

import (
	"context"
	"fmt"
	"os"
)

type store interface {
	InsertLock(ctx context.Context, key, owner string) (bool, error)
	DeleteLock(ctx context.Context, key, owner string) error
}

// Service wraps a store with the try_acquire/release lock API.
type Service struct {
	store store
}

func New(s store) *Service {
	return &Service{store: s}
}

// TryAcquire returns true iff it won the lock. No retry, no blocking —
// callers that lose treat the resource as busy and move on.
func (s *Service) TryAcquire(ctx context.Context, key, owner string) (bool, error) {
	return s.store.InsertLock(ctx, key, owner)
}

// Release deletes the lock row only if key and owner both match, so a
// stale release can never steal another owner's lock.
func (s *Service) Release(ctx context.Context, key, owner string) error {
	return s.store.DeleteLock(ctx, key, owner)
}

// ScriptLockKey returns the logical lock key for a script id.
func ScriptLockKey(scriptID int64) string {
	return fmt.Sprintf("script:%d", scriptID)
}

// OwnerID computes this process's lock owner string once at startup:
// "<host>:<pid>". The core never interprets it beyond equality, so any
// stable per-process string would do, but this format matches what an
// operator sees in a stuck lock row.
func OwnerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
