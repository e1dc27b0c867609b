package store

import (
	"context"
	"fmt"
)

// InsertLock fails with ok=false if key is already present. Used
// exclusively by internal/lockservice; callers outside that package
// should go through try_acquire/release instead of touching locks
// directly.
func (s *Store) InsertLock(ctx context.Context, key, owner string) (bool, error) {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO locks (key, owner, acquired_at) VALUES (?, ?, ?)`,
		key, owner, formatTime(nowUTC()))
	if err != nil {
		if isUniqueConstraint(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert lock: %w", err)
	}
	return true, nil
}

// DeleteLock removes the row only if both key and owner match, so a
// stale release from a different owner can never steal an active lock.
func (s *Store) DeleteLock(ctx context.Context, key, owner string) error {
	if _, err := s.write.ExecContext(ctx,
		`DELETE FROM locks WHERE key = ? AND owner = ?`, key, owner); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
