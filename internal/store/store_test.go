package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_IsIdempotentAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := s1.CreateScript(ctx, "job", "echo hi", ""); err != nil {
		t.Fatalf("create script: %v", err)
	}
	s1.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer s2.Close()

	sc, err := s2.GetScriptByName(ctx, "job")
	if err != nil {
		t.Fatalf("get script after reopen: %v", err)
	}
	if sc.Name != "job" {
		t.Fatalf("unexpected script after reopen: %+v", sc)
	}
}

func TestClaimDueOneShots_ConcurrentCallersSplitTheRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := s.CreateScript(ctx, "job", "true", "")
	if err != nil {
		t.Fatalf("create script: %v", err)
	}

	const n = 20
	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < n; i++ {
		if _, err := s.CreateOneShot(ctx, sc.ID, past, nil); err != nil {
			t.Fatalf("create one-shot: %v", err)
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed []domain.OneShot
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.ClaimDueOneShots(ctx, time.Now().UTC(), 10)
			if err != nil {
				t.Errorf("claim due one-shots: %v", err)
				return
			}
			mu.Lock()
			claimed = append(claimed, got...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(claimed) != n {
		t.Fatalf("expected exactly %d total claims across all callers, got %d", n, len(claimed))
	}
	seen := make(map[int64]bool)
	for _, os := range claimed {
		if seen[os.ID] {
			t.Fatalf("one-shot %d claimed more than once", os.ID)
		}
		seen[os.ID] = true
	}
}

func TestClaimDueOneShots_FutureRowsNeverClaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := s.CreateScript(ctx, "job", "true", "")
	if err != nil {
		t.Fatalf("create script: %v", err)
	}
	future := time.Now().UTC().Add(time.Hour)
	if _, err := s.CreateOneShot(ctx, sc.ID, future, nil); err != nil {
		t.Fatalf("create one-shot: %v", err)
	}

	claimed, err := s.ClaimDueOneShots(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("claim due one-shots: %v", err)
	}
	if len(claimed) != 0 {
		t.Fatalf("future one-shot should not be claimed, got %+v", claimed)
	}
}

func TestClaimDueOneShots_AlreadyFiredNeverReclaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := s.CreateScript(ctx, "job", "true", "")
	if err != nil {
		t.Fatalf("create script: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if _, err := s.CreateOneShot(ctx, sc.ID, past, nil); err != nil {
		t.Fatalf("create one-shot: %v", err)
	}

	first, err := s.ClaimDueOneShots(ctx, time.Now().UTC(), 10)
	if err != nil || len(first) != 1 {
		t.Fatalf("first claim: got %d rows, err %v", len(first), err)
	}

	second, err := s.ClaimDueOneShots(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("already-fired one-shot reclaimed: %+v", second)
	}
}

func TestCreateCronSchedule_RejectsMalformedExpression(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sc, err := s.CreateScript(ctx, "job", "true", "")
	if err != nil {
		t.Fatalf("create script: %v", err)
	}

	if _, err := s.CreateCronSchedule(ctx, sc.ID, "* * *", nil); !errors.Is(err, domain.ErrInvalidCron) {
		t.Fatalf("expected ErrInvalidCron, got %v", err)
	}

	if _, err := s.CreateCronSchedule(ctx, sc.ID, "0 9 * * 1-5", nil); err != nil {
		t.Fatalf("valid cron expression rejected: %v", err)
	}
}

func TestInsertLock_SecondInsertFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ok, err := s.InsertLock(ctx, "script:1", "owner-a")
	if err != nil || !ok {
		t.Fatalf("first insert should succeed: ok=%v err=%v", ok, err)
	}

	ok, err = s.InsertLock(ctx, "script:1", "owner-b")
	if err != nil || ok {
		t.Fatalf("second insert should fail to acquire: ok=%v err=%v", ok, err)
	}
}
