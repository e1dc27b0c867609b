// Package runservice wraps the executor with per-script locking and run
// persistence. It is the single place a trigger event turns into a
// shell execution.
package runservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/executor"
	"github.com/mjarkko/scripter/internal/lockservice"
	"github.com/mjarkko/scripter/internal/metrics"
)

type store interface {
	GetScript(ctx context.Context, id int64) (*domain.Script, error)
	CreateRunningRun(ctx context.Context, scriptID int64, trigger string) (*domain.Run, error)
	FinishRun(ctx context.Context, id int64, status domain.RunStatus, exitCode *int, stdout, stderr string) error
}

// Event is the minimal shape the run service needs from a trigger
// event: which script to run and the namespaced trigger id to stamp
// onto the resulting run row.
type Event struct {
	ScriptID  int64
	TriggerID string
}

// OnFinished is invoked exactly once per Execute call that reaches a
// lock-acquired run, after the run's terminal status is persisted. The
// event-bus source uses it to mark its delivery processed only once the
// run it caused has actually finished.
type OnFinished func(status domain.RunStatus, runID int64)

const defaultTimeout = 60 * time.Second

// Service ties together script lookup, locking, execution, and run
// bookkeeping.
type Service struct {
	store   store
	locks   *lockservice.Service
	owner   string
	timeout time.Duration
	log     *slog.Logger
}

func New(s store, locks *lockservice.Service, owner string, timeout time.Duration, log *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{store: s, locks: locks, owner: owner, timeout: timeout, log: log}
}

// Execute runs event.ScriptID's command under the per-script lock. A
// stale script id or a lock already held by another run are both silent
// no-ops — trigger events that lose the race are coalesced away, not
// errors. An executor failure (timeout, spawn error) is absorbed into
// the run's terminal "failed" status rather than surfaced, matching the
// polled trigger sources: there is no caller here to hand an error to.
// Exactly one run row transitions running -> {success, failed} for
// every event that wins the lock.
func (s *Service) Execute(ctx context.Context, event Event, onFinished OnFinished) {
	run, err := s.execute(ctx, event.ScriptID, event.TriggerID, onFinished, false)
	if err != nil && !errors.Is(err, domain.ErrScriptNotFound) && !errors.Is(err, domain.ErrLockHeld) {
		s.log.Error("run service: execute failed", "script_id", event.ScriptID, "error", err)
	}
	_ = run
}

// ExecuteSync runs scriptID's command synchronously and returns the
// finished run, or domain.ErrLockHeld / domain.ErrScriptNotFound when the
// caller needs to distinguish those cases — used by the webhook handler
// to pick 409 vs 404 vs 200. Unlike Execute, a genuine executor failure
// (timeout, spawn error) is propagated as domain.ErrExecutorFailure so
// the webhook's synchronous caller can report a real 500 instead of a
// silently "successful" HTTP response for a run that never completed —
// the same asymmetry the original draws between its webhook handler's
// try/except around run_command() and its scheduler's silent catch.
func (s *Service) ExecuteSync(ctx context.Context, scriptID int64, triggerID string) (*domain.Run, error) {
	return s.execute(ctx, scriptID, triggerID, nil, true)
}

func (s *Service) execute(ctx context.Context, scriptID int64, triggerID string, onFinished OnFinished, propagateExecErr bool) (*domain.Run, error) {
	script, err := s.store.GetScript(ctx, scriptID)
	if err != nil {
		return nil, err
	}

	lockKey := lockservice.ScriptLockKey(scriptID)
	acquired, err := s.locks.TryAcquire(ctx, lockKey, s.owner)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !acquired {
		metrics.LockConflictsTotal.WithLabelValues(triggerSource(triggerID)).Inc()
		return nil, domain.ErrLockHeld
	}
	defer func() {
		if err := s.locks.Release(ctx, lockKey, s.owner); err != nil {
			s.log.Warn("run service: release lock failed", "lock_key", lockKey, "error", err)
		}
	}()

	run, err := s.store.CreateRunningRun(ctx, script.ID, triggerID)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	started := time.Now()
	status, exitCode, stdout, stderr, execErr := s.runOnce(ctx, script)
	metrics.RunDuration.WithLabelValues(string(status)).Observe(time.Since(started).Seconds())
	metrics.RunsCompletedTotal.WithLabelValues(string(status)).Inc()

	if err := s.store.FinishRun(ctx, run.ID, status, exitCode, stdout, stderr); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	run.Status = status
	run.ExitCode = exitCode
	run.Stdout = stdout
	run.Stderr = stderr

	if onFinished != nil {
		onFinished(status, run.ID)
	}

	if execErr != nil && propagateExecErr {
		return run, fmt.Errorf("%w: %s", domain.ErrExecutorFailure, execErr)
	}
	return run, nil
}

// runOnce executes script.Command and returns its terminal run status
// alongside the raw executor error, if any. The error is non-nil only
// when the executor itself failed to carry the command to completion
// (timeout, process spawn failure) — a command that ran and exited
// non-zero is still a "failed" status with a nil error, since the
// executor did its job correctly.
func (s *Service) runOnce(ctx context.Context, script *domain.Script) (domain.RunStatus, *int, string, string, error) {
	result, err := executor.Run(ctx, script.Command, script.Cwd, s.timeout)
	if err != nil {
		if result.TimedOut {
			return domain.RunStatusFailed, nil, result.Stdout, fmt.Sprintf("Timeout: %s", err), err
		}
		return domain.RunStatusFailed, nil, result.Stdout, fmt.Sprintf("InternalError: %s", err), err
	}

	exitCode := result.ExitCode
	status := domain.RunStatusSuccess
	if exitCode != 0 {
		status = domain.RunStatusFailed
	}
	return status, &exitCode, result.Stdout, result.Stderr, nil
}

// triggerSource extracts the namespace prefix of a trigger id
// ("schedule:17" -> "schedule") for metric labeling. Trigger ids with
// no ":" (e.g. "manual") are used verbatim.
func triggerSource(triggerID string) string {
	if i := strings.IndexByte(triggerID, ':'); i >= 0 {
		return triggerID[:i]
	}
	return triggerID
}
