package executor_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mjarkko/scripter/internal/executor"
)

func TestRun_CapturesStdoutAndExitCode(t *testing.T) {
	res, err := executor.Run(context.Background(), "echo hello; exit 3", "", time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != "hello" {
		t.Fatalf("stdout = %q, want hello", res.Stdout)
	}
	if res.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", res.ExitCode)
	}
	if res.TimedOut {
		t.Fatalf("should not report timed out")
	}
}

func TestRun_CapturesStderr(t *testing.T) {
	res, err := executor.Run(context.Background(), "echo oops >&2", "", time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("stderr = %q, want oops", res.Stderr)
	}
}

func TestRun_ZeroExitIsSuccess(t *testing.T) {
	res, err := executor.Run(context.Background(), "true", "", time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestRun_TimeoutKillsProcessGroup(t *testing.T) {
	res, err := executor.Run(context.Background(), "sleep 5", "", 50*time.Millisecond)
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if !res.TimedOut {
		t.Fatalf("expected TimedOut to be set")
	}
	if res.ExitCode != -1 {
		t.Fatalf("exit code = %d, want -1 for a timed-out run", res.ExitCode)
	}
}

func TestRun_UsesCwd(t *testing.T) {
	dir := t.TempDir()
	res, err := executor.Run(context.Background(), "pwd", dir, time.Second)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(res.Stdout) != dir {
		t.Fatalf("pwd = %q, want %q", strings.TrimSpace(res.Stdout), dir)
	}
}
