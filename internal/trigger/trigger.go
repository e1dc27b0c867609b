// Package trigger holds the poll-driven trigger sources: schedule,
// one-shot, event-bus, and file-watch. The webhook source is push-driven
// and lives in internal/webhook instead, per the scheduler loop's design
// (the HTTP server hands events straight to the run service, bypassing
// the poll loop entirely).
package trigger

import (
	"context"

	"github.com/mjarkko/scripter/internal/runservice"
)

// Event is what a source emits for one due trigger: a namespaced
// trigger id (e.g. "schedule:17", "file:3", "oneshot:42",
// "event:<topic>"), the script to run, and an optional completion hook
// the run service invokes once the run it causes terminates.
type Event struct {
	TriggerID  string
	ScriptID   int64
	OnFinished runservice.OnFinished
}

// Source polls the store for due triggers and returns the events that
// should be dispatched this tick. A source must never let one bad row
// abort the whole poll — skip and log instead.
type Source interface {
	Poll(ctx context.Context) ([]Event, error)
}
