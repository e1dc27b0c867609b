// Package scheduler drives the poll loop: each tick it asks every
// trigger source in a fixed order for due events and dispatches each
// one through the run service. The webhook server bypasses this loop
// entirely — it's push-driven, not polled.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mjarkko/scripter/internal/metrics"
	"github.com/mjarkko/scripter/internal/runservice"
	"github.com/mjarkko/scripter/internal/trigger"
)

// Loop polls trigger.Source implementations in a fixed order, per tick,
// and dispatches the events they emit through a bounded worker pool —
// a buffered channel used as a semaphore caps how many runs the
// executor's process table has to hold open at once, independent of
// how many events a single tick produces.
type Loop struct {
	sources     []trigger.Source
	runs        *runservice.Service
	tick        time.Duration
	concurrency int
	log         *slog.Logger
}

func NewLoop(sources []trigger.Source, runs *runservice.Service, tick time.Duration, concurrency int, log *slog.Logger) *Loop {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Loop{sources: sources, runs: runs, tick: tick, concurrency: concurrency, log: log}
}

// Run polls every source in order and dispatches their events, once per
// tick, until ctx is cancelled. If once is true it returns after a
// single full pass over all sources instead of looping forever — used
// by the `daemon --once` CLI flag and by tests.
func (l *Loop) Run(ctx context.Context, once bool) error {
	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		l.pollOnce(ctx)

		if once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce polls every source sequentially (source order is the fixed
// contract trigger dispatch relies on) but dispatches the events a
// source emits onto a bounded worker pool. A worker slot is taken
// before each dispatch, so when a source emits more events than there
// are free slots, polling the next source waits until slots free up.
// It waits for every dispatched run to finish before returning, so a
// tick never overlaps the next.
func (l *Loop) pollOnce(ctx context.Context) {
	sem := make(chan struct{}, l.concurrency)
	var wg sync.WaitGroup

	for _, source := range l.sources {
		start := time.Now()
		events, err := source.Poll(ctx)
		metrics.TriggerPollDuration.WithLabelValues(sourceLabel(source)).Observe(time.Since(start).Seconds())
		if err != nil {
			l.log.Warn("scheduler: source poll failed", "error", err)
			continue
		}
		metrics.TriggerEventsEmittedTotal.WithLabelValues(sourceLabel(source)).Add(float64(len(events)))

		for _, ev := range events {
			ev := ev
			sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				l.runs.Execute(ctx, runservice.Event{ScriptID: ev.ScriptID, TriggerID: ev.TriggerID}, ev.OnFinished)
			}()
		}
	}

	wg.Wait()
}

func sourceLabel(source trigger.Source) string {
	if labeled, ok := source.(interface{ Label() string }); ok {
		return labeled.Label()
	}
	return "unknown"
}
