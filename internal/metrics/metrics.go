// Package metrics defines the Prometheus instruments exposed on
// /metrics alongside the readiness check.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler loop metrics

	TriggerPollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scripter",
		Name:      "trigger_poll_duration_seconds",
		Help:      "Time taken to poll one trigger source.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"source"})

	TriggerEventsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scripter",
		Name:      "trigger_events_emitted_total",
		Help:      "Total trigger events emitted, by source.",
	}, []string{"source"})

	// Run metrics

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scripter",
		Name:      "runs_completed_total",
		Help:      "Total runs finished, by terminal status.",
	}, []string{"status"})

	RunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scripter",
		Name:      "run_duration_seconds",
		Help:      "Duration of a script execution.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	LockConflictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scripter",
		Name:      "lock_conflicts_total",
		Help:      "Total times a trigger lost the per-script lock race.",
	}, []string{"source"})

	// Daemon lifecycle

	DaemonStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scripter",
		Name:      "daemon_start_time_seconds",
		Help:      "Unix timestamp when the daemon started.",
	})

	// HTTP metrics (webhook server)

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scripter",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scripter",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		TriggerPollDuration,
		TriggerEventsEmittedTotal,
		RunsCompletedTotal,
		RunDuration,
		LockConflictsTotal,
		DaemonStartTime,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
