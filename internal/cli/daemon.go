package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/config"
	"github.com/mjarkko/scripter/internal/health"
	ctxlog "github.com/mjarkko/scripter/internal/log"
	"github.com/mjarkko/scripter/internal/lockservice"
	"github.com/mjarkko/scripter/internal/metrics"
	"github.com/mjarkko/scripter/internal/runservice"
	"github.com/mjarkko/scripter/internal/scheduler"
	"github.com/mjarkko/scripter/internal/trigger"
)

func newDaemonCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	var once bool
	var tickSeconds, quietSeconds, minIntervalSeconds, timeoutSeconds, claimBatch, concurrency int
	var metricsPort string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the scheduler loop",
		Long: "Start the scheduler loop.\n\n" +
			"Per-script locks have no timeout: if the daemon crashes while a run holds\n" +
			"a lock, the row stays in the locks table and that script does not run\n" +
			"again until an operator deletes the row (key \"script:<id>\").",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			logger := newDaemonLogger(cfg.Env, cfg.SlogLevel())
			owner := lockservice.OwnerID()
			locks := lockservice.New(s)
			runs := runservice.New(s, locks, owner, time.Duration(timeoutSeconds)*time.Second, logger)

			sources := []trigger.Source{
				trigger.NewScheduleSource(s, logger),
				trigger.NewOneShotSource(s, claimBatch),
				trigger.NewEventBusSource(s, owner, claimBatch, logger),
				trigger.NewFileWatchSource(s, time.Duration(quietSeconds)*time.Second, time.Duration(minIntervalSeconds)*time.Second, logger),
			}

			loop := scheduler.NewLoop(sources, runs, time.Duration(tickSeconds)*time.Second, concurrency, logger)

			metrics.Register()
			metrics.DaemonStartTime.SetToCurrentTime()
			checker := health.NewChecker(s, logger, prometheus.DefaultRegisterer)
			metricsServer := newMetricsServer(metricsPort, checker)
			go func() {
				logger.Info("metrics server started", "port", metricsPort)
				if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("metrics server stopped", "error", err)
				}
			}()

			if once {
				fmt.Fprintln(cmd.OutOrStdout(), "Running one tick...")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Starting scheduler (tick=%ds)... Ctrl+C to stop.\n", tickSeconds)
			}

			runErr := loop.Run(ctx, once)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown", "error", err)
			}

			if runErr != nil && runErr != context.Canceled {
				return runErr
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tickSeconds, "tick", cfg.TickSeconds, "poll tick in seconds")
	cmd.Flags().BoolVar(&once, "once", false, "run a single scheduler tick then exit")
	cmd.Flags().IntVar(&quietSeconds, "file-quiet-seconds", cfg.FileQuietSeconds, "file trigger debounce quiet period")
	cmd.Flags().IntVar(&minIntervalSeconds, "file-min-interval-seconds", cfg.FileMinIntervalSeconds, "file trigger minimum re-execution interval")
	cmd.Flags().IntVar(&timeoutSeconds, "executor-timeout-seconds", cfg.ExecutorTimeoutSeconds, "per-run execution timeout")
	cmd.Flags().IntVar(&claimBatch, "claim-batch-size", cfg.ClaimBatchSize, "max rows claimed per poll for one-shots and event deliveries")
	cmd.Flags().IntVar(&concurrency, "executor-concurrency", cfg.ExecutorConcurrency, "max concurrent script executions per tick")
	cmd.Flags().StringVar(&metricsPort, "metrics-port", cfg.MetricsPort, "metrics server port")
	return cmd
}

// newDaemonLogger matches the teacher's local-vs-production split: a
// colorized tint handler for interactive use, structured JSON otherwise,
// both wrapped so every record picks up request_id from its context.
func newDaemonLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}

func newMetricsServer(port string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealthResult(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		w.WriteHeader(status)
		writeHealthResult(w, result)
	})
	return &http.Server{Addr: ":" + port, Handler: mux}
}

func writeHealthResult(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
