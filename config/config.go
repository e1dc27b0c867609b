package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config holds the daemon's process-level settings. Per-script, per-schedule
// and per-trigger data lives in the store instead, loaded via the YAML
// config layer (internal/yamlconfig), not here.
type Config struct {
	Env string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`

	DBPath string `env:"DB_PATH" envDefault:"scripter.db" validate:"required"`

	TickSeconds             int `env:"TICK_SECONDS" envDefault:"2" validate:"min=1,max=3600"`
	FileQuietSeconds        int `env:"FILE_QUIET_SECONDS" envDefault:"3" validate:"min=0,max=3600"`
	FileMinIntervalSeconds  int `env:"FILE_MIN_INTERVAL_SECONDS" envDefault:"30" validate:"min=0,max=86400"`
	ExecutorConcurrency     int `env:"EXECUTOR_CONCURRENCY" envDefault:"1" validate:"min=1,max=100"`
	ExecutorTimeoutSeconds  int `env:"EXECUTOR_TIMEOUT_SECONDS" envDefault:"60" validate:"min=1,max=86400"`
	ClaimBatchSize          int `env:"CLAIM_BATCH_SIZE" envDefault:"50" validate:"min=1,max=1000"`

	WebhookHost string `env:"WEBHOOK_HOST" envDefault:"127.0.0.1"`
	WebhookPort string `env:"WEBHOOK_PORT" envDefault:"5055"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
