package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath string        `env:"DATABASE_PATH" envDefault:"tournament.db"`
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	AdminIDs     []string      `env:"ADMIN_IDS" envSeparator:","`
	Characters   []string      `env:"CHARACTERS" envSeparator:","`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1m"`

	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"tourney.notify"`
	NotifyConcurrency int    `env:"NOTIFY_CONCURRENCY" envDefault:"4"`
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.SessionCleanupInterval <= 0 {
		return nil, fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive, got %s", cfg.SessionCleanupInterval)
	}
	return &cfg, nil
}
