// Package config reads service configuration from flags and environment.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the service configuration. Environment variables win over
// flags when both are set.
type Config struct {
	RunAddress        string        `env:"RUN_ADDRESS"`
	DatabasePath      string        `env:"DATABASE_PATH"`
	SchedulerInterval time.Duration `env:"SCHEDULER_INTERVAL"`
}

// Parse reads the configuration from command-line flags and environment
// variables.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabasePath := cfg.DatabasePath
	envInterval := cfg.SchedulerInterval

	flag.StringVar(&cfg.RunAddress, "a", ":8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabasePath, "db", "minijob.db", "SQLite database path (\":memory:\" for in-memory)")
	flag.DurationVar(&cfg.SchedulerInterval, "scheduler-interval", time.Hour, "active-flag refresh interval")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabasePath != "" {
		cfg.DatabasePath = envDatabasePath
	}
	if envInterval != 0 {
		cfg.SchedulerInterval = envInterval
	}

	return cfg, nil
}
