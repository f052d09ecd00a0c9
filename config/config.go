// Package config loads application configuration from the environment.
package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `env:",prefix=SERVER_"`
	Database  DatabaseConfig  `env:",prefix=DB_"`
	Scheduler SchedulerConfig `env:",prefix=SCHEDULER_"`
	App       AppConfig       `env:",prefix=APP_"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int `env:"PORT,default=8080"`
	ReadTimeout  int `env:"READ_TIMEOUT,default=15"`  // seconds
	WriteTimeout int `env:"WRITE_TIMEOUT,default=15"` // seconds
	IdleTimeout  int `env:"IDLE_TIMEOUT,default=60"`  // seconds

	// ClickRatePerSecond throttles the public click-simulation endpoint.
	ClickRatePerSecond float64 `env:"CLICK_RATE,default=25"`
	ClickBurst         int     `env:"CLICK_BURST,default=50"`
}

// DatabaseConfig holds SQLite configuration.
type DatabaseConfig struct {
	// Path to the SQLite database file. Use ":memory:" for in-memory.
	Path string `env:"PATH,default=adboost.db"`
}

// SchedulerConfig holds daily-debit scheduler configuration.
type SchedulerConfig struct {
	Enabled bool `env:"ENABLED,default=true"`
	// Interval between tick checks, in minutes.
	IntervalMinutes int `env:"INTERVAL_MINUTES,default=60"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`
}

// Load reads configuration from environment variables.
func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}
	return &cfg, nil
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsProduction returns true if running in production environment.
func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}
