// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable the server reads at startup. Values come from
// the environment; unset variables fall back to the listed defaults.
type Config struct {
	HTTPAddr    string `env:"ARENA_HTTP_ADDR" envDefault:":8080"`
	CatalogPath string `env:"ARENA_CATALOG" envDefault:"catalog.yaml"`
	DatabaseDSN string `env:"ARENA_DB" envDefault:"arena.db"`

	TickSeconds   float64 `env:"ARENA_TICK_SECONDS" envDefault:"0.1"`
	SnapshotEvery int     `env:"ARENA_SNAPSHOT_EVERY" envDefault:"50"`
	MaxTicks      int     `env:"ARENA_MAX_TICKS" envDefault:"1200"`

	KeyframeCapacity int           `env:"ARENA_KEYFRAME_CAPACITY" envDefault:"32"`
	KeyframeMaxAge   time.Duration `env:"ARENA_KEYFRAME_MAX_AGE" envDefault:"2m"`

	LogLevel string `env:"ARENA_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"ARENA_LOG_JSON" envDefault:"false"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the simulation cannot run with.
func (c Config) Validate() error {
	if c.TickSeconds <= 0 {
		return fmt.Errorf("config: ARENA_TICK_SECONDS must be positive, got %v", c.TickSeconds)
	}
	if c.MaxTicks <= 0 {
		return fmt.Errorf("config: ARENA_MAX_TICKS must be positive, got %d", c.MaxTicks)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("config: ARENA_SNAPSHOT_EVERY cannot be negative, got %d", c.SnapshotEvery)
	}
	if c.KeyframeCapacity <= 0 {
		return fmt.Errorf("config: ARENA_KEYFRAME_CAPACITY must be positive, got %d", c.KeyframeCapacity)
	}
	return nil
}
