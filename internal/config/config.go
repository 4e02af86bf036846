// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New() returns a Config populated with defaults.
//   - Load(ctx) layers a YAML file and WINCHAIN_ env vars on top of them.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Storage drivers understood by the repository adapters.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StorageDriver selects the game store: memory, sqlite or postgres.
	StorageDriver string `koanf:"storage_driver"`

	// StorageDSN is the driver specific data source name.
	StorageDSN string `koanf:"storage_dsn"`

	// PageSize is the number of games fetched per storage page during rebuilds.
	PageSize int `koanf:"page_size"`

	// ProgressEvery logs build progress every N games. Zero disables it.
	ProgressEvery int `koanf:"progress_every"`

	// SnapshotDir is the badger directory for the durable graph cache.
	SnapshotDir string `koanf:"snapshot_dir"`

	// SnapshotInMemory keeps the snapshot cache in memory only.
	SnapshotInMemory bool `koanf:"snapshot_in_memory"`

	// LazyBuild lets the first chain query trigger a rebuild when no snapshot exists.
	LazyBuild bool `koanf:"lazy_build"`

	// RebuildOnStart forces a rebuild at startup even when a snapshot loads.
	RebuildOnStart bool `koanf:"rebuild_on_start"`

	// RefreshQueueSize bounds pending refresh requests.
	RefreshQueueSize int `koanf:"refresh_queue_size"`

	// DedupeSize bounds the refresh job id memory.
	DedupeSize int `koanf:"dedupe_size"`

	// RefreshIntervalSec schedules periodic rebuilds. Zero disables them.
	RefreshIntervalSec int `koanf:"refresh_interval_sec"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		StorageDriver:      DriverSQLite,
		StorageDSN:         "file:winchain.db?_pragma=busy_timeout(5000)",
		PageSize:           10_000,
		ProgressEvery:      10_000,
		SnapshotDir:        "data/snapshot",
		SnapshotInMemory:   false,
		LazyBuild:          true,
		RebuildOnStart:     false,
		RefreshQueueSize:   64,
		DedupeSize:         10_000,
		RefreshIntervalSec: 0,
		MetricsEnabled:     true,
	}
}

// RefreshInterval returns the periodic rebuild interval.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSec) * time.Second
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page_size must be positive, got %d", ErrInvalidConfig, c.PageSize)
	case c.ProgressEvery < 0:
		return fmt.Errorf("%w: progress_every must not be negative", ErrInvalidConfig)
	case c.RefreshQueueSize <= 0:
		return fmt.Errorf("%w: refresh_queue_size must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.RefreshIntervalSec < 0:
		return fmt.Errorf("%w: refresh_interval_sec must not be negative", ErrInvalidConfig)
	case !c.SnapshotInMemory && c.SnapshotDir == "":
		return fmt.Errorf("%w: snapshot_dir is required unless snapshot_in_memory is set", ErrInvalidConfig)
	}

	switch strings.ToLower(c.StorageDriver) {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StorageDSN == "" {
			return fmt.Errorf("%w: storage_dsn is required for %s", ErrInvalidConfig, c.StorageDriver)
		}
	default:
		return fmt.Errorf("%w: unknown storage_driver %q", ErrInvalidConfig, c.StorageDriver)
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
