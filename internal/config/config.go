// Package config provides configuration loading, defaults and validation for
// the AgriPort optimizer.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	OSRM    OSRMConfig    `mapstructure:"osrm"`
	Grid    GridConfig    `mapstructure:"grid"`
	Ports   PortsConfig   `mapstructure:"ports"`
	Cost    CostConfig    `mapstructure:"cost"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Export  ExportConfig  `mapstructure:"export"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// OSRMConfig configures the routing service client
type OSRMConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Profile      string        `mapstructure:"profile"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	Workers      int           `mapstructure:"workers"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	HealthPath   string        `mapstructure:"health_path"`

	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// GridConfig selects the boundary and sampling density
type GridConfig struct {
	BoundaryPath string `mapstructure:"boundary_path"`
	Name         string `mapstructure:"name"`
	Size         int    `mapstructure:"size"`
}

// PortsConfig locates the port catalog
type PortsConfig struct {
	CatalogPath string `mapstructure:"catalog_path"`
}

// CostConfig holds cost model parameters
type CostConfig struct {
	FuelEfficiency    float64 `mapstructure:"fuel_efficiency"`
	GradientThreshold float64 `mapstructure:"gradient_threshold"`
}

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendFile   = "file"
	BackendNone   = "none"
)

// StorageConfig selects where grids and distances are cached
type StorageConfig struct {
	Backend       string      `mapstructure:"backend"`
	SQLitePath    string      `mapstructure:"sqlite_path"`
	FileCachePath string      `mapstructure:"file_cache_path"`
	Redis         RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the Redis distance cache
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ExportConfig configures result export
type ExportConfig struct {
	IncludeUnassigned bool `mapstructure:"include_unassigned"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Validate checks the configuration for values the optimizer cannot run with
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config: server.addr is required")
	}

	if c.OSRM.BaseURL == "" {
		return fmt.Errorf("config: osrm.base_url is required")
	}
	if c.OSRM.Timeout <= 0 {
		return fmt.Errorf("config: osrm.timeout must be positive, got %s", c.OSRM.Timeout)
	}
	if c.OSRM.MinInterval < 0 {
		return fmt.Errorf("config: osrm.min_interval must not be negative, got %s", c.OSRM.MinInterval)
	}
	if c.OSRM.BatchSize < 1 {
		return fmt.Errorf("config: osrm.batch_size must be >= 1, got %d", c.OSRM.BatchSize)
	}
	if c.OSRM.Workers < 1 {
		return fmt.Errorf("config: osrm.workers must be >= 1, got %d", c.OSRM.Workers)
	}
	if c.OSRM.MaxRetries < 0 {
		return fmt.Errorf("config: osrm.max_retries must not be negative, got %d", c.OSRM.MaxRetries)
	}
	if c.OSRM.BreakerThreshold < 0 {
		return fmt.Errorf("config: osrm.breaker_threshold must not be negative, got %d", c.OSRM.BreakerThreshold)
	}

	if c.Grid.BoundaryPath == "" {
		return fmt.Errorf("config: grid.boundary_path is required")
	}
	if c.Grid.Size < 1 {
		return fmt.Errorf("config: grid.size must be >= 1, got %d", c.Grid.Size)
	}

	if c.Cost.FuelEfficiency <= 0 {
		return fmt.Errorf("config: cost.fuel_efficiency must be positive, got %g", c.Cost.FuelEfficiency)
	}
	if c.Cost.GradientThreshold < 0 {
		return fmt.Errorf("config: cost.gradient_threshold must not be negative, got %g", c.Cost.GradientThreshold)
	}

	switch c.Storage.Backend {
	case BackendSQLite, BackendFile, BackendNone:
	case BackendRedis:
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("config: storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected sqlite|redis|file|none", c.Storage.Backend)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
