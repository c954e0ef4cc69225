package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultServerAddr          = ":8080"
	DefaultShutdownTimeout     = 30 * time.Second
	DefaultOSRMBaseURL         = "http://localhost:5000"
	DefaultOSRMProfile         = "driving"
	DefaultOSRMTimeout         = 30 * time.Second
	DefaultOSRMMinInterval     = 500 * time.Millisecond
	DefaultOSRMBatchSize       = 100
	DefaultOSRMWorkers         = 1
	DefaultOSRMRetryBackoff    = time.Second
	DefaultOSRMHealthPath      = "/health"
	DefaultOSRMBreakerCooldown = 30 * time.Second
	DefaultBoundaryPath        = "data/boundary.geojson"
	DefaultGridName            = "boundary"
	DefaultGridSize            = 50
	DefaultCatalogPath         = "data/ports.yaml"
	DefaultFuelEfficiency      = 0.4
	DefaultGradientThreshold   = 0.05
	DefaultStorageBackend      = BackendSQLite
	DefaultRedisKeyPrefix      = "agriport"
	DefaultRedisTTL            = 30 * 24 * time.Hour
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "json"
	DefaultMetricsNamespace    = "agriport"
)

// Default returns a Config with every default applied
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with defaults
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultServerAddr
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.OSRM.BaseURL == "" {
		cfg.OSRM.BaseURL = DefaultOSRMBaseURL
	}
	if cfg.OSRM.Profile == "" {
		cfg.OSRM.Profile = DefaultOSRMProfile
	}
	if cfg.OSRM.Timeout == 0 {
		cfg.OSRM.Timeout = DefaultOSRMTimeout
	}
	if cfg.OSRM.MinInterval == 0 {
		cfg.OSRM.MinInterval = DefaultOSRMMinInterval
	}
	if cfg.OSRM.BatchSize == 0 {
		cfg.OSRM.BatchSize = DefaultOSRMBatchSize
	}
	if cfg.OSRM.Workers == 0 {
		cfg.OSRM.Workers = DefaultOSRMWorkers
	}
	if cfg.OSRM.RetryBackoff == 0 {
		cfg.OSRM.RetryBackoff = DefaultOSRMRetryBackoff
	}
	if cfg.OSRM.HealthPath == "" {
		cfg.OSRM.HealthPath = DefaultOSRMHealthPath
	}
	if cfg.OSRM.BreakerCooldown == 0 {
		cfg.OSRM.BreakerCooldown = DefaultOSRMBreakerCooldown
	}

	if cfg.Grid.BoundaryPath == "" {
		cfg.Grid.BoundaryPath = DefaultBoundaryPath
	}
	if cfg.Grid.Name == "" {
		cfg.Grid.Name = DefaultGridName
	}
	if cfg.Grid.Size == 0 {
		cfg.Grid.Size = DefaultGridSize
	}

	if cfg.Ports.CatalogPath == "" {
		cfg.Ports.CatalogPath = DefaultCatalogPath
	}

	if cfg.Cost.FuelEfficiency == 0 {
		cfg.Cost.FuelEfficiency = DefaultFuelEfficiency
	}
	if cfg.Cost.GradientThreshold == 0 {
		cfg.Cost.GradientThreshold = DefaultGradientThreshold
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Redis.KeyPrefix == "" {
		cfg.Storage.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.Storage.Redis.TTL == 0 {
		cfg.Storage.Redis.TTL = DefaultRedisTTL
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// registerKeys makes every key known to viper so AGRIPORT_* variables are
// picked up by Unmarshal even when the config file omits the key.
func registerKeys(v *viper.Viper) {
	def := Default()
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.shutdown_timeout", def.Server.ShutdownTimeout)
	v.SetDefault("osrm.base_url", def.OSRM.BaseURL)
	v.SetDefault("osrm.profile", def.OSRM.Profile)
	v.SetDefault("osrm.timeout", def.OSRM.Timeout)
	v.SetDefault("osrm.min_interval", def.OSRM.MinInterval)
	v.SetDefault("osrm.batch_size", def.OSRM.BatchSize)
	v.SetDefault("osrm.workers", def.OSRM.Workers)
	v.SetDefault("osrm.max_retries", def.OSRM.MaxRetries)
	v.SetDefault("osrm.retry_backoff", def.OSRM.RetryBackoff)
	v.SetDefault("osrm.health_path", def.OSRM.HealthPath)
	v.SetDefault("osrm.breaker_threshold", def.OSRM.BreakerThreshold)
	v.SetDefault("osrm.breaker_cooldown", def.OSRM.BreakerCooldown)
	v.SetDefault("grid.boundary_path", def.Grid.BoundaryPath)
	v.SetDefault("grid.name", def.Grid.Name)
	v.SetDefault("grid.size", def.Grid.Size)
	v.SetDefault("ports.catalog_path", def.Ports.CatalogPath)
	v.SetDefault("cost.fuel_efficiency", def.Cost.FuelEfficiency)
	v.SetDefault("cost.gradient_threshold", def.Cost.GradientThreshold)
	v.SetDefault("storage.backend", def.Storage.Backend)
	v.SetDefault("storage.sqlite_path", def.Storage.SQLitePath)
	v.SetDefault("storage.file_cache_path", def.Storage.FileCachePath)
	v.SetDefault("storage.redis.addr", def.Storage.Redis.Addr)
	v.SetDefault("storage.redis.password", def.Storage.Redis.Password)
	v.SetDefault("storage.redis.db", def.Storage.Redis.DB)
	v.SetDefault("storage.redis.key_prefix", def.Storage.Redis.KeyPrefix)
	v.SetDefault("storage.redis.ttl", def.Storage.Redis.TTL)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("export.include_unassigned", def.Export.IncludeUnassigned)
	v.SetDefault("metrics.namespace", def.Metrics.Namespace)
}
