package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agriport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9090"
osrm:
  base_url: "http://osrm.internal:5000"
  min_interval: 0s
  batch_size: 50
  workers: 4
  timeout: 10s
grid:
  boundary_path: /data/parana.geojson
  name: parana
  size: 80
cost:
  gradient_threshold: 0.1
storage:
  backend: redis
  redis:
    addr: "redis:6379"
log:
  level: debug
  format: console
export:
  include_unassigned: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "http://osrm.internal:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, time.Duration(0), cfg.OSRM.MinInterval)
	assert.Equal(t, 50, cfg.OSRM.BatchSize)
	assert.Equal(t, 4, cfg.OSRM.Workers)
	assert.Equal(t, 10*time.Second, cfg.OSRM.Timeout)
	assert.Equal(t, "parana", cfg.Grid.Name)
	assert.Equal(t, 80, cfg.Grid.Size)
	assert.Equal(t, 0.1, cfg.Cost.GradientThreshold)
	assert.Equal(t, DefaultFuelEfficiency, cfg.Cost.FuelEfficiency)
	assert.Equal(t, BackendRedis, cfg.Storage.Backend)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, DefaultRedisKeyPrefix, cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Export.IncludeUnassigned)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
osrm:
  base_url: "http://from-file:5000"
`)
	t.Setenv("AGRIPORT_OSRM_BASE_URL", "http://from-env:5000")
	t.Setenv("AGRIPORT_GRID_SIZE", "25")
	t.Setenv("AGRIPORT_OSRM_MIN_INTERVAL", "250ms")
	t.Setenv("AGRIPORT_OSRM_BREAKER_THRESHOLD", "5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:5000", cfg.OSRM.BaseURL)
	assert.Equal(t, 25, cfg.Grid.Size)
	assert.Equal(t, 250*time.Millisecond, cfg.OSRM.MinInterval)
	assert.Equal(t, 5, cfg.OSRM.BreakerThreshold)
	assert.Equal(t, DefaultOSRMBreakerCooldown, cfg.OSRM.BreakerCooldown)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultOSRMMinInterval, cfg.OSRM.MinInterval)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
grid:
  size: -1
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid.size")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"zero threshold", func(c *Config) { c.Cost.GradientThreshold = 0 }, ""},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"empty osrm", func(c *Config) { c.OSRM.BaseURL = "" }, "osrm.base_url"},
		{"zero timeout", func(c *Config) { c.OSRM.Timeout = 0 }, "osrm.timeout"},
		{"negative interval", func(c *Config) { c.OSRM.MinInterval = -time.Second }, "osrm.min_interval"},
		{"zero batch", func(c *Config) { c.OSRM.BatchSize = 0 }, "osrm.batch_size"},
		{"zero workers", func(c *Config) { c.OSRM.Workers = 0 }, "osrm.workers"},
		{"negative retries", func(c *Config) { c.OSRM.MaxRetries = -1 }, "osrm.max_retries"},
		{"negative breaker", func(c *Config) { c.OSRM.BreakerThreshold = -1 }, "osrm.breaker_threshold"},
		{"no boundary", func(c *Config) { c.Grid.BoundaryPath = "" }, "grid.boundary_path"},
		{"zero grid", func(c *Config) { c.Grid.Size = 0 }, "grid.size"},
		{"zero efficiency", func(c *Config) { c.Cost.FuelEfficiency = 0 }, "cost.fuel_efficiency"},
		{"negative threshold", func(c *Config) { c.Cost.GradientThreshold = -0.1 }, "cost.gradient_threshold"},
		{"bad backend", func(c *Config) { c.Storage.Backend = "mongo" }, "storage.backend"},
		{"redis without addr", func(c *Config) { c.Storage.Backend = BackendRedis }, "storage.redis.addr"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyDefaults_KeepsSetValues(t *testing.T) {
	cfg := &Config{OSRM: OSRMConfig{BatchSize: 10}, Grid: GridConfig{Size: 5}}
	ApplyDefaults(cfg)

	assert.Equal(t, 10, cfg.OSRM.BatchSize)
	assert.Equal(t, 5, cfg.Grid.Size)
	assert.Equal(t, DefaultOSRMWorkers, cfg.OSRM.Workers)

	assert.NotPanics(t, func() { ApplyDefaults(nil) })
}
