// Package app wires the optimizer from configuration: storage backend, port
// catalog, boundary, routing client and pipeline.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agriport/internal/catalog"
	"agriport/internal/config"
	"agriport/internal/database"
	"agriport/internal/distance"
	"agriport/internal/export"
	"agriport/internal/geo"
	"agriport/internal/logging"
	"agriport/internal/metrics"
	"agriport/internal/pipeline"
	"agriport/internal/rediscache"
	"agriport/internal/sqlite"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Registry
	Store    database.DataStore // nil unless the sqlite backend is selected
	Catalog  *catalog.Catalog
	Boundary orb.MultiPolygon
	GridKey  string
	Routing  *distance.Client
	Pipeline *pipeline.Pipeline

	// DistanceCache is nil for the none backend
	DistanceCache database.DistanceCacheRepository

	redis   *redis.Client
	closers []func() error
}

// New builds an App from cfg. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logging.OrNop(logger),
		Metrics: metrics.New(cfg.Metrics.Namespace),
		GridKey: geo.GridKey(cfg.Grid.Name, cfg.Grid.Size),
	}

	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	boundary, err := geo.LoadBoundary(cfg.Grid.BoundaryPath)
	if err != nil {
		return err
	}
	a.Boundary = boundary
	a.Logger.Info("[APP] Loaded boundary", zap.String("path", cfg.Grid.BoundaryPath), zap.Int("polygons", len(boundary)))

	cache, err := a.openStorage(ctx)
	if err != nil {
		return err
	}

	if err := a.loadCatalog(ctx); err != nil {
		return err
	}

	opts := []distance.Option{
		distance.WithLogger(a.Logger),
		distance.WithMetrics(a.Metrics.Routing),
	}
	if cache != nil {
		a.DistanceCache = cache
		opts = append(opts, distance.WithCache(cache))
	}
	a.Routing = distance.NewClient(RoutingConfig(cfg.OSRM), opts...)

	rc := a.Routing.Config()
	a.Logger.Info("[APP] Routing client ready",
		zap.String("base_url", rc.BaseURL),
		zap.Int("batch_size", rc.BatchSize),
		zap.Int("workers", rc.Workers),
		zap.Duration("min_interval", rc.MinInterval),
		zap.Bool("cache", cache != nil))

	pipeOpts := []pipeline.Option{
		pipeline.WithLogger(a.Logger),
		pipeline.WithMetrics(a.Metrics.Pipeline),
	}
	if a.Store != nil {
		pipeOpts = append(pipeOpts, pipeline.WithGridRepository(a.Store.GridPoints()))
	}
	a.Pipeline = pipeline.New(pipeline.Config{
		GridKey:           a.GridKey,
		GridSize:          cfg.Grid.Size,
		FuelEfficiency:    cfg.Cost.FuelEfficiency,
		GradientThreshold: cfg.Cost.GradientThreshold,
		Export:            export.Options{IncludeUnassigned: cfg.Export.IncludeUnassigned},
	}, a.Boundary, a.Catalog, a.Routing, pipeOpts...)

	return nil
}

// RoutingConfig maps the osrm config section onto the client config
func RoutingConfig(c config.OSRMConfig) distance.Config {
	return distance.Config{
		BaseURL:      c.BaseURL,
		Profile:      c.Profile,
		Timeout:      c.Timeout,
		MinInterval:  c.MinInterval,
		BatchSize:    c.BatchSize,
		Workers:      c.Workers,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		HealthPath:   c.HealthPath,

		BreakerThreshold: c.BreakerThreshold,
		BreakerCooldown:  c.BreakerCooldown,
	}
}

// openStorage opens the configured backend and returns its distance cache,
// or nil for the none backend
func (a *App) openStorage(ctx context.Context) (database.DistanceCacheRepository, error) {
	cfg := a.Config.Storage

	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			var err error
			if path, err = database.GetDefaultDBPath(); err != nil {
				return nil, err
			}
		}
		store, err := sqlite.New(path, a.Logger)
		if err != nil {
			return nil, err
		}
		a.Store = store
		a.closers = append(a.closers, store.Close)
		return store.DistanceCache(a.GridKey), nil

	case config.BackendRedis:
		client, err := rediscache.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client.Close)
		a.Logger.Info("[APP] Connected to redis", zap.String("addr", cfg.Redis.Addr))
		return rediscache.New(client, a.GridKey, rediscache.Options{
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
			Logger:    a.Logger,
		}), nil

	case config.BackendFile:
		path := cfg.FileCachePath
		if path == "" {
			var err error
			if path, err = database.GetDistanceCachePath(); err != nil {
				return nil, err
			}
		}
		cache, err := database.NewFileDistanceCache(path, a.GridKey)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("[APP] Opened file distance cache", zap.String("path", path))
		return cache, nil

	default:
		return nil, nil
	}
}

// loadCatalog reads the YAML catalog and mirrors it into the store, or
// falls back to the ports already stored when no catalog file is set
func (a *App) loadCatalog(ctx context.Context) error {
	path := a.Config.Ports.CatalogPath

	if path == "" {
		if a.Store == nil {
			return errors.New("app: ports.catalog_path is required without the sqlite backend")
		}
		cat, err := catalog.FromRepository(ctx, a.Store.Ports())
		if err != nil {
			return err
		}
		if cat.Len() == 0 {
			return errors.New("app: no ports stored and no ports.catalog_path set")
		}
		a.Catalog = cat
		a.Logger.Info("[APP] Loaded stored port catalog", zap.Int("ports", cat.Len()))
		return nil
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}
	a.Catalog = cat
	a.Logger.Info("[APP] Loaded port catalog", zap.String("path", path), zap.Int("ports", cat.Len()))

	if a.Store != nil {
		if err := cat.Sync(ctx, a.Store.Ports()); err != nil {
			return fmt.Errorf("failed to store port catalog: %w", err)
		}
	}
	return nil
}

// ClearDistanceCache drops the cached distances of this grid. It is a no-op
// without a cache.
func (a *App) ClearDistanceCache(ctx context.Context) error {
	if a.DistanceCache == nil {
		return nil
	}
	if err := a.DistanceCache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}
	a.Logger.Info("[APP] Cleared distance cache", zap.String("grid_key", a.GridKey))
	return nil
}

// HealthCheck reports whether the storage backend is usable
func (a *App) HealthCheck(ctx context.Context) error {
	switch {
	case a.Store != nil:
		return a.Store.HealthCheck(ctx)
	case a.redis != nil:
		return a.redis.Ping(ctx).Err()
	default:
		return nil
	}
}

// HasStorage reports whether a backend with a health check is configured
func (a *App) HasStorage() bool {
	return a.Store != nil || a.redis != nil
}

// Close releases storage connections
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
