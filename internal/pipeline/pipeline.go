// Package pipeline runs the optimization end to end: grid, distances, costs,
// assignments, boundaries, regions and export rows.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"agriport/internal/cost"
	"agriport/internal/database"
	"agriport/internal/export"
	"agriport/internal/geo"
	"agriport/internal/logging"
	"agriport/internal/metrics"
	"agriport/internal/models"
	"agriport/internal/optimizer"
)

// DistanceSource computes grid point to port distances
type DistanceSource interface {
	ComputeGridToPortsDistances(ctx context.Context, gridPoints []models.GridPoint, ports []models.Port) []models.DistanceRecord
}

// Config holds run parameters
type Config struct {
	GridKey           string
	GridSize          int
	FuelEfficiency    float64
	GradientThreshold float64
	Export            export.Options
}

// Output is the result of one run
type Output struct {
	RunID       string
	FuelPrice   float64
	Ports       []models.Port
	GridPoints  []models.GridPoint
	Distances   []models.DistanceRecord
	Costs       []models.CostRecord
	Assignments []models.Assignment
	Unassigned  []int64
	Boundaries  []models.BoundaryRecord
	Regions     []models.PortRegion
	Rows        []models.ExportRow
	StartedAt   time.Time
	Duration    time.Duration
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithGridRepository persists and reuses generated grids
func WithGridRepository(repo database.GridPointRepository) Option {
	return func(p *Pipeline) { p.grids = repo }
}

// WithMetrics records run metrics
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logging.OrNop(logger) }
}

// Pipeline wires the optimization components. Safe for concurrent runs.
type Pipeline struct {
	cfg       Config
	boundary  orb.MultiPolygon
	catalog   PortCatalog
	distances DistanceSource
	grids     database.GridPointRepository
	metrics   *metrics.Pipeline
	logger    *zap.Logger

	gridMu sync.Mutex
	grid   []models.GridPoint
}

// New creates a pipeline over one boundary
func New(cfg Config, boundary orb.MultiPolygon, catalog PortCatalog, distances DistanceSource, opts ...Option) *Pipeline {
	if cfg.FuelEfficiency <= 0 {
		cfg.FuelEfficiency = cost.DefaultFuelEfficiency
	}
	if cfg.GridKey == "" {
		cfg.GridKey = geo.GridKey("boundary", cfg.GridSize)
	}

	p := &Pipeline{
		cfg:       cfg,
		boundary:  boundary,
		catalog:   catalog,
		distances: distances,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Grid returns the grid for the configured boundary, loading it from the
// grid repository when present and generating it otherwise.
func (p *Pipeline) Grid(ctx context.Context) ([]models.GridPoint, error) {
	p.gridMu.Lock()
	defer p.gridMu.Unlock()

	if p.grid != nil {
		return p.grid, nil
	}

	if p.grids != nil {
		stored, err := p.grids.List(ctx, p.cfg.GridKey)
		if err != nil {
			p.logger.Warn("[PIPELINE] Failed to load stored grid, regenerating", zap.String("grid_key", p.cfg.GridKey), zap.Error(err))
		} else if len(stored) > 0 {
			p.logger.Info("[PIPELINE] Loaded stored grid", zap.String("grid_key", p.cfg.GridKey), zap.Int("points", len(stored)))
			p.grid = stored
			return p.grid, nil
		}
	}

	points, err := geo.CreateGrid(p.boundary, p.cfg.GridSize)
	if err != nil {
		return nil, err
	}
	p.logger.Info("[PIPELINE] Generated grid",
		zap.String("grid_key", p.cfg.GridKey), zap.Int("grid_size", p.cfg.GridSize), zap.Int("points", len(points)))

	if p.grids != nil {
		if err := p.grids.Replace(ctx, p.cfg.GridKey, points); err != nil {
			p.logger.Warn("[PIPELINE] Failed to store grid", zap.String("grid_key", p.cfg.GridKey), zap.Error(err))
		}
	}

	p.grid = points
	return p.grid, nil
}

// Run validates req and computes the optimal port assignment. Routing
// failures degrade pairs to unreachable and never fail the run.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))

	profiles, err := Validate(req, p.catalog)
	if err != nil {
		logger.Warn("[PIPELINE] Rejected request", zap.Error(err))
		p.metrics.ObserveRun("invalid_input", time.Since(started), 0, 0, 0)
		return nil, err
	}

	logger.Info("[PIPELINE] Run started", zap.Float64("fuel_price", req.FuelPrice), zap.Int("ports", len(profiles)))

	gridPoints, err := p.Grid(ctx)
	if err != nil {
		p.metrics.ObserveRun("error", time.Since(started), 0, 0, 0)
		return nil, fmt.Errorf("failed to build grid: %w", err)
	}

	distances := p.distances.ComputeGridToPortsDistances(ctx, gridPoints, profiles)
	if err := ctx.Err(); err != nil {
		p.metrics.ObserveRun("cancelled", time.Since(started), 0, 0, 0)
		return nil, err
	}

	byID := make(map[int64]models.Port, len(profiles))
	for _, port := range profiles {
		byID[port.ID] = port
	}

	engine := optimizer.NewEngine(cost.Model{FuelEfficiency: p.cfg.FuelEfficiency}, p.cfg.GradientThreshold, logger)
	result := engine.FindOptimalPort(distances, byID, req.FuelPrice)
	boundaries := engine.GenerateCostGradients(result.Costs)
	regions := geo.CreatePortRegions(result.Assignments, geo.GridLocations(gridPoints))
	rows := export.FormatResultsForExport(gridPoints, result.Assignments, p.cfg.Export)

	out := &Output{
		RunID:       runID,
		FuelPrice:   req.FuelPrice,
		Ports:       profiles,
		GridPoints:  gridPoints,
		Distances:   distances,
		Costs:       result.Costs,
		Assignments: result.Assignments,
		Unassigned:  result.Unassigned,
		Boundaries:  boundaries,
		Regions:     regions,
		Rows:        rows,
		StartedAt:   started,
		Duration:    time.Since(started),
	}

	p.metrics.ObserveRun("ok", out.Duration, len(out.Assignments), len(out.Unassigned), len(out.Boundaries))
	logger.Info("[PIPELINE] Run complete",
		zap.Int("grid_points", len(gridPoints)),
		zap.Int("assigned", len(out.Assignments)),
		zap.Int("unassigned", len(out.Unassigned)),
		zap.Int("boundaries", len(out.Boundaries)),
		zap.Int("regions", len(out.Regions)),
		zap.Duration("duration", out.Duration))

	return out, nil
}
