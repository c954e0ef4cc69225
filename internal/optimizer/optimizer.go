// Package optimizer selects the cheapest port for every grid point and
// detects grid points where two ports are cost-competitive.
package optimizer

import (
	"sort"

	"go.uber.org/zap"

	"agriport/internal/cost"
	"agriport/internal/models"
)

// DefaultGradientThreshold is the relative cost gap under which a grid point
// is treated as a boundary between two ports.
const DefaultGradientThreshold = 0.05

// Result contains the output of an optimal-port assignment.
type Result struct {
	// Costs holds one record per viable (grid point, port) pair, ordered by
	// grid point, total cost and port id.
	Costs []models.CostRecord
	// Assignments holds the cheapest port per grid point, ordered by grid point.
	Assignments []models.Assignment
	// Unassigned lists grid points with no viable port, ascending.
	Unassigned []int64
}

// Engine evaluates costs and picks optimal ports.
type Engine struct {
	model     cost.Model
	threshold float64
	logger    *zap.Logger
}

// NewEngine creates an engine using the given cost model and gradient threshold
func NewEngine(model cost.Model, threshold float64, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{model: model, threshold: threshold, logger: logger}
}

var defaultEngine = NewEngine(cost.DefaultModel, DefaultGradientThreshold, nil)

// FindOptimalPort uses the default cost model.
func FindOptimalPort(records []models.DistanceRecord, profiles map[int64]models.Port, fuelPrice float64) *Result {
	return defaultEngine.FindOptimalPort(records, profiles, fuelPrice)
}

// GenerateCostGradients uses the given threshold.
func GenerateCostGradients(costs []models.CostRecord, threshold float64) []models.BoundaryRecord {
	return generateCostGradients(costs, threshold)
}

// FindOptimalPort computes a CostRecord for every pair with a known distance
// and a registered port profile, then picks the minimum total cost per grid
// point. Equal costs go to the lower port id. When the same pair appears more
// than once the last record wins.
func (e *Engine) FindOptimalPort(records []models.DistanceRecord, profiles map[int64]models.Port, fuelPrice float64) *Result {
	latest := make(map[models.PairKey]int, len(records))
	seen := make(map[int64]bool)
	for i, rec := range records {
		latest[rec.Key()] = i
		seen[rec.GridPointID] = true
	}

	costs := make([]models.CostRecord, 0, len(records))
	skippedUnknownPort := 0
	for i, rec := range records {
		if latest[rec.Key()] != i || !rec.DistanceKm.Valid {
			continue
		}
		port, ok := profiles[rec.PortID]
		if !ok {
			skippedUnknownPort++
			continue
		}
		costs = append(costs, models.CostRecord{
			GridPointID: rec.GridPointID,
			PortID:      rec.PortID,
			DistanceKm:  rec.DistanceKm,
			PortCharge:  port.PortCharge,
			SeaFreight:  port.SeaFreight,
			FuelPrice:   fuelPrice,
			TotalCost:   e.model.TotalCost(port.PortCharge, port.SeaFreight, rec.DistanceKm, fuelPrice),
		})
	}
	sortCosts(costs)

	result := &Result{Costs: costs}
	for i, c := range costs {
		if i > 0 && costs[i-1].GridPointID == c.GridPointID {
			continue
		}
		result.Assignments = append(result.Assignments, models.Assignment{
			GridPointID:   c.GridPointID,
			OptimalPortID: c.PortID,
			TotalCost:     c.TotalCost.Float,
			DistanceKm:    c.DistanceKm.Float,
		})
	}

	assigned := make(map[int64]bool, len(result.Assignments))
	for _, a := range result.Assignments {
		assigned[a.GridPointID] = true
	}
	for id := range seen {
		if !assigned[id] {
			result.Unassigned = append(result.Unassigned, id)
		}
	}
	sort.Slice(result.Unassigned, func(i, j int) bool { return result.Unassigned[i] < result.Unassigned[j] })

	if skippedUnknownPort > 0 {
		e.logger.Warn("[OPTIMIZER] Distance records reference unregistered ports", zap.Int("records", skippedUnknownPort))
	}
	e.logger.Info("[OPTIMIZER] Optimal ports selected",
		zap.Int("grid_points", len(seen)),
		zap.Int("viable_pairs", len(costs)),
		zap.Int("assigned", len(result.Assignments)),
		zap.Int("unassigned", len(result.Unassigned)),
	)

	return result
}

// GenerateCostGradients applies the engine's threshold.
func (e *Engine) GenerateCostGradients(costs []models.CostRecord) []models.BoundaryRecord {
	boundaries := generateCostGradients(costs, e.threshold)
	e.logger.Info("[OPTIMIZER] Cost gradients generated",
		zap.Float64("threshold", e.threshold),
		zap.Int("boundary_points", len(boundaries)),
	)
	return boundaries
}

// generateCostGradients emits a BoundaryRecord for every grid point whose two
// cheapest viable ports differ by a relative gap of at most threshold.
// gradient_value is 1 at an exact tie and 0 at the threshold. A threshold of
// zero or less only matches exact ties.
func generateCostGradients(costs []models.CostRecord, threshold float64) []models.BoundaryRecord {
	viable := make([]models.CostRecord, 0, len(costs))
	for _, c := range costs {
		if c.TotalCost.Valid {
			viable = append(viable, c)
		}
	}
	sortCosts(viable)

	var boundaries []models.BoundaryRecord
	for start := 0; start < len(viable); {
		end := start + 1
		for end < len(viable) && viable[end].GridPointID == viable[start].GridPointID {
			end++
		}
		if end-start >= 2 {
			best, second := viable[start], viable[start+1]
			if gap, ok := relativeGap(best.TotalCost.Float, second.TotalCost.Float); ok {
				if rec, ok := boundaryRecord(best, second, gap, threshold); ok {
					boundaries = append(boundaries, rec)
				}
			}
		}
		start = end
	}

	return boundaries
}

func relativeGap(best, second float64) (float64, bool) {
	if best <= 0 {
		// a zero best cost only forms a boundary with another zero
		return 0, second == best
	}
	return (second - best) / best, true
}

func boundaryRecord(best, second models.CostRecord, gap, threshold float64) (models.BoundaryRecord, bool) {
	var gradient float64
	switch {
	case gap == 0:
		gradient = 1
	case threshold <= 0 || gap > threshold:
		return models.BoundaryRecord{}, false
	default:
		gradient = 1 - gap/threshold
	}
	if gradient < 0 {
		gradient = 0
	}

	return models.BoundaryRecord{
		GridPointID:   best.GridPointID,
		PortID1:       best.PortID,
		PortID2:       second.PortID,
		Cost1:         best.TotalCost.Float,
		Cost2:         second.TotalCost.Float,
		GradientValue: gradient,
	}, true
}

// sortCosts orders by grid point, then total cost, then port id.
func sortCosts(costs []models.CostRecord) {
	sort.Slice(costs, func(i, j int) bool {
		a, b := costs[i], costs[j]
		if a.GridPointID != b.GridPointID {
			return a.GridPointID < b.GridPointID
		}
		if a.TotalCost.Float != b.TotalCost.Float {
			return a.TotalCost.Float < b.TotalCost.Float
		}
		return a.PortID < b.PortID
	})
}
