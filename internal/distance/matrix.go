package distance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agriport/internal/models"
)

// block is a rectangle of the matrix served by one table request
type block struct {
	originStart, originEnd int
	destStart, destEnd     int
}

func (b block) rows() int { return b.originEnd - b.originStart }
func (b block) cols() int { return b.destEnd - b.destStart }

// partition splits an n×m matrix into blocks of at most size×size, origin-major
func partition(n, m, size int) []block {
	var blocks []block
	for o := 0; o < n; o += size {
		for d := 0; d < m; d += size {
			blocks = append(blocks, block{
				originStart: o,
				originEnd:   min(o+size, n),
				destStart:   d,
				destEnd:     min(d+size, m),
			})
		}
	}
	return blocks
}

// GetDistanceMatrix returns road distances in km from every origin to every
// destination. A failed block leaves its cells unreachable; other blocks are
// unaffected. batchSize <= 0 uses the configured batch size.
func (c *Client) GetDistanceMatrix(ctx context.Context, origins, destinations []models.Coordinates, batchSize int) [][]models.NullFloat {
	matrix := make([][]models.NullFloat, len(origins))
	for i := range matrix {
		matrix[i] = make([]models.NullFloat, len(destinations))
	}
	if len(origins) == 0 || len(destinations) == 0 {
		return matrix
	}

	if batchSize <= 0 {
		batchSize = c.cfg.BatchSize
	}
	blocks := partition(len(origins), len(destinations), batchSize)

	c.logger.Info("[OSRM] Distance matrix request",
		zap.Int("origins", len(origins)),
		zap.Int("destinations", len(destinations)),
		zap.Int("batch_size", batchSize),
		zap.Int("requests", len(blocks)))

	var failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(c.cfg.Workers)

	for i, b := range blocks {
		if ctx.Err() != nil {
			failed.Add(int64(len(blocks) - i))
			break
		}
		g.Go(func() error {
			if err := c.fetchBlock(ctx, origins, destinations, b, matrix); err != nil {
				failed.Add(1)
				c.logger.Error("[OSRM] Table request failed, block left unreachable",
					zap.Int("origin_start", b.originStart),
					zap.Int("origin_end", b.originEnd),
					zap.Int("dest_start", b.destStart),
					zap.Int("dest_end", b.destEnd),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	unreachable := 0
	for _, row := range matrix {
		for _, cell := range row {
			if !cell.Valid {
				unreachable++
			}
		}
	}
	c.metrics.AddUnreachable(unreachable)

	c.logger.Info("[OSRM] Distance matrix complete",
		zap.Int("requests", len(blocks)),
		zap.Int64("failed_requests", failed.Load()),
		zap.Int("unreachable_cells", unreachable))

	return matrix
}

// fetchBlock fills the cells of one block. Each block owns a disjoint set of
// cells, so concurrent blocks never write the same element.
func (c *Client) fetchBlock(ctx context.Context, origins, destinations []models.Coordinates, b block, matrix [][]models.NullFloat) error {
	coords := make([]string, 0, b.rows()+b.cols())
	sources := make([]string, 0, b.rows())
	dests := make([]string, 0, b.cols())

	for i := b.originStart; i < b.originEnd; i++ {
		sources = append(sources, strconv.Itoa(len(coords)))
		coords = append(coords, formatCoord(origins[i]))
	}
	for j := b.destStart; j < b.destEnd; j++ {
		dests = append(dests, strconv.Itoa(len(coords)))
		coords = append(coords, formatCoord(destinations[j]))
	}

	queryURL := fmt.Sprintf("%s/table/v1/%s/%s?sources=%s&destinations=%s&annotations=distance",
		c.cfg.BaseURL, c.cfg.Profile,
		strings.Join(coords, ";"), strings.Join(sources, ";"), strings.Join(dests, ";"))

	var resp osrmTableResponse
	if err := c.fetch(ctx, "table", queryURL, &resp); err != nil {
		return err
	}

	if resp.Code != "Ok" {
		return &ErrRoutingFailed{Endpoint: "table", Reason: "OSRM error code " + resp.Code}
	}
	if len(resp.Distances) != b.rows() {
		return &ErrRoutingFailed{
			Endpoint: "table",
			Reason:   fmt.Sprintf("expected %d rows, got %d", b.rows(), len(resp.Distances)),
		}
	}
	for i, row := range resp.Distances {
		if len(row) != b.cols() {
			return &ErrRoutingFailed{
				Endpoint: "table",
				Reason:   fmt.Sprintf("row %d: expected %d columns, got %d", i, b.cols(), len(row)),
			}
		}
	}

	for i, row := range resp.Distances {
		for j, d := range row {
			if d != nil && *d >= 0 {
				matrix[b.originStart+i][b.destStart+j] = models.Known(*d / 1000)
			}
		}
	}
	return nil
}

// ComputeGridToPortsDistances returns one record per (grid point, port) pair,
// grid-point-major. Cached distances are reused; only grid points with a
// missing pair are sent to the routing service.
func (c *Client) ComputeGridToPortsDistances(ctx context.Context, gridPoints []models.GridPoint, ports []models.Port) []models.DistanceRecord {
	if len(gridPoints) == 0 || len(ports) == 0 {
		return []models.DistanceRecord{}
	}
	known := make(map[models.PairKey]float64)

	gridIDs := make([]int64, len(gridPoints))
	for i, gp := range gridPoints {
		gridIDs[i] = gp.ID
	}
	portIDs := make([]int64, len(ports))
	destinations := make([]models.Coordinates, len(ports))
	for j := range ports {
		portIDs[j] = ports[j].ID
		destinations[j] = ports[j].GetCoords()
	}

	if c.cache != nil {
		cached, err := c.cache.GetBatch(ctx, gridIDs, portIDs)
		if err != nil {
			c.logger.Warn("[OSRM] Distance cache read failed, querying all pairs", zap.Error(err))
		} else if cached != nil {
			known = cached
		}
	}

	var missing []int
	for i, gp := range gridPoints {
		for _, p := range ports {
			if _, ok := known[models.PairKey{GridPointID: gp.ID, PortID: p.ID}]; !ok {
				missing = append(missing, i)
				break
			}
		}
	}

	c.logger.Info("[OSRM] Grid to ports distances",
		zap.Int("grid_points", len(gridPoints)),
		zap.Int("ports", len(ports)),
		zap.Int("cached_pairs", len(known)),
		zap.Int("grid_points_to_fetch", len(missing)))
	c.metrics.ObserveCache(len(known), len(missing))

	if len(missing) > 0 {
		origins := make([]models.Coordinates, len(missing))
		for k, i := range missing {
			origins[k] = gridPoints[i].GetCoords()
		}

		matrix := c.GetDistanceMatrix(ctx, origins, destinations, c.cfg.BatchSize)

		var fresh []models.DistanceRecord
		for k, i := range missing {
			for j, p := range ports {
				cell := matrix[k][j]
				if !cell.Valid {
					continue
				}
				rec := models.DistanceRecord{GridPointID: gridPoints[i].ID, PortID: p.ID, DistanceKm: cell}
				known[rec.Key()] = cell.Float
				fresh = append(fresh, rec)
			}
		}

		if c.cache != nil && len(fresh) > 0 {
			if err := c.cache.SetBatch(ctx, fresh); err != nil {
				c.logger.Warn("[OSRM] Distance cache write failed", zap.Int("records", len(fresh)), zap.Error(err))
			}
		}
	}

	records := make([]models.DistanceRecord, 0, len(gridPoints)*len(ports))
	for _, gp := range gridPoints {
		for _, p := range ports {
			rec := models.DistanceRecord{GridPointID: gp.ID, PortID: p.ID, DistanceKm: models.Unreachable()}
			if km, ok := known[rec.Key()]; ok {
				rec.DistanceKm = models.Known(km)
			}
			records = append(records, rec)
		}
	}
	return records
}
