package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"agriport/internal/models"
)

// edgeTolerance is the distance in degrees under which a point counts as
// lying on a boundary ring.
const edgeTolerance = 1e-9

// GridKey names a grid built from a boundary at a resolution. Cached grid
// points and distances are namespaced by it.
func GridKey(boundaryName string, gridSize int) string {
	return fmt.Sprintf("%s@%d", boundaryName, gridSize)
}

// CreateGrid samples gridSize evenly spaced values on each axis of the
// boundary's bounding box, both extremes included, and keeps the lattice
// points strictly inside the boundary. Points are numbered from 1 in
// latitude-major order.
func CreateGrid(boundary orb.MultiPolygon, gridSize int) ([]models.GridPoint, error) {
	if gridSize < 1 {
		return nil, &GeometryLoadError{Source: "grid", Reason: fmt.Sprintf("grid size must be positive, got %d", gridSize)}
	}
	if len(boundary) == 0 {
		return nil, &GeometryLoadError{Source: "grid", Reason: "empty boundary"}
	}

	bound := boundary.Bound()
	lats := linspace(bound.Min.Lat(), bound.Max.Lat(), gridSize)
	lons := linspace(bound.Min.Lon(), bound.Max.Lon(), gridSize)

	points := make([]models.GridPoint, 0, gridSize*gridSize/2)
	var nextID int64 = 1
	for _, lat := range lats {
		for _, lon := range lons {
			if !Contains(boundary, orb.Point{lon, lat}) {
				continue
			}
			points = append(points, models.GridPoint{ID: nextID, Lat: lat, Lon: lon})
			nextID++
		}
	}

	return points, nil
}

// Contains reports whether p lies strictly inside the boundary: inside an
// exterior ring, outside every hole and not on any ring edge.
func Contains(boundary orb.MultiPolygon, p orb.Point) bool {
	if !planar.MultiPolygonContains(boundary, p) {
		return false
	}
	for _, poly := range boundary {
		for _, ring := range poly {
			if onRing(ring, p) {
				return false
			}
		}
	}
	return true
}

func onRing(ring orb.Ring, p orb.Point) bool {
	for i := 0; i+1 < len(ring); i++ {
		if onSegment(ring[i], ring[i+1], p) {
			return true
		}
	}
	// rings are not always closed in the input
	if n := len(ring); n > 1 && !ring[0].Equal(ring[n-1]) {
		return onSegment(ring[n-1], ring[0], p)
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	return planar.DistanceFromSegment(a, b, p) <= edgeTolerance
}

// linspace returns n evenly spaced values from min to max inclusive.
func linspace(min, max float64, n int) []float64 {
	if n == 1 {
		return []float64{min}
	}
	values := make([]float64, n)
	step := (max - min) / float64(n-1)
	for i := range values {
		values[i] = min + float64(i)*step
	}
	values[n-1] = max
	return values
}
