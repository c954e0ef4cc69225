package geo

import (
	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// ConvexHull returns the convex hull of points as a closed counter-clockwise
// ring. It returns nil when fewer than three distinct, non-collinear points
// are given.
func ConvexHull(points []orb.Point) orb.Ring {
	xys := make([]float64, 0, 2*len(points))
	for _, p := range points {
		xys = append(xys, p[0], p[1])
	}

	// a hull of one point or one segment comes back as a Point or LineString
	poly, ok := geom.NewMultiPointXY(xys...).ConvexHull().AsPolygon()
	if !ok {
		return nil
	}

	seq := poly.ExteriorRing().Coordinates()
	ring := make(orb.Ring, seq.Length())
	for i := range ring {
		xy := seq.GetXY(i)
		ring[i] = orb.Point{xy.X, xy.Y}
	}
	if ring.Orientation() == orb.CW {
		ring.Reverse()
	}
	return ring
}
