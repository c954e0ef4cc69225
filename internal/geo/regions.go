package geo

import (
	"fmt"
	"io"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"agriport/internal/models"
)

// MinRegionPoints is the smallest group of grid points that gets a region.
const MinRegionPoints = 3

// CreatePortRegions groups grid points by assigned port and outlines each
// group with its convex hull. Groups with fewer than MinRegionPoints located
// points, or whose points are collinear, get no region. Regions are ordered
// by port id.
func CreatePortRegions(assignments []models.Assignment, locations map[int64]models.Coordinates) []models.PortRegion {
	groups := make(map[int64][]orb.Point)
	for _, a := range assignments {
		loc, ok := locations[a.GridPointID]
		if !ok {
			continue
		}
		groups[a.OptimalPortID] = append(groups[a.OptimalPortID], loc.Point())
	}

	portIDs := make([]int64, 0, len(groups))
	for id := range groups {
		portIDs = append(portIDs, id)
	}
	sort.Slice(portIDs, func(i, j int) bool { return portIDs[i] < portIDs[j] })

	regions := make([]models.PortRegion, 0, len(portIDs))
	for _, id := range portIDs {
		pts := groups[id]
		if len(pts) < MinRegionPoints {
			continue
		}
		hull := ConvexHull(pts)
		if hull == nil {
			continue
		}
		regions = append(regions, models.PortRegion{
			PortID:     id,
			PointCount: len(pts),
			Hull:       orb.Polygon{hull},
		})
	}

	return regions
}

// GridLocations indexes grid point coordinates by id.
func GridLocations(points []models.GridPoint) map[int64]models.Coordinates {
	locations := make(map[int64]models.Coordinates, len(points))
	for i := range points {
		locations[points[i].ID] = points[i].GetCoords()
	}
	return locations
}

// RegionsFeatureCollection renders regions as GeoJSON polygons for map layers.
func RegionsFeatureCollection(regions []models.PortRegion) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range regions {
		f := geojson.NewFeature(r.Hull)
		f.Properties["port_id"] = r.PortID
		f.Properties["point_count"] = r.PointCount
		f.Properties["area"] = planar.Area(r.Hull)
		fc.Append(f)
	}
	return fc
}

// RegionWKT returns the region outline as WKT.
func RegionWKT(r models.PortRegion) string {
	return wkt.MarshalString(r.Hull)
}

// WriteRegionsWKT writes one "port_id<TAB>wkt" line per region.
func WriteRegionsWKT(w io.Writer, regions []models.PortRegion) error {
	for _, r := range regions {
		if _, err := fmt.Fprintf(w, "%d\t%s\n", r.PortID, RegionWKT(r)); err != nil {
			return err
		}
	}
	return nil
}
