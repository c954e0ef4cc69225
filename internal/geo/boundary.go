package geo

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// geojsonHeader captures the members needed to pick a decoder and a
// source CRS. The crs member is from the pre-RFC 7946 GeoJSON format but is
// still written by most GIS exports.
type geojsonHeader struct {
	Type string `json:"type"`
	CRS  *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// LoadBoundary reads a GeoJSON boundary file and returns its polygonal
// parts in WGS84.
func LoadBoundary(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &GeometryLoadError{Source: path, Reason: "cannot read boundary file", Err: err}
	}
	return ParseBoundary(data, path)
}

// ParseBoundary decodes a GeoJSON FeatureCollection, Feature or geometry.
// Polygon and MultiPolygon parts are merged into one MultiPolygon, other
// geometry types are ignored.
func ParseBoundary(data []byte, source string) (orb.MultiPolygon, error) {
	var header geojsonHeader
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, &GeometryLoadError{Source: source, Reason: "invalid GeoJSON", Err: err}
	}

	var geometries []orb.Geometry
	switch header.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, &GeometryLoadError{Source: source, Reason: "invalid feature collection", Err: err}
		}
		for _, f := range fc.Features {
			geometries = append(geometries, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, &GeometryLoadError{Source: source, Reason: "invalid feature", Err: err}
		}
		geometries = append(geometries, f.Geometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, &GeometryLoadError{Source: source, Reason: "invalid geometry", Err: err}
		}
		geometries = append(geometries, g.Geometry())
	}

	var boundary orb.MultiPolygon
	for _, g := range geometries {
		switch v := g.(type) {
		case orb.Polygon:
			boundary = append(boundary, v)
		case orb.MultiPolygon:
			boundary = append(boundary, v...)
		}
	}
	if len(boundary) == 0 {
		return nil, &GeometryLoadError{Source: source, Reason: "no polygon geometry found"}
	}

	crsName := ""
	if header.CRS != nil {
		crsName = header.CRS.Properties.Name
	}
	boundary, err := toWGS84(boundary, crsName, source)
	if err != nil {
		return nil, err
	}

	b := boundary.Bound()
	if b.Min.Lon() < -180 || b.Max.Lon() > 180 || b.Min.Lat() < -90 || b.Max.Lat() > 90 {
		return nil, &GeometryLoadError{Source: source, Reason: "coordinates outside WGS84 range, missing crs?"}
	}

	return boundary, nil
}

func toWGS84(mp orb.MultiPolygon, crsName, source string) (orb.MultiPolygon, error) {
	name := strings.ToUpper(crsName)
	switch {
	case name == "", strings.HasSuffix(name, "CRS84"), strings.HasSuffix(name, ":4326"), strings.HasSuffix(name, "::4326"):
		return mp, nil
	case strings.HasSuffix(name, ":3857"), strings.HasSuffix(name, "::3857"), strings.HasSuffix(name, ":900913"):
		return project.MultiPolygon(mp.Clone(), project.Mercator.ToWGS84), nil
	default:
		return nil, &GeometryLoadError{Source: source, Reason: "unsupported crs " + crsName}
	}
}
