package models

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/paulmach/orb"
)

// Coordinates represents a geographic point in WGS84
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the coordinates as an orb point (lon, lat order)
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// NullFloat is a float that is either known or unreachable.
// It marshals to a JSON number or null.
type NullFloat struct {
	Float float64
	Valid bool
}

// Known returns a NullFloat holding v
func Known(v float64) NullFloat {
	return NullFloat{Float: v, Valid: true}
}

// Unreachable returns the empty NullFloat
func Unreachable() NullFloat {
	return NullFloat{}
}

// Get returns the value and whether it is known
func (n NullFloat) Get() (float64, bool) {
	return n.Float, n.Valid
}

func (n NullFloat) String() string {
	if !n.Valid {
		return "unreachable"
	}
	return strconv.FormatFloat(n.Float, 'f', -1, 64)
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float)
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = NullFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Known(v)
	return nil
}

// GridPoint is a lattice-sampled location inside the target boundary
type GridPoint struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GetCoords returns the coordinates of the grid point
func (g *GridPoint) GetCoords() Coordinates {
	return Coordinates{Lat: g.Lat, Lon: g.Lon}
}

// Port is a candidate shipping outlet. Charges are supplied per request.
type Port struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Active     bool    `json:"active"`
	PortCharge float64 `json:"port_charge"`
	SeaFreight float64 `json:"sea_freight"`
}

// GetCoords returns the coordinates of the port
func (p *Port) GetCoords() Coordinates {
	return Coordinates{Lat: p.Lat, Lon: p.Lon}
}

// PairKey identifies a grid point / port pair
type PairKey struct {
	GridPointID int64
	PortID      int64
}

// DistanceRecord is the road distance from a grid point to a port
type DistanceRecord struct {
	GridPointID int64     `json:"grid_point_id"`
	PortID      int64     `json:"port_id"`
	DistanceKm  NullFloat `json:"distance_km"`
}

// Key returns the pair key of the record
func (d DistanceRecord) Key() PairKey {
	return PairKey{GridPointID: d.GridPointID, PortID: d.PortID}
}

// CostRecord is the total shipping cost from a grid point through a port.
// TotalCost is known iff DistanceKm is known.
type CostRecord struct {
	GridPointID int64     `json:"grid_point_id"`
	PortID      int64     `json:"port_id"`
	DistanceKm  NullFloat `json:"distance_km"`
	PortCharge  float64   `json:"port_charge"`
	SeaFreight  float64   `json:"sea_freight"`
	FuelPrice   float64   `json:"fuel_price"`
	TotalCost   NullFloat `json:"total_cost"`
}

// Assignment is the lowest-cost port for a grid point
type Assignment struct {
	GridPointID   int64   `json:"grid_point_id"`
	OptimalPortID int64   `json:"optimal_port_id"`
	TotalCost     float64 `json:"total_cost"`
	DistanceKm    float64 `json:"distance_km"`
}

// BoundaryRecord marks a grid point whose two cheapest ports are within the
// gradient threshold of each other. Cost1 <= Cost2.
type BoundaryRecord struct {
	GridPointID   int64   `json:"grid_point_id"`
	PortID1       int64   `json:"port_id_1"`
	PortID2       int64   `json:"port_id_2"`
	Cost1         float64 `json:"cost_1"`
	Cost2         float64 `json:"cost_2"`
	GradientValue float64 `json:"gradient_value"`
}

// PortRegion is the approximate service area of a port
type PortRegion struct {
	PortID     int64       `json:"port_id"`
	PointCount int         `json:"point_count"`
	Hull       orb.Polygon `json:"-"`
}

// ExportRow is a flat row of the export table. Rows for unassigned grid
// points carry Reachable=false and null port, distance and cost.
type ExportRow struct {
	GridPointID   int64     `json:"grid_point_id"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	OptimalPortID *int64    `json:"optimal_port_id"`
	DistanceKm    NullFloat `json:"distance_km"`
	TotalCost     NullFloat `json:"total_cost"`
	Reachable     bool      `json:"reachable"`
}
