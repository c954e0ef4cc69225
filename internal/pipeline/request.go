package pipeline

import (
	"fmt"
	"math"

	"agriport/internal/models"
)

// PortCharges carries the per-request charges for one catalog port
type PortCharges struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name,omitempty"`
	PortCharge float64 `json:"port_charge"`
	SeaFreight float64 `json:"sea_freight"`
}

// Request is the input of one optimization run
type Request struct {
	FuelPrice float64       `json:"fuel_price"`
	Ports     []PortCharges `json:"ports"`
}

// InputValidationError is returned when a request is rejected before any
// computation starts
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string {
	return fmt.Sprintf("invalid input: %s: %s", e.Field, e.Reason)
}

// PortCatalog resolves port locations by id
type PortCatalog interface {
	Get(id int64) (models.Port, bool)
}

// Validate checks req against the catalog and returns the port profiles in
// request order, with locations from the catalog and charges from req.
func Validate(req Request, catalog PortCatalog) ([]models.Port, error) {
	if math.IsNaN(req.FuelPrice) || math.IsInf(req.FuelPrice, 0) || req.FuelPrice <= 0 {
		return nil, &InputValidationError{Field: "fuel_price", Reason: "must be a positive number"}
	}
	if len(req.Ports) == 0 {
		return nil, &InputValidationError{Field: "ports", Reason: "at least one port is required"}
	}

	seen := make(map[int64]struct{}, len(req.Ports))
	profiles := make([]models.Port, 0, len(req.Ports))
	for i, pc := range req.Ports {
		field := fmt.Sprintf("ports[%d]", i)

		if _, dup := seen[pc.ID]; dup {
			return nil, &InputValidationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate port id %d", pc.ID)}
		}
		seen[pc.ID] = struct{}{}

		if !validCharge(pc.PortCharge) {
			return nil, &InputValidationError{Field: field + ".port_charge", Reason: "must be a non-negative number"}
		}
		if !validCharge(pc.SeaFreight) {
			return nil, &InputValidationError{Field: field + ".sea_freight", Reason: "must be a non-negative number"}
		}

		port, ok := catalog.Get(pc.ID)
		if !ok {
			return nil, &InputValidationError{Field: field + ".id", Reason: fmt.Sprintf("unknown port id %d", pc.ID)}
		}
		if !port.Active {
			return nil, &InputValidationError{Field: field + ".id", Reason: fmt.Sprintf("port %d is not active", pc.ID)}
		}

		port.PortCharge = pc.PortCharge
		port.SeaFreight = pc.SeaFreight
		if port.Name == "" {
			port.Name = pc.Name
		}
		profiles = append(profiles, port)
	}

	return profiles, nil
}

func validCharge(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
