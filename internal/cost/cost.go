// Package cost computes per-ton shipping costs from a grid point through a port.
// All functions are pure and safe for concurrent use.
package cost

import "agriport/internal/models"

const (
	// DefaultFuelEfficiency is truck fuel consumption in liters per kilometer.
	DefaultFuelEfficiency = 0.4
	// TruckCapacityTons is the load of one truck.
	TruckCapacityTons = 25.0
)

// Model holds the parameters of the road transportation cost.
type Model struct {
	FuelEfficiency float64
}

// DefaultModel uses DefaultFuelEfficiency.
var DefaultModel = Model{FuelEfficiency: DefaultFuelEfficiency}

// TransportationCost returns the road cost per ton for the distance.
// An unreachable distance yields an unreachable cost.
func (m Model) TransportationCost(distanceKm models.NullFloat, fuelPrice float64) models.NullFloat {
	km, ok := distanceKm.Get()
	if !ok {
		return models.Unreachable()
	}
	costPerTruck := km * m.FuelEfficiency * fuelPrice
	return models.Known(costPerTruck / TruckCapacityTons)
}

// TotalCost returns port charge + transportation cost + sea freight per ton.
func (m Model) TotalCost(portCharge, seaFreight float64, distanceKm models.NullFloat, fuelPrice float64) models.NullFloat {
	transport, ok := m.TransportationCost(distanceKm, fuelPrice).Get()
	if !ok {
		return models.Unreachable()
	}
	return models.Known(portCharge + transport + seaFreight)
}

// TransportationCost is Model.TransportationCost with an explicit fuel efficiency.
func TransportationCost(distanceKm models.NullFloat, fuelPrice, fuelEfficiency float64) models.NullFloat {
	return Model{FuelEfficiency: fuelEfficiency}.TransportationCost(distanceKm, fuelPrice)
}

// TotalCost is DefaultModel.TotalCost.
func TotalCost(portCharge, seaFreight float64, distanceKm models.NullFloat, fuelPrice float64) models.NullFloat {
	return DefaultModel.TotalCost(portCharge, seaFreight, distanceKm, fuelPrice)
}
