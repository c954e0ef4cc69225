package database

import (
	"context"
	"errors"

	"agriport/internal/models"
)

// ErrNotFound is returned when a requested port does not exist
var ErrNotFound = errors.New("entity not found")

// DataStore is the interface for data persistence
type DataStore interface {
	Close() error
	HealthCheck(ctx context.Context) error
	GridPoints() GridPointRepository
	Ports() PortRepository
	DistanceCache(gridKey string) DistanceCacheRepository
}

// GridPointRepository persists generated grids under a grid key
type GridPointRepository interface {
	List(ctx context.Context, gridKey string) ([]models.GridPoint, error)
	Replace(ctx context.Context, gridKey string, points []models.GridPoint) error
}

// PortRepository handles port catalog persistence
type PortRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Port, error)
	GetByID(ctx context.Context, id int64) (*models.Port, error)
	Upsert(ctx context.Context, ports []models.Port) error
}

// DistanceCacheRepository stores known grid point to port distances.
// Unreachable pairs are never stored.
type DistanceCacheRepository interface {
	GetBatch(ctx context.Context, gridPointIDs, portIDs []int64) (map[models.PairKey]float64, error)
	SetBatch(ctx context.Context, records []models.DistanceRecord) error
	Clear(ctx context.Context) error
}
