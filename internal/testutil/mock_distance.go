package testutil

import (
	"context"
	"sync"

	"agriport/internal/models"
)

// MockDistanceCache is an in-memory implementation of DistanceCacheRepository
type MockDistanceCache struct {
	mu      sync.Mutex
	entries map[models.PairKey]float64

	// GetErr and SetErr, when set, are returned by GetBatch and SetBatch
	GetErr error
	SetErr error

	GetCalls int
	SetCalls int
}

func NewMockDistanceCache() *MockDistanceCache {
	return &MockDistanceCache{entries: make(map[models.PairKey]float64)}
}

// Put stores a known distance directly
func (m *MockDistanceCache) Put(gridPointID, portID int64, km float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[models.PairKey{GridPointID: gridPointID, PortID: portID}] = km
}

// Lookup returns a stored distance
func (m *MockDistanceCache) Lookup(gridPointID, portID int64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	km, ok := m.entries[models.PairKey{GridPointID: gridPointID, PortID: portID}]
	return km, ok
}

// Len returns the number of stored distances
func (m *MockDistanceCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MockDistanceCache) GetBatch(ctx context.Context, gridPointIDs, portIDs []int64) (map[models.PairKey]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	result := make(map[models.PairKey]float64)
	for _, gp := range gridPointIDs {
		for _, p := range portIDs {
			key := models.PairKey{GridPointID: gp, PortID: p}
			if km, ok := m.entries[key]; ok {
				result[key] = km
			}
		}
	}
	return result, nil
}

func (m *MockDistanceCache) SetBatch(ctx context.Context, records []models.DistanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}

	for _, rec := range records {
		if km, ok := rec.DistanceKm.Get(); ok {
			m.entries[rec.Key()] = km
		}
	}
	return nil
}

func (m *MockDistanceCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[models.PairKey]float64)
	return nil
}
