package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"agriport/internal/models"
)

// FileDistanceEntry is one cached distance in the cache file
type FileDistanceEntry struct {
	GridKey     string  `json:"grid_key"`
	GridPointID int64   `json:"grid_point_id"`
	PortID      int64   `json:"port_id"`
	DistanceKm  float64 `json:"distance_km"`
}

// FileDistanceCacheData represents the structure of the cache file
type FileDistanceCacheData struct {
	Entries []FileDistanceEntry `json:"entries"`
}

type fileCacheKey struct {
	gridKey string
	pair    models.PairKey
}

// FileDistanceCache is a file-based implementation of DistanceCacheRepository.
// One file can hold several grid keys; each instance reads and writes one.
type FileDistanceCache struct {
	filePath string
	gridKey  string
	data     *FileDistanceCacheData
	index    map[fileCacheKey]int
	mu       sync.RWMutex
}

// NewFileDistanceCache opens or creates the cache file at filePath
func NewFileDistanceCache(filePath, gridKey string) (*FileDistanceCache, error) {
	cache := &FileDistanceCache{
		filePath: filePath,
		gridKey:  gridKey,
		data:     &FileDistanceCacheData{Entries: []FileDistanceEntry{}},
		index:    make(map[fileCacheKey]int),
	}

	if err := cache.load(); err != nil {
		return nil, err
	}

	return cache, nil
}

func (c *FileDistanceCache) load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.filePath)
	if os.IsNotExist(err) {
		c.data = &FileDistanceCacheData{Entries: []FileDistanceEntry{}}
		return c.saveUnlocked()
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	if err := json.Unmarshal(data, c.data); err != nil {
		return fmt.Errorf("failed to parse cache file: %w", err)
	}

	if c.data.Entries == nil {
		c.data.Entries = []FileDistanceEntry{}
	}

	c.rebuildIndex()
	return nil
}

func (c *FileDistanceCache) saveUnlocked() error {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tmpFile := c.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tmpFile, c.filePath); err != nil {
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	return nil
}

func (c *FileDistanceCache) GetBatch(ctx context.Context, gridPointIDs, portIDs []int64) (map[models.PairKey]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[models.PairKey]float64)
	for _, gpID := range gridPointIDs {
		for _, portID := range portIDs {
			pair := models.PairKey{GridPointID: gpID, PortID: portID}
			if idx, ok := c.index[fileCacheKey{gridKey: c.gridKey, pair: pair}]; ok {
				result[pair] = c.data.Entries[idx].DistanceKm
			}
		}
	}

	return result, nil
}

func (c *FileDistanceCache) SetBatch(ctx context.Context, records []models.DistanceRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for _, rec := range records {
		km, ok := rec.DistanceKm.Get()
		if !ok {
			continue
		}
		entry := FileDistanceEntry{GridKey: c.gridKey, GridPointID: rec.GridPointID, PortID: rec.PortID, DistanceKm: km}
		key := fileCacheKey{gridKey: c.gridKey, pair: rec.Key()}

		if idx, ok := c.index[key]; ok {
			c.data.Entries[idx] = entry
		} else {
			c.data.Entries = append(c.data.Entries, entry)
			c.index[key] = len(c.data.Entries) - 1
		}
		changed = true
	}

	if !changed {
		return nil
	}
	return c.saveUnlocked()
}

// Clear removes the entries of this instance's grid key
func (c *FileDistanceCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.data.Entries[:0]
	for _, e := range c.data.Entries {
		if e.GridKey != c.gridKey {
			kept = append(kept, e)
		}
	}
	c.data.Entries = kept
	c.rebuildIndex()
	return c.saveUnlocked()
}

// rebuildIndex must be called with the mutex held
func (c *FileDistanceCache) rebuildIndex() {
	c.index = make(map[fileCacheKey]int, len(c.data.Entries))
	for i, e := range c.data.Entries {
		key := fileCacheKey{gridKey: e.GridKey, pair: models.PairKey{GridPointID: e.GridPointID, PortID: e.PortID}}
		c.index[key] = i
	}
}
