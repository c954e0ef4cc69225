package sqlite

import (
	"context"
	"fmt"
	"strings"

	"agriport/internal/models"
)

type distanceCacheRepository struct {
	store   *Store
	gridKey string
}

func (r *distanceCacheRepository) GetBatch(ctx context.Context, gridPointIDs, portIDs []int64) (map[models.PairKey]float64, error) {
	result := make(map[models.PairKey]float64)
	if len(gridPointIDs) == 0 || len(portIDs) == 0 {
		return result, nil
	}

	wanted := make(map[int64]struct{}, len(gridPointIDs))
	for _, id := range gridPointIDs {
		wanted[id] = struct{}{}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	// Port lists are short; grid point lists can exceed the bind variable limit,
	// so grid points are filtered in memory.
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(portIDs)), ",")
	query := `SELECT grid_point_id, port_id, distance_km FROM distances
	          WHERE grid_key = ? AND port_id IN (` + placeholders + `)`

	args := make([]interface{}, 0, len(portIDs)+1)
	args = append(args, r.gridKey)
	for _, id := range portIDs {
		args = append(args, id)
	}

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query distances: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key models.PairKey
		var km float64
		if err := rows.Scan(&key.GridPointID, &key.PortID, &km); err != nil {
			return nil, fmt.Errorf("failed to scan distance: %w", err)
		}
		if _, ok := wanted[key.GridPointID]; ok {
			result[key] = km
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distances: %w", err)
	}

	return result, nil
}

func (r *distanceCacheRepository) SetBatch(ctx context.Context, records []models.DistanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT OR REPLACE INTO distances (grid_key, grid_point_id, port_id, distance_km)
	          VALUES (?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		km, ok := rec.DistanceKm.Get()
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, r.gridKey, rec.GridPointID, rec.PortID, km); err != nil {
			return fmt.Errorf("failed to insert batch entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *distanceCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, "DELETE FROM distances WHERE grid_key = ?", r.gridKey)
	if err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}

	return nil
}
