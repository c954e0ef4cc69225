package sqlite

import (
	"context"
	"fmt"

	"agriport/internal/models"
)

type gridPointRepository struct {
	store *Store
}

func (r *gridPointRepository) List(ctx context.Context, gridKey string) ([]models.GridPoint, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, lat, lon FROM grid_points WHERE grid_key = ? ORDER BY id`
	rows, err := r.store.db.QueryContext(ctx, query, gridKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid points: %w", err)
	}
	defer rows.Close()

	var points []models.GridPoint
	for rows.Next() {
		var gp models.GridPoint
		if err := rows.Scan(&gp.ID, &gp.Lat, &gp.Lon); err != nil {
			return nil, fmt.Errorf("failed to scan grid point: %w", err)
		}
		points = append(points, gp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grid points: %w", err)
	}

	return points, nil
}

// Replace swaps the stored grid for gridKey. Cached distances for the key are
// dropped because grid point ids are reassigned.
func (r *gridPointRepository) Replace(ctx context.Context, gridKey string, points []models.GridPoint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM grid_points WHERE grid_key = ?", gridKey); err != nil {
		return fmt.Errorf("failed to delete grid points: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM distances WHERE grid_key = ?", gridKey); err != nil {
		return fmt.Errorf("failed to delete distances: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO grid_points (grid_key, id, lat, lon) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, gp := range points {
		if _, err := stmt.ExecContext(ctx, gridKey, gp.ID, gp.Lat, gp.Lon); err != nil {
			return fmt.Errorf("failed to insert grid point %d: %w", gp.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
