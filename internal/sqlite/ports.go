package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"agriport/internal/database"
	"agriport/internal/models"
)

type portRepository struct {
	store *Store
}

func (r *portRepository) List(ctx context.Context, activeOnly bool) ([]models.Port, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, name, lat, lon, active FROM ports`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := r.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ports: %w", err)
	}
	defer rows.Close()

	var ports []models.Port
	for rows.Next() {
		var p models.Port
		var active int
		if err := rows.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &active); err != nil {
			return nil, fmt.Errorf("failed to scan port: %w", err)
		}
		p.Active = active == 1
		ports = append(ports, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ports: %w", err)
	}

	return ports, nil
}

func (r *portRepository) GetByID(ctx context.Context, id int64) (*models.Port, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT id, name, lat, lon, active FROM ports WHERE id = ?`

	var p models.Port
	var active int
	err := r.store.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &active)
	if err == sql.ErrNoRows {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get port: %w", err)
	}
	p.Active = active == 1

	return &p, nil
}

func (r *portRepository) Upsert(ctx context.Context, ports []models.Port) error {
	if len(ports) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO ports (id, name, lat, lon, active) VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              name = excluded.name, lat = excluded.lat, lon = excluded.lon,
	              active = excluded.active, updated_at = CURRENT_TIMESTAMP`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range ports {
		active := 0
		if p.Active {
			active = 1
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name, p.Lat, p.Lon, active); err != nil {
			return fmt.Errorf("failed to upsert port %d: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
