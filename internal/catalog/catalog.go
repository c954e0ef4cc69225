// Package catalog loads the port location catalog. Charges are not part of
// the catalog; they arrive with each optimization request.
package catalog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"agriport/internal/database"
	"agriport/internal/models"
)

type portEntry struct {
	ID     int64   `yaml:"id"`
	Name   string  `yaml:"name"`
	Lat    float64 `yaml:"lat"`
	Lon    float64 `yaml:"lon"`
	Active *bool   `yaml:"active"`
}

type catalogFile struct {
	Ports []portEntry `yaml:"ports"`
}

// Catalog is an immutable set of ports keyed by id
type Catalog struct {
	ports map[int64]models.Port
	ids   []int64
}

// New builds a catalog from ports, rejecting duplicate ids and bad coordinates
func New(ports []models.Port) (*Catalog, error) {
	c := &Catalog{ports: make(map[int64]models.Port, len(ports))}
	for _, p := range ports {
		if p.ID <= 0 {
			return nil, fmt.Errorf("port %q: id must be positive, got %d", p.Name, p.ID)
		}
		if _, dup := c.ports[p.ID]; dup {
			return nil, fmt.Errorf("duplicate port id %d", p.ID)
		}
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return nil, fmt.Errorf("port %d: coordinates (%g, %g) out of range", p.ID, p.Lat, p.Lon)
		}
		p.PortCharge, p.SeaFreight = 0, 0
		c.ports[p.ID] = p
		c.ids = append(c.ids, p.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

// Parse decodes a YAML catalog. Ports without an active flag are active.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse port catalog: %w", err)
	}

	ports := make([]models.Port, 0, len(file.Ports))
	for _, e := range file.Ports {
		active := true
		if e.Active != nil {
			active = *e.Active
		}
		ports = append(ports, models.Port{ID: e.ID, Name: e.Name, Lat: e.Lat, Lon: e.Lon, Active: active})
	}
	return New(ports)
}

// Load reads a YAML catalog from path
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read port catalog: %w", err)
	}
	return Parse(data)
}

// FromRepository builds a catalog from stored ports
func FromRepository(ctx context.Context, repo database.PortRepository) (*Catalog, error) {
	ports, err := repo.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	return New(ports)
}

// Sync upserts every catalog port into repo
func (c *Catalog) Sync(ctx context.Context, repo database.PortRepository) error {
	if err := repo.Upsert(ctx, c.List()); err != nil {
		return fmt.Errorf("failed to sync port catalog: %w", err)
	}
	return nil
}

// Get returns the port with id
func (c *Catalog) Get(id int64) (models.Port, bool) {
	p, ok := c.ports[id]
	return p, ok
}

// List returns all ports ordered by id
func (c *Catalog) List() []models.Port {
	out := make([]models.Port, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.ports[id])
	}
	return out
}

// Len returns the number of ports
func (c *Catalog) Len() int {
	return len(c.ids)
}
