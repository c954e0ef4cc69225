package pipeline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agriport/internal/catalog"
	"agriport/internal/distance"
	"agriport/internal/export"
	"agriport/internal/geo"
	"agriport/internal/metrics"
	"agriport/internal/models"
	"agriport/internal/sqlite"
	"agriport/internal/testutil"
)

// stubDistances returns planar distances scaled to km
type stubDistances struct {
	unreachable map[models.PairKey]bool
	calls       int
}

func (s *stubDistances) ComputeGridToPortsDistances(ctx context.Context, gridPoints []models.GridPoint, ports []models.Port) []models.DistanceRecord {
	s.calls++
	var out []models.DistanceRecord
	for _, gp := range gridPoints {
		for _, p := range ports {
			rec := models.DistanceRecord{GridPointID: gp.ID, PortID: p.ID}
			if !s.unreachable[rec.Key()] {
				rec.DistanceKm = models.Known(*testutil.EuclideanMeters(gp.GetCoords(), p.GetCoords()) / 1000)
			}
			out = append(out, rec)
		}
	}
	return out
}

func unitSquare() orb.MultiPolygon {
	return orb.MultiPolygon{{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}}
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.Port{
		{ID: 1, Name: "West", Lat: 0.5, Lon: -1, Active: true},
		{ID: 2, Name: "East", Lat: 0.5, Lon: 2, Active: true},
		{ID: 3, Name: "Closed", Lat: 0.5, Lon: 5, Active: false},
	})
	require.NoError(t, err)
	return c
}

func testRequest() Request {
	return Request{
		FuelPrice: 10,
		Ports: []PortCharges{
			{ID: 1, PortCharge: 10, SeaFreight: 5},
			{ID: 2, PortCharge: 10, SeaFreight: 5},
		},
	}
}

func TestValidate(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"zero fuel price", Request{FuelPrice: 0, Ports: testRequest().Ports}, "fuel_price"},
		{"negative fuel price", Request{FuelPrice: -1, Ports: testRequest().Ports}, "fuel_price"},
		{"NaN fuel price", Request{FuelPrice: math.NaN(), Ports: testRequest().Ports}, "fuel_price"},
		{"infinite fuel price", Request{FuelPrice: math.Inf(1), Ports: testRequest().Ports}, "fuel_price"},
		{"no ports", Request{FuelPrice: 1}, "ports"},
		{"duplicate port", Request{FuelPrice: 1, Ports: []PortCharges{{ID: 1}, {ID: 1}}}, "ports[1].id"},
		{"negative charge", Request{FuelPrice: 1, Ports: []PortCharges{{ID: 1, PortCharge: -1}}}, "ports[0].port_charge"},
		{"NaN freight", Request{FuelPrice: 1, Ports: []PortCharges{{ID: 1, SeaFreight: math.NaN()}}}, "ports[0].sea_freight"},
		{"unknown port", Request{FuelPrice: 1, Ports: []PortCharges{{ID: 1}, {ID: 42}}}, "ports[1].id"},
		{"inactive port", Request{FuelPrice: 1, Ports: []PortCharges{{ID: 3}}}, "ports[0].id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.req, cat)

			var verr *InputValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, verr.Error(), "invalid input")
		})
	}

	t.Run("valid request resolves profiles", func(t *testing.T) {
		req := Request{FuelPrice: 1.2, Ports: []PortCharges{
			{ID: 2, PortCharge: 7, SeaFreight: 3},
			{ID: 1, Name: "ignored", PortCharge: 0, SeaFreight: 0},
		}}

		profiles, err := Validate(req, cat)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, models.Port{ID: 2, Name: "East", Lat: 0.5, Lon: 2, Active: true, PortCharge: 7, SeaFreight: 3}, profiles[0])
		assert.Equal(t, "West", profiles[1].Name)
	})
}

func TestRun(t *testing.T) {
	stub := &stubDistances{}
	reg := metrics.New("test")
	p := New(Config{GridSize: 5, GradientThreshold: 0.05}, unitSquare(), testCatalog(t), stub,
		WithMetrics(reg.Pipeline))

	out, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)

	_, err = uuid.Parse(out.RunID)
	assert.NoError(t, err)

	// 5×5 lattice over the unit square keeps the 3×3 interior
	require.Len(t, out.GridPoints, 9)
	assert.Len(t, out.Distances, 18)
	assert.Len(t, out.Costs, 18)
	require.Len(t, out.Assignments, 9)
	assert.Empty(t, out.Unassigned)
	assert.Len(t, out.Rows, 9)

	locations := geo.GridLocations(out.GridPoints)
	for _, a := range out.Assignments {
		lon := locations[a.GridPointID].Lon
		if lon > 0.5 {
			assert.Equal(t, int64(2), a.OptimalPortID, "grid point %d", a.GridPointID)
		} else {
			// the middle column ties and goes to the lower id
			assert.Equal(t, int64(1), a.OptimalPortID, "grid point %d", a.GridPointID)
		}
	}

	require.Len(t, out.Boundaries, 3)
	for _, b := range out.Boundaries {
		assert.Equal(t, 0.5, locations[b.GridPointID].Lon)
		assert.Equal(t, 1.0, b.GradientValue)
		assert.Equal(t, int64(1), b.PortID1)
	}

	// port 2 only owns one collinear column, so only port 1 gets a region
	require.Len(t, out.Regions, 1)
	assert.Equal(t, int64(1), out.Regions[0].PortID)
	assert.Equal(t, 6, out.Regions[0].PointCount)

	assert.Equal(t, 1.0, promtest.ToFloat64(reg.Pipeline.Runs.WithLabelValues("ok")))
	assert.Equal(t, 9.0, promtest.ToFloat64(reg.Pipeline.AssignedPoints))
	assert.Equal(t, 3.0, promtest.ToFloat64(reg.Pipeline.BoundaryPoints))
}

func TestRun_UnreachablePoints(t *testing.T) {
	stub := &stubDistances{unreachable: map[models.PairKey]bool{
		{GridPointID: 1, PortID: 1}: true,
		{GridPointID: 1, PortID: 2}: true,
		{GridPointID: 2, PortID: 1}: true,
	}}

	t.Run("omitted from export by default", func(t *testing.T) {
		p := New(Config{GridSize: 5}, unitSquare(), testCatalog(t), stub)

		out, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)

		assert.Equal(t, []int64{1}, out.Unassigned)
		assert.Len(t, out.Assignments, 8)
		assert.Len(t, out.Rows, 8)
		assert.Len(t, out.Costs, 15)

		// grid point 2 falls back to its only reachable port
		assert.Equal(t, int64(2), out.Assignments[0].OptimalPortID)
	})

	t.Run("flagged when requested", func(t *testing.T) {
		p := New(Config{GridSize: 5, Export: export.Options{IncludeUnassigned: true}}, unitSquare(), testCatalog(t), stub)

		out, err := p.Run(context.Background(), testRequest())
		require.NoError(t, err)

		require.Len(t, out.Rows, 9)
		assert.False(t, out.Rows[0].Reachable)
		assert.Nil(t, out.Rows[0].OptimalPortID)
	})
}

func TestRun_InvalidRequestSkipsComputation(t *testing.T) {
	stub := &stubDistances{}
	reg := metrics.New("test")
	p := New(Config{GridSize: 5}, unitSquare(), testCatalog(t), stub, WithMetrics(reg.Pipeline))

	_, err := p.Run(context.Background(), Request{FuelPrice: -2, Ports: testRequest().Ports})

	var verr *InputValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, stub.calls)
	assert.Equal(t, 1.0, promtest.ToFloat64(reg.Pipeline.Runs.WithLabelValues("invalid_input")))
}

func TestRun_GridError(t *testing.T) {
	p := New(Config{GridSize: 5}, orb.MultiPolygon{}, testCatalog(t), &stubDistances{})

	_, err := p.Run(context.Background(), testRequest())

	var gerr *geo.GeometryLoadError
	assert.ErrorAs(t, err, &gerr)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(Config{GridSize: 5}, unitSquare(), testCatalog(t), &stubDistances{})
	_, err := p.Run(ctx, testRequest())

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGrid_StoredAndReused(t *testing.T) {
	store, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	cfg := Config{GridKey: geo.GridKey("square", 5), GridSize: 5}
	first := New(cfg, unitSquare(), testCatalog(t), &stubDistances{}, WithGridRepository(store.GridPoints()))

	points, err := first.Grid(ctx)
	require.NoError(t, err)
	require.Len(t, points, 9)

	stored, err := store.GridPoints().List(ctx, cfg.GridKey)
	require.NoError(t, err)
	assert.Equal(t, points, stored)

	// an empty boundary would fail CreateGrid, so success proves the stored grid was used
	second := New(cfg, orb.MultiPolygon{}, testCatalog(t), &stubDistances{}, WithGridRepository(store.GridPoints()))
	reused, err := second.Grid(ctx)
	require.NoError(t, err)
	assert.Equal(t, points, reused)
}

func TestRun_WithRoutingClientAndCache(t *testing.T) {
	store, err := sqlite.New(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	gridKey := geo.GridKey("square", 5)
	fake := testutil.NewFakeOSRM(t)
	client := distance.NewClient(distance.Config{BaseURL: fake.URL(), BatchSize: 4},
		distance.WithCache(store.DistanceCache(gridKey)))

	p := New(Config{GridKey: gridKey, GridSize: 5}, unitSquare(), testCatalog(t), client,
		WithGridRepository(store.GridPoints()))

	first, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Len(t, first.Assignments, 9)

	// 9 origins × 2 destinations in blocks of 4 origins
	assert.Equal(t, 3, fake.TableRequests())

	second, err := p.Run(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, fake.TableRequests())
	assert.Equal(t, first.Assignments, second.Assignments)
	assert.NotEqual(t, first.RunID, second.RunID)
}
