package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"agriport/internal/handlers"
	"agriport/internal/metrics"
	"agriport/internal/models"
	"agriport/internal/pipeline"
)

type fakeCalculator struct{}

func (fakeCalculator) Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error) {
	portID := int64(1)
	return &pipeline.Output{
		RunID:       "run-1",
		FuelPrice:   req.FuelPrice,
		GridPoints:  []models.GridPoint{{ID: 1, Lat: 0.5, Lon: 0.5}},
		Assignments: []models.Assignment{{GridPointID: 1, OptimalPortID: portID, TotalCost: 20, DistanceKm: 10}},
		Rows: []models.ExportRow{{
			GridPointID: 1, Lat: 0.5, Lon: 0.5, OptimalPortID: &portID,
			DistanceKm: models.Known(10), TotalCost: models.Known(20), Reachable: true,
		}},
	}, nil
}

type fakeRouting struct{}

func (fakeRouting) CheckConnection(ctx context.Context) bool { return true }

func newTestServer(t *testing.T, logger *zap.Logger) (*Server, *metrics.Registry) {
	t.Helper()
	registry := metrics.New("agriport_test")
	h := &handlers.Handler{
		Pipeline: fakeCalculator{},
		Routing:  fakeRouting{},
		Results:  handlers.NewResultStore(0, nil),
		Logger:   logger,
	}
	return New(Config{Addr: "127.0.0.1:0"}, h, registry, logger), registry
}

func TestRoutes(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "connected", health["osrm"])

	body := `{"fuel_price": 1.2, "ports": [{"id": 1, "port_charge": 5, "sea_freight": 5}]}`
	resp, err = http.Post(ts.URL+"/api/v1/calculate", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/export?format=csv")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "grid_point_id,lat,lon,optimal_port_id,distance_km,total_cost,reachable\n1,0.5,0.5,1,10,20,true\n", string(data))

	resp, err = http.Get(ts.URL + "/api/v1/regions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/calculate"},
		{http.MethodPost, "/api/v1/health"},
		{http.MethodDelete, "/api/v1/export"},
		{http.MethodPut, "/api/v1/regions"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestRoutes_Metrics(t *testing.T) {
	srv, registry := newTestServer(t, nil)
	registry.Pipeline.ObserveRun("ok", time.Second, 3, 1, 0)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `agriport_test_pipeline_runs_total{status="ok"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRoutes_NoMetricsWithoutRegistry(t *testing.T) {
	h := &handlers.Handler{Results: handlers.NewResultStore(0, nil)}
	srv := New(Config{Addr: "127.0.0.1:0"}, h, nil, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/calculate", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/calculate", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	srv, _ := newTestServer(t, zap.New(core))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/export", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	entries := logs.FilterMessage("[HTTP] Request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/v1/export", fields["path"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status"])
}

func TestStartAndShutdown(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	addr, err := srv.Start()
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
