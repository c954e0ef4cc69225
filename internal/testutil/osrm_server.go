package testutil

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"agriport/internal/models"
)

// MetersPerDegree scales planar degree distances for the fake router
const MetersPerDegree = 111000

// FakeOSRM is an httptest server speaking the OSRM route, table and health
// endpoints. Distances default to scaled Euclidean distance in degrees.
type FakeOSRM struct {
	Server *httptest.Server

	// Distance returns meters between two coordinates; nil means no route
	Distance func(origin, dest models.Coordinates) *float64
	// FailTable, when it returns true, makes a table request answer HTTP 500
	FailTable func(sources, destinations []models.Coordinates) bool
	// Delay is slept before every response
	Delay time.Duration

	mu            sync.Mutex
	healthy       bool
	tableRequests int
	routeRequests int
	requestTimes  []time.Time
	inFlight      int
	maxInFlight   int
}

// NewFakeOSRM starts a fake router closed on test cleanup
func NewFakeOSRM(t testing.TB) *FakeOSRM {
	f := &FakeOSRM{Distance: EuclideanMeters, healthy: true}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the base URL of the server
func (f *FakeOSRM) URL() string {
	return f.Server.URL
}

// EuclideanMeters is the default distance function
func EuclideanMeters(origin, dest models.Coordinates) *float64 {
	dLat := dest.Lat - origin.Lat
	dLon := dest.Lon - origin.Lon
	d := math.Sqrt(dLat*dLat+dLon*dLon) * MetersPerDegree
	return &d
}

// SetHealthy controls the /health status
func (f *FakeOSRM) SetHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

// TableRequests returns the number of table requests served
func (f *FakeOSRM) TableRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tableRequests
}

// RouteRequests returns the number of route requests served
func (f *FakeOSRM) RouteRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routeRequests
}

// RequestTimes returns arrival times of route and table requests
func (f *FakeOSRM) RequestTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.requestTimes...)
}

// MaxInFlight returns the highest number of concurrent requests observed
func (f *FakeOSRM) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func (f *FakeOSRM) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/health" {
		f.mu.Lock()
		healthy := f.healthy
		f.mu.Unlock()
		if healthy {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	f.requestTimes = append(f.requestTimes, time.Now())
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.Delay > 0 {
		time.Sleep(f.Delay)
	}

	switch {
	case strings.HasPrefix(r.URL.Path, "/route/v1/"):
		f.serveRoute(w, r)
	case strings.HasPrefix(r.URL.Path, "/table/v1/"):
		f.serveTable(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *FakeOSRM) serveRoute(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.routeRequests++
	f.mu.Unlock()

	coords, ok := parseCoords(r.URL.Path)
	if !ok || len(coords) != 2 {
		writeOSRM(w, http.StatusBadRequest, map[string]interface{}{"code": "InvalidQuery"})
		return
	}

	d := f.Distance(coords[0], coords[1])
	if d == nil {
		writeOSRM(w, http.StatusOK, map[string]interface{}{"code": "NoRoute", "routes": []interface{}{}})
		return
	}
	writeOSRM(w, http.StatusOK, map[string]interface{}{
		"code":   "Ok",
		"routes": []map[string]interface{}{{"distance": *d, "duration": *d / 10}},
	})
}

func (f *FakeOSRM) serveTable(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tableRequests++
	f.mu.Unlock()

	coords, ok := parseCoords(r.URL.Path)
	if !ok {
		writeOSRM(w, http.StatusBadRequest, map[string]interface{}{"code": "InvalidQuery"})
		return
	}

	// OSRM separates indexes with ';', which url.ParseQuery rejects
	query := rawQuery(r.URL.RawQuery)
	sources, ok1 := indexes(query["sources"], coords)
	destinations, ok2 := indexes(query["destinations"], coords)
	if !ok1 || !ok2 {
		writeOSRM(w, http.StatusBadRequest, map[string]interface{}{"code": "InvalidOptions"})
		return
	}

	if f.FailTable != nil && f.FailTable(sources, destinations) {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	distances := make([][]*float64, len(sources))
	for i, src := range sources {
		distances[i] = make([]*float64, len(destinations))
		for j, dst := range destinations {
			distances[i][j] = f.Distance(src, dst)
		}
	}

	writeOSRM(w, http.StatusOK, map[string]interface{}{"code": "Ok", "distances": distances})
}

func parseCoords(path string) ([]models.Coordinates, bool) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return nil, false
	}
	var coords []models.Coordinates
	for _, pair := range strings.Split(path[idx+1:], ";") {
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, false
		}
		lon, err1 := strconv.ParseFloat(parts[0], 64)
		lat, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 != nil || err2 != nil {
			return nil, false
		}
		coords = append(coords, models.Coordinates{Lat: lat, Lon: lon})
	}
	return coords, true
}

func rawQuery(raw string) map[string]string {
	out := make(map[string]string)
	for _, kv := range strings.Split(raw, "&") {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}

func indexes(value string, coords []models.Coordinates) ([]models.Coordinates, bool) {
	if value == "" {
		return nil, false
	}
	var out []models.Coordinates
	for _, s := range strings.Split(value, ";") {
		i, err := strconv.Atoi(s)
		if err != nil || i < 0 || i >= len(coords) {
			return nil, false
		}
		out = append(out, coords[i])
	}
	return out, true
}

func writeOSRM(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
