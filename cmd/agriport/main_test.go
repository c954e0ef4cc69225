package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agriport/internal/export"
	"agriport/internal/models"
	"agriport/internal/pipeline"
	"agriport/internal/testutil"
)

const boundaryJSON = `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`

const portsYAML = `ports:
  - {id: 1, name: West, lat: 0.5, lon: -1}
  - {id: 2, name: East, lat: 0.5, lon: 2}
`

func writeTestConfig(t *testing.T, osrmURL, backend string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	boundaryPath := filepath.Join(dir, "boundary.geojson")
	require.NoError(t, os.WriteFile(boundaryPath, []byte(boundaryJSON), 0600))
	catalogPath := filepath.Join(dir, "ports.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(portsYAML), 0600))

	cfg := fmt.Sprintf(`
osrm:
  base_url: %q
  min_interval: 0s
grid:
  boundary_path: %q
  name: square
  size: 5
ports:
  catalog_path: %q
storage:
  backend: %s
  sqlite_path: %q
log:
  level: error
`, osrmURL, boundaryPath, catalogPath, backend, filepath.Join(dir, "agriport.db"))

	path := filepath.Join(dir, "agriport.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0600))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, _ := writeTestConfig(t, osrm.URL(), "none")

	out, err := execute(t, "check", "--config", configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "is reachable")

	osrm.SetHealthy(false)
	_, err = execute(t, "check", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestGridCommand(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, dir := writeTestConfig(t, osrm.URL(), "sqlite")
	gridPath := filepath.Join(dir, "grid.geojson")

	out, err := execute(t, "grid", "--config", configPath, "--output", gridPath)
	require.NoError(t, err)
	assert.Equal(t, "grid_key=square@5 points=9\n", out)

	data, err := os.ReadFile(gridPath)
	require.NoError(t, err)
	var fc struct {
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))
	require.Len(t, fc.Features, 9)
	assert.Equal(t, float64(1), fc.Features[0].Properties["grid_point_id"])
	assert.Zero(t, osrm.TableRequests())
}

func TestComputeCommand_CSVToStdout(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, _ := writeTestConfig(t, osrm.URL(), "none")

	out, err := execute(t, "compute", "--config", configPath,
		"--fuel-price", "1.5", "--port", "1:10:5", "--port", "2:10:5")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 10)
	assert.Equal(t, export.Header, records[0])
}

func TestComputeCommand_RequestFileToJSON(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, dir := writeTestConfig(t, osrm.URL(), "sqlite")

	reqPath := filepath.Join(dir, "request.json")
	req := pipeline.Request{FuelPrice: 1.5, Ports: []pipeline.PortCharges{
		{ID: 1, PortCharge: 10, SeaFreight: 5},
		{ID: 2, PortCharge: 10, SeaFreight: 5},
	}}
	data, err := json.Marshal(req)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reqPath, data, 0600))

	outPath := filepath.Join(dir, "result.json")
	regionsPath := filepath.Join(dir, "regions.geojson")
	out, err := execute(t, "compute", "--config", configPath,
		"--request", reqPath, "--format", "json", "-o", outPath, "--regions", regionsPath)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err = os.ReadFile(outPath)
	require.NoError(t, err)
	var rows []models.ExportRow
	require.NoError(t, json.Unmarshal(data, &rows))
	assert.Len(t, rows, 9)

	data, err = os.ReadFile(regionsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"FeatureCollection"`)
}

func TestComputeCommand_Errors(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, _ := writeTestConfig(t, osrm.URL(), "none")

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"bad port flag", []string{"--fuel-price", "1", "--port", "1:10"}, "expected id:port_charge:sea_freight"},
		{"bad format", []string{"--fuel-price", "1", "--port", "1:1:1", "--format", "xml"}, "--format must be csv or json"},
		{"unknown port", []string{"--fuel-price", "1", "--port", "9:1:1"}, "unknown port id 9"},
		{"no fuel price", []string{"--port", "1:1:1"}, "fuel_price"},
		{"missing request file", []string{"--request", "/nonexistent/request.json"}, "failed to read request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"compute", "--config", configPath}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
	assert.Zero(t, osrm.TableRequests())
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "check", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestParsePortCharges(t *testing.T) {
	pc, err := parsePortCharges("3: 12.5 :30")
	require.NoError(t, err)
	assert.Equal(t, pipeline.PortCharges{ID: 3, PortCharge: 12.5, SeaFreight: 30}, pc)

	for _, arg := range []string{"", "a:1:1", "1:x:1", "1:1:y", "1:1:1:1"} {
		_, err := parsePortCharges(arg)
		assert.Error(t, err, arg)
	}
}

func TestComputeCommand_RefreshCache(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, _ := writeTestConfig(t, osrm.URL(), "sqlite")
	args := []string{"compute", "--config", configPath, "--fuel-price", "1.5", "--port", "1:10:5", "--port", "2:10:5"}

	_, err := execute(t, args...)
	require.NoError(t, err)
	first := osrm.TableRequests()
	require.Positive(t, first)

	_, err = execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, first, osrm.TableRequests(), "second run is served from the cache")

	_, err = execute(t, append(args, "--refresh-cache")...)
	require.NoError(t, err)
	assert.Equal(t, 2*first, osrm.TableRequests())
}

func TestComputeCommand_RegionsWKT(t *testing.T) {
	osrm := testutil.NewFakeOSRM(t)
	configPath, dir := writeTestConfig(t, osrm.URL(), "none")
	regionsPath := filepath.Join(dir, "regions.wkt")

	_, err := execute(t, "compute", "--config", configPath,
		"--fuel-price", "1.5", "--port", "1:10:5", "--port", "2:10:5",
		"--regions", regionsPath, "--regions-format", "wkt")
	require.NoError(t, err)

	data, err := os.ReadFile(regionsPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Regexp(t, `^\d+\tPOLYGON\(\(`, line)
	}

	_, err = execute(t, "compute", "--config", configPath,
		"--fuel-price", "1.5", "--port", "1:10:5", "--regions", regionsPath, "--regions-format", "kml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--regions-format must be geojson or wkt")
}

func TestSummaryCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.csv")
	content := strings.Join(export.Header, ",") + "\n" +
		"1,0.5,0.5,1,10,20,true\n" +
		"2,0.5,0.75,1,20,30,true\n" +
		"3,0.75,0.75,2,5,12.5,true\n" +
		"4,0.75,1,,,,false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Setenv("AGRIPORT_CONFIG", "")

	out, err := execute(t, "summary", path)
	require.NoError(t, err)
	assert.Equal(t,
		"port_id=1 points=2 mean_cost=25.00 mean_distance_km=15.00\n"+
			"port_id=2 points=1 mean_cost=12.50 mean_distance_km=5.00\n"+
			"unreachable=1\n", out)

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("grid_point_id,lat\n"), 0600))
	_, err = execute(t, "summary", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected csv header")

	_, err = execute(t, "summary", filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open export")
}
