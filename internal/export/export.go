// Package export flattens optimization results into tabular rows and writes
// them as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"agriport/internal/models"
)

// Header is the CSV column order
var Header = []string{"grid_point_id", "lat", "lon", "optimal_port_id", "distance_km", "total_cost", "reachable"}

// Options controls FormatResultsForExport
type Options struct {
	// IncludeUnassigned emits grid points without an assignment as
	// unreachable rows instead of omitting them
	IncludeUnassigned bool
}

// FormatResultsForExport joins grid points with their assignments. Rows keep
// the grid point order.
func FormatResultsForExport(gridPoints []models.GridPoint, assignments []models.Assignment, opts Options) []models.ExportRow {
	byPoint := make(map[int64]models.Assignment, len(assignments))
	for _, a := range assignments {
		byPoint[a.GridPointID] = a
	}

	rows := make([]models.ExportRow, 0, len(gridPoints))
	for _, gp := range gridPoints {
		a, ok := byPoint[gp.ID]
		if !ok {
			if opts.IncludeUnassigned {
				rows = append(rows, models.ExportRow{GridPointID: gp.ID, Lat: gp.Lat, Lon: gp.Lon})
			}
			continue
		}

		portID := a.OptimalPortID
		rows = append(rows, models.ExportRow{
			GridPointID:   gp.ID,
			Lat:           gp.Lat,
			Lon:           gp.Lon,
			OptimalPortID: &portID,
			DistanceKm:    models.Known(a.DistanceKm),
			TotalCost:     models.Known(a.TotalCost),
			Reachable:     true,
		})
	}
	return rows
}

// WriteCSV writes rows with a header line. Null fields are empty.
func WriteCSV(w io.Writer, rows []models.ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, r := range rows {
		portID := ""
		if r.OptimalPortID != nil {
			portID = strconv.FormatInt(*r.OptimalPortID, 10)
		}
		record := []string{
			strconv.FormatInt(r.GridPointID, 10),
			formatFloat(r.Lat),
			formatFloat(r.Lon),
			portID,
			formatNull(r.DistanceKm),
			formatNull(r.TotalCost),
			strconv.FormatBool(r.Reachable),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", r.GridPointID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a table written by WriteCSV
func ReadCSV(r io.Reader) ([]models.ExportRow, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing csv header")
	}
	if len(records[0]) != len(Header) {
		return nil, fmt.Errorf("unexpected csv header: %v", records[0])
	}

	rows := make([]models.ExportRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRecord(rec []string) (models.ExportRow, error) {
	var row models.ExportRow
	var err error

	if row.GridPointID, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return row, fmt.Errorf("grid_point_id: %w", err)
	}
	if row.Lat, err = strconv.ParseFloat(rec[1], 64); err != nil {
		return row, fmt.Errorf("lat: %w", err)
	}
	if row.Lon, err = strconv.ParseFloat(rec[2], 64); err != nil {
		return row, fmt.Errorf("lon: %w", err)
	}
	if rec[3] != "" {
		id, err := strconv.ParseInt(rec[3], 10, 64)
		if err != nil {
			return row, fmt.Errorf("optimal_port_id: %w", err)
		}
		row.OptimalPortID = &id
	}
	if row.DistanceKm, err = parseNull(rec[4]); err != nil {
		return row, fmt.Errorf("distance_km: %w", err)
	}
	if row.TotalCost, err = parseNull(rec[5]); err != nil {
		return row, fmt.Errorf("total_cost: %w", err)
	}
	if row.Reachable, err = strconv.ParseBool(rec[6]); err != nil {
		return row, fmt.Errorf("reachable: %w", err)
	}
	return row, nil
}

// WriteJSON writes rows as a JSON array
func WriteJSON(w io.Writer, rows []models.ExportRow) error {
	if rows == nil {
		rows = []models.ExportRow{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("failed to encode rows: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNull(n models.NullFloat) string {
	if !n.Valid {
		return ""
	}
	return formatFloat(n.Float)
}

func parseNull(s string) (models.NullFloat, error) {
	if s == "" {
		return models.Unreachable(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.Unreachable(), err
	}
	return models.Known(v), nil
}
