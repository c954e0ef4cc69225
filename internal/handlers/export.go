package handlers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"agriport/internal/export"
	"agriport/internal/geo"
)

// HandleExport handles GET /api/v1/export?format=csv|json[&run_id=...]
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		h.handleValidationError(w, "format must be csv or json", map[string]string{"field": "format"})
		return
	}

	runID := r.URL.Query().Get("run_id")
	out := h.Results.lookup(runID)
	if out == nil {
		h.handleNotFound(w, "No calculation results available")
		return
	}

	filename := fmt.Sprintf("agriport_%s.%s", out.RunID, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	var err error
	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = export.WriteCSV(w, out.Rows)
	case "json":
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, out.Rows)
	}
	if err != nil {
		h.logger().Warn("[HTTP] GET /api/v1/export: write failed", zap.String("run_id", out.RunID), zap.Error(err))
		return
	}

	h.logger().Info("[HTTP] GET /api/v1/export", zap.String("run_id", out.RunID), zap.String("format", format), zap.Int("rows", len(out.Rows)))
}

// HandleRegions handles GET /api/v1/regions?format=geojson|wkt[&run_id=...]
func (h *Handler) HandleRegions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "geojson"
	}
	if format != "geojson" && format != "wkt" {
		h.handleValidationError(w, "format must be geojson or wkt", map[string]string{"field": "format"})
		return
	}

	out := h.Results.lookup(r.URL.Query().Get("run_id"))
	if out == nil {
		h.handleNotFound(w, "No calculation results available")
		return
	}

	if format == "wkt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if err := geo.WriteRegionsWKT(w, out.Regions); err != nil {
			h.logger().Warn("[HTTP] GET /api/v1/regions: write failed", zap.String("run_id", out.RunID), zap.Error(err))
		}
		return
	}

	data, err := geo.RegionsFeatureCollection(out.Regions).MarshalJSON()
	if err != nil {
		h.handleInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
