package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"agriport/internal/geo"
	"agriport/internal/models"
	"agriport/internal/pipeline"
)

// CalculateRequest is the body of POST /api/v1/calculate
type CalculateRequest struct {
	FuelPrice *float64               `json:"fuel_price"`
	Ports     []pipeline.PortCharges `json:"ports"`
}

// CalculateResponse summarizes one run
type CalculateResponse struct {
	RunID       string                     `json:"run_id"`
	GridPoints  int                        `json:"grid_points"`
	Assignments []models.Assignment        `json:"assignments"`
	Unassigned  []int64                    `json:"unassigned"`
	Boundaries  []models.BoundaryRecord    `json:"boundaries"`
	Regions     *geojson.FeatureCollection `json:"regions"`
	DurationMs  int64                      `json:"duration_ms"`
}

// HandleCalculate handles POST /api/v1/calculate
func (h *Handler) HandleCalculate(w http.ResponseWriter, r *http.Request) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		h.logger().Info("[HTTP] POST /api/v1/calculate: not json", zap.String("content_type", r.Header.Get("Content-Type")))
		h.handleValidationError(w, "Request must be JSON", nil)
		return
	}

	var body CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "fuel_price" {
			h.handleValidationError(w, "Valid fuel price required", map[string]string{"field": "fuel_price"})
			return
		}
		h.logger().Info("[HTTP] POST /api/v1/calculate: invalid_json", zap.Error(err))
		h.handleValidationError(w, "Invalid request body", nil)
		return
	}

	if body.FuelPrice == nil {
		h.handleValidationError(w, "Valid fuel price required", map[string]string{"field": "fuel_price"})
		return
	}
	if len(body.Ports) == 0 {
		h.handleValidationError(w, "At least one port is required", map[string]string{"field": "ports"})
		return
	}

	req := pipeline.Request{FuelPrice: *body.FuelPrice, Ports: body.Ports}
	h.logger().Info("[HTTP] POST /api/v1/calculate", zap.Float64("fuel_price", req.FuelPrice), zap.Int("ports", len(req.Ports)))

	out, err := h.Pipeline.Run(r.Context(), req)
	if err != nil {
		var inputErr *pipeline.InputValidationError
		switch {
		case errors.As(err, &inputErr):
			h.handleValidationError(w, inputErr.Reason, map[string]string{"field": inputErr.Field})
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			h.logger().Warn("[HTTP] POST /api/v1/calculate: cancelled", zap.Error(err))
			h.writeError(w, http.StatusServiceUnavailable, "CALCULATION_CANCELLED", "The calculation did not finish.", nil)
		default:
			h.handleInternalError(w, err)
		}
		return
	}

	if h.Results != nil {
		h.Results.Save(out)
	}

	h.writeJSON(w, http.StatusOK, newCalculateResponse(out))
}

func newCalculateResponse(out *pipeline.Output) CalculateResponse {
	resp := CalculateResponse{
		RunID:       out.RunID,
		GridPoints:  len(out.GridPoints),
		Assignments: out.Assignments,
		Unassigned:  out.Unassigned,
		Boundaries:  out.Boundaries,
		Regions:     geo.RegionsFeatureCollection(out.Regions),
		DurationMs:  out.Duration.Milliseconds(),
	}
	if resp.Assignments == nil {
		resp.Assignments = []models.Assignment{}
	}
	if resp.Unassigned == nil {
		resp.Unassigned = []int64{}
	}
	if resp.Boundaries == nil {
		resp.Boundaries = []models.BoundaryRecord{}
	}
	return resp
}
