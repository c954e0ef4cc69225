package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"agriport/internal/logging"
	"agriport/internal/pipeline"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Calculator runs one optimization
type Calculator interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Output, error)
}

// HealthChecker reports storage health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionChecker reports routing service reachability
type ConnectionChecker interface {
	CheckConnection(ctx context.Context) bool
}

// Handler provides common handler utilities and dependencies
type Handler struct {
	Pipeline Calculator
	Store    HealthChecker
	Routing  ConnectionChecker
	Results  *ResultStore
	Logger   *zap.Logger
}

// ErrorResponse represents an API error
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (h *Handler) logger() *zap.Logger {
	return logging.OrNop(h.Logger)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger().Warn("[HTTP] Failed to encode response", zap.Error(err))
	}
}

// writeError writes a JSON error response
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

func (h *Handler) handleNotFound(w http.ResponseWriter, message string) {
	h.writeError(w, http.StatusNotFound, "NOT_FOUND", message, nil)
}

func (h *Handler) handleValidationError(w http.ResponseWriter, message string, details interface{}) {
	h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

func (h *Handler) handleInternalError(w http.ResponseWriter, err error) {
	h.logger().Error("[HTTP] Internal error", zap.Error(err))
	h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An error occurred. Please try again.", nil)
}
