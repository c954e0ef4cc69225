package handlers

import (
	"net/http"

	"go.uber.org/zap"
)

// HandleHealthCheck handles GET /api/v1/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "disabled"
	osrmStatus := "disabled"

	if h.Store != nil {
		dbStatus = "connected"
		if err := h.Store.HealthCheck(r.Context()); err != nil {
			h.logger().Warn("[HTTP] Storage health check failed", zap.Error(err))
			status = "degraded"
			dbStatus = "error"
		}
	}

	if h.Routing != nil {
		osrmStatus = "connected"
		if !h.Routing.CheckConnection(r.Context()) {
			status = "degraded"
			osrmStatus = "unreachable"
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":   status,
		"version":  Version,
		"database": dbStatus,
		"osrm":     osrmStatus,
	})
}
