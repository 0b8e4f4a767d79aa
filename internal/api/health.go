package api

import (
	"net/http"

	"github.com/joestump/templatesmith/internal/build"
)

// HealthResponse reports whether the service can reach a generator.
type HealthResponse struct {
	Status     string `json:"status"`
	Provider   string `json:"provider"`
	Credential bool   `json:"credential"`
	History    bool   `json:"history"`
	Version    string `json:"version"`
}

type healthHandler struct {
	provider   string
	credential bool
	history    bool
}

// Health reports service readiness.
// GET /healthz
//
// @Summary      Health check
// @Description  Returns 503 with status "degraded" when no provider credential is configured.
// @Tags         System
// @Produce      json
// @Success      200  {object}  HealthResponse
// @Failure      503  {object}  HealthResponse
// @Router       /healthz [get]
func (h *healthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:     "ok",
		Provider:   h.provider,
		Credential: h.credential,
		History:    h.history,
		Version:    build.Version,
	}
	status := http.StatusOK
	if !h.credential {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
