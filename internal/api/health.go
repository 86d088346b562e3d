package api

import (
	"net/http"

	respond "github.com/lncworks/casebilling/internal/api/respond"
)

// HealthHandler reports the cached service health flag.
type HealthHandler struct {
	isHealthy func() bool
}

func NewHealthHandler(isHealthy func() bool) *HealthHandler {
	return &HealthHandler{isHealthy: isHealthy}
}

// CheckHealth GET /api/health
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	if h.isHealthy != nil && !h.isHealthy() {
		respond.WriteError(w, http.StatusServiceUnavailable, "dependencies unhealthy")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
