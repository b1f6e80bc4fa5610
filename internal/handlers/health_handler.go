package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldclock/server/internal/models"
)

// HealthHandler handles health check requests
type HealthHandler struct{}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth returns server health status
// @Summary Health check
// @Description Returns OK when the server is reachable. Agents probe this endpoint to detect connectivity.
// @Tags health
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
	})
}
