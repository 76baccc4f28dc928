package http

import (
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/render"
)

// HealthHandler handles health and version requests.
type HealthHandler struct {
	version string
	started time.Time
	logger  *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		version: version,
		started: time.Now(),
		logger:  logger.With(slog.String("handler", "health")),
	}
}

// HealthCheck handles GET /api/v1/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status": "healthy",
		"uptime": time.Since(h.started).String(),
	})
}

// Version handles GET /api/v1/version
func (h *HealthHandler) Version(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"version":    h.version,
		"go_version": runtime.Version(),
	})
}
