package handler

import (
	"context"
	"net/http"
	"time"

	"eotm-backend/internal/container"
)

const healthRedisTimeout = 2 * time.Second

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health. Redis is optional, so a failing Redis degrades rather than fails.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "eotm-backend",
		Checks:    map[string]string{"sessions": "memory"},
	}

	if h.container.HasRedis() {
		ctx, cancel := context.WithTimeout(r.Context(), healthRedisTimeout)
		defer cancel()

		if err := h.container.GetRedisClient().Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			response.Status = "degraded"
			response.Checks["sessions"] = "redis: unreachable"
		} else {
			response.Checks["sessions"] = "redis: ok"
		}
	}

	respondJSON(w, http.StatusOK, response)
}
