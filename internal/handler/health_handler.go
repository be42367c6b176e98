package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/edmiller1/woofs-welcome-sub000/internal/container"
)

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
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.Logger

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"redis":    "ok",
		"database": "ok",
	}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.container.RedisClient.Health(ctx); err != nil {
		logger.WithError(err).Warn("Redis health check failed")
		checks["redis"] = err.Error()
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	if err := h.container.DB.Health(ctx); err != nil {
		logger.WithError(err).Warn("Database health check failed")
		checks["database"] = err.Error()
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	respondJSON(w, statusCode, &HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   "view-analytics",
		Checks:    checks,
	}, logger)
}
