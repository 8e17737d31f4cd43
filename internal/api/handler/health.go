package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/kv"
)

// HealthHandler handles GET /health — liveness probe.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HealthReadinessHandler handles GET /health/ready — readiness probe.
// Checks the backing store before declaring the service ready.
type HealthReadinessHandler struct {
	store kv.Store
}

func NewHealthReadinessHandler(store kv.Store) *HealthReadinessHandler {
	return &HealthReadinessHandler{store: store}
}

type readinessResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Error   string `json:"error,omitempty"`
}

func (h *HealthReadinessHandler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if _, _, err := h.store.Get(ctx, "health_probe"); err != nil {
		return c.JSON(http.StatusServiceUnavailable, readinessResponse{
			Status:  "degraded",
			Storage: "unhealthy",
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, readinessResponse{
		Status:  "ok",
		Storage: "ok",
	})
}
