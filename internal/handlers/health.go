package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/parrothq/parrot/internal/healthcheck"
)

type HealthHandler struct {
	logger   *slog.Logger
	registry *healthcheck.Registry
}

func NewHealthHandler(log *slog.Logger, registry *healthcheck.Registry) *HealthHandler {
	return &HealthHandler{
		logger:   log.With(slog.String("handler", "health")),
		registry: registry,
	}
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.HEAD("/health", h.HealthHead)
}

func (h *HealthHandler) Health(c echo.Context) error {
	results := h.registry.Run(c.Request().Context())
	status := http.StatusOK
	if !healthcheck.Healthy(results) {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, map[string]any{
		"healthy": healthcheck.Healthy(results),
		"checks":  results,
	})
}

func (h *HealthHandler) HealthHead(c echo.Context) error {
	if !healthcheck.Healthy(h.registry.Run(c.Request().Context())) {
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
