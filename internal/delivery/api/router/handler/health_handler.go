package handler

import (
	"net/http"
	"time"

	"meter/config"

	"github.com/labstack/echo/v4"
)

// HealthHandler reports liveness and build identity.
type HealthHandler struct {
	name    string
	version string
	now     func() time.Time
}

// NewHealthHandler is the constructor for HealthHandler
func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{name: cfg.App.Name, version: cfg.App.Version, now: time.Now}
}

// Health is a simple handler to check if the service is up.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339Nano),
	})
}

// Version returns the service name and version.
func (h *HealthHandler) Version(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"name":    h.name,
		"version": h.version,
	})
}
