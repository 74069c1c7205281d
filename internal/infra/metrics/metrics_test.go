package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meter/config"
	domainerrors "meter/internal/domain/errors"
	"meter/internal/domain/service"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics() *Metrics {
	cfg := &config.Config{}
	cfg.App.Name = "api"
	cfg.App.Version = "0.1.0"

	return New(cfg)
}

func TestMetrics_BusinessCounters(t *testing.T) {
	m := newTestMetrics()

	m.ObserveAuth("login", service.OutcomeSuccess)
	m.ObserveAuth("login", service.OutcomeFailure)
	m.ObserveAuth("login", service.OutcomeFailure)
	m.ObserveCatalogSync(service.OutcomeSuccess, 4, 7, time.Second)
	m.ObserveCatalogSync(service.OutcomeFailure, 0, 0, time.Second)
	m.ObservePlansCache(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authTotal.WithLabelValues("login", service.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogSyncTotal.WithLabelValues(service.OutcomeFailure)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.catalogSyncedItems.WithLabelValues("products")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.catalogSyncedItems.WithLabelValues("prices")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.plansCacheTotal.WithLabelValues("hit")))
}

func TestMetrics_InstrumentUsesRouteTemplate(t *testing.T) {
	m := newTestMetrics()

	e := echo.New()
	e.Use(m.Instrument())
	e.GET("/api/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/api/auth/me", func(echo.Context) error { return domainerrors.ErrMissingToken })

	for _, path := range []string{"/api/health", "/api/health", "/api/auth/me"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/api/auth/me", "401")))
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	m := newTestMetrics()
	m.ObserveAuth("refresh", service.OutcomeSuccess)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `meter_auth_operations_total{operation="refresh",outcome="success"} 1`))
	assert.True(t, strings.Contains(body, `meter_build_info{name="api",version="0.1.0"} 1`))
}
