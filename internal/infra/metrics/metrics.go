// Package metrics exposes Prometheus instrumentation for the API and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"meter/config"
	"meter/internal/domain/service"
	"meter/internal/errors"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meter"

// Metrics owns a private registry so tests and multiple processes never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	authTotal           *prometheus.CounterVec
	catalogSyncTotal    *prometheus.CounterVec
	catalogSyncDuration prometheus.Histogram
	catalogSyncedItems  *prometheus.GaugeVec
	plansCacheTotal     *prometheus.CounterVec
}

// New registers every collector, including build info taken from app config.
func New(cfg *config.Config) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		catalogSyncTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_sync_total",
			Help:      "Catalog sync runs by outcome.",
		}, []string{"outcome"}),
		catalogSyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalog_sync_duration_seconds",
			Help:      "Catalog sync wall time, provider reads included.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		catalogSyncedItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_synced_items",
			Help:      "Distinct items in the last successful sync.",
		}, []string{"kind"}),
		plansCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plans_cache_lookups_total",
			Help:      "Plans cache lookups by result.",
		}, []string{"result"}),
	}

	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information.",
	}, []string{"name", "version"})
	buildInfo.WithLabelValues(cfg.App.Name, cfg.App.Version).Set(1)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		m.authTotal, m.catalogSyncTotal, m.catalogSyncDuration, m.catalogSyncedItems, m.plansCacheTotal,
	)

	return m
}

// NewRecorder exposes m as the domain recorder.
func NewRecorder(m *Metrics) service.MetricsRecorder {
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument is echo middleware recording in-flight, count and latency per route.
// The route template is used as label so path parameters do not explode cardinality.
func (m *Metrics) Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.httpInFlight.Inc()
			defer m.httpInFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				// The error handler has not rendered yet; take the status it will use.
				status = errorStatus(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{c.Request().Method, route, strconv.Itoa(status)}
			m.httpRequestsTotal.WithLabelValues(labels...).Inc()
			m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

func errorStatus(err error) int {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var coded interface{ HTTPCode() int }
	if errors.As(err, &coded) {
		return coded.HTTPCode()
	}

	return http.StatusInternalServerError
}

func (m *Metrics) ObserveAuth(operation, outcome string) {
	m.authTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveCatalogSync(outcome string, products, prices int, elapsed time.Duration) {
	m.catalogSyncTotal.WithLabelValues(outcome).Inc()
	m.catalogSyncDuration.Observe(elapsed.Seconds())
	if outcome == service.OutcomeSuccess {
		m.catalogSyncedItems.WithLabelValues("products").Set(float64(products))
		m.catalogSyncedItems.WithLabelValues("prices").Set(float64(prices))
	}
}

func (m *Metrics) ObservePlansCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.plansCacheTotal.WithLabelValues(result).Inc()
}
