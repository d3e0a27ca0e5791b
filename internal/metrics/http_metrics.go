// Package metrics exposes the panel's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics holds the HTTP and install collectors for one service.
type HTTPMetrics struct {
	ServiceName string

	gatherer prometheus.Gatherer

	// RequestCounter counts all HTTP requests with labels
	RequestCounter *prometheus.CounterVec
	// RequestDuration records request duration in seconds
	RequestDuration *prometheus.HistogramVec
	// StatusCategoryCounter counts responses by 2xx, 4xx and 5xx
	StatusCategoryCounter *prometheus.CounterVec

	InstallCounter  *prometheus.CounterVec
	InstallDuration prometheus.Histogram
}

// NewHTTPMetrics creates the collectors and registers them on reg. A nil reg
// uses a fresh private registry.
func NewHTTPMetrics(serviceName string, reg *prometheus.Registry) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &HTTPMetrics{
		ServiceName: serviceName,
		gatherer:    reg,
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		StatusCategoryCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_status_category_total",
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category", "method", "path"},
		),
		InstallCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lighthouse_app_installs_total",
				Help: "Application installs by result",
			},
			[]string{"result"},
		),
		InstallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lighthouse_app_install_duration_seconds",
			Help:    "Time from install request to running or failed container",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	reg.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.StatusCategoryCounter,
		m.InstallCounter,
		m.InstallDuration,
	)
	return m
}

func category(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Middleware records request metrics. It labels by route pattern rather
// than raw path so ids do not explode cardinality.
func (m *HTTPMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else if status < 400 {
				status = fiber.StatusInternalServerError
			}
		}
		method := c.Method()
		path := c.Route().Path
		statusStr := strconv.Itoa(status)

		m.RequestCounter.WithLabelValues(m.ServiceName, method, path, statusStr).Inc()
		m.RequestDuration.WithLabelValues(m.ServiceName, method, path, statusStr).Observe(time.Since(start).Seconds())
		if cat := category(status); cat != "" {
			m.StatusCategoryCounter.WithLabelValues(m.ServiceName, cat, method, path).Inc()
		}
		return err
	}
}

// InstallFinished records the outcome of one application install.
func (m *HTTPMetrics) InstallFinished(result string, elapsed time.Duration) {
	m.InstallCounter.WithLabelValues(result).Inc()
	m.InstallDuration.Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for exposing Prometheus metrics
func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
