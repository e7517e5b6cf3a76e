// Package telemetry exposes Prometheus metrics for the Doc Plus server:
// HTTP request latency, records API fetches, session state transitions and
// record access counts. Each Provider owns its registry so tests and
// multiple servers in one process do not collide on global state.
package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docplus"

var defaultDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Config holds telemetry settings.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// ProcessCollectors adds Go runtime and process metrics to the registry.
	ProcessCollectors bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "docplus-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
}

// Provider owns the metrics registry and every collector registered on it.
type Provider struct {
	cfg      Config
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	fetchDuration   *prometheus.HistogramVec
	fetchErrors     *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	recordAccess    *prometheus.CounterVec
}

// NewProvider creates a Provider with its own registry.
func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()

	constLabels := prometheus.Labels{
		"service":     cfg.ServiceName,
		"version":     cfg.ServiceVersion,
		"environment": cfg.Environment,
	}

	p := &Provider{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "http_request_duration_seconds",
			Help:        "Duration of HTTP requests in seconds.",
			Buckets:     defaultDurationBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "route", "status_code"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "http_active_requests",
			Help:        "Number of HTTP requests currently being served.",
			ConstLabels: constLabels,
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "records_fetch_duration_seconds",
			Help:        "Duration of records API fetches in seconds.",
			Buckets:     defaultDurationBuckets,
			ConstLabels: constLabels,
		}, []string{"resource", "outcome"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "records_fetch_errors_total",
			Help:        "Records API fetches that failed, by reason.",
			ConstLabels: constLabels,
		}, []string{"resource", "reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "session_transitions_total",
			Help:        "Dashboard session state transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		recordAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "record_access_total",
			Help:        "Accesses to patient records, by action and status class.",
			ConstLabels: constLabels,
		}, []string{"action", "status_class"}),
	}

	p.registry.MustRegister(
		p.requestDuration,
		p.activeRequests,
		p.fetchDuration,
		p.fetchErrors,
		p.transitions,
		p.recordAccess,
	)
	if cfg.ProcessCollectors {
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	return p
}

// Registry exposes the underlying registry, mainly for registering extra
// collectors such as pool gauges.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

// Middleware records request duration by route pattern and tracks
// in-flight requests.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p.activeRequests.Inc()
			defer p.activeRequests.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}

			// Route pattern, not the raw path, to keep label cardinality bounded.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}

			p.requestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{
		Registry: p.registry,
	}))
}

// ObserveFetch records one records API call. resource is "patient",
// "interactions" or "doctors".
func (p *Provider) ObserveFetch(resource string, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		p.fetchErrors.WithLabelValues(resource, fetchErrorReason(err)).Inc()
	}
	p.fetchDuration.WithLabelValues(resource, outcome).Observe(d.Seconds())
}

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

func fetchErrorReason(err error) string {
	var sc StatusCoder
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &sc):
		return "http_" + strconv.Itoa(sc.StatusCode())
	default:
		return "transport"
	}
}

// ObserveTransition counts a session state change.
func (p *Provider) ObserveTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

// CountAccess counts one record access by action and status class (2xx, 4xx...).
func (p *Provider) CountAccess(action string, status int) {
	p.recordAccess.WithLabelValues(action, strconv.Itoa(status/100)+"xx").Inc()
}

// RegisterGaugeFunc exposes a value that is read at scrape time.
func (p *Provider) RegisterGaugeFunc(name, help string, fn func() float64) error {
	return p.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}
