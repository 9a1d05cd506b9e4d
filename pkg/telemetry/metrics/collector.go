package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/gatekeeper/pkg/config"
)

// Collector owns the gateway's Prometheus registry and the request and
// cache metrics recorded outside the limits package. Admission metrics are
// created by limits.NewMetrics against the same Registry.
//
// When metrics are disabled every Record method is a no-op.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	cacheMetrics   *CacheMetrics
}

// NewCollector creates a collector with the specified configuration and
// registry. If registry is nil a fresh one is created. Go runtime and
// process collectors are registered alongside the gateway metrics.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	admission := limits.NewMetrics(cfg.Telemetry.Metrics.Namespace, collector.Registry())
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.RequestDurationBuckets) == 0 {
		cfg.RequestDurationBuckets = config.DefaultRequestDurationBuckets
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}
	if !cfg.Enabled {
		return c
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.requestMetrics = NewRequestMetrics(cfg, registry)
	c.cacheMetrics = NewCacheMetrics(cfg, registry)

	return c
}

// Enabled reports whether metrics are collected.
func (c *Collector) Enabled() bool {
	return c.config.Enabled
}

// RecordRequest records a completed HTTP request.
func (c *Collector) RecordRequest(method string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(method, strconv.Itoa(status), duration)
}

// RequestStarted increments the in-flight gauge. Pair with RequestFinished.
func (c *Collector) RequestStarted() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Inc()
}

// RequestFinished decrements the in-flight gauge.
func (c *Collector) RequestFinished() {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.inFlight.Dec()
}

// RecordUpstreamError records a failed upstream round trip by kind
// ("timeout", "unreachable").
func (c *Collector) RecordUpstreamError(kind string) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.upstreamErrors.WithLabelValues(kind).Inc()
}

// Cache returns the cache metrics, or nil when metrics are disabled. The
// result satisfies profile.CacheObserver either way.
func (c *Collector) Cache() *CacheMetrics {
	return c.cacheMetrics
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return Handler(c.registry)
}
