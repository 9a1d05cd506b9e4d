package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/gatekeeper/pkg/config"
)

// CacheMetrics tracks profile cache behaviour. It satisfies
// profile.CacheObserver; a nil *CacheMetrics records nothing.
//
// Metrics:
//   - gatekeeper_cache_hits_total
//   - gatekeeper_cache_misses_total
//   - gatekeeper_cache_entries
//   - gatekeeper_cache_evictions_total
//
// Hit rate in PromQL:
//
//	rate(gatekeeper_cache_hits_total{cache="profile"}[5m]) /
//	(rate(gatekeeper_cache_hits_total{cache="profile"}[5m]) +
//	 rate(gatekeeper_cache_misses_total{cache="profile"}[5m]))
type CacheMetrics struct {
	hitsTotal      *prometheus.CounterVec
	missesTotal    *prometheus.CounterVec
	entries        *prometheus.GaugeVec
	evictionsTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry prometheus.Registerer) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),

		missesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),

		entries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_entries",
				Help:      "Current number of entries in cache",
			},
			[]string{"cache"},
		),

		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "cache_evictions_total",
				Help:      "Total number of cache evictions",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.entries,
		cm.evictionsTotal,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit(cacheName string) {
	if cm == nil {
		return
	}
	cm.hitsTotal.WithLabelValues(cacheName).Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss(cacheName string) {
	if cm == nil {
		return
	}
	cm.missesTotal.WithLabelValues(cacheName).Inc()
}

// UpdateSize updates the current size of a cache.
func (cm *CacheMetrics) UpdateSize(cacheName string, size int) {
	if cm == nil {
		return
	}
	cm.entries.WithLabelValues(cacheName).Set(float64(size))
}

// RecordEviction records an entry removed by expiry, purge or a profile
// change.
func (cm *CacheMetrics) RecordEviction(cacheName string) {
	if cm == nil {
		return
	}
	cm.evictionsTotal.WithLabelValues(cacheName).Inc()
}
