package limits

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for admission control.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	checks          *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	configErrors    *prometheus.CounterVec
	limitersCreated *prometheus.CounterVec
	limitersActive  *prometheus.GaugeVec
	checkDuration   prometheus.Histogram
}

// NewMetrics creates admission metrics and registers them with reg.
// If reg is nil the default Prometheus registerer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "gatekeeper"
	}
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_checks_total",
				Help:      "Total number of admission checks by scope and result",
			},
			[]string{"scope", "result"},
		),

		rejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_rejections_total",
				Help:      "Total number of requests rejected by rate limits",
			},
			[]string{"scope"},
		),

		configErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admission_config_errors_total",
				Help:      "Total number of malformed rate limit rules encountered",
			},
			[]string{"scope"},
		),

		limitersCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "limiters_created_total",
				Help:      "Total number of rate limiters constructed",
			},
			[]string{"scope"},
		),

		limitersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "limiters_active",
				Help:      "Current number of cached rate limiters",
			},
			[]string{"scope"},
		),

		checkDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "admission_check_duration_seconds",
				Help:      "Duration of admission checks in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
		),
	}
}

// RecordCheck records the outcome of one scope's check.
func (m *Metrics) RecordCheck(scope Scope, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "rejected"
		m.rejections.WithLabelValues(string(scope)).Inc()
	}
	m.checks.WithLabelValues(string(scope), result).Inc()
}

// RecordConfigError records a malformed rule string.
func (m *Metrics) RecordConfigError(scope Scope) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(string(scope), "error").Inc()
	m.configErrors.WithLabelValues(string(scope)).Inc()
}

// RecordLimiterCreated records a limiter construction.
func (m *Metrics) RecordLimiterCreated(scope Scope) {
	if m == nil {
		return
	}
	m.limitersCreated.WithLabelValues(string(scope)).Inc()
}

// UpdateActiveLimiters sets the number of cached limiters for scope.
func (m *Metrics) UpdateActiveLimiters(scope Scope, n int) {
	if m == nil {
		return
	}
	m.limitersActive.WithLabelValues(string(scope)).Set(float64(n))
}

// RecordCheckDuration records the duration of a full admission check.
func (m *Metrics) RecordCheckDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.checkDuration.Observe(d.Seconds())
}
