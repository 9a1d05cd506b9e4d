// Package metrics exposes the gateway's Prometheus registry.
//
// A Collector owns one registry. HTTP request metrics and profile cache
// metrics live here; admission metrics (checks, rejections, limiter counts)
// are defined by the limits package and registered into the same registry:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	admission := limits.NewMetrics(cfg.Telemetry.Metrics.Namespace, collector.Registry())
//	cache := profile.NewCache(store, profile.WithObserver(collector.Cache()))
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// Request methods outside the standard HTTP set are reported as "OTHER".
package metrics
