// Package telemetry groups the observability packages of gatekeeper.
//
//   - logging: slog handlers with request context fields and API key redaction
//   - metrics: Prometheus collectors for requests, admission, cache and upstream
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness, readiness and version endpoints
//
// The server wires all four from the telemetry section of the configuration:
//
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
//	  metrics:
//	    enabled: true
//	    path: /metrics
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    sampler: ratio
//	    sample_ratio: 0.1
//	  health:
//	    liveness_path: /health
//	    readiness_path: /ready
//
// Logs never contain full API keys. With redact_keys on (the default) a key
// is reduced to its first four characters.
package telemetry
