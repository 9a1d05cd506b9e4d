// Package tracing configures OpenTelemetry for the gateway.
//
// Spans are exported over OTLP gRPC. The sampler is one of "always", "never"
// or "ratio" and always respects the sampling decision of an inbound
// traceparent. With tracing disabled every span is a noop.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
// HTTPMiddleware continues inbound traces and Inject forwards the current
// trace to the upstream.
package tracing
