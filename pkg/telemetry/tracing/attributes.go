package tracing

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for admission.
const (
	AttrTenantID   = attribute.Key("tenant.id")
	AttrCustomerID = attribute.Key("customer.id")
	AttrStage      = attribute.Key("admission.stage")
	AttrBypassed   = attribute.Key("admission.bypassed")
	AttrRejected   = attribute.Key("admission.rejected")
	AttrScope      = attribute.Key("ratelimit.scope")
	AttrRemaining  = attribute.Key("ratelimit.remaining")
	AttrRetryAfter = attribute.Key("ratelimit.retry_after_ms")
)

// IdentityAttributes describes the caller being admitted. An empty customer
// is omitted.
func IdentityAttributes(tenant, customer string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrTenantID.String(tenant)}
	if customer != "" {
		attrs = append(attrs, AttrCustomerID.String(customer))
	}
	return attrs
}

// SetDecision records the outcome of an admission check on span.
func SetDecision(span trace.Span, stage string, bypassed bool, remaining int64) {
	span.SetAttributes(
		AttrStage.String(stage),
		AttrBypassed.Bool(bypassed),
		AttrRemaining.Int64(remaining),
	)
}

// SetRejection marks span as a rate-limit rejection.
func SetRejection(span trace.Span, scope string, retryAfter time.Duration) {
	span.SetAttributes(
		AttrRejected.Bool(true),
		AttrScope.String(scope),
		AttrRetryAfter.Int64(retryAfter.Milliseconds()),
	)
}
