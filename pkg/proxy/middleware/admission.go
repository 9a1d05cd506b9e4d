package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/gatekeeper/pkg/limits"
	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
	"mercator-hq/gatekeeper/pkg/proxy/types"
	"mercator-hq/gatekeeper/pkg/security/auth"
	"mercator-hq/gatekeeper/pkg/telemetry/logging"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

// Response headers set by the admission middleware.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// tracerName identifies admission spans.
const tracerName = "mercator-hq/gatekeeper/admission"

// Checker decides whether a caller's request is admitted.
// *limits.Manager implements it.
type Checker interface {
	CheckLimits(ctx context.Context, caller limits.Caller) (*limits.LimitCheckResult, error)
}

// AdmissionOptions configures AdmissionMiddleware.
type AdmissionOptions struct {
	// Tracer creates the admission.check span. Defaults to the global
	// OpenTelemetry tracer provider.
	Tracer trace.Tracer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// AdmissionMiddleware enforces tenant and customer rate limits for the
// caller authenticated by auth.APIKeyMiddleware. Requests without a caller
// pass through.
//
// Outcomes:
//   - admitted: X-RateLimit-Limit/Remaining are set and the request is forwarded
//   - rejected: 429 with Retry-After in whole seconds, rounded up
//   - malformed rule: 500 rate_limit_config_invalid
//   - profile lookup failure: 503 profile_unavailable
func AdmissionMiddleware(checker Checker, opts AdmissionOptions) func(http.Handler) http.Handler {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "admission")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := auth.GetAPIKeyInfo(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			tenant, customer := string(info.Tenant()), string(info.Customer())
			ctx := withIdentity(r.Context(), tenant, customer)
			annotateIdentity(w, tenant, customer)

			spanCtx, span := tracer.Start(ctx, "admission.check",
				trace.WithAttributes(tracing.IdentityAttributes(tenant, customer)...),
			)
			result, err := checker.CheckLimits(spanCtx, info)
			if err != nil {
				tracing.SetStatus(span, err, "admission check failed")
				span.End()
				logger.DebugContext(ctx, "admission check failed", "error", err)
				writeAdmissionFault(w, err)
				return
			}
			var remaining int64
			if result.RateLimit != nil {
				remaining = result.RateLimit.Remaining
			}
			tracing.SetDecision(span, string(result.Stage), result.Bypassed, remaining)
			if !result.Allowed && result.Rejection != nil {
				tracing.SetRejection(span, string(result.Rejection.Scope), result.Rejection.RetryAfter)
			}
			span.End()

			setRateLimitHeaders(w, result.RateLimit)

			if !result.Allowed {
				logger.DebugContext(ctx, "request rejected",
					"scope", result.Rejection.Scope,
					"retry_after", result.Rejection.RetryAfter,
				)
				writeRejection(w, result.Rejection)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withIdentity(ctx context.Context, tenant, customer string) context.Context {
	if tenant != "" {
		ctx = logging.WithTenant(ctx, tenant)
	}
	if customer != "" {
		ctx = logging.WithCustomer(ctx, customer)
	}
	return ctx
}

// setRateLimitHeaders reports the most constraining limit that was checked.
func setRateLimitHeaders(w http.ResponseWriter, info *limits.RateLimitInfo) {
	if info == nil {
		return
	}
	w.Header().Set(HeaderRateLimitLimit, strconv.FormatInt(info.Limit, 10))
	w.Header().Set(HeaderRateLimitRemaining, strconv.FormatInt(info.Remaining, 10))
}

func writeRejection(w http.ResponseWriter, rej *limits.RejectionError) {
	code := types.CodeTenantRateLimit
	msg := "Tenant rate limit exceeded"
	if rej.Scope == limits.ScopeCustomer {
		code = types.CodeCustomerRateLimit
		msg = "Customer rate limit exceeded"
	}

	if secs := retryAfterSeconds(rej.RetryAfter); secs > 0 {
		w.Header().Set(HeaderRetryAfter, strconv.FormatInt(secs, 10))
		msg = fmt.Sprintf("%s. Retry after %d seconds.", msg, secs)
	}

	types.WriteError(w, types.NewRateLimitError(msg, code))
}

func writeAdmissionFault(w http.ResponseWriter, err error) {
	var scopeErr *limits.ScopeError
	switch {
	case errors.As(err, &scopeErr) || errors.Is(err, ratelimit.ErrInvalidRule):
		types.WriteError(w, types.NewServerError(
			"Rate limit configuration for this account is invalid.",
			types.CodeRateLimitConfigInvalid,
		))
	case errors.Is(err, limits.ErrProfileLookup):
		types.WriteError(w, types.NewServiceUnavailableError(
			"Tenant profile is temporarily unavailable.",
			types.CodeProfileUnavailable,
		))
	default:
		types.WriteError(w, types.NewServerError("An internal error occurred.", ""))
	}
}

// retryAfterSeconds rounds d up to whole seconds.
func retryAfterSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
