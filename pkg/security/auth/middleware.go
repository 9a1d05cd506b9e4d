package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/gatekeeper/pkg/proxy/types"
)

// APIKeySource defines where to extract API keys from.
type APIKeySource struct {
	Type   string `yaml:"type"`   // header, query
	Name   string `yaml:"name"`   // Header name or query param
	Scheme string `yaml:"scheme"` // "Bearer", etc. (optional)
}

// DefaultSources are used when no sources are configured.
var DefaultSources = []APIKeySource{
	{Type: "header", Name: "Authorization", Scheme: "Bearer"},
	{Type: "header", Name: "X-API-Key"},
}

// MiddlewareOptions configures APIKeyMiddleware.
type MiddlewareOptions struct {
	// Sources lists where keys are looked for, in order.
	// Defaults to DefaultSources.
	Sources []APIKeySource

	// Optional lets requests without a key through as unauthenticated.
	// A key that is present but invalid is always rejected.
	Optional bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// APIKeyMiddleware is HTTP middleware for API key authentication.
type APIKeyMiddleware struct {
	validator *APIKeyValidator
	sources   []APIKeySource
	optional  bool
	logger    *slog.Logger
}

// NewAPIKeyMiddleware creates a new API key authentication middleware.
func NewAPIKeyMiddleware(validator *APIKeyValidator, opts MiddlewareOptions) *APIKeyMiddleware {
	sources := opts.Sources
	if len(sources) == 0 {
		sources = DefaultSources
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyMiddleware{
		validator: validator,
		sources:   sources,
		optional:  opts.Optional,
		logger:    logger.With("component", "auth"),
	}
}

// Handle wraps an HTTP handler with API key authentication.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey, err := m.extractAPIKey(r)
		if err != nil {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			m.logger.WarnContext(r.Context(), "missing API key",
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			types.WriteError(w, types.NewAuthenticationError("Missing API key", types.CodeMissingAPIKey))
			return
		}

		keyInfo, err := m.validator.Validate(apiKey)
		if err != nil {
			m.logger.WarnContext(r.Context(), "invalid API key",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path,
			)
			msg := "Invalid API key"
			if errors.Is(err, ErrAPIKeyDisabled) {
				msg = "API key disabled"
			}
			types.WriteError(w, types.NewAuthenticationError(msg, types.CodeInvalidAPIKey))
			return
		}

		m.logger.DebugContext(r.Context(), "API key authenticated",
			"user_id", keyInfo.UserID,
			"tenant_id", keyInfo.TenantID,
			"customer_id", keyInfo.CustomerID,
			"authority", keyInfo.Authority,
		)

		next.ServeHTTP(w, r.WithContext(SetAPIKeyInfo(r.Context(), keyInfo)))
	})
}

// extractAPIKey extracts the API key from the request using configured sources.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (string, error) {
	for _, source := range m.sources {
		switch source.Type {
		case "header":
			value := r.Header.Get(source.Name)
			if value == "" {
				continue
			}
			if source.Scheme == "" {
				return value, nil
			}
			if key, ok := strings.CutPrefix(value, source.Scheme+" "); ok && key != "" {
				return key, nil
			}

		case "query":
			if value := r.URL.Query().Get(source.Name); value != "" {
				return value, nil
			}
		}
	}

	return "", ErrMissingAPIKey
}

type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyInfoKey contextKey = "api_key_info"

// SetAPIKeyInfo returns a context carrying info.
func SetAPIKeyInfo(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, apiKeyInfoKey, info)
}

// GetAPIKeyInfo retrieves API key info from request context.
func GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyInfoKey).(*APIKeyInfo)
	return info, ok && info != nil
}
