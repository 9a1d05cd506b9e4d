package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateProfiles(&cfg.Profiles)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates HTTP server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}

	for field, d := range map[string]time.Duration{
		"server.read_timeout":     cfg.ReadTimeout,
		"server.write_timeout":    cfg.WriteTimeout,
		"server.idle_timeout":     cfg.IdleTimeout,
		"server.shutdown_timeout": cfg.ShutdownTimeout,
		"server.request_timeout":  cfg.RequestTimeout,
	} {
		if d < 0 {
			errs = append(errs, FieldError{Field: field, Message: "timeout must not be negative"})
		}
	}

	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}
	if cfg.MaxHeaderBytes > 10*1024*1024 { // 10MB is excessive
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes exceeds reasonable limit (10MB)",
		})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}
	var errs []FieldError
	if cfg.CertFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "certificate file is required when TLS is enabled"})
	}
	if cfg.KeyFile == "" {
		errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
	}
	switch cfg.MinVersion {
	case "", "1.2", "1.3":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.min_version",
			Message: fmt.Sprintf("unsupported TLS version %q (use 1.2 or 1.3)", cfg.MinVersion),
		})
	}
	switch cfg.ClientAuth {
	case "", "require", "request", "verify_if_given":
	default:
		errs = append(errs, FieldError{
			Field:   "server.tls.client_auth",
			Message: fmt.Sprintf("unknown client auth mode %q", cfg.ClientAuth),
		})
	}
	return errs
}

// validateUpstream validates the protected service address.
func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if cfg.URL == "" {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: "upstream URL is required",
		})
	} else if u, err := url.Parse(cfg.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, FieldError{
			Field:   "upstream.url",
			Message: fmt.Sprintf("invalid upstream URL %q: must be an absolute http or https URL", cfg.URL),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "timeout must not be negative",
		})
	}
	if cfg.MaxIdleConns < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.max_idle_conns",
			Message: "max idle connections must be non-negative",
		})
	}

	return errs
}

// validateLimits validates admission control settings.
func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if cfg.FaultLogInterval < 0 {
		errs = append(errs, FieldError{
			Field:   "limits.fault_log_interval",
			Message: "fault log interval must not be negative",
		})
	}

	return errs
}

// validateProfiles validates the profile source and every inline rule string.
func validateProfiles(cfg *ProfilesConfig) []FieldError {
	var errs []FieldError

	switch cfg.Source {
	case "memory":
	case "file", "sqlite":
		if cfg.Path == "" {
			errs = append(errs, FieldError{
				Field:   "profiles.path",
				Message: fmt.Sprintf("path is required for the %s source", cfg.Source),
			})
		}
	case "mongodb":
		if cfg.Mongo.URI == "" {
			errs = append(errs, FieldError{
				Field:   "profiles.mongo.uri",
				Message: "uri is required for the mongodb source",
			})
		}
		if cfg.Mongo.Timeout < 0 {
			errs = append(errs, FieldError{Field: "profiles.mongo.timeout", Message: "timeout must not be negative"})
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{
				Field:   "profiles.redis.addr",
				Message: "addr is required for the redis source",
			})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "profiles.redis.db", Message: "db must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "profiles.source",
			Message: fmt.Sprintf("invalid source %q: must be 'memory', 'file', 'sqlite', 'mongodb', or 'redis'", cfg.Source),
		})
	}

	if cfg.Watch && (cfg.Source == "memory" || cfg.Source == "sqlite") {
		errs = append(errs, FieldError{
			Field:   "profiles.watch",
			Message: fmt.Sprintf("watch is not supported for the %s source", cfg.Source),
		})
	}
	if len(cfg.Inline) > 0 && cfg.Source != "memory" {
		errs = append(errs, FieldError{
			Field:   "profiles.inline",
			Message: "inline profiles are only used by the memory source",
		})
	}
	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{
			Field:   "profiles.cache_ttl",
			Message: "cache TTL must not be negative",
		})
	}
	if cfg.RefreshSchedule != RefreshDisabled {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "profiles.refresh_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.RefreshSchedule, err),
			})
		}
	}

	seen := make(map[string]bool, len(cfg.Inline))
	for i, p := range cfg.Inline {
		prefix := fmt.Sprintf("profiles.inline[%d]", i)
		if p.TenantID == "" {
			errs = append(errs, FieldError{Field: prefix + ".tenant_id", Message: "tenant ID is required"})
		} else if seen[p.TenantID] {
			errs = append(errs, FieldError{
				Field:   prefix + ".tenant_id",
				Message: fmt.Sprintf("duplicate tenant %q", p.TenantID),
			})
		}
		seen[p.TenantID] = true
		errs = append(errs, validateRuleString(prefix+".rate_limits.tenant", p.RateLimits.Tenant)...)
		errs = append(errs, validateRuleString(prefix+".rate_limits.customer", p.RateLimits.Customer)...)
	}

	return errs
}

// validateRuleString parses a non-empty rule string.
func validateRuleString(field, spec string) []FieldError {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	if _, err := ratelimit.ParseRules(spec); err != nil {
		return []FieldError{{Field: field, Message: err.Error()}}
	}
	return nil
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}
	for i := 1; i < len(cfg.Metrics.RequestDurationBuckets); i++ {
		if cfg.Metrics.RequestDurationBuckets[i] <= cfg.Metrics.RequestDurationBuckets[i-1] {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.request_duration_buckets",
				Message: "buckets must be in increasing order",
			})
			break
		}
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	validSamplers := map[string]bool{"always": true, "never": true, "ratio": true}
	if !validSamplers[cfg.Tracing.Sampler] {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.Enabled {
		if !strings.HasPrefix(cfg.Health.LivenessPath, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.liveness_path",
				Message: "liveness path must start with /",
			})
		}
		if !strings.HasPrefix(cfg.Health.ReadinessPath, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.readiness_path",
				Message: "readiness path must start with /",
			})
		}
		if cfg.Health.CheckTimeout < 0 || cfg.Health.CheckTimeout > 60*time.Second {
			errs = append(errs, FieldError{
				Field:   "telemetry.health.check_timeout",
				Message: "check timeout must be between 0 and 60s",
			})
		}
	}

	return errs
}

// validateSecurity validates API key authentication.
func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError
	auth := &cfg.Authentication

	for i, src := range auth.Sources {
		prefix := fmt.Sprintf("security.authentication.sources[%d]", i)
		if src.Type != "header" && src.Type != "query" {
			errs = append(errs, FieldError{
				Field:   prefix + ".type",
				Message: fmt.Sprintf("invalid source type %q: must be 'header' or 'query'", src.Type),
			})
		}
		if src.Name == "" {
			errs = append(errs, FieldError{Field: prefix + ".name", Message: "name is required"})
		}
	}

	if auth.Enabled && len(auth.Keys) == 0 {
		errs = append(errs, FieldError{
			Field:   "security.authentication.keys",
			Message: "at least one key is required when authentication is enabled",
		})
	}

	seen := make(map[string]bool, len(auth.Keys))
	for i, k := range auth.Keys {
		prefix := fmt.Sprintf("security.authentication.keys[%d]", i)
		if k.Key == "" {
			errs = append(errs, FieldError{Field: prefix + ".key", Message: "key is required"})
		} else if seen[k.Key] {
			errs = append(errs, FieldError{Field: prefix + ".key", Message: "duplicate key"})
		}
		seen[k.Key] = true

		switch k.Authority {
		case "SYS_ADMIN":
		case "TENANT_ADMIN":
			if k.TenantID == "" {
				errs = append(errs, FieldError{Field: prefix + ".tenant_id", Message: "tenant ID is required"})
			}
		case "CUSTOMER_USER":
			if k.TenantID == "" {
				errs = append(errs, FieldError{Field: prefix + ".tenant_id", Message: "tenant ID is required"})
			}
			if k.CustomerID == "" {
				errs = append(errs, FieldError{
					Field:   prefix + ".customer_id",
					Message: "customer ID is required for CUSTOMER_USER keys",
				})
			}
		default:
			errs = append(errs, FieldError{
				Field:   prefix + ".authority",
				Message: fmt.Sprintf("invalid authority %q: must be 'SYS_ADMIN', 'TENANT_ADMIN', or 'CUSTOMER_USER'", k.Authority),
			})
		}
	}

	return errs
}
