package config

import "time"

// Config is the root configuration structure for Gatekeeper.
// It contains all configuration sections for the HTTP server, the protected
// upstream, admission control, tenant profiles, telemetry and security.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts and CORS.
	Server ServerConfig `yaml:"server"`

	// Upstream describes the protected service requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Limits contains admission control settings.
	Limits LimitsConfig `yaml:"limits"`

	// Profiles configures where tenant rate limit rules are read from.
	Profiles ProfilesConfig `yaml:"profiles"`

	// Telemetry contains configuration for observability including logging,
	// metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security contains API key authentication configuration.
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port for the server to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for in-flight requests
	// during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// RequestTimeout bounds the time spent on one proxied request, upstream
	// included. Zero disables the bound.
	// Default: 0
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS terminates HTTPS on the listener.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures TLS termination on the gateway listener.
type TLSConfig struct {
	// Enabled switches the listener to HTTPS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile and KeyFile are PEM-encoded. Both are required when enabled.
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.2"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile enables client certificate verification against the
	// PEM bundle it names.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth is "require", "request" or "verify_if_given". Only used
	// with ClientCAFile.
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`

	// Watch reloads the key pair when either file changes on disk.
	// Default: false
	Watch bool `yaml:"watch"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS headers are added.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins. ["*"] allows all.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods.
	// Default: ["GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed request headers.
	// Default: ["Authorization", "Content-Type", "X-API-Key", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age"`
}

// UpstreamConfig describes the protected service.
type UpstreamConfig struct {
	// URL is the base URL requests are forwarded to. Required to run the
	// server.
	URL string `yaml:"url"`

	// Timeout bounds waiting for the upstream's response headers.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the size of the upstream keep-alive pool.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`

	// FlushInterval controls response streaming; a negative value flushes
	// after every write.
	// Default: 0
	FlushInterval time.Duration `yaml:"flush_interval"`

	// PreserveHost forwards the client's Host header instead of the
	// upstream's.
	// Default: false
	PreserveHost bool `yaml:"preserve_host"`
}

// LimitsConfig contains admission control settings.
type LimitsConfig struct {
	// Enabled controls whether requests are rate limited at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// InvalidateOnProfileChange drops the cached limiters of a tenant when
	// its profile changes. When false, limiters keep the rules they were
	// built with until restart.
	// Default: false
	InvalidateOnProfileChange bool `yaml:"invalidate_on_profile_change"`

	// FaultLogInterval throttles logging of malformed rule strings.
	// Default: 1m
	FaultLogInterval time.Duration `yaml:"fault_log_interval"`
}

// ProfilesConfig configures the tenant profile store.
type ProfilesConfig struct {
	// Source selects the store.
	// Options: "memory" (Inline), "file" (YAML at Path), "sqlite" (DB at
	// Path), "mongodb" (Mongo), "redis" (Redis)
	// Default: "memory"
	Source string `yaml:"source"`

	// Path is the YAML file or SQLite database path.
	Path string `yaml:"path"`

	// Watch reloads the YAML file when it changes. For the mongodb and
	// redis sources it subscribes to changes made by other writers.
	// Default: false
	Watch bool `yaml:"watch"`

	// WatchDebounce coalesces bursts of file events.
	// Default: 100ms
	WatchDebounce time.Duration `yaml:"watch_debounce"`

	// CacheTTL is how long a looked-up profile is reused.
	// Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// RefreshSchedule is a cron expression for purging the profile cache
	// and reloading file profiles. "off" disables the schedule.
	// Default: "@every 1m"
	RefreshSchedule string `yaml:"refresh_schedule"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// Inline lists profiles for the memory source.
	Inline []ProfileConfig `yaml:"inline"`

	// Mongo configures the mongodb source.
	Mongo MongoConfig `yaml:"mongo"`

	// Redis configures the redis source.
	Redis RedisConfig `yaml:"redis"`
}

// MongoConfig locates the profile collection in MongoDB.
type MongoConfig struct {
	// URI is the connection string, e.g. "mongodb://localhost:27017".
	URI string `yaml:"uri"`

	// Username and Password authenticate against the admin database.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Database holds the profile collection.
	// Default: "gatekeeper"
	Database string `yaml:"database"`

	// Collection stores one document per tenant, keyed by tenant ID.
	// Default: "tenant_profiles"
	Collection string `yaml:"collection"`

	// Timeout bounds each operation.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`
}

// RedisConfig locates the profile hash in Redis.
type RedisConfig struct {
	// Addr is host:port.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// Prefix names the profile hash. Changes are published on
	// "<prefix>:changes".
	// Default: "gatekeeper:profiles"
	Prefix string `yaml:"prefix"`
}

// ProfileConfig is a tenant profile declared in the configuration file.
type ProfileConfig struct {
	// TenantID identifies the tenant. Required.
	TenantID string `yaml:"tenant_id"`

	// Name is a display name.
	Name string `yaml:"name"`

	// RateLimits holds the tenant and customer rule strings, for example
	// "100:1,3000:60". Empty strings disable the scope.
	RateLimits RateLimitsConfig `yaml:"rate_limits"`
}

// RateLimitsConfig holds the rule strings of one profile.
type RateLimitsConfig struct {
	Tenant   string `yaml:"tenant"`
	Customer string `yaml:"customer"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`

	// Health contains health check configuration.
	Health HealthConfig `yaml:"health"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactKeys masks API keys and bearer tokens in log entries.
	// Default: true
	RedactKeys bool `yaml:"redact_keys"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "gatekeeper"
	Namespace string `yaml:"namespace"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether distributed tracing is active.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint, e.g. "localhost:4317".
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "gatekeeper"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for OTLP connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout is the timeout for OTLP exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains health check endpoint configuration.
type HealthConfig struct {
	// Enabled controls whether health check endpoints are enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// LivenessPath is the path for the liveness probe endpoint.
	// Default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath is the path for the readiness probe endpoint.
	// Default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout is the timeout for individual component health checks.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// SecurityConfig contains security-related configuration.
type SecurityConfig struct {
	// Authentication contains API key authentication configuration.
	Authentication AuthenticationConfig `yaml:"authentication"`
}

// AuthenticationConfig contains API key authentication configuration.
type AuthenticationConfig struct {
	// Enabled controls whether API keys are resolved to callers. Without
	// authentication no request carries an identity and nothing is limited.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Optional lets requests without a key through unauthenticated.
	// Default: false
	Optional bool `yaml:"optional"`

	// Sources defines where to extract API keys from (headers, query params).
	// Default: Authorization Bearer, then X-API-Key
	Sources []APIKeySource `yaml:"sources"`

	// Keys is the list of valid API keys.
	Keys []APIKeyConfig `yaml:"keys"`
}

// APIKeySource defines where to extract API keys from in HTTP requests.
type APIKeySource struct {
	// Type is the source type.
	// Options: "header", "query"
	Type string `yaml:"type"`

	// Name is the header name or query parameter name.
	Name string `yaml:"name"`

	// Scheme is the authentication scheme for header-based extraction.
	// Example: "Bearer" (for "Authorization: Bearer <token>")
	Scheme string `yaml:"scheme,omitempty"`
}

// APIKeyConfig contains configuration for a single API key.
type APIKeyConfig struct {
	// Key is the API key value.
	Key string `yaml:"key"`

	// UserID is the user identifier associated with this key.
	UserID string `yaml:"user_id"`

	// TenantID is the tenant the key acts for.
	TenantID string `yaml:"tenant_id"`

	// CustomerID is the customer the key acts for, if any.
	CustomerID string `yaml:"customer_id,omitempty"`

	// Authority is one of "SYS_ADMIN", "TENANT_ADMIN", "CUSTOMER_USER".
	// Default: "CUSTOMER_USER" when CustomerID is set, else "TENANT_ADMIN"
	Authority string `yaml:"authority"`

	// Enabled controls whether this key is accepted.
	// Default: true
	Enabled bool `yaml:"enabled"`
}
