package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultCORSMaxAge      = 3600    // 1 hour
	DefaultTLSMinVersion   = "1.2"
	DefaultTLSClientAuth   = "require"

	// Upstream defaults
	DefaultUpstreamTimeout      = 60 * time.Second
	DefaultUpstreamMaxIdleConns = 100

	// Limits defaults
	DefaultLimitsEnabled    = true
	DefaultFaultLogInterval = time.Minute

	// Profile defaults
	DefaultProfilesSource        = "memory"
	DefaultProfilesWatchDebounce = 100 * time.Millisecond
	DefaultProfilesCacheTTL      = 5 * time.Minute
	DefaultProfilesRefresh       = "@every 1m"
	DefaultProfilesSQLiteTimeout = 5 * time.Second
	DefaultProfilesSQLitePath    = "data/profiles.db"
	DefaultProfilesFilePath      = "profiles.yaml"
	DefaultMongoDatabase         = "gatekeeper"
	DefaultMongoCollection       = "tenant_profiles"
	DefaultMongoTimeout          = 5 * time.Second
	DefaultRedisAddr             = "localhost:6379"
	DefaultRedisPrefix           = "gatekeeper:profiles"

	// RefreshDisabled turns the profile refresh schedule off.
	RefreshDisabled = "off"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactKeys   = true
	DefaultMetricsEnabled      = true
	DefaultPrometheusPath      = "/metrics"
	DefaultMetricsNamespace    = "gatekeeper"
	DefaultTracingEnabled      = false
	DefaultTracingSampler      = "ratio"
	DefaultTracingSamplingRate = 1.0
	DefaultTracingServiceName  = "gatekeeper"
	DefaultOTLPTimeout         = 10 * time.Second
	DefaultHealthEnabled       = true
	DefaultLivenessPath        = "/health"
	DefaultReadinessPath       = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// DefaultRequestDurationBuckets are tuned for a gateway in front of an API:
// 5ms to 10s.
var DefaultRequestDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// newConfig returns a Config with the boolean fields whose default is true
// already set, so that an explicit false in YAML survives ApplyDefaults.
func newConfig() *Config {
	cfg := &Config{}
	cfg.Limits.Enabled = DefaultLimitsEnabled
	cfg.Telemetry.Logging.RedactKeys = DefaultLoggingRedactKeys
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Telemetry.Health.Enabled = DefaultHealthEnabled
	return cfg
}

// Default returns a complete configuration built only from defaults.
func Default() *Config {
	cfg := newConfig()
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	applyCORSDefaults(&cfg.Server.CORS)
	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.MinVersion == "" {
			cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
		}
		if cfg.Server.TLS.ClientCAFile != "" && cfg.Server.TLS.ClientAuth == "" {
			cfg.Server.TLS.ClientAuth = DefaultTLSClientAuth
		}
	}

	// Upstream defaults
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultUpstreamMaxIdleConns
	}

	// Limits defaults
	if cfg.Limits.FaultLogInterval == 0 {
		cfg.Limits.FaultLogInterval = DefaultFaultLogInterval
	}

	applyProfilesDefaults(&cfg.Profiles)

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultPrometheusPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultRequestDurationBuckets...)
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSamplingRate
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultOTLPTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}

	// Authentication defaults
	auth := &cfg.Security.Authentication
	if len(auth.Sources) == 0 {
		auth.Sources = []APIKeySource{
			{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			{Type: "header", Name: "X-API-Key"},
		}
	}
	for i := range auth.Keys {
		if auth.Keys[i].Authority == "" {
			if auth.Keys[i].CustomerID != "" {
				auth.Keys[i].Authority = "CUSTOMER_USER"
			} else {
				auth.Keys[i].Authority = "TENANT_ADMIN"
			}
		}
	}
}

// applyCORSDefaults fills the CORS lists when CORS is enabled.
func applyCORSDefaults(cors *CORSConfig) {
	if !cors.Enabled {
		return
	}
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"}
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

func applyProfilesDefaults(p *ProfilesConfig) {
	if p.Source == "" {
		p.Source = DefaultProfilesSource
	}
	if p.Path == "" {
		switch p.Source {
		case "file":
			p.Path = DefaultProfilesFilePath
		case "sqlite":
			p.Path = DefaultProfilesSQLitePath
		}
	}
	if p.WatchDebounce == 0 {
		p.WatchDebounce = DefaultProfilesWatchDebounce
	}
	if p.CacheTTL == 0 {
		p.CacheTTL = DefaultProfilesCacheTTL
	}
	if p.RefreshSchedule == "" {
		p.RefreshSchedule = DefaultProfilesRefresh
	}
	if p.BusyTimeout == 0 {
		p.BusyTimeout = DefaultProfilesSQLiteTimeout
	}

	switch p.Source {
	case "mongodb":
		if p.Mongo.Database == "" {
			p.Mongo.Database = DefaultMongoDatabase
		}
		if p.Mongo.Collection == "" {
			p.Mongo.Collection = DefaultMongoCollection
		}
		if p.Mongo.Timeout == 0 {
			p.Mongo.Timeout = DefaultMongoTimeout
		}
	case "redis":
		if p.Redis.Addr == "" {
			p.Redis.Addr = DefaultRedisAddr
		}
		if p.Redis.Prefix == "" {
			p.Redis.Prefix = DefaultRedisPrefix
		}
	}
}
