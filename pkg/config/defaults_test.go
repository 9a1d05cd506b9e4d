package config

import (
	"reflect"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"listen address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"read timeout", cfg.Server.ReadTimeout, DefaultReadTimeout},
		{"shutdown timeout", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout},
		{"upstream timeout", cfg.Upstream.Timeout, DefaultUpstreamTimeout},
		{"limits enabled", cfg.Limits.Enabled, true},
		{"fault log interval", cfg.Limits.FaultLogInterval, DefaultFaultLogInterval},
		{"profile source", cfg.Profiles.Source, DefaultProfilesSource},
		{"profile path", cfg.Profiles.Path, ""},
		{"cache ttl", cfg.Profiles.CacheTTL, DefaultProfilesCacheTTL},
		{"refresh schedule", cfg.Profiles.RefreshSchedule, DefaultProfilesRefresh},
		{"log level", cfg.Telemetry.Logging.Level, DefaultLoggingLevel},
		{"redact keys", cfg.Telemetry.Logging.RedactKeys, true},
		{"metrics path", cfg.Telemetry.Metrics.Path, DefaultPrometheusPath},
		{"metrics namespace", cfg.Telemetry.Metrics.Namespace, DefaultMetricsNamespace},
		{"tracing enabled", cfg.Telemetry.Tracing.Enabled, false},
		{"sampler", cfg.Telemetry.Tracing.Sampler, DefaultTracingSampler},
		{"readiness path", cfg.Telemetry.Health.ReadinessPath, DefaultReadinessPath},
		{"auth sources", len(cfg.Security.Authentication.Sources), 2},
		{"cors enabled", cfg.Server.CORS.Enabled, false},
		{"cors origins", len(cfg.Server.CORS.AllowedOrigins), 0},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	cfg := Default()
	before := *cfg
	ApplyDefaults(cfg)
	if !reflect.DeepEqual(before, *cfg) {
		t.Error("second ApplyDefaults changed the configuration")
	}
}

func TestApplyDefaults_ProfilePath(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"memory", ""},
		{"file", DefaultProfilesFilePath},
		{"sqlite", DefaultProfilesSQLitePath},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			cfg := newConfig()
			cfg.Profiles.Source = tt.source
			ApplyDefaults(cfg)
			if cfg.Profiles.Path != tt.want {
				t.Errorf("Path = %q, want %q", cfg.Profiles.Path, tt.want)
			}
		})
	}
}

func TestApplyDefaults_RemoteStores(t *testing.T) {
	cfg := newConfig()
	cfg.Profiles.Source = "mongodb"
	ApplyDefaults(cfg)
	m := cfg.Profiles.Mongo
	if m.Database != DefaultMongoDatabase || m.Collection != DefaultMongoCollection || m.Timeout != DefaultMongoTimeout {
		t.Errorf("Mongo = %+v", m)
	}
	if cfg.Profiles.Redis.Addr != "" {
		t.Errorf("redis defaults applied for the mongodb source: %+v", cfg.Profiles.Redis)
	}

	cfg = newConfig()
	cfg.Profiles.Source = "redis"
	cfg.Profiles.Redis.Prefix = "edge:profiles"
	ApplyDefaults(cfg)
	if cfg.Profiles.Redis.Addr != DefaultRedisAddr {
		t.Errorf("Redis.Addr = %q, want %q", cfg.Profiles.Redis.Addr, DefaultRedisAddr)
	}
	if cfg.Profiles.Redis.Prefix != "edge:profiles" {
		t.Errorf("Redis.Prefix = %q, explicit value overwritten", cfg.Profiles.Redis.Prefix)
	}
}

func TestApplyDefaults_KeyAuthority(t *testing.T) {
	cfg := newConfig()
	cfg.Security.Authentication.Keys = []APIKeyConfig{
		{Key: "a", TenantID: "acme"},
		{Key: "b", TenantID: "acme", CustomerID: "web"},
		{Key: "c", Authority: "SYS_ADMIN"},
	}
	ApplyDefaults(cfg)

	want := []string{"TENANT_ADMIN", "CUSTOMER_USER", "SYS_ADMIN"}
	for i, k := range cfg.Security.Authentication.Keys {
		if k.Authority != want[i] {
			t.Errorf("key %s authority = %q, want %q", k.Key, k.Authority, want[i])
		}
	}
}

func TestApplyDefaults_DefaultBucketsNotShared(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.Metrics.RequestDurationBuckets[0] = 42
	if DefaultRequestDurationBuckets[0] == 42 {
		t.Fatal("ApplyDefaults aliased DefaultRequestDurationBuckets")
	}
}
