package config

import (
	"testing"
	"time"
)

const minimalYAML = `
upstream:
  url: "http://localhost:9000"
`

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Upstream.URL != "http://localhost:9000" {
		t.Errorf("Upstream.URL = %q", cfg.Upstream.URL)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("Server.ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
	if !cfg.Limits.Enabled {
		t.Error("Limits.Enabled should default to true")
	}
	if cfg.Profiles.Source != "memory" {
		t.Errorf("Profiles.Source = %q, want memory", cfg.Profiles.Source)
	}
}

func TestParse_FullDocument(t *testing.T) {
	data := `
server:
  listen_address: "0.0.0.0:8443"
  request_timeout: 15s
  cors:
    enabled: true
    allowed_origins: ["https://app.example.com"]
upstream:
  url: "https://api.internal:8443"
  timeout: 5s
  preserve_host: true
limits:
  enabled: false
  invalidate_on_profile_change: true
profiles:
  source: memory
  cache_ttl: 30s
  refresh_schedule: "*/5 * * * *"
  inline:
    - tenant_id: acme
      name: Acme Corp
      rate_limits:
        tenant: "100:1,1000:60"
        customer: "10:1"
telemetry:
  logging:
    level: debug
    format: text
    redact_keys: false
  metrics:
    enabled: false
security:
  authentication:
    enabled: true
    keys:
      - key: gk-acme-web
        tenant_id: acme
        customer_id: web
      - key: gk-root
        authority: SYS_ADMIN
        enabled: false
`
	cfg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.Server.RequestTimeout)
	}
	if got := cfg.Server.CORS.AllowedOrigins; len(got) != 1 || got[0] != "https://app.example.com" {
		t.Errorf("AllowedOrigins = %v", got)
	}
	if len(cfg.Server.CORS.AllowedMethods) == 0 {
		t.Error("AllowedMethods should be defaulted when CORS is enabled")
	}
	if cfg.Limits.Enabled {
		t.Error("explicit limits.enabled=false was overwritten")
	}
	if !cfg.Limits.InvalidateOnProfileChange {
		t.Error("InvalidateOnProfileChange not set")
	}
	if cfg.Telemetry.Logging.RedactKeys || cfg.Telemetry.Metrics.Enabled {
		t.Error("explicit false booleans were overwritten")
	}
	if !cfg.Telemetry.Health.Enabled {
		t.Error("health should stay enabled by default")
	}

	p := cfg.Profiles.Inline[0]
	if p.TenantID != "acme" || p.RateLimits.Tenant != "100:1,1000:60" || p.RateLimits.Customer != "10:1" {
		t.Errorf("inline profile = %+v", p)
	}

	keys := cfg.Security.Authentication.Keys
	if keys[0].Authority != "CUSTOMER_USER" || !keys[0].Enabled {
		t.Errorf("key[0] = %+v, want enabled CUSTOMER_USER", keys[0])
	}
	if keys[1].Authority != "SYS_ADMIN" || keys[1].Enabled {
		t.Errorf("key[1] = %+v, want disabled SYS_ADMIN", keys[1])
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("server: [unclosed")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
