// Package config loads, defaults and validates the gatekeeper configuration.
//
// Configuration comes from a YAML file. LoadConfigWithEnvOverrides also reads
// environment variables named GATEKEEPER_SECTION_FIELD, for example:
//
//   - GATEKEEPER_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - GATEKEEPER_UPSTREAM_URL overrides upstream.url
//   - GATEKEEPER_PROFILES_SOURCE overrides profiles.source
//
// Values are applied in this order, later winning:
//
//  1. Defaults (defaults.go)
//  2. The YAML file
//  3. Environment overrides
//
// The result is validated before it is returned. Validation collects every
// problem instead of stopping at the first one:
//
//	configuration validation failed with 2 errors:
//	  - upstream.url: upstream URL is required
//	  - profiles.inline[0].rate_limits.tenant: invalid rule "10:": ...
//
// Rule strings in inline profiles are parsed with the same parser the limiter
// uses, so a configuration that validates cannot carry a malformed rule into
// an inline profile. File and SQLite profiles are checked when they are read.
//
// # Example
//
//	server:
//	  listen_address: "0.0.0.0:8080"
//	upstream:
//	  url: "http://localhost:9000"
//	profiles:
//	  source: memory
//	  inline:
//	    - tenant_id: acme
//	      rate_limits:
//	        tenant: "100:1,1000:60"
//	        customer: "10:1"
//	security:
//	  authentication:
//	    enabled: true
//	    keys:
//	      - key: gk-acme-web
//	        tenant_id: acme
//	        customer_id: web
package config
