/*
Package security holds the caller-facing protections of gatekeeper.

  - auth: API key validation and the middleware that resolves a key to a
    tenant and optional customer identity
  - tls: HTTPS termination with hot certificate reload and optional client
    certificate verification

Both are configured in YAML:

	server:
	  tls:
	    enabled: true
	    cert_file: /etc/gatekeeper/tls/server.crt
	    key_file: /etc/gatekeeper/tls/server.key
	    watch: true
	security:
	  authentication:
	    enabled: true
	    keys:
	      - key: gk-acme-0001
	        tenant_id: acme
*/
package security
