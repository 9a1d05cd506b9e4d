// Package proxy forwards admitted requests to the protected upstream
// service.
//
// Upstream is an httputil.ReverseProxy configured from config.UpstreamConfig.
// It sets X-Forwarded-* headers and replaces X-Tenant-ID and X-Customer-ID
// with the authenticated caller so the upstream can trust them.
//
// Round-trip failures become JSON errors:
//
//   - timeout (response headers not received within upstream.timeout, or
//     the request deadline expired): 504 upstream_timeout
//   - any other transport failure: 502 upstream_error
//   - client disconnected: nothing is written
//
// The middleware chain that runs before the upstream lives in
// proxy/middleware. Error bodies are defined in proxy/types.
package proxy
