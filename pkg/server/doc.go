// Package server assembles the gatekeeper HTTP server.
//
// New builds every collaborator from a *config.Config: the profile store
// and its TTL cache, the limits manager, API key authentication, metrics,
// tracing, health checks and the upstream reverse proxy. The middleware
// chain, outermost first:
//
//	Recovery -> RequestID -> Logging -> Metrics -> mux
//	    /health, /ready, /version, /metrics
//	    /  -> CORS -> Timeout -> trace context -> APIKey -> Admission -> Upstream
//
// Start blocks until its context is cancelled, then shuts down gracefully.
//
//	srv, err := server.New(cfg, server.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx)
package server
