package server

import (
	"net/http"

	"mercator-hq/gatekeeper/pkg/proxy/middleware"
	"mercator-hq/gatekeeper/pkg/security/auth"
	"mercator-hq/gatekeeper/pkg/telemetry/health"
	"mercator-hq/gatekeeper/pkg/telemetry/tracing"
)

// routes mounts the probe and scrape endpoints and sends everything else
// through admission to the upstream.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if hc := s.cfg.Telemetry.Health; hc.Enabled {
		health.Register(mux, s.checker, hc.LivenessPath, hc.ReadinessPath, s.version)
	}
	if s.collector.Enabled() {
		mux.Handle(s.cfg.Telemetry.Metrics.Path, s.collector.Handler())
	}
	mux.Handle("/", s.protected())

	var handler http.Handler = mux
	handler = middleware.MetricsMiddleware(s.collector)(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}

// protected is the chain in front of the upstream, innermost first.
func (s *Server) protected() http.Handler {
	var handler http.Handler = s.upstream

	if s.cfg.Limits.Enabled {
		handler = middleware.AdmissionMiddleware(s.manager, middleware.AdmissionOptions{
			Tracer: s.tracer.Tracer(),
			Logger: s.logger,
		})(handler)
	}

	if s.validator != nil {
		authn := s.cfg.Security.Authentication
		handler = auth.NewAPIKeyMiddleware(s.validator, auth.MiddlewareOptions{
			Sources:  apiKeySources(authn.Sources),
			Optional: authn.Optional,
			Logger:   s.logger,
		}).Handle(handler)
	}

	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.TimeoutMiddleware(s.cfg.Server.RequestTimeout)(handler)
	handler = middleware.CORSMiddleware(&s.cfg.Server.CORS)(handler)
	return handler
}
