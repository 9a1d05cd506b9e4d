// Package health provides liveness, readiness and version endpoints.
//
// Liveness always succeeds while the process serves requests. Readiness runs
// every registered check concurrently, each bounded by the checker's
// timeout, and answers 503 if any fails:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	if p, ok := store.(health.Pinger); ok {
//	    checker.RegisterCheck("profiles", health.PingCheck(p))
//	}
//	health.Register(mux, checker, "/health", "/ready", health.NewVersionInfo(version, commit, date))
//
// Admission itself has no readiness dependency: a request whose profile
// cannot be loaded fails with 503 on its own.
package health
