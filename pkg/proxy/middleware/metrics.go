package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives per-request measurements. The telemetry
// metrics Collector implements it.
type RequestRecorder interface {
	RequestStarted()
	RequestFinished()
	RecordRequest(method string, status int, duration time.Duration)
}

// MetricsMiddleware records request count, latency and in-flight requests.
func MetricsMiddleware(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rec == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec.RequestStarted()
			defer rec.RequestFinished()

			rw := newResponseWriter(w)
			next.ServeHTTP(rw, r)

			rec.RecordRequest(r.Method, rw.statusCode, time.Since(start))
		})
	}
}
