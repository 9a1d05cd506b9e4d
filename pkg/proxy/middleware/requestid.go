package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"mercator-hq/gatekeeper/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds client-supplied IDs before they reach logs.
const maxRequestIDLength = 128

// RequestIDMiddleware generates a unique request ID for each request and adds it to
// the context and response headers. A client-supplied X-Request-ID is kept
// if it is not longer than 128 bytes.
//
// The ID is stored with logging.WithRequestID, so every log record written
// with the request context carries it. It is also forwarded upstream.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
			r.Header.Set(RequestIDHeader, requestID)
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
