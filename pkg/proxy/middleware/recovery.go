package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/gatekeeper/pkg/proxy/types"
)

// RecoveryMiddleware recovers from panics in HTTP handlers and returns a 500
// JSON error. The panic and stack trace are logged; clients see a generic
// message.
//
// http.ErrAbortHandler is re-raised so the server can abort the connection
// as it normally would.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			types.WriteError(w, types.NewServerError(
				"An internal error occurred. Please try again later.", "",
			))
		}()

		next.ServeHTTP(w, r)
	})
}
