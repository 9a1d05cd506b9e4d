// Package middleware provides the HTTP middleware chain in front of the
// protected upstream.
//
// The server assembles the chain outermost first:
//
//	RecoveryMiddleware
//	  RequestIDMiddleware
//	    LoggingMiddleware
//	      MetricsMiddleware
//	        CORSMiddleware
//	          TimeoutMiddleware
//	            auth.APIKeyMiddleware
//	              AdmissionMiddleware
//	                upstream
//
// CORS preflights are answered before authentication, so they are never
// counted against a tenant. AdmissionMiddleware records the caller's tenant
// and customer in the logging context; LoggingMiddleware picks them up for
// the completion line.
//
// Error responses use the JSON body from the proxy/types package.
package middleware
