// Package types defines the JSON error envelope returned by the gateway.
//
// Every response the gateway produces on its own (authentication failures,
// rejected requests, configuration faults, upstream failures) uses the same
// body so clients can branch on the machine-readable code:
//
//	{
//	  "error": {
//	    "message": "rate limit exceeded for tenant acme",
//	    "type": "rate_limit_exceeded",
//	    "code": "tenant_rate_limit_exceeded"
//	  }
//	}
//
// The HTTP status follows from the error type; see ErrorDetail.HTTPStatusCode.
package types
