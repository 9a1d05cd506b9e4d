package types

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error the gateway produces.
type ErrorResponse struct {
	// Error contains the error details.
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type categorizes the error.
	// Possible values: "authentication_error", "rate_limit_exceeded",
	// "server_error", "bad_gateway", "service_unavailable", "gateway_timeout".
	Type string `json:"type"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// Error type constants.
const (
	// ErrorTypeAuthentication indicates an authentication failure (401).
	ErrorTypeAuthentication = "authentication_error"

	// ErrorTypeRateLimitExceeded indicates too many requests (429).
	ErrorTypeRateLimitExceeded = "rate_limit_exceeded"

	// ErrorTypeServerError indicates an internal server error (500).
	ErrorTypeServerError = "server_error"

	// ErrorTypeBadGateway indicates an upstream error (502).
	ErrorTypeBadGateway = "bad_gateway"

	// ErrorTypeServiceUnavailable indicates temporary unavailability (503).
	ErrorTypeServiceUnavailable = "service_unavailable"

	// ErrorTypeGatewayTimeout indicates an upstream timeout (504).
	ErrorTypeGatewayTimeout = "gateway_timeout"
)

// Error code constants for common error scenarios.
const (
	// CodeMissingAPIKey indicates no API key was supplied.
	CodeMissingAPIKey = "missing_api_key"

	// CodeInvalidAPIKey indicates the API key is unknown or disabled.
	CodeInvalidAPIKey = "invalid_api_key"

	// CodeTenantRateLimit indicates the tenant's rate limit was exceeded.
	CodeTenantRateLimit = "tenant_rate_limit_exceeded"

	// CodeCustomerRateLimit indicates the customer's rate limit was exceeded.
	CodeCustomerRateLimit = "customer_rate_limit_exceeded"

	// CodeRateLimitConfigInvalid indicates a malformed rule string.
	CodeRateLimitConfigInvalid = "rate_limit_config_invalid"

	// CodeProfileUnavailable indicates the tenant profile could not be loaded.
	CodeProfileUnavailable = "profile_unavailable"

	// CodeUpstreamError indicates the protected service failed.
	CodeUpstreamError = "upstream_error"

	// CodeUpstreamTimeout indicates the protected service timed out.
	CodeUpstreamTimeout = "upstream_timeout"

	// CodeInternalError indicates an internal server error.
	CodeInternalError = "internal_error"
)

// NewErrorResponse creates a new error response with the given details.
func NewErrorResponse(message, errorType, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Code:    code,
		},
	}
}

// NewAuthenticationError creates an error response for authentication failures (401).
func NewAuthenticationError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeAuthentication, code)
}

// NewRateLimitError creates an error response for rejected requests (429).
func NewRateLimitError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeRateLimitExceeded, code)
}

// NewServerError creates an error response for internal server errors (500).
func NewServerError(message, code string) *ErrorResponse {
	if code == "" {
		code = CodeInternalError
	}
	return NewErrorResponse(message, ErrorTypeServerError, code)
}

// NewBadGatewayError creates an error response for upstream errors (502).
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, CodeUpstreamError)
}

// NewServiceUnavailableError creates an error response for temporary unavailability (503).
func NewServiceUnavailableError(message, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServiceUnavailable, code)
}

// NewGatewayTimeoutError creates an error response for upstream timeouts (504).
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, CodeUpstreamTimeout)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes resp as JSON with the status code of its type.
// Headers set on w before the call (such as Retry-After) are kept.
func WriteError(w http.ResponseWriter, resp *ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Error.HTTPStatusCode())
	// Encoding errors are ignored; the status is already written.
	_ = json.NewEncoder(w).Encode(resp)
}
