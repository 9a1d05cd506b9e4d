package limits

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TenantID identifies a tenant.
type TenantID string

// CustomerID identifies a customer within a tenant.
type CustomerID string

// CustomerKey identifies one customer of one tenant. Customer IDs are
// only unique within their tenant, so customer limiters are keyed by both.
type CustomerKey string

// customerKeySep is NUL, which HTTP header values cannot carry.
const customerKeySep = "\x00"

// NewCustomerKey returns the key of customer within tenant.
func NewCustomerKey(tenant TenantID, customer CustomerID) CustomerKey {
	return CustomerKey(string(tenant) + customerKeySep + string(customer))
}

// Scope names the actor level a limit applies to.
type Scope string

const (
	// ScopeTenant limits all traffic of a tenant.
	ScopeTenant Scope = "tenant"

	// ScopeCustomer limits the traffic of one customer.
	ScopeCustomer Scope = "customer"
)

// Stage tracks how far a request got through admission.
//
// A request moves unchecked -> tenant-checked -> customer-checked ->
// admitted, and may end in rejected after either check.
type Stage string

const (
	StageUnchecked       Stage = "unchecked"
	StageTenantChecked   Stage = "tenant-checked"
	StageCustomerChecked Stage = "customer-checked"
	StageAdmitted        Stage = "admitted"
	StageRejected        Stage = "rejected"
)

// Caller is the authenticated identity of a request.
type Caller interface {
	// IsPrivileged reports whether the caller bypasses admission control.
	IsPrivileged() bool

	// Tenant returns the caller's tenant.
	Tenant() TenantID

	// Customer returns the caller's customer, or "" if the caller acts
	// for the tenant itself.
	Customer() CustomerID
}

// RuleSet carries the rule strings configured for a tenant. Either field
// may be empty, meaning that scope is not limited.
type RuleSet struct {
	// Tenant is applied to every request of the tenant.
	Tenant string `yaml:"tenant" json:"tenant"`

	// Customer is applied separately to each customer of the tenant.
	Customer string `yaml:"customer" json:"customer"`
}

// ProfileSource resolves a tenant's rule strings.
type ProfileSource interface {
	// RateLimits returns the tenant's rules, or nil if the tenant has no
	// profile.
	RateLimits(ctx context.Context, tenant TenantID) (*RuleSet, error)
}

// ProfileSourceFunc adapts a function to ProfileSource.
type ProfileSourceFunc func(ctx context.Context, tenant TenantID) (*RuleSet, error)

// RateLimits returns f(ctx, tenant).
func (f ProfileSourceFunc) RateLimits(ctx context.Context, tenant TenantID) (*RuleSet, error) {
	return f(ctx, tenant)
}

// LimitCheckResult contains the decision from Manager.CheckLimits.
type LimitCheckResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Stage is the terminal stage: StageAdmitted or StageRejected.
	Stage Stage

	// Checked is the last check the request passed through.
	Checked Stage

	// Bypassed is true when no lookup happened (unauthenticated or
	// privileged caller, or no profile).
	Bypassed bool

	// Rejection describes the failed check (if Allowed=false).
	Rejection *RejectionError

	// RateLimit describes the most constraining limit that was checked.
	// Nil if no limiter was consulted.
	RateLimit *RateLimitInfo
}

// RateLimitInfo contains current rate limit status for one scope.
// This is used to populate HTTP response headers (X-RateLimit-*).
type RateLimitInfo struct {
	// Scope is the limiting scope (tenant, customer).
	Scope Scope

	// Identifier is the actor within the scope.
	Identifier string

	// Rule is the most constraining rule, e.g. "10:1".
	Rule string

	// Limit is the capacity of Rule.
	Limit int64

	// Remaining is the number of whole tokens left in Rule.
	Remaining int64

	// RetryAfter is how long until a rejected request could succeed.
	RetryAfter time.Duration
}

// Error types for limit violations and system errors.
var (
	// ErrRateLimitExceeded is returned when a rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrProfileLookup is returned when a tenant's rules cannot be loaded.
	ErrProfileLookup = errors.New("tenant profile lookup failed")
)

// RejectionError reports which scope rejected a request.
type RejectionError struct {
	// Scope is the scope whose limit was exceeded.
	Scope Scope

	// Identifier is the tenant or customer ID.
	Identifier string

	// RetryAfter is the time until the limit admits a request again.
	// Zero if unknown or never.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded for %s", e.Scope, e.Identifier)
}

// Unwrap returns ErrRateLimitExceeded.
func (e *RejectionError) Unwrap() error {
	return ErrRateLimitExceeded
}

// ScopeError wraps a configuration fault found while checking a scope.
type ScopeError struct {
	Scope      Scope
	Identifier string
	Err        error
}

// Error implements the error interface.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Scope, e.Identifier, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScopeError) Unwrap() error {
	return e.Err
}
