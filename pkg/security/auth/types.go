package auth

import (
	"errors"
	"time"

	"mercator-hq/gatekeeper/pkg/limits"
)

// Authority is the role granted to an API key.
type Authority string

const (
	// AuthoritySysAdmin keys operate the platform and bypass admission control.
	AuthoritySysAdmin Authority = "SYS_ADMIN"

	// AuthorityTenantAdmin keys act for a whole tenant.
	AuthorityTenantAdmin Authority = "TENANT_ADMIN"

	// AuthorityCustomerUser keys act for one customer of a tenant.
	AuthorityCustomerUser Authority = "CUSTOMER_USER"
)

// Valid reports whether a is a known authority.
func (a Authority) Valid() bool {
	switch a {
	case AuthoritySysAdmin, AuthorityTenantAdmin, AuthorityCustomerUser:
		return true
	}
	return false
}

var (
	// ErrInvalidAPIKey is returned for unknown keys.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrAPIKeyDisabled is returned for keys that exist but are disabled.
	ErrAPIKeyDisabled = errors.New("API key disabled")

	// ErrAPIKeyNotFound is returned by Update for keys that don't exist.
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrMissingAPIKey is returned when a request carries no key.
	ErrMissingAPIKey = errors.New("no API key found")
)

// APIKeyInfo contains information about an API key. It is the caller
// identity handed to admission control.
type APIKeyInfo struct {
	Key        string            `yaml:"key"`
	UserID     string            `yaml:"user_id"`
	TenantID   limits.TenantID   `yaml:"tenant_id"`
	CustomerID limits.CustomerID `yaml:"customer_id"`
	Authority  Authority         `yaml:"authority"`
	Enabled    bool              `yaml:"enabled"`
	CreatedAt  time.Time         `yaml:"created_at"`
}

var _ limits.Caller = (*APIKeyInfo)(nil)

// IsPrivileged reports whether the key holds system administrator authority.
func (k *APIKeyInfo) IsPrivileged() bool {
	return k != nil && k.Authority == AuthoritySysAdmin
}

// Tenant returns the key's tenant.
func (k *APIKeyInfo) Tenant() limits.TenantID {
	if k == nil {
		return ""
	}
	return k.TenantID
}

// Customer returns the key's customer. Tenant administrators act for the
// tenant itself and have no customer.
func (k *APIKeyInfo) Customer() limits.CustomerID {
	if k == nil || k.Authority == AuthorityTenantAdmin {
		return ""
	}
	return k.CustomerID
}
