package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mercator-hq/gatekeeper/pkg/limits"
	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
)

// ErrNotFound is returned when no profile exists for a tenant.
var ErrNotFound = errors.New("profile not found")

// Profile is a tenant's admission configuration.
type Profile struct {
	// TenantID is the tenant this profile applies to.
	TenantID limits.TenantID `yaml:"tenant_id" json:"tenant_id"`

	// Name is a human-readable label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// RateLimits holds the tenant and customer rule strings.
	RateLimits limits.RuleSet `yaml:"rate_limits" json:"rate_limits"`

	// UpdatedAt is set by stores that track modification time.
	UpdatedAt time.Time `yaml:"-" json:"updated_at,omitempty"`
}

// Validate checks the tenant ID and that both rule strings parse.
// Empty rule strings are valid and disable the scope.
func (p *Profile) Validate() error {
	if strings.TrimSpace(string(p.TenantID)) == "" {
		return fmt.Errorf("tenant_id cannot be empty")
	}
	if err := validateRules(p.RateLimits.Tenant); err != nil {
		return fmt.Errorf("tenant %s: rate_limits.tenant: %w", p.TenantID, err)
	}
	if err := validateRules(p.RateLimits.Customer); err != nil {
		return fmt.Errorf("tenant %s: rate_limits.customer: %w", p.TenantID, err)
	}
	return nil
}

func validateRules(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	_, err := ratelimit.ParseRules(spec)
	return err
}

func (p *Profile) clone() *Profile {
	c := *p
	return &c
}

// Store provides read access to tenant profiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the profile of tenant, or ErrNotFound.
	Get(ctx context.Context, tenant limits.TenantID) (*Profile, error)

	// List returns all profiles ordered by tenant ID.
	List(ctx context.Context) ([]*Profile, error)
}

// Writer is implemented by stores that accept updates.
type Writer interface {
	// Put creates or replaces a profile.
	Put(ctx context.Context, p *Profile) error

	// Delete removes a profile. Deleting a missing profile is not an error.
	Delete(ctx context.Context, tenant limits.TenantID) error
}

// Notifier is implemented by stores that report profile changes.
type Notifier interface {
	// OnChange registers fn to be called with the tenant of every
	// created, updated or deleted profile.
	OnChange(fn func(limits.TenantID))
}

// Watcher is implemented by shared stores that can report changes made by
// other writers. Watch blocks until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Pinger is implemented by stores with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// listeners is an append-only set of change callbacks.
type listeners struct {
	mu  sync.RWMutex
	fns []func(limits.TenantID)
}

func (l *listeners) OnChange(fn func(limits.TenantID)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *listeners) notify(tenant limits.TenantID) {
	l.mu.RLock()
	fns := l.fns
	l.mu.RUnlock()
	for _, fn := range fns {
		fn(tenant)
	}
}
