package limits

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
	"mercator-hq/gatekeeper/pkg/limits/registry"
)

// Manager performs admission control for tenants and their customers.
//
// Each request is checked against the tenant's limiter first and, if that
// admits it, against the customer's limiter. Limiters are created lazily
// from the tenant profile current at first use and are cached until
// explicitly invalidated.
//
// # Example
//
//	manager := limits.NewManager(limits.Config{
//	    Profiles: profileCache,
//	    Metrics:  limits.NewMetrics("gatekeeper", registry),
//	})
//
//	result, err := manager.CheckLimits(ctx, caller)
//	if err != nil {
//	    // Profile lookup failed or rules are malformed
//	}
//	if !result.Allowed {
//	    // Reject with 429
//	}
type Manager struct {
	profiles  ProfileSource
	tenants   *registry.Registry[TenantID]
	customers *registry.Registry[CustomerKey]

	// owners maps each cached customer limiter to its tenant.
	owners sync.Map // CustomerKey -> TenantID

	metrics *Metrics
	logger  *slog.Logger

	// faultLog throttles configuration fault logging. A broken profile is
	// hit on every request of the tenant.
	faultLog rate.Sometimes
}

// Config contains configuration for the limits manager.
type Config struct {
	// Profiles resolves tenant rule strings. A nil source admits everything.
	Profiles ProfileSource

	// Metrics records admission metrics. Optional.
	Metrics *Metrics

	// Logger for configuration faults. Defaults to slog.Default().
	Logger *slog.Logger

	// Clock drives limiter refill. Defaults to ratelimit.SystemClock.
	Clock ratelimit.Clock

	// FaultLogInterval is the minimum time between configuration fault
	// log lines. Defaults to one minute.
	FaultLogInterval time.Duration
}

// Stats reports the number of cached limiters per scope.
type Stats struct {
	Tenants   int `json:"tenants"`
	Customers int `json:"customers"`
}

// NewManager creates a new limits manager with the given configuration.
func NewManager(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := config.Clock
	if clock == nil {
		clock = ratelimit.SystemClock
	}
	interval := config.FaultLogInterval
	if interval <= 0 {
		interval = time.Minute
	}

	m := &Manager{
		profiles: config.Profiles,
		metrics:  config.Metrics,
		logger:   logger.With("component", "limits.manager"),
		faultLog: rate.Sometimes{First: 1, Interval: interval},
	}
	m.tenants = registry.New(
		registry.WithClock[TenantID](clock),
		registry.WithOnCreate(func(TenantID, *ratelimit.Limiter) {
			m.metrics.RecordLimiterCreated(ScopeTenant)
			m.metrics.UpdateActiveLimiters(ScopeTenant, m.tenants.Len())
		}),
	)
	m.customers = registry.New(
		registry.WithClock[CustomerKey](clock),
		registry.WithOnCreate(func(CustomerKey, *ratelimit.Limiter) {
			m.metrics.RecordLimiterCreated(ScopeCustomer)
			m.metrics.UpdateActiveLimiters(ScopeCustomer, m.customers.Len())
		}),
	)
	return m
}

// CheckLimits decides whether caller's request is admitted.
//
// Unauthenticated (nil) and privileged callers are admitted without a
// profile lookup, as are tenants without a profile. A tenant rejection
// stops evaluation. The customer check runs only when the profile has a
// customer rule and the caller acts for a customer. A tenant permit
// consumed before a customer rejection is not returned.
//
// The returned error is non-nil only for faults: it wraps ErrProfileLookup
// when the profile cannot be loaded, or is a *ScopeError wrapping
// ratelimit.ErrInvalidRule when a rule string is malformed. Rejections are
// reported through the result, not the error.
func (m *Manager) CheckLimits(ctx context.Context, caller Caller) (*LimitCheckResult, error) {
	start := time.Now()
	defer func() {
		m.metrics.RecordCheckDuration(time.Since(start))
	}()

	if caller == nil || caller.IsPrivileged() || m.profiles == nil {
		return bypassed(), nil
	}

	tenant := caller.Tenant()
	rules, err := m.profiles.RateLimits(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrProfileLookup, tenant, err)
	}
	if rules == nil {
		return bypassed(), nil
	}

	result := &LimitCheckResult{
		Allowed: true,
		Stage:   StageUnchecked,
		Checked: StageUnchecked,
	}

	if spec := strings.TrimSpace(rules.Tenant); spec != "" {
		res, err := acquire(m.tenants, tenant, func() string { return spec })
		if err != nil {
			return nil, m.configFault(ScopeTenant, string(tenant), spec, err)
		}
		result.Checked = StageTenantChecked
		if res != nil {
			m.metrics.RecordCheck(ScopeTenant, res.Allowed)
			result.RateLimit = newRateLimitInfo(ScopeTenant, string(tenant), res)
			if !res.Allowed {
				return reject(result), nil
			}
		}
	}

	customer := caller.Customer()
	if spec := strings.TrimSpace(rules.Customer); spec != "" && customer != "" {
		key := NewCustomerKey(tenant, customer)
		res, err := acquire(m.customers, key, func() string {
			m.owners.Store(key, tenant)
			return spec
		})
		if err != nil {
			return nil, m.configFault(ScopeCustomer, string(customer), spec, err)
		}
		result.Checked = StageCustomerChecked
		if res != nil {
			m.metrics.RecordCheck(ScopeCustomer, res.Allowed)
			info := newRateLimitInfo(ScopeCustomer, string(customer), res)
			if !res.Allowed || result.RateLimit == nil || info.Remaining < result.RateLimit.Remaining {
				result.RateLimit = info
			}
			if !res.Allowed {
				return reject(result), nil
			}
		}
	}

	result.Stage = StageAdmitted
	return result, nil
}

// InvalidateTenant drops the cached limiter of tenant and of each of its
// customers, so the next request rebuilds them from current rules. It
// returns the number of limiters removed.
func (m *Manager) InvalidateTenant(tenant TenantID) int {
	removed := 0
	if m.tenants.Invalidate(tenant) {
		removed++
	}
	m.owners.Range(func(k, v any) bool {
		if v.(TenantID) == tenant {
			if m.invalidateCustomerKey(k.(CustomerKey)) {
				removed++
			}
		}
		return true
	})
	m.metrics.UpdateActiveLimiters(ScopeTenant, m.tenants.Len())
	if removed > 0 {
		m.logger.Info("invalidated rate limiters", "tenant_id", tenant, "count", removed)
	}
	return removed
}

// InvalidateCustomer drops the cached limiter of customer within tenant.
func (m *Manager) InvalidateCustomer(tenant TenantID, customer CustomerID) bool {
	return m.invalidateCustomerKey(NewCustomerKey(tenant, customer))
}

func (m *Manager) invalidateCustomerKey(key CustomerKey) bool {
	m.owners.Delete(key)
	ok := m.customers.Invalidate(key)
	m.metrics.UpdateActiveLimiters(ScopeCustomer, m.customers.Len())
	return ok
}

// TenantLimiter returns the cached limiter of tenant, if any.
func (m *Manager) TenantLimiter(tenant TenantID) (*ratelimit.Limiter, bool) {
	return m.tenants.Get(tenant)
}

// CustomerLimiter returns the cached limiter of customer within tenant, if any.
func (m *Manager) CustomerLimiter(tenant TenantID, customer CustomerID) (*ratelimit.Limiter, bool) {
	return m.customers.Get(NewCustomerKey(tenant, customer))
}

// Stats returns the number of cached limiters.
func (m *Manager) Stats() Stats {
	return Stats{
		Tenants:   m.tenants.Len(),
		Customers: m.customers.Len(),
	}
}

func (m *Manager) configFault(scope Scope, id, spec string, err error) error {
	m.metrics.RecordConfigError(scope)
	m.faultLog.Do(func() {
		m.logger.Error("invalid rate limit rules",
			"scope", scope,
			"identifier", id,
			"rules", spec,
			"error", err,
		)
	})
	return &ScopeError{Scope: scope, Identifier: id, Err: err}
}

// acquire fetches or builds the limiter for key and takes a permit. It
// returns nil when the rules disable limiting.
func acquire[K ~string](reg *registry.Registry[K], key K, rules func() string) (*ratelimit.CheckResult, error) {
	l, err := reg.GetOrCreate(key, rules)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, nil
	}
	res := l.Acquire()
	return &res, nil
}

func newRateLimitInfo(scope Scope, id string, res *ratelimit.CheckResult) *RateLimitInfo {
	return &RateLimitInfo{
		Scope:      scope,
		Identifier: id,
		Rule:       res.Rule.String(),
		Limit:      res.Limit,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}
}

func bypassed() *LimitCheckResult {
	return &LimitCheckResult{
		Allowed:  true,
		Stage:    StageAdmitted,
		Checked:  StageUnchecked,
		Bypassed: true,
	}
}

func reject(result *LimitCheckResult) *LimitCheckResult {
	info := result.RateLimit
	result.Allowed = false
	result.Stage = StageRejected
	result.Rejection = &RejectionError{
		Scope:      info.Scope,
		Identifier: info.Identifier,
		RetryAfter: info.RetryAfter,
	}
	return result
}
