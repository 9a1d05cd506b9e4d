// Package limits provides per-tenant and per-customer admission control.
//
// # Overview
//
// Every authenticated request belongs to a tenant and optionally to a
// customer of that tenant. A tenant profile carries two rule strings, one
// applied to the tenant as a whole and one applied to each customer
// separately. Customer IDs are scoped to their tenant, so two tenants'
// customers with the same ID get separate limiters. The Manager checks the tenant limit and then the customer
// limit; the first to reject ends the check.
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - ratelimit: multi-rule token bucket limiter and rule parsing
//   - registry: lazily built, cached limiter per actor
//
// # Usage
//
//	manager := limits.NewManager(limits.Config{Profiles: cache})
//
//	result, err := manager.CheckLimits(ctx, caller)
//	switch {
//	case errors.Is(err, limits.ErrProfileLookup):
//	    // 503
//	case errors.Is(err, ratelimit.ErrInvalidRule):
//	    // 500
//	case !result.Allowed:
//	    // 429, see result.Rejection
//	}
//
// # Stale rules
//
// Limiters keep the rules they were built with. A profile change takes
// effect for an actor only after InvalidateTenant or InvalidateCustomer.
//
// # Thread Safety
//
// All operations are safe for concurrent use. Distinct actors never
// contend on a lock.
package limits
