// Package ratelimit implements multi-rule token bucket limiting for a
// single actor.
//
// # Rules
//
// A rule string is a comma-separated list of "capacity:windowSeconds"
// pairs. Each pair allows at most capacity requests per window with
// continuous refill:
//
//	rules, err := ratelimit.ParseRules("10:1,600:60")
//
// A capacity of zero is valid and rejects every request. An empty string
// returns ErrNoRules, which callers treat as "no limiting".
//
// # Limiter
//
// A Limiter holds one bucket per rule. A request is admitted only if every
// bucket has a token, and it then consumes one token from each:
//
//	limiter, err := ratelimit.New("10:1,600:60")
//	if err != nil {
//	    return err
//	}
//	if res := limiter.Acquire(); !res.Allowed {
//	    // Rate limit exceeded, retry after res.RetryAfter
//	}
//
// # Precision
//
// Tokens are stored as fixed-point integers scaled by the rule window in
// nanoseconds. Refill is exact, so long runs at a steady rate do not drift.
//
// # Thread Safety
//
// Limiter is safe for concurrent use. Each limiter has its own mutex;
// distinct limiters never contend.
package ratelimit
