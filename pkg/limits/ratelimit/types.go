package ratelimit

import "time"

// Clock supplies the current time to a Limiter. The default clock uses
// time.Now, whose monotonic reading makes elapsed-time arithmetic immune
// to wall-clock adjustments.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns f().
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default Clock backed by time.Now.
var SystemClock Clock = systemClock{}

// CheckResult contains the outcome of an acquisition attempt.
// This is returned by Limiter.Acquire to indicate if a request is allowed.
type CheckResult struct {
	// Allowed indicates if a permit was consumed.
	Allowed bool

	// Rule is the most constraining rule: on rejection the failing rule
	// with the longest wait, otherwise the rule with the fewest remaining
	// tokens.
	Rule Rule

	// Limit is the capacity of Rule.
	Limit int64

	// Remaining is the number of whole tokens left in Rule.
	Remaining int64

	// RetryAfter is how long until every failing rule has a token again.
	// Zero when allowed, and zero for capacity-0 rules which never refill.
	RetryAfter time.Duration
}

// RuleStatus is a point-in-time view of one rule's bucket.
type RuleStatus struct {
	// Rule is the configured rule.
	Rule Rule

	// Available is the fractional number of tokens in the bucket.
	Available float64

	// Remaining is the number of whole tokens in the bucket.
	Remaining int64
}
