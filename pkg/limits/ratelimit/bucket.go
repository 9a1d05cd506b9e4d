package ratelimit

import (
	"time"
)

// bucket is a continuous-refill token bucket for a single Rule.
//
// Tokens are held in fixed point: one token equals unit (the rule window
// in nanoseconds), so a full bucket holds capacity*unit. Every elapsed
// nanosecond adds exactly capacity units, which makes refill exact and
// free of cumulative rounding drift.
//
// A bucket has no lock of its own. The owning Limiter serialises access.
type bucket struct {
	rule   Rule
	unit   int64     // fixed-point units per token (window nanoseconds)
	max    int64     // capacity * unit
	scaled int64     // available tokens * unit
	last   time.Time // last refill instant; never moves backwards
}

// newBucket returns a full bucket for rule, anchored at now.
func newBucket(rule Rule, now time.Time) *bucket {
	unit := int64(rule.Window)
	max := rule.Capacity * unit
	return &bucket{
		rule:   rule,
		unit:   unit,
		max:    max,
		scaled: max,
		last:   now,
	}
}

// refill adds the tokens accrued since the last refill, capped at capacity.
// A clock that has not advanced (or went backwards) grants nothing.
func (b *bucket) refill(now time.Time) {
	if !now.After(b.last) {
		// last stays put when the clock steps back, so returning to the
		// old reading does not re-grant the interval already refilled.
		return
	}
	elapsed := int64(now.Sub(b.last))
	b.last = now

	if b.scaled >= b.max {
		return
	}
	if elapsed >= b.unit {
		b.scaled = b.max
		return
	}

	// elapsed < unit, so elapsed*capacity < max and the sum cannot overflow.
	b.scaled += elapsed * b.rule.Capacity
	if b.scaled > b.max {
		b.scaled = b.max
	}
}

// hasToken reports whether at least one whole token is available.
func (b *bucket) hasToken() bool {
	return b.scaled >= b.unit
}

// take consumes one token. Caller must check hasToken first.
func (b *bucket) take() {
	b.scaled -= b.unit
}

// remaining returns the number of whole tokens available.
func (b *bucket) remaining() int64 {
	return b.scaled / b.unit
}

// available returns the fractional token count.
func (b *bucket) available() float64 {
	return float64(b.scaled) / float64(b.unit)
}

// untilToken returns how long until one whole token is available.
// It returns 0 when a token is available now, and also for capacity-0
// rules, which never refill.
func (b *bucket) untilToken() time.Duration {
	if b.hasToken() || b.rule.Capacity == 0 {
		return 0
	}
	return ceilDiv(b.unit-b.scaled, b.rule.Capacity)
}

// reset refills the bucket to capacity.
func (b *bucket) reset(now time.Time) {
	b.scaled = b.max
	b.last = now
}
