package ratelimit

import (
	"sync"
	"time"
)

// Limiter enforces one or more Rules for a single actor.
//
// Every rule has its own token bucket and all buckets share one mutex, so
// an acquisition is all-or-nothing: a permit is consumed from every bucket
// or from none. The critical section is integer arithmetic only.
//
// A Limiter's rules are fixed at construction.
type Limiter struct {
	mu      sync.Mutex
	rules   []Rule
	buckets []*bucket
	clock   Clock
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock sets the clock used for refill. Defaults to SystemClock.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		if c != nil {
			l.clock = c
		}
	}
}

// New parses spec and creates a Limiter for it.
//
// Example:
//
//	limiter, err := ratelimit.New("10:1,600:60")
//	if err != nil {
//	    return err
//	}
//	if !limiter.TryAcquire() {
//	    // Rate limit exceeded
//	}
func New(spec string, opts ...Option) (*Limiter, error) {
	rules, err := ParseRules(spec)
	if err != nil {
		return nil, err
	}
	return NewFromRules(rules, opts...)
}

// NewFromRules creates a Limiter for already parsed rules. Every bucket
// starts full.
func NewFromRules(rules []Rule, opts ...Option) (*Limiter, error) {
	if len(rules) == 0 {
		return nil, ErrNoRules
	}
	spec := FormatRules(rules)
	for _, r := range rules {
		if r.Capacity < 0 {
			return nil, &ConfigurationError{Spec: spec, Entry: r.String(), Reason: "capacity must not be negative"}
		}
		if r.Window <= 0 {
			return nil, &ConfigurationError{Spec: spec, Entry: r.String(), Reason: "window must be positive"}
		}
		if r.Capacity > 0 && r.Capacity > maxScaled/int64(r.Window) {
			return nil, &ConfigurationError{Spec: spec, Entry: r.String(), Reason: "capacity and window are too large"}
		}
	}

	l := &Limiter{
		rules: append([]Rule(nil), rules...),
		clock: SystemClock,
	}
	for _, opt := range opts {
		opt(l)
	}

	now := l.clock.Now()
	l.buckets = make([]*bucket, len(l.rules))
	for i, r := range l.rules {
		l.buckets[i] = newBucket(r, now)
	}
	return l, nil
}

// TryAcquire consumes one permit if every rule has a token available.
// Otherwise it consumes nothing and returns false.
func (l *Limiter) TryAcquire() bool {
	return l.Acquire().Allowed
}

// Acquire behaves like TryAcquire and also reports the most constraining
// rule, which callers use for rate limit response headers.
func (l *Limiter) Acquire() CheckResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	allowed := true
	for _, b := range l.buckets {
		b.refill(now)
		if !b.hasToken() {
			allowed = false
		}
	}

	if !allowed {
		return l.rejectedLocked()
	}

	var tightest *bucket
	for _, b := range l.buckets {
		b.take()
		if tightest == nil || b.remaining() < tightest.remaining() {
			tightest = b
		}
	}
	return CheckResult{
		Allowed:   true,
		Rule:      tightest.rule,
		Limit:     tightest.rule.Capacity,
		Remaining: tightest.remaining(),
	}
}

// rejectedLocked picks the failing rule with the longest wait.
func (l *Limiter) rejectedLocked() CheckResult {
	var (
		worst *bucket
		wait  time.Duration
	)
	for _, b := range l.buckets {
		if b.hasToken() {
			continue
		}
		d := b.untilToken()
		if worst == nil || d > wait {
			worst, wait = b, d
		}
	}
	return CheckResult{
		Allowed:    false,
		Rule:       worst.rule,
		Limit:      worst.rule.Capacity,
		Remaining:  0,
		RetryAfter: wait,
	}
}

// Status returns the current state of every bucket without consuming or
// recording a refill.
func (l *Limiter) Status() []RuleStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	out := make([]RuleStatus, len(l.buckets))
	for i, b := range l.buckets {
		view := *b
		view.refill(now)
		out[i] = RuleStatus{
			Rule:      view.rule,
			Available: view.available(),
			Remaining: view.remaining(),
		}
	}
	return out
}

// Rules returns a copy of the limiter's rules in configuration order.
func (l *Limiter) Rules() []Rule {
	return append([]Rule(nil), l.rules...)
}

// String returns the canonical rule string, e.g. "10:1,600:60".
func (l *Limiter) String() string {
	return FormatRules(l.rules)
}

// Reset refills every bucket to capacity.
// This is primarily useful for testing.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	for _, b := range l.buckets {
		b.reset(now)
	}
}
