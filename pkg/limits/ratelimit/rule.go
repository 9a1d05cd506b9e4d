package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Errors returned by rule parsing.
var (
	// ErrNoRules is returned when a rule string is empty. An empty string
	// means "no limiting" and callers are expected to skip limiter
	// construction entirely.
	ErrNoRules = errors.New("no rate limit rules configured")

	// ErrInvalidRule is the base error for malformed rule strings.
	// Use errors.Is(err, ErrInvalidRule) to detect configuration faults.
	ErrInvalidRule = errors.New("invalid rate limit rule")
)

// maxScaled bounds capacity*window (in nanoseconds) so that a bucket's
// fixed-point refill arithmetic can never overflow int64.
const maxScaled = math.MaxInt64 / 2

// Rule is a single rate ceiling: at most Capacity permits within any
// Window under continuous refill.
type Rule struct {
	// Capacity is the bucket size. Zero is a valid rule that rejects
	// every request.
	Capacity int64

	// Window is the duration over which Capacity tokens refill.
	Window time.Duration
}

// String renders the rule in its configuration form, e.g. "10:1".
func (r Rule) String() string {
	return fmt.Sprintf("%d:%d", r.Capacity, int64(r.Window/time.Second))
}

// RefillInterval returns how long the rule takes to refill a single token.
// It returns 0 for a capacity-0 rule, which never refills.
func (r Rule) RefillInterval() time.Duration {
	if r.Capacity <= 0 {
		return 0
	}
	return ceilDiv(int64(r.Window), r.Capacity)
}

// ConfigurationError describes a malformed rule string. It unwraps to
// ErrInvalidRule.
type ConfigurationError struct {
	// Spec is the full rule string that failed to parse.
	Spec string

	// Entry is the comma-separated entry that was rejected (if any).
	Entry string

	// Reason explains what is wrong with the entry.
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("invalid rate limit rules %q: %s", e.Spec, e.Reason)
	}
	return fmt.Sprintf("invalid rate limit rules %q: entry %q: %s", e.Spec, e.Entry, e.Reason)
}

// Unwrap returns ErrInvalidRule.
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidRule
}

// ParseRules parses a comma-separated list of "capacity:windowSeconds"
// pairs such as "10:1,600:60".
//
// The returned slice preserves input order. Duplicate windows are kept and
// enforced independently. An empty string returns ErrNoRules; any malformed
// entry returns a *ConfigurationError.
func ParseRules(spec string) ([]Rule, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, ErrNoRules
	}

	entries := strings.Split(spec, ",")
	rules := make([]Rule, 0, len(entries))
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		rule, reason := parseEntry(entry)
		if reason != "" {
			return nil, &ConfigurationError{Spec: spec, Entry: entry, Reason: reason}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// MustParseRules is like ParseRules but panics on error. Intended for
// tests and static initialisation.
func MustParseRules(spec string) []Rule {
	rules, err := ParseRules(spec)
	if err != nil {
		panic(err)
	}
	return rules
}

// FormatRules renders rules back into their canonical configuration form.
func FormatRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}

// parseEntry parses one "capacity:window" pair. A non-empty reason means
// the entry is invalid.
func parseEntry(entry string) (Rule, string) {
	if entry == "" {
		return Rule{}, "empty entry"
	}

	capStr, winStr, ok := strings.Cut(entry, ":")
	if !ok || strings.Contains(winStr, ":") {
		return Rule{}, `expected "capacity:windowSeconds"`
	}

	capacity, err := strconv.ParseInt(strings.TrimSpace(capStr), 10, 64)
	if err != nil {
		return Rule{}, "capacity is not an integer"
	}
	if capacity < 0 {
		return Rule{}, "capacity must not be negative"
	}

	seconds, err := strconv.ParseInt(strings.TrimSpace(winStr), 10, 64)
	if err != nil {
		return Rule{}, "window is not an integer"
	}
	if seconds <= 0 {
		return Rule{}, "window must be positive"
	}
	if seconds > int64(math.MaxInt64/int64(time.Second)) {
		return Rule{}, "window is too large"
	}

	window := time.Duration(seconds) * time.Second
	if capacity > 0 && capacity > maxScaled/int64(window) {
		return Rule{}, "capacity and window are too large"
	}

	return Rule{Capacity: capacity, Window: window}, ""
}

// ceilDiv returns ceil(a/b) as a duration for non-negative a and positive b.
func ceilDiv(a, b int64) time.Duration {
	q := a / b
	if a%b != 0 {
		q++
	}
	return time.Duration(q)
}
