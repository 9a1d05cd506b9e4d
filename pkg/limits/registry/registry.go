// Package registry caches one rate limiter per actor.
//
// A Registry creates a limiter the first time an actor is seen, using the
// rule string the caller supplies at that moment, and returns the same
// limiter on every later call. Entries are never evicted automatically:
// the registry grows with the number of distinct actors observed, and rule
// changes only take effect after Invalidate.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
)

// Factory builds a limiter from a non-empty rule string.
type Factory func(spec string) (*ratelimit.Limiter, error)

// Registry maps actor keys to their limiters. The zero value is not usable;
// create one with New.
//
// Lookups of existing entries are lock-free. Concurrent first-time lookups
// for the same key are collapsed so that exactly one limiter is built and
// the rule supplier runs once. Different keys never block each other
// beyond the brief collapse of identical keys.
type Registry[K ~string] struct {
	entries  sync.Map // K -> *ratelimit.Limiter
	group    singleflight.Group
	count    atomic.Int64
	factory  Factory
	clock    ratelimit.Clock
	onCreate func(K, *ratelimit.Limiter)
}

// Option configures a Registry.
type Option[K ~string] func(*Registry[K])

// WithFactory replaces the limiter constructor.
func WithFactory[K ~string](f Factory) Option[K] {
	return func(r *Registry[K]) {
		r.factory = f
	}
}

// WithClock sets the clock handed to limiters built by the default factory.
func WithClock[K ~string](c ratelimit.Clock) Option[K] {
	return func(r *Registry[K]) {
		r.clock = c
	}
}

// WithOnCreate registers a callback invoked once for every limiter the
// registry stores.
func WithOnCreate[K ~string](fn func(K, *ratelimit.Limiter)) Option[K] {
	return func(r *Registry[K]) {
		r.onCreate = fn
	}
}

// New creates an empty Registry.
func New[K ~string](opts ...Option[K]) *Registry[K] {
	r := &Registry[K]{clock: ratelimit.SystemClock}
	for _, opt := range opts {
		opt(r)
	}
	if r.factory == nil {
		clock := r.clock
		r.factory = func(spec string) (*ratelimit.Limiter, error) {
			return ratelimit.New(spec, ratelimit.WithClock(clock))
		}
	}
	return r
}

// GetOrCreate returns the limiter for key, building it from rules() on
// first use.
//
// If rules() returns an empty string the actor is not limited: GetOrCreate
// returns (nil, nil) and caches nothing. A malformed rule string yields a
// *ratelimit.ConfigurationError and nothing is cached, so the supplier is
// consulted again on the next call.
func (r *Registry[K]) GetOrCreate(key K, rules func() string) (*ratelimit.Limiter, error) {
	if l, ok := r.Get(key); ok {
		return l, nil
	}

	v, err, _ := r.group.Do(string(key), func() (interface{}, error) {
		// Another caller may have finished construction between our
		// lookup and entering the group.
		if l, ok := r.Get(key); ok {
			return l, nil
		}

		spec := strings.TrimSpace(rules())
		if spec == "" {
			return (*ratelimit.Limiter)(nil), nil
		}

		l, err := r.factory(spec)
		if err != nil {
			return nil, err
		}

		r.entries.Store(key, l)
		r.count.Add(1)
		if r.onCreate != nil {
			r.onCreate(key, l)
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ratelimit.Limiter), nil
}

// Get returns the cached limiter for key, if any.
func (r *Registry[K]) Get(key K) (*ratelimit.Limiter, bool) {
	v, ok := r.entries.Load(key)
	if !ok {
		return nil, false
	}
	return v.(*ratelimit.Limiter), true
}

// Invalidate drops the cached limiter for key so that the next
// GetOrCreate rebuilds it from the current rules. It reports whether an
// entry was removed.
func (r *Registry[K]) Invalidate(key K) bool {
	if _, ok := r.entries.LoadAndDelete(key); ok {
		r.count.Add(-1)
		return true
	}
	return false
}

// Len returns the number of cached limiters.
func (r *Registry[K]) Len() int {
	return int(r.count.Load())
}

// Range calls fn for each cached limiter until fn returns false.
func (r *Registry[K]) Range(fn func(K, *ratelimit.Limiter) bool) {
	r.entries.Range(func(k, v any) bool {
		return fn(k.(K), v.(*ratelimit.Limiter))
	})
}
