package profile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"mercator-hq/gatekeeper/pkg/limits"
)

// DefaultCacheTTL is how long a looked-up profile is served from memory.
const DefaultCacheTTL = 5 * time.Minute

// DefaultLookupTimeout bounds one shared store lookup.
const DefaultLookupTimeout = 5 * time.Second

// maxLookupAttempts bounds re-reads of a tenant that keeps changing while
// it is being looked up.
const maxLookupAttempts = 3

// cacheName labels cache metrics.
const cacheName = "profile"

// CacheObserver receives cache events. The telemetry metrics package's
// CacheMetrics satisfies it.
type CacheObserver interface {
	RecordHit(cache string)
	RecordMiss(cache string)
	RecordEviction(cache string)
	UpdateSize(cache string, size int)
}

// Cache serves tenant rule sets from a Store with a TTL. It implements
// limits.ProfileSource.
//
// A missing profile is cached like a present one, so unknown tenants do
// not hit the store on every request. Concurrent misses for the same
// tenant share one store lookup. A lookup that overlaps an Evict or Purge
// of its tenant is read again and never caches the older result.
type Cache struct {
	listeners
	store         Store
	ttl           time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	observer      CacheObserver
	logger        *slog.Logger

	mu      sync.RWMutex
	entries map[limits.TenantID]cacheEntry
	epoch   uint64                     // bumped by Purge
	evicted map[limits.TenantID]uint64 // Evict count per tenant since the last Purge
	group   singleflight.Group
}

// generation identifies the state of one tenant's entry. It changes on
// every Evict of the tenant and every Purge.
type generation struct {
	epoch, evictions uint64
}

type cacheEntry struct {
	rules   *limits.RuleSet // nil when the tenant has no profile
	expires time.Time
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLookupTimeout bounds each store lookup.
func WithLookupTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.lookupTimeout = d
		}
	}
}

// WithObserver reports cache events to o.
func WithObserver(o CacheObserver) CacheOption {
	return func(c *Cache) {
		c.observer = o
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// withNow overrides the time source in tests.
func withNow(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache wraps store. If store implements Notifier, changed tenants are
// evicted immediately and forwarded to the cache's own OnChange listeners.
func NewCache(store Store, opts ...CacheOption) *Cache {
	c := &Cache{
		store:         store,
		ttl:           DefaultCacheTTL,
		lookupTimeout: DefaultLookupTimeout,
		now:           time.Now,
		logger:        slog.Default(),
		entries:       make(map[limits.TenantID]cacheEntry),
		evicted:       make(map[limits.TenantID]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "profile.cache")

	if n, ok := store.(Notifier); ok {
		n.OnChange(func(tenant limits.TenantID) {
			c.Evict(tenant)
			c.notify(tenant)
		})
	}
	return c
}

// Store returns the underlying store.
func (c *Cache) Store() Store {
	return c.store
}

// RateLimits returns the tenant's rule set, or nil if the tenant has no
// profile.
//
// The store lookup is shared by every caller missing the same tenant and
// is not cancelled with ctx; ctx only bounds how long this caller waits.
func (c *Cache) RateLimits(ctx context.Context, tenant limits.TenantID) (*limits.RuleSet, error) {
	if rules, ok := c.lookup(tenant); ok {
		c.recordHit()
		return copyRules(rules), nil
	}
	c.recordMiss()

	ch := c.group.DoChan(string(tenant), func() (interface{}, error) {
		return c.load(context.WithoutCancel(ctx), tenant)
	})
	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return copyRules(r.Val.(*limits.RuleSet)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load reads tenant from the store and caches the result unless the
// tenant was evicted meanwhile, in which case it reads again.
func (c *Cache) load(ctx context.Context, tenant limits.TenantID) (*limits.RuleSet, error) {
	if rules, ok := c.lookup(tenant); ok {
		return rules, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.lookupTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		c.mu.RLock()
		gen := c.generationLocked(tenant)
		c.mu.RUnlock()

		rules, err := c.fetch(ctx, tenant)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.generationLocked(tenant) != gen {
			c.mu.Unlock()
			if attempt < maxLookupAttempts {
				continue
			}
			// Still changing: answer this flight without caching.
			c.logger.Debug("profile changed during every lookup", "tenant_id", tenant, "attempts", attempt)
			return rules, nil
		}
		c.entries[tenant] = cacheEntry{rules: rules, expires: c.now().Add(c.ttl)}
		size := len(c.entries)
		c.mu.Unlock()

		if c.observer != nil {
			c.observer.UpdateSize(cacheName, size)
		}
		return rules, nil
	}
}

func (c *Cache) fetch(ctx context.Context, tenant limits.TenantID) (*limits.RuleSet, error) {
	p, err := c.store.Get(ctx, tenant)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		c.logger.Warn("profile lookup failed", "tenant_id", tenant, "error", err)
		return nil, err
	}
	rs := p.RateLimits
	return &rs, nil
}

// generationLocked must be called with c.mu held.
func (c *Cache) generationLocked(tenant limits.TenantID) generation {
	return generation{epoch: c.epoch, evictions: c.evicted[tenant]}
}

func (c *Cache) lookup(tenant limits.TenantID) (*limits.RuleSet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[tenant]
	if !ok || !c.now().Before(e.expires) {
		return nil, false
	}
	return e.rules, true
}

// Evict drops the cached entry for tenant.
func (c *Cache) Evict(tenant limits.TenantID) {
	c.mu.Lock()
	_, ok := c.entries[tenant]
	delete(c.entries, tenant)
	c.evicted[tenant]++
	size := len(c.entries)
	c.mu.Unlock()

	if ok && c.observer != nil {
		c.observer.RecordEviction(cacheName)
		c.observer.UpdateSize(cacheName, size)
	}
}

// Purge drops every cached entry.
func (c *Cache) Purge() int {
	c.mu.Lock()
	n := len(c.entries)
	c.entries = make(map[limits.TenantID]cacheEntry)
	c.evicted = make(map[limits.TenantID]uint64)
	c.epoch++
	c.mu.Unlock()

	if c.observer != nil {
		for i := 0; i < n; i++ {
			c.observer.RecordEviction(cacheName)
		}
		c.observer.UpdateSize(cacheName, 0)
	}
	return n
}

// Len returns the number of cached entries, including expired ones not
// yet replaced.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) recordHit() {
	if c.observer != nil {
		c.observer.RecordHit(cacheName)
	}
}

func (c *Cache) recordMiss() {
	if c.observer != nil {
		c.observer.RecordMiss(cacheName)
	}
}

func copyRules(rs *limits.RuleSet) *limits.RuleSet {
	if rs == nil {
		return nil
	}
	c := *rs
	return &c
}
