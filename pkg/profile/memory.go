package profile

import (
	"context"
	"sort"
	"sync"
	"time"

	"mercator-hq/gatekeeper/pkg/limits"
)

// MemoryStore keeps profiles in memory. It is used for profiles declared
// inline in the configuration file and in tests.
type MemoryStore struct {
	listeners
	mu       sync.RWMutex
	profiles map[limits.TenantID]*Profile
}

// NewMemoryStore creates a store seeded with profiles.
func NewMemoryStore(profiles ...*Profile) (*MemoryStore, error) {
	s := &MemoryStore{profiles: make(map[limits.TenantID]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		s.profiles[p.TenantID] = p.clone()
	}
	return s, nil
}

// Get returns a copy of the tenant's profile.
func (s *MemoryStore) Get(_ context.Context, tenant limits.TenantID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[tenant]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

// List returns copies of all profiles ordered by tenant ID.
func (s *MemoryStore) List(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.clone())
	}
	sortProfiles(out)
	return out, nil
}

// Put validates and stores p, then notifies listeners.
func (s *MemoryStore) Put(_ context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	stored := p.clone()
	stored.UpdatedAt = time.Now()

	s.mu.Lock()
	s.profiles[p.TenantID] = stored
	s.mu.Unlock()

	s.notify(p.TenantID)
	return nil
}

// Delete removes the tenant's profile and notifies listeners if it existed.
func (s *MemoryStore) Delete(_ context.Context, tenant limits.TenantID) error {
	s.mu.Lock()
	_, ok := s.profiles[tenant]
	delete(s.profiles, tenant)
	s.mu.Unlock()

	if ok {
		s.notify(tenant)
	}
	return nil
}

func sortProfiles(ps []*Profile) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].TenantID < ps[j].TenantID })
}
