package profile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/gatekeeper/pkg/limits"
)

// Document is the on-disk format of a profiles file:
//
//	profiles:
//	  - tenant_id: acme
//	    name: Acme Corp
//	    rate_limits:
//	      tenant: "100:1,3000:60"
//	      customer: "10:1"
type Document struct {
	Profiles []*Profile `yaml:"profiles"`
}

// ParseDocument decodes and validates a profiles document.
func ParseDocument(data []byte) ([]*Profile, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	seen := make(map[limits.TenantID]bool, len(doc.Profiles))
	for i, p := range doc.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profiles[%d]: empty entry", i)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profiles[%d]: %w", i, err)
		}
		if seen[p.TenantID] {
			return nil, fmt.Errorf("profiles[%d]: duplicate tenant_id %q", i, p.TenantID)
		}
		seen[p.TenantID] = true
	}
	return doc.Profiles, nil
}

// LoadDocument reads and validates a profiles file.
func LoadDocument(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	return ParseDocument(data)
}

// FileStore serves profiles from a YAML file. The file is read at
// construction and on Reload; Watch reloads it whenever it changes.
//
// A reload that fails validation keeps the previous profiles.
type FileStore struct {
	listeners
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	profiles map[limits.TenantID]*Profile
}

// NewFileStore loads path and returns a store serving its profiles.
func NewFileStore(path string, logger *slog.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("profiles path cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &FileStore{
		path:     path,
		logger:   logger.With("component", "profile.file"),
		profiles: map[limits.TenantID]*Profile{},
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the watched file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns a copy of the tenant's profile.
func (s *FileStore) Get(_ context.Context, tenant limits.TenantID) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[tenant]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

// List returns copies of all profiles ordered by tenant ID.
func (s *FileStore) List(_ context.Context) ([]*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.clone())
	}
	sortProfiles(out)
	return out, nil
}

// Ping checks that the profiles file is still readable.
func (s *FileStore) Ping(_ context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("profiles file unavailable: %w", err)
	}
	return nil
}

// Reload re-reads the file and swaps in its profiles. It returns the
// tenants whose profile was added, changed or removed, and notifies
// listeners for each of them.
func (s *FileStore) Reload() ([]limits.TenantID, error) {
	loaded, err := LoadDocument(s.path)
	if err != nil {
		return nil, err
	}

	next := make(map[limits.TenantID]*Profile, len(loaded))
	for _, p := range loaded {
		next[p.TenantID] = p
	}

	s.mu.Lock()
	prev := s.profiles
	s.profiles = next
	s.mu.Unlock()

	var changed []limits.TenantID
	for id, p := range next {
		if old, ok := prev[id]; !ok || old.RateLimits != p.RateLimits || old.Name != p.Name {
			changed = append(changed, id)
		}
	}
	for id := range prev {
		if _, ok := next[id]; !ok {
			changed = append(changed, id)
		}
	}

	s.logger.Info("profiles loaded",
		"path", s.path,
		"profiles", len(next),
		"changed", len(changed),
	)
	for _, id := range changed {
		s.notify(id)
	}
	return changed, nil
}
