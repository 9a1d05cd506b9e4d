package auth

import (
	"sort"
	"sync"
)

// APIKeyValidator validates API keys against a configured set of keys.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewAPIKeyValidator creates a new API key validator with the given keys.
// Later duplicates replace earlier ones.
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	keyMap := make(map[string]*APIKeyInfo, len(keys))
	for _, key := range keys {
		if key == nil {
			continue
		}
		keyMap[key.Key] = key
	}

	return &APIKeyValidator{
		keys: keyMap,
	}
}

// Validate checks if the given API key is valid and returns its info.
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.keys[key]
	if !ok {
		return nil, ErrInvalidAPIKey
	}

	if !info.Enabled {
		return nil, ErrAPIKeyDisabled
	}

	return info, nil
}

// List returns all configured API keys ordered by key.
func (v *APIKeyValidator) List() []*APIKeyInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]*APIKeyInfo, 0, len(v.keys))
	for _, key := range v.keys {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
	return keys
}

// Len returns the number of configured keys.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}

// Add adds a new API key to the validator.
func (v *APIKeyValidator) Add(info *APIKeyInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[info.Key] = info
}

// Remove removes an API key from the validator.
func (v *APIKeyValidator) Remove(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys, key)
}

// Update replaces an existing API key's information.
func (v *APIKeyValidator) Update(info *APIKeyInfo) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.keys[info.Key]; !ok {
		return ErrAPIKeyNotFound
	}

	v.keys[info.Key] = info
	return nil
}
