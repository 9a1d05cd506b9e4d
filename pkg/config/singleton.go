package config

import (
	"fmt"
	"sync"
)

var (
	globalMu     sync.RWMutex
	globalConfig *Config
	initOnce     sync.Once
	initErr      error
)

// Initialize loads the configuration at path with environment overrides and
// installs it as the process-wide configuration. Only the first call loads;
// later calls return the first call's error.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})
	return initErr
}

// GetConfig returns the process-wide configuration, or nil before Initialize.
//
// Components take a *Config explicitly; only the command layer reads this.
func GetConfig() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// SetConfig replaces the process-wide configuration.
func SetConfig(cfg *Config) {
	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
}

// ReloadConfig loads path again and installs the result. On failure the
// current configuration stays in place.
func ReloadConfig(path string) (*Config, error) {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, fmt.Errorf("failed to reload configuration: %w", err)
	}
	SetConfig(cfg)
	return cfg, nil
}

// MustGetConfig is GetConfig that panics when nothing was initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// resetForTest clears the singleton so tests can call Initialize again.
func resetForTest() {
	globalMu.Lock()
	globalConfig = nil
	globalMu.Unlock()
	initOnce = sync.Once{}
	initErr = nil
}
