package server

import (
	"context"
	"fmt"
	"log/slog"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/limits"
	"mercator-hq/gatekeeper/pkg/profile"
	"mercator-hq/gatekeeper/pkg/security/auth"
)

// OpenProfileStore opens the store selected by cfg.Source. ctx bounds the
// initial connection of remote stores.
func OpenProfileStore(ctx context.Context, cfg *config.ProfilesConfig, logger *slog.Logger) (profile.Store, error) {
	switch cfg.Source {
	case "", "memory":
		store, err := profile.NewMemoryStore(inlineProfiles(cfg.Inline)...)
		if err != nil {
			return nil, fmt.Errorf("invalid inline profiles: %w", err)
		}
		return store, nil
	case "file":
		store, err := profile.NewFileStore(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load profiles: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := profile.NewSQLiteStore(profile.SQLiteConfig{
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open profile database: %w", err)
		}
		return store, nil
	case "mongodb":
		store, err := profile.NewMongoStore(ctx, profile.MongoConfig{
			URI:        cfg.Mongo.URI,
			Username:   cfg.Mongo.Username,
			Password:   cfg.Mongo.Password,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open profile collection: %w", err)
		}
		return store, nil
	case "redis":
		store, err := profile.NewRedisStore(ctx, profile.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open profile hash: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown profile source %q", cfg.Source)
	}
}

func inlineProfiles(inline []config.ProfileConfig) []*profile.Profile {
	out := make([]*profile.Profile, 0, len(inline))
	for _, p := range inline {
		out = append(out, &profile.Profile{
			TenantID: limits.TenantID(p.TenantID),
			Name:     p.Name,
			RateLimits: limits.RuleSet{
				Tenant:   p.RateLimits.Tenant,
				Customer: p.RateLimits.Customer,
			},
		})
	}
	return out
}

// syncInline makes store hold exactly the inline profiles. Unchanged
// profiles are left alone so their tenants keep their limiters.
func syncInline(ctx context.Context, store *profile.MemoryStore, inline []config.ProfileConfig) error {
	want := make(map[limits.TenantID]*profile.Profile, len(inline))
	for _, p := range inlineProfiles(inline) {
		if err := p.Validate(); err != nil {
			return err
		}
		want[p.TenantID] = p
	}

	current, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range current {
		next, ok := want[p.TenantID]
		switch {
		case !ok:
			if err := store.Delete(ctx, p.TenantID); err != nil {
				return err
			}
		case next.Name == p.Name && next.RateLimits == p.RateLimits:
			delete(want, p.TenantID)
		}
	}
	for _, p := range want {
		if err := store.Put(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func apiKeys(keys []config.APIKeyConfig) []*auth.APIKeyInfo {
	out := make([]*auth.APIKeyInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, &auth.APIKeyInfo{
			Key:        k.Key,
			UserID:     k.UserID,
			TenantID:   limits.TenantID(k.TenantID),
			CustomerID: limits.CustomerID(k.CustomerID),
			Authority:  auth.Authority(k.Authority),
			Enabled:    k.Enabled,
		})
	}
	return out
}

func apiKeySources(sources []config.APIKeySource) []auth.APIKeySource {
	out := make([]auth.APIKeySource, 0, len(sources))
	for _, src := range sources {
		out = append(out, auth.APIKeySource{Type: src.Type, Name: src.Name, Scheme: src.Scheme})
	}
	return out
}
