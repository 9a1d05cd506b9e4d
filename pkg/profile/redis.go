package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"mercator-hq/gatekeeper/pkg/limits"
)

// RedisStore keeps profiles in one Redis hash, a JSON document per tenant.
// Writes are announced on a pub/sub channel so that every gatekeeper
// sharing the hash can drop its cached copy.
type RedisStore struct {
	listeners
	rdb     *redis.Client
	key     string
	channel string
	origin  string
	logger  *slog.Logger
}

// RedisConfig configures the Redis store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix names the hash; the change channel is Prefix + ":changes".
	// Default: "gatekeeper:profiles"
	Prefix string

	Logger *slog.Logger
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr cannot be empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := strings.Trim(cfg.Prefix, ":")
	if prefix == "" {
		prefix = "gatekeeper:profiles"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		rdb:     rdb,
		key:     prefix,
		channel: prefix + ":changes",
		origin:  uuid.NewString(),
		logger:  logger.With("component", "profile.redis"),
	}, nil
}

// Get returns the tenant's profile, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, tenant limits.TenantID) (*Profile, error) {
	raw, err := s.rdb.HGet(ctx, s.key, string(tenant)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return decodeProfile(tenant, raw)
}

// List returns all profiles ordered by tenant ID.
func (s *RedisStore) List(ctx context.Context) ([]*Profile, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	out := make([]*Profile, 0, len(all))
	for tenant, raw := range all {
		p, err := decodeProfile(limits.TenantID(tenant), []byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}

func decodeProfile(tenant limits.TenantID, raw []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("tenant %s: corrupt profile: %w", tenant, err)
	}
	p.TenantID = tenant
	return &p, nil
}

// Put validates and stores p, then notifies local listeners and publishes
// the change.
func (s *RedisStore) Put(ctx context.Context, p *Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	stored := p.clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, s.key, string(p.TenantID), raw)
	pipe.Publish(ctx, s.channel, s.message(p.TenantID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.notify(p.TenantID)
	return nil
}

// Delete removes the tenant's profile.
func (s *RedisStore) Delete(ctx context.Context, tenant limits.TenantID) error {
	n, err := s.rdb.HDel(ctx, s.key, string(tenant)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if n == 0 {
		return nil
	}
	if err := s.rdb.Publish(ctx, s.channel, s.message(tenant)).Err(); err != nil {
		s.logger.Warn("failed to publish profile change", "tenant_id", string(tenant), "error", err)
	}
	s.notify(tenant)
	return nil
}

// message is "<origin> <tenant>". The origin lets Watch skip changes this
// store already reported.
func (s *RedisStore) message(tenant limits.TenantID) string {
	return s.origin + " " + string(tenant)
}

// Watch reports changes published by other writers to local listeners.
// It blocks until ctx is cancelled.
func (s *RedisStore) Watch(ctx context.Context) error {
	sub := s.rdb.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}
	s.logger.Info("profile subscription started", "channel", s.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("profile subscription closed")
			}
			origin, tenant, found := strings.Cut(msg.Payload, " ")
			if !found || tenant == "" {
				s.logger.Warn("ignoring malformed profile change", "payload", msg.Payload)
				continue
			}
			if origin == s.origin {
				continue
			}
			s.notify(limits.TenantID(tenant))
		}
	}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
