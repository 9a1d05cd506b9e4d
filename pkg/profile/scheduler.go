package profile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/gatekeeper/pkg/limits"
)

// DefaultRefreshSchedule purges the profile cache once a minute.
const DefaultRefreshSchedule = "@every 1m"

// RefreshScheduler periodically purges a Cache so that stores without
// change notification are re-read. It also reloads stores that know how
// to, such as FileStore when no watcher is running.
type RefreshScheduler struct {
	cache    *Cache
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

// reloader is implemented by FileStore.
type reloader interface {
	Reload() ([]limits.TenantID, error)
}

// NewRefreshScheduler creates a scheduler for cache. An empty schedule
// uses DefaultRefreshSchedule.
func NewRefreshScheduler(cache *Cache, schedule string) *RefreshScheduler {
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	return &RefreshScheduler{
		cache:    cache,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "profile.scheduler"),
	}
}

// Start schedules the refresh job. The scheduler stops when ctx is
// cancelled or Stop is called.
//
// Common schedules:
//   - "@every 1m"     - every minute
//   - "*/5 * * * *"   - every five minutes
//   - "0 * * * *"     - hourly
func (s *RefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("refresh scheduler already running")
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, s.Refresh); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("profile refresh scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Refresh runs one refresh cycle immediately.
func (s *RefreshScheduler) Refresh() {
	if r, ok := s.cache.Store().(reloader); ok {
		if _, err := r.Reload(); err != nil {
			s.logger.Error("scheduled profile reload failed", "error", err)
		}
	}
	n := s.cache.Purge()
	s.logger.Debug("profile cache purged", "entries", n)
}

// Stop stops the scheduler and waits for a running refresh to finish.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info("profile refresh scheduler stopped")
}

// IsRunning returns true if the scheduler is running.
func (s *RefreshScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled refresh, or nil if not running.
func (s *RefreshScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if !s.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
