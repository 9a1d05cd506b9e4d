package profile

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestRefreshScheduler_InvalidSchedule(t *testing.T) {
	cache, _, _ := newTestCache(t)
	s := NewRefreshScheduler(cache, "not a schedule")
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if s.IsRunning() {
		t.Error("scheduler running after failed start")
	}
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	cache, _, _ := newTestCache(t)
	s := NewRefreshScheduler(cache, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler not running")
	}
	if err := s.Start(ctx); err == nil {
		t.Error("second Start succeeded")
	}

	next := s.NextRun()
	if next == nil {
		t.Fatal("NextRun = nil")
	}
	if d := time.Until(*next); d <= 0 || d > time.Minute+time.Second {
		t.Errorf("next run in %v, want within 1m", d)
	}

	s.Stop()
	if s.IsRunning() {
		t.Error("scheduler running after Stop")
	}
	if s.NextRun() != nil {
		t.Error("NextRun non-nil after Stop")
	}
	s.Stop()
}

func TestRefreshScheduler_StopsOnContextCancel(t *testing.T) {
	cache, _, _ := newTestCache(t)
	s := NewRefreshScheduler(cache, "@every 1h")

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.IsRunning() {
		t.Error("scheduler still running after context cancel")
	}
}

func TestRefreshScheduler_RefreshPurgesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	writeFile(t, path, testDocument)
	store, err := NewFileStore(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	cache := NewCache(store)
	ctx := context.Background()

	cache.RateLimits(ctx, "acme")
	cache.RateLimits(ctx, "unknown")

	writeFile(t, path, "profiles:\n  - tenant_id: unknown\n    rate_limits:\n      tenant: \"1:1\"\n")
	NewRefreshScheduler(cache, "").Refresh()

	if cache.Len() != 0 {
		t.Errorf("cache Len = %d after refresh, want 0", cache.Len())
	}
	rs, err := cache.RateLimits(ctx, "unknown")
	if err != nil || rs == nil || rs.Tenant != "1:1" {
		t.Errorf("RateLimits(unknown) = %+v, %v after refresh", rs, err)
	}
}
