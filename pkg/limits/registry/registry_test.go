package registry

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/limits/ratelimit"
)

type tenantID string

func rules(spec string) func() string {
	return func() string { return spec }
}

// countingFactory counts limiter constructions.
func countingFactory(n *atomic.Int64, clock ratelimit.Clock) Factory {
	return func(spec string) (*ratelimit.Limiter, error) {
		n.Add(1)
		return ratelimit.New(spec, ratelimit.WithClock(clock))
	}
}

func TestRegistry_ReturnsSameInstance(t *testing.T) {
	r := New[tenantID]()

	first, err := r.GetOrCreate("t1", rules("10:1"))
	if err != nil {
		t.Fatalf("GetOrCreate error = %v", err)
	}
	if first == nil {
		t.Fatal("GetOrCreate returned nil limiter")
	}

	second, err := r.GetOrCreate("t1", rules("99:1"))
	if err != nil {
		t.Fatalf("GetOrCreate error = %v", err)
	}
	if first != second {
		t.Error("GetOrCreate returned a different limiter for the same key")
	}
	if second.String() != "10:1" {
		t.Errorf("cached limiter rules = %s, want the rules from first use", second.String())
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_ConcurrentFirstAccess(t *testing.T) {
	var (
		built    atomic.Int64
		supplied atomic.Int64
	)
	clock := ratelimit.NewManualClock(time.Now())
	r := New[tenantID](WithFactory[tenantID](countingFactory(&built, clock)))

	const goroutines = 64
	results := make([]*ratelimit.Limiter, goroutines)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			l, err := r.GetOrCreate("shared", func() string {
				supplied.Add(1)
				return "5:1"
			})
			if err != nil {
				t.Errorf("GetOrCreate error = %v", err)
			}
			results[i] = l
		}(i)
	}
	close(start)
	wg.Wait()

	for i, l := range results {
		if l != results[0] {
			t.Fatalf("goroutine %d got a different limiter", i)
		}
	}
	if got := built.Load(); got != 1 {
		t.Errorf("constructed %d limiters, want 1", got)
	}
	if got := supplied.Load(); got != 1 {
		t.Errorf("supplier invoked %d times, want 1", got)
	}

	// Exactly five permits across all goroutines' shared limiter.
	granted := 0
	for results[0].TryAcquire() {
		granted++
	}
	if granted != 5 {
		t.Errorf("shared limiter granted %d, want 5", granted)
	}
}

func TestRegistry_Isolation(t *testing.T) {
	clock := ratelimit.NewManualClock(time.Now())
	r := New[tenantID](WithClock[tenantID](clock))

	x, _ := r.GetOrCreate("x", rules("2:60"))
	y, _ := r.GetOrCreate("y", rules("2:60"))
	if x == y {
		t.Fatal("distinct keys share a limiter")
	}

	for x.TryAcquire() {
	}
	if st := y.Status()[0]; st.Remaining != 2 {
		t.Errorf("actor y remaining = %d after draining x, want 2", st.Remaining)
	}
	if !y.TryAcquire() {
		t.Error("actor y rejected after actor x was drained")
	}
}

func TestRegistry_EmptyRules(t *testing.T) {
	var built atomic.Int64
	r := New[tenantID](WithFactory[tenantID](countingFactory(&built, ratelimit.SystemClock)))

	for _, spec := range []string{"", "  "} {
		l, err := r.GetOrCreate("t1", rules(spec))
		if err != nil {
			t.Fatalf("GetOrCreate(%q) error = %v", spec, err)
		}
		if l != nil {
			t.Errorf("GetOrCreate(%q) returned a limiter, want nil", spec)
		}
	}
	if built.Load() != 0 {
		t.Errorf("constructed %d limiters for empty rules", built.Load())
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestRegistry_InvalidRulesNotCached(t *testing.T) {
	r := New[tenantID]()

	_, err := r.GetOrCreate("t1", rules("abc"))
	var cfgErr *ratelimit.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error = %v, want *ratelimit.ConfigurationError", err)
	}
	if _, ok := r.Get("t1"); ok {
		t.Fatal("invalid rules were cached")
	}

	// A corrected rule string is picked up on the next call.
	l, err := r.GetOrCreate("t1", rules("1:1"))
	if err != nil {
		t.Fatalf("GetOrCreate error = %v", err)
	}
	if l == nil || l.String() != "1:1" {
		t.Errorf("limiter = %v, want 1:1", l)
	}
}

func TestRegistry_Invalidate(t *testing.T) {
	r := New[tenantID]()

	old, _ := r.GetOrCreate("t1", rules("1:1"))
	if !r.Invalidate("t1") {
		t.Fatal("Invalidate returned false for cached key")
	}
	if r.Invalidate("t1") {
		t.Error("Invalidate returned true for removed key")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Invalidate, want 0", r.Len())
	}

	fresh, _ := r.GetOrCreate("t1", rules("7:1"))
	if fresh == old {
		t.Error("GetOrCreate returned the invalidated limiter")
	}
	if fresh.String() != "7:1" {
		t.Errorf("rebuilt limiter rules = %s, want 7:1", fresh.String())
	}
}

func TestRegistry_OnCreateAndRange(t *testing.T) {
	var created []tenantID
	var mu sync.Mutex
	r := New[tenantID](WithOnCreate[tenantID](func(k tenantID, _ *ratelimit.Limiter) {
		mu.Lock()
		created = append(created, k)
		mu.Unlock()
	}))

	for _, k := range []tenantID{"a", "b", "a", "c"} {
		if _, err := r.GetOrCreate(k, rules("1:1")); err != nil {
			t.Fatal(err)
		}
	}
	if len(created) != 3 {
		t.Errorf("onCreate called %d times, want 3", len(created))
	}

	seen := map[tenantID]bool{}
	r.Range(func(k tenantID, l *ratelimit.Limiter) bool {
		seen[k] = l != nil
		return true
	})
	if len(seen) != 3 || !seen["a"] || !seen["b"] || !seen["c"] {
		t.Errorf("Range visited %v", seen)
	}

	visits := 0
	r.Range(func(tenantID, *ratelimit.Limiter) bool {
		visits++
		return false
	})
	if visits != 1 {
		t.Errorf("Range continued after false: %d visits", visits)
	}
}

func BenchmarkRegistry_Hit(b *testing.B) {
	r := New[tenantID]()
	_, _ = r.GetOrCreate("t1", rules("1000000:1"))
	supplier := rules("1000000:1")

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = r.GetOrCreate("t1", supplier)
		}
	})
}
