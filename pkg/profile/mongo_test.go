package profile

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"mercator-hq/gatekeeper/pkg/limits"
)

func TestProfileDoc(t *testing.T) {
	at := time.Date(2026, 10, 14, 10, 30, 0, 0, time.UTC)
	p := &Profile{
		TenantID:   "acme",
		Name:       "Acme Corp",
		RateLimits: limits.RuleSet{Tenant: "100:1", Customer: "10:1"},
		UpdatedAt:  at,
	}
	doc := toDoc(p, "node-1")
	if doc.TenantID != "acme" || doc.Origin != "node-1" {
		t.Errorf("toDoc = %+v", doc)
	}
	if got := doc.profile(); *got != *p {
		t.Errorf("profile() = %+v, want %+v", got, p)
	}
}

func TestNewMongoStore_Config(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		cfg  MongoConfig
	}{
		{"missing uri", MongoConfig{Database: "gk", Collection: "p"}},
		{"missing collection", MongoConfig{URI: "mongodb://localhost:27017", Database: "gk"}},
		{"bad scheme", MongoConfig{URI: "postgres://localhost", Database: "gk", Collection: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMongoStore(ctx, tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// TestMongoStore runs against a live server named by
// GATEKEEPER_TEST_MONGO_URI.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("GATEKEEPER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("GATEKEEPER_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	store, err := NewMongoStore(ctx, MongoConfig{
		URI:        uri,
		Database:   "gatekeeper_test",
		Collection: "profiles_" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("NewMongoStore error = %v", err)
	}
	defer func() {
		_ = store.col.Drop(ctx)
		_ = store.Close()
	}()

	rec := &changeRecorder{}
	store.OnChange(rec.record)

	if _, err := store.Get(ctx, "acme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store error = %v, want ErrNotFound", err)
	}
	profiles, _ := ParseDocument([]byte(testDocument))
	for _, p := range profiles {
		if err := store.Put(ctx, p); err != nil {
			t.Fatalf("Put error = %v", err)
		}
	}

	got, err := store.Get(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if got.RateLimits.Tenant != "100:1,3000:60" {
		t.Errorf("Get(acme) = %+v", got)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TenantID != "acme" {
		t.Errorf("List = %v", list)
	}
	if err := store.Delete(ctx, "globex"); err != nil {
		t.Fatal(err)
	}
	if n := len(rec.seen()); n != 3 {
		t.Errorf("listeners saw %d changes, want 3", n)
	}
}
