package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/gatekeeper/pkg/config"
	"mercator-hq/gatekeeper/pkg/limits"
	"mercator-hq/gatekeeper/pkg/proxy/types"
	"mercator-hq/gatekeeper/pkg/security/auth"
)

type countingRecorder map[string]int

func (c countingRecorder) RecordUpstreamError(kind string) { c[kind]++ }

func newUpstream(t *testing.T, backendURL string, mutate func(*config.UpstreamConfig), failures FailureRecorder) *Upstream {
	t.Helper()
	cfg := &config.UpstreamConfig{URL: backendURL, Timeout: 5 * time.Second, MaxIdleConns: 4}
	if mutate != nil {
		mutate(cfg)
	}
	u, err := NewUpstream(cfg, Options{Failures: failures})
	if err != nil {
		t.Fatalf("NewUpstream() error = %v", err)
	}
	return u
}

func TestUpstream_Forwards(t *testing.T) {
	var got *http.Request
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Header().Set("X-Backend", "yes")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))
	defer backend.Close()

	u := newUpstream(t, backend.URL+"/api", nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/items?limit=5", nil)
	req.Header.Set(HeaderTenantID, "spoofed")
	req = req.WithContext(auth.SetAPIKeyInfo(req.Context(), &auth.APIKeyInfo{
		Key:        "gk-acme-web",
		TenantID:   limits.TenantID("acme"),
		CustomerID: limits.CustomerID("web"),
		Authority:  auth.AuthorityCustomerUser,
		Enabled:    true,
	}))
	rec := httptest.NewRecorder()
	u.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated || rec.Body.String() != "created" {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Backend") != "yes" {
		t.Error("backend header not copied")
	}
	if got.URL.Path != "/api/v1/items" || got.URL.RawQuery != "limit=5" {
		t.Errorf("forwarded URL = %s", got.URL)
	}
	if got.Header.Get(HeaderTenantID) != "acme" || got.Header.Get(HeaderCustomerID) != "web" {
		t.Errorf("identity headers = %q/%q", got.Header.Get(HeaderTenantID), got.Header.Get(HeaderCustomerID))
	}
	if got.Header.Get("X-Forwarded-For") == "" {
		t.Error("X-Forwarded-For not set")
	}
}

func TestUpstream_StripsIdentityWithoutCaller(t *testing.T) {
	var tenant string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant = r.Header.Get(HeaderTenantID)
	}))
	defer backend.Close()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderTenantID, "spoofed")
	newUpstream(t, backend.URL, nil, nil).ServeHTTP(httptest.NewRecorder(), req)

	if tenant != "" {
		t.Errorf("client tenant header forwarded: %q", tenant)
	}
}

func TestUpstream_PreserveHost(t *testing.T) {
	var host string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host = r.Host
	}))
	defer backend.Close()

	u := newUpstream(t, backend.URL, func(c *config.UpstreamConfig) { c.PreserveHost = true }, nil)
	req := httptest.NewRequest(http.MethodGet, "http://public.example.com/", nil)
	u.ServeHTTP(httptest.NewRecorder(), req)

	if host != "public.example.com" {
		t.Errorf("Host = %q", host)
	}
}

func TestUpstream_Unreachable(t *testing.T) {
	backend := httptest.NewServer(http.NotFoundHandler())
	url := backend.URL
	backend.Close()

	failures := countingRecorder{}
	rec := httptest.NewRecorder()
	newUpstream(t, url, nil, failures).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var body types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Code != types.CodeUpstreamError {
		t.Errorf("code = %q", body.Error.Code)
	}
	if failures[FailureUnreachable] != 1 {
		t.Errorf("failures = %v", failures)
	}
}

func TestUpstream_Timeout(t *testing.T) {
	release := make(chan struct{})
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer backend.Close()
	defer close(release)

	failures := countingRecorder{}
	u := newUpstream(t, backend.URL, func(c *config.UpstreamConfig) { c.Timeout = 50 * time.Millisecond }, failures)

	rec := httptest.NewRecorder()
	u.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if failures[FailureTimeout] != 1 {
		t.Errorf("failures = %v", failures)
	}
}

func TestNewUpstream_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "/relative", "://bad"} {
		if _, err := NewUpstream(&config.UpstreamConfig{URL: raw}, Options{}); err == nil {
			t.Errorf("NewUpstream(%q) succeeded", raw)
		}
	}
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind string
		wantNil  bool
	}{
		{"canceled", context.Canceled, FailureCanceled, true},
		{"deadline", context.DeadlineExceeded, FailureTimeout, false},
		{"other", errors.New("connection refused"), FailureUnreachable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, kind := HandleError(tt.err)
			if kind != tt.wantKind || (resp == nil) != tt.wantNil {
				t.Errorf("HandleError() = %v, %q", resp, kind)
			}
		})
	}
}
