package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/gatekeeper/pkg/proxy/types"
)

func TestNewAPIKeyMiddleware_DefaultSources(t *testing.T) {
	middleware := NewAPIKeyMiddleware(NewAPIKeyValidator(nil), MiddlewareOptions{})

	if middleware == nil {
		t.Fatal("NewAPIKeyMiddleware returned nil")
	}
	if len(middleware.sources) != len(DefaultSources) {
		t.Errorf("Expected %d default sources, got %d", len(DefaultSources), len(middleware.sources))
	}
}

func TestAPIKeyMiddleware_Handle(t *testing.T) {
	tests := []struct {
		name           string
		sources        []APIKeySource
		optional       bool
		setupRequest   func(*http.Request)
		expectedStatus int
		expectedCode   string
		wantTenant     string
	}{
		{
			name: "valid bearer token",
			sources: []APIKeySource{
				{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer gk-acme-web")
			},
			expectedStatus: http.StatusOK,
			wantTenant:     "acme",
		},
		{
			name: "valid custom header",
			sources: []APIKeySource{
				{Type: "header", Name: "X-API-Key"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "gk-acme-admin")
			},
			expectedStatus: http.StatusOK,
			wantTenant:     "acme",
		},
		{
			name: "valid query parameter",
			sources: []APIKeySource{
				{Type: "query", Name: "api_key"},
			},
			setupRequest: func(r *http.Request) {
				q := r.URL.Query()
				q.Add("api_key", "gk-acme-web")
				r.URL.RawQuery = q.Encode()
			},
			expectedStatus: http.StatusOK,
			wantTenant:     "acme",
		},
		{
			name:           "missing API key",
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   types.CodeMissingAPIKey,
		},
		{
			name:           "missing API key in optional mode",
			optional:       true,
			setupRequest:   func(r *http.Request) {},
			expectedStatus: http.StatusOK,
		},
		{
			name:     "invalid API key in optional mode",
			optional: true,
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer gk-unknown")
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   types.CodeInvalidAPIKey,
		},
		{
			name: "disabled API key",
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "gk-disabled")
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   types.CodeInvalidAPIKey,
		},
		{
			name: "multiple sources - first fails, second succeeds",
			setupRequest: func(r *http.Request) {
				r.Header.Set("X-API-Key", "gk-acme-web")
			},
			expectedStatus: http.StatusOK,
			wantTenant:     "acme",
		},
		{
			name: "wrong bearer scheme format",
			sources: []APIKeySource{
				{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "gk-acme-web") // Missing "Bearer " prefix
			},
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   types.CodeMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAPIKeyMiddleware(NewAPIKeyValidator(testKeys()), MiddlewareOptions{
				Sources:  tt.sources,
				Optional: tt.optional,
			})

			var gotTenant string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if info, ok := GetAPIKeyInfo(r.Context()); ok {
					gotTenant = string(info.Tenant())
				}
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			tt.setupRequest(req)
			rr := httptest.NewRecorder()

			middleware.Handle(handler).ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if gotTenant != tt.wantTenant {
				t.Errorf("tenant in context = %q, want %q", gotTenant, tt.wantTenant)
			}
			if tt.expectedCode == "" {
				return
			}

			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var body types.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Error.Type != types.ErrorTypeAuthentication || body.Error.Code != tt.expectedCode {
				t.Errorf("error = %+v, want type %s code %s", body.Error, types.ErrorTypeAuthentication, tt.expectedCode)
			}
		})
	}
}

func TestAPIKeyMiddleware_extractAPIKey(t *testing.T) {
	tests := []struct {
		name          string
		sources       []APIKeySource
		setupRequest  func(*http.Request)
		expectedKey   string
		expectedError bool
	}{
		{
			name: "extract from bearer token",
			sources: []APIKeySource{
				{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer gk-test-key")
			},
			expectedKey: "gk-test-key",
		},
		{
			name: "bearer scheme with empty token",
			sources: []APIKeySource{
				{Type: "header", Name: "Authorization", Scheme: "Bearer"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer ")
			},
			expectedError: true,
		},
		{
			name: "extract from query parameter",
			sources: []APIKeySource{
				{Type: "query", Name: "api_key"},
			},
			setupRequest: func(r *http.Request) {
				r.URL.RawQuery = "api_key=gk-query-key"
			},
			expectedKey: "gk-query-key",
		},
		{
			name: "unknown source type is ignored",
			sources: []APIKeySource{
				{Type: "cookie", Name: "session"},
			},
			setupRequest: func(r *http.Request) {
				r.Header.Set("Cookie", "session=gk-cookie")
			},
			expectedError: true,
		},
		{
			name: "source order wins",
			sources: []APIKeySource{
				{Type: "query", Name: "api_key"},
				{Type: "header", Name: "X-API-Key"},
			},
			setupRequest: func(r *http.Request) {
				r.URL.RawQuery = "api_key=gk-first"
				r.Header.Set("X-API-Key", "gk-second")
			},
			expectedKey: "gk-first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewAPIKeyMiddleware(NewAPIKeyValidator(nil), MiddlewareOptions{Sources: tt.sources})

			req := httptest.NewRequest("GET", "/test", nil)
			tt.setupRequest(req)

			key, err := middleware.extractAPIKey(req)
			if tt.expectedError {
				if err == nil {
					t.Errorf("Expected error, got key %q", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if key != tt.expectedKey {
				t.Errorf("Expected key %q, got %q", tt.expectedKey, key)
			}
		})
	}
}

func TestGetAPIKeyInfo(t *testing.T) {
	if _, ok := GetAPIKeyInfo(context.Background()); ok {
		t.Error("GetAPIKeyInfo on empty context reported ok")
	}
	if _, ok := GetAPIKeyInfo(SetAPIKeyInfo(context.Background(), nil)); ok {
		t.Error("GetAPIKeyInfo with nil info reported ok")
	}

	info := &APIKeyInfo{Key: "gk", TenantID: "acme"}
	got, ok := GetAPIKeyInfo(SetAPIKeyInfo(context.Background(), info))
	if !ok || got != info {
		t.Errorf("GetAPIKeyInfo = %v, %v", got, ok)
	}
}
