package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid JSON config",
			config: Config{Level: "info", Format: "json", RedactKeys: true},
		},
		{
			name:   "valid text config",
			config: Config{Level: "debug", Format: "text"},
		},
		{
			name:   "console is text",
			config: Config{Level: "WARN", Format: "console"},
		},
		{
			name:   "defaults",
			config: Config{},
		},
		{
			name:    "invalid log level",
			config:  Config{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  Config{Level: "info", Format: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.Writer = &bytes.Buffer{}
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestLogger_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Level: "warn", Writer: buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %s", len(lines), buf.String())
	}
	if lines[0]["msg"] != "warn" || lines[1]["msg"] != "error" {
		t.Errorf("unexpected messages: %v", lines)
	}
}

func TestLogger_ContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Writer: buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = WithTenant(ctx, "acme")
	ctx = WithCustomer(ctx, "web")

	logger.With("component", "test").InfoContext(ctx, "admitted", "stage", "admitted")
	logger.Info("no context")

	lines := decodeLines(t, buf)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	want := map[string]string{
		"request_id":  "req-123",
		"tenant_id":   "acme",
		"customer_id": "web",
		"component":   "test",
		"stage":       "admitted",
	}
	for k, v := range want {
		if lines[0][k] != v {
			t.Errorf("field %s = %v, want %s", k, lines[0][k], v)
		}
	}
	if _, ok := lines[1]["request_id"]; ok {
		t.Error("record without context carries request_id")
	}
}

func TestLogger_Redaction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Writer: buf, RedactKeys: true})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("auth",
		"api_key", "gk-acme-web-1234",
		"header", "Bearer abc.def.ghi",
		"path", "/v1/items?api_key=secretvalue",
		"tenant", "acme",
	)

	out := buf.String()
	for _, leaked := range []string{"gk-acme-web-1234", "abc.def.ghi", "secretvalue"} {
		if strings.Contains(out, leaked) {
			t.Errorf("log output leaks %q: %s", leaked, out)
		}
	}
	lines := decodeLines(t, buf)
	if lines[0]["api_key"] != "gk-a***" {
		t.Errorf("api_key = %v, want gk-a***", lines[0]["api_key"])
	}
	if lines[0]["tenant"] != "acme" {
		t.Errorf("tenant = %v, want acme", lines[0]["tenant"])
	}
}

func TestLogger_NoRedaction(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := New(Config{Writer: buf})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("auth", "api_key", "gk-acme-web-1234")
	if !strings.Contains(buf.String(), "gk-acme-web-1234") {
		t.Errorf("value redacted without RedactKeys: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestRedactAPIKey(t *testing.T) {
	tests := map[string]string{
		"":                 "***",
		"gk":               "***",
		"gk-acme-web-1234": "gk-a***",
	}
	for in, want := range tests {
		if got := RedactAPIKey(in); got != want {
			t.Errorf("RedactAPIKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetTenant(ctx) != "" || GetCustomer(ctx) != "" {
		t.Error("empty context returned values")
	}
	ctx = WithTenant(ctx, "acme")
	if GetTenant(ctx) != "acme" {
		t.Errorf("GetTenant = %q", GetTenant(ctx))
	}
}
