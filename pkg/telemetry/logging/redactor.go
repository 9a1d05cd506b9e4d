package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes.
type Redactor struct {
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var defaultPatterns = []redactPattern{
	// Bearer tokens
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
	// Gateway and common vendor API keys
	{regexp.MustCompile(`\b(gk|sk)-[a-zA-Z0-9\-_]{4,}`), "$1-***"},
	// api_key=... in query strings
	{regexp.MustCompile(`(api[-_]?key=)[^&\s]+`), "$1***"},
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token",
	"api_key", "apikey", "authorization", "private_key",
}

// NewRedactor creates a Redactor with the built-in patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// RedactString masks credential-looking substrings of value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Values of
// sensitive keys are masked entirely; other string values are scanned.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		if s, ok := a.Value.Resolve().Any().(string); ok {
			return slog.String(a.Key, RedactAPIKey(s))
		}
		return slog.String(a.Key, "***")
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); s != "" {
			if redacted := r.RedactString(s); redacted != s {
				return slog.String(a.Key, redacted)
			}
		}
	}
	return a
}

// isSensitiveKey checks if a key name indicates sensitive data.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 4 {
		return "***"
	}

	// Keep first 4 characters for identification
	return apiKey[:4] + "***"
}
