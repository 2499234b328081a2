package logging

import (
	"log/slog"
	"strings"
	"testing"
)

func TestAnonymizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"regular email", "user@example.com"},
		{"another email", "admin@corp.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnonymizeEmail(tt.email)
			if !strings.HasPrefix(got, "user:") {
				t.Errorf("AnonymizeEmail(%q) = %q, expected user: prefix", tt.email, got)
			}
			if strings.Contains(got, "@") {
				t.Errorf("AnonymizeEmail(%q) = %q, leaks the address", tt.email, got)
			}
			// Same input must hash to the same value for correlation
			if got != AnonymizeEmail(tt.email) {
				t.Error("AnonymizeEmail is not deterministic")
			}
		})
	}
}

func TestAnonymizeEmailEmpty(t *testing.T) {
	if got := AnonymizeEmail(""); got != "" {
		t.Errorf("AnonymizeEmail(\"\") = %q, expected empty", got)
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{"empty token", "", "<empty>"},
		{"short token", "abc", "[token:3 chars]"},
		{"long token", strings.Repeat("x", 128), "[token:128 chars]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeToken(tt.token); got != tt.expected {
				t.Errorf("SanitizeToken(%q) = %q, expected %q", tt.token, got, tt.expected)
			}
		})
	}
}

func TestErrNil(t *testing.T) {
	attr := Err(nil)
	// A nil error must produce an empty group that slog omits
	if attr.Value.Kind() != slog.KindGroup {
		t.Errorf("Err(nil) kind = %v, expected group", attr.Value.Kind())
	}
	if len(attr.Value.Group()) != 0 {
		t.Error("Err(nil) should produce an empty group")
	}
}

func TestNewRespectsDebug(t *testing.T) {
	if logger := New(false); logger.Enabled(nil, slog.LevelDebug) {
		t.Error("non-debug logger should not enable debug level")
	}
	if logger := New(true); !logger.Enabled(nil, slog.LevelDebug) {
		t.Error("debug logger should enable debug level")
	}
}
