// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer tok-123", "tok-123"},
		{"case-insensitive scheme", "bearer tok-123", "tok-123"},
		{"padded token trimmed", "Bearer  tok-123 ", "tok-123"},
		{"no header", "", ""},
		{"wrong scheme", "Basic dXNlcjpwdw==", ""},
		{"scheme only", "Bearer", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(r); got != tt.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestGenerateETagStable(t *testing.T) {
	a := generateETag([]byte(`{"status":"success"}`))
	b := generateETag([]byte(`{"status":"success"}`))
	c := generateETag([]byte(`{"status":"error"}`))
	if a != b {
		t.Error("identical payloads must hash identically")
	}
	if a == c {
		t.Error("different payloads should hash differently")
	}
}

func TestSanitizeLogValue(t *testing.T) {
	got := sanitizeLogValue("dev\n1\tx")
	if got != `dev\x0a1\x09x` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}

func TestGetIntParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25&bad=abc", nil)
	if got := getIntParam(r, "limit", 50); got != 25 {
		t.Errorf("limit = %d, want 25", got)
	}
	if got := getIntParam(r, "bad", 50); got != 50 {
		t.Errorf("bad param should fall back to default, got %d", got)
	}
	if got := getIntParam(r, "absent", 50); got != 50 {
		t.Errorf("absent param should fall back to default, got %d", got)
	}
}
