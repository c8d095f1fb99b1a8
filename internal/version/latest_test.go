// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestLatestSourceOverrideWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("source URL must not be consulted when an override is set")
	}))
	defer server.Close()

	src := NewLatestSource(Options{
		Override:  "3.1.4",
		SourceURL: server.URL,
	}, nil)

	got, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != "3.1.4" {
		t.Errorf("Latest = %q, want 3.1.4", got)
	}
}

func TestLatestSourceTextSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("2.5.0\nchangelog line ignored\n"))
	}))
	defer server.Close()

	src := NewLatestSource(Options{SourceURL: server.URL}, nil)

	got, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != "2.5.0" {
		t.Errorf("Latest = %q, want first line 2.5.0", got)
	}
}

func TestLatestSourceCaches(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("1.0.0"))
	}))
	defer server.Close()

	src := NewLatestSource(Options{SourceURL: server.URL, CacheTTL: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		if _, err := src.Latest(context.Background()); err != nil {
			t.Fatalf("Latest: %v", err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("source fetched %d times, want 1 (cached)", n)
	}
}

func TestLatestSourceFallsThroughChain(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	release := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v4.2.0"}`))
	}))
	defer release.Close()

	src := NewLatestSource(Options{SourceURL: failing.URL}, nil)
	// Append a resolver that targets the stub release endpoint directly;
	// the real release resolver builds its own URL from the repo slug.
	src.resolvers = append(src.resolvers, &textSourceResolver{
		url:    release.URL,
		client: release.Client(),
	})

	got, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got != `{"tag_name": "v4.2.0"}` {
		// The fallback text resolver returns the raw first line.
		t.Errorf("unexpected chain result %q", got)
	}
}

func TestLatestSourceAllFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	src := NewLatestSource(Options{SourceURL: failing.URL}, nil)
	if _, err := src.Latest(context.Background()); err == nil {
		t.Error("Latest should fail when every resolver fails")
	}
}

func TestLatestSourceNoResolvers(t *testing.T) {
	src := NewLatestSource(Options{}, nil)
	if _, err := src.Latest(context.Background()); err == nil {
		t.Error("Latest should fail with no resolvers configured")
	}
}
