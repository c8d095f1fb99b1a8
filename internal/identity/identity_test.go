// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package identity

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newTestResolver(t *testing.T, groupMap, credentials string) *Resolver {
	t.Helper()
	dir := t.TempDir()
	var gmPath, credPath string
	if groupMap != "" {
		gmPath = writeFile(t, dir, "group-map.json", groupMap)
	}
	if credentials != "" {
		credPath = writeFile(t, dir, "credentials.json", credentials)
	}
	return NewResolver(gmPath, credPath, time.Minute, nil)
}

func TestGroupMapMissingFileIsEmpty(t *testing.T) {
	r := NewResolver(filepath.Join(t.TempDir(), "absent.json"), "", time.Minute, nil)
	if gm := r.GroupMap(); len(gm) != 0 {
		t.Errorf("GroupMap for missing file = %v, want empty", gm)
	}
	allowed, any := r.DeviceAllowedAnywhere("dev-1")
	if allowed || any {
		t.Error("no allow-lists should be configured for a missing file")
	}
}

func TestMachinesDeduplicates(t *testing.T) {
	r := newTestResolver(t, `{"alice": ["dev-1", "dev-2", "dev-1"]}`, "")
	got := r.Machines("alice")
	want := []string{"dev-1", "dev-2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Machines(alice) = %v, want %v", got, want)
	}
	if r.Machines("unknown") != nil {
		t.Error("Machines for an unknown owner must be nil")
	}
}

func TestNamesSorted(t *testing.T) {
	r := newTestResolver(t, `{"carol": [], "alice": ["dev-1"], "bob": ["dev-2"]}`, "")
	got := r.Names()
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
}

func TestDeviceAllowedAnywhere(t *testing.T) {
	r := newTestResolver(t, `{"alice": ["dev-1"], "bob": ["dev-2"]}`, "")

	allowed, any := r.DeviceAllowedAnywhere("dev-2")
	if !allowed || !any {
		t.Error("dev-2 is on bob's allow-list")
	}
	allowed, any = r.DeviceAllowedAnywhere("dev-9")
	if allowed || !any {
		t.Error("dev-9 is on no allow-list, but lists are configured")
	}
}

func TestResolveOwner(t *testing.T) {
	r := newTestResolver(t,
		`{"alice": ["dev-1"]}`,
		`{"alice": ["tok-a1", "tok-a2"], "bob": "tok-b"}`)

	tests := []struct {
		credential string
		wantOwner  string
		wantOK     bool
	}{
		{"tok-a1", "alice", true},
		{"tok-a2", "alice", true},
		{"tok-b", "bob", true},
		{"tok-x", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		owner, ok := r.ResolveOwner(tt.credential)
		if owner != tt.wantOwner || ok != tt.wantOK {
			t.Errorf("ResolveOwner(%q) = %q, %v; want %q, %v",
				tt.credential, owner, ok, tt.wantOwner, tt.wantOK)
		}
	}
}

func TestAmbiguousCredentialDropped(t *testing.T) {
	r := newTestResolver(t, "", `{"alice": "tok-shared", "bob": "tok-shared", "carol": "tok-c"}`)

	if _, ok := r.ResolveOwner("tok-shared"); ok {
		t.Error("a credential claimed by two owners must not resolve")
	}
	if owner, ok := r.ResolveOwner("tok-c"); !ok || owner != "carol" {
		t.Errorf("ResolveOwner(tok-c) = %q, %v; want carol, true", owner, ok)
	}
}

func TestHasCredentials(t *testing.T) {
	r := newTestResolver(t, "", "")
	if r.HasCredentials() {
		t.Error("no credential file means no credentials")
	}

	r = newTestResolver(t, "", `{"alice": "tok-a"}`)
	if !r.HasCredentials() {
		t.Error("configured credentials must be reported")
	}
}

func TestGroupMapReloadAfterTTL(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "group-map.json", `{"alice": ["dev-1"]}`)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	r := NewResolver(path, "", 5*time.Second, clock)

	if len(r.Machines("alice")) != 1 {
		t.Fatal("initial map not loaded")
	}

	writeFile(t, dir, "group-map.json", `{"alice": ["dev-1", "dev-2"]}`)

	// Within the TTL the stale map is served.
	if len(r.Machines("alice")) != 1 {
		t.Error("map reloaded before TTL expiry")
	}

	clock.now = clock.now.Add(6 * time.Second)
	if len(r.Machines("alice")) != 2 {
		t.Error("map not reloaded after TTL expiry")
	}
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
