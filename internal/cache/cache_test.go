// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package cache

import (
	"testing"
	"time"
)

// fakeClock is a settable Clock for deterministic TTL tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCacheGetSet(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewWithClock(5*time.Second, clock)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get on empty cache should miss")
	}

	c.Set("key", "value")
	got, ok := c.Get("key")
	if !ok || got.(string) != "value" {
		t.Errorf("Get(key) = %v, %v; want value, true", got, ok)
	}
}

func TestCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewWithClock(5*time.Second, clock)

	c.Set("key", 42)

	clock.Advance(5 * time.Second)
	if _, ok := c.Get("key"); !ok {
		t.Error("entry at exactly TTL should still be valid")
	}

	clock.Advance(time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("entry past TTL should expire")
	}

	stats := c.GetStats()
	if stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestCacheSetWithTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewWithClock(time.Hour, clock)

	c.SetWithTTL("short", "v", time.Second)
	clock.Advance(2 * time.Second)
	if _, ok := c.Get("short"); ok {
		t.Error("custom TTL should override the default")
	}
}

func TestCacheStats(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewWithClock(time.Minute, clock)

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	stats := c.GetStats()
	if stats.Hits != 2 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 2 hits 1 miss", stats)
	}
}

func TestCachePrune(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewWithClock(time.Second, clock)

	c.Set("a", 1)
	c.Set("b", 2)
	clock.Advance(2 * time.Second)
	c.Set("c", 3)

	if removed := c.Prune(); removed != 2 {
		t.Errorf("Prune removed %d, want 2", removed)
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("fresh entry must survive Prune")
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted entry should miss")
	}

	c.Set("b", 2)
	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("cleared cache should miss")
	}
}
