// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package notice

import (
	"testing"

	badger "github.com/dgraph-io/badger/v4"
)

func TestMemoryStoreMarkIfFirst(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	first, err := s.MarkIfFirst("dev-1")
	if err != nil {
		t.Fatalf("MarkIfFirst: %v", err)
	}
	if !first {
		t.Error("first submission must be marked first")
	}

	first, err = s.MarkIfFirst("dev-1")
	if err != nil {
		t.Fatalf("MarkIfFirst: %v", err)
	}
	if first {
		t.Error("second submission must not be first")
	}

	// Other devices are independent.
	if first, _ := s.MarkIfFirst("dev-2"); !first {
		t.Error("dev-2 has not submitted before")
	}
}

func newBadgerTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStoreWithDB(db)
}

func TestBadgerStoreMarkIfFirst(t *testing.T) {
	s := newBadgerTestStore(t)

	first, err := s.MarkIfFirst("dev-1")
	if err != nil {
		t.Fatalf("MarkIfFirst: %v", err)
	}
	if !first {
		t.Error("first submission must be marked first")
	}

	first, err = s.MarkIfFirst("dev-1")
	if err != nil {
		t.Fatalf("MarkIfFirst: %v", err)
	}
	if first {
		t.Error("marker must persist after the first submission")
	}

	if first, _ := s.MarkIfFirst("dev-2"); !first {
		t.Error("dev-2 has not submitted before")
	}
}
