// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package notice tracks which devices have already received the one-time
// update notice. Two stores ship: an in-memory set scoped to the process
// lifetime, and a BadgerDB set that survives restarts.
package notice

import (
	"errors"
	"fmt"
	"sync"

	badger "github.com/dgraph-io/badger/v4"
)

// Store records the per-device one-shot marker.
type Store interface {
	// MarkIfFirst sets the marker for the device and reports whether this
	// call was the first to do so. The mark lands before the caller
	// responds, so concurrent submissions from one device yield exactly
	// one notice.
	MarkIfFirst(device string) (bool, error)

	// Close releases store resources.
	Close() error
}

// MemoryStore keeps markers in a process-lifetime set.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryStore creates an empty in-memory marker set.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]struct{})}
}

// MarkIfFirst implements Store.
func (s *MemoryStore) MarkIfFirst(device string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[device]; ok {
		return false, nil
	}
	s.seen[device] = struct{}{}
	return true, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// BadgerStore keeps markers in a BadgerDB key set so the one-shot survives
// restarts.
type BadgerStore struct {
	db    *badger.DB
	owned bool
}

// markerPrefix namespaces notice keys inside the Badger directory.
var markerPrefix = []byte("notice:")

// NewBadgerStore opens (or creates) the marker database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open notice store at %s: %w", dir, err)
	}
	return &BadgerStore{db: db, owned: true}, nil
}

// NewBadgerStoreWithDB wraps an already-open Badger database. The caller
// retains ownership; Close becomes a no-op.
func NewBadgerStoreWithDB(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// MarkIfFirst implements Store. The read and write happen in one Badger
// transaction, so the first-writer-wins property holds under concurrency.
func (s *BadgerStore) MarkIfFirst(device string) (bool, error) {
	first := false
	err := s.db.Update(func(txn *badger.Txn) error {
		key := append(append([]byte{}, markerPrefix...), device...)
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		first = true
		return txn.Set(key, []byte{1})
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark notice for device: %w", err)
	}
	return first, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	if s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}
