// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Store is the minimal key-value contract the caches need from a backend:
// get, set with expiry, delete, and increment. Each operation is key-scoped
// and atomic at the key level; no multi-key transactions are offered.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. The second return is false on a
	// miss (including expiry). A non-nil error indicates a backend
	// failure; callers treating the cache as advisory should handle it
	// as a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value under key. ttl <= 0 means no expiry.
	// Writes are always fresh; there is no update-in-place.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Increment atomically adds delta to the integer counter at key,
	// creating it at delta if absent, and returns the new value.
	Increment(ctx context.Context, key string, delta int64) (int64, error)
}

// envelope wraps stored values with their expiry so that expiration is
// checked against an injectable clock rather than Badger's internal one.
// Badger's own entry TTL is set as well, for physical reclamation.
type envelope struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp"` // unix milliseconds, 0 = never
}

// BadgerStore implements Store on a BadgerDB instance.
type BadgerStore struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerStore creates a Store over db using the real clock.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

// NewBadgerStoreWithClock creates a Store with an injected clock. Tests use
// this to force expiry without sleeping.
func NewBadgerStoreWithClock(db *badger.DB, now func() time.Time) *BadgerStore {
	return &BadgerStore{db: db, now: now}
}

// Get implements Store. An entry past its stored expiry is reported as a
// miss even if Badger has not reclaimed it yet.
func (s *BadgerStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	var found bool

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("decode cache envelope: %w", err)
		}
		if env.ExpiresAt > 0 && s.now().UnixMilli() >= env.ExpiresAt {
			return nil
		}
		value = env.Value
		found = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	return value, found, nil
}

// Set implements Store.
func (s *BadgerStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl).UnixMilli()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode cache envelope: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *BadgerStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Increment implements Store. Counters are stored as decimal strings and
// never expire.
func (s *BadgerStore) Increment(_ context.Context, key string, delta int64) (int64, error) {
	var result int64
	err := s.db.Update(func(txn *badger.Txn) error {
		var current int64
		item, err := txn.Get([]byte(key))
		if err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			current, err = strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("counter %q holds non-integer value: %w", key, err)
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		result = current + delta
		return txn.Set([]byte(key), []byte(strconv.FormatInt(result, 10)))
	})
	if err != nil {
		return 0, fmt.Errorf("cache increment %q: %w", key, err)
	}
	return result, nil
}

var _ Store = (*BadgerStore)(nil)
