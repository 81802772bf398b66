// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*BadgerStore, *time.Time) {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewBadgerStoreWithClock(db, func() time.Time { return current })
	return store, &current
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Hour))

	got, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), got)
}

func TestBadgerStore_MissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerStore_ExpiryViaClock(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), time.Minute))

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok, "entry should be live before ttl elapses")

	*clock = clock.Add(2 * time.Minute)

	_, ok, err = store.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok, "entry must not be returned after expiry")
}

func TestBadgerStore_NoTTLNeverExpires(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))
	*clock = clock.Add(1000 * time.Hour)

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBadgerStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))
	require.NoError(t, store.Delete(ctx, "k1"))

	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting a missing key is not an error.
	require.NoError(t, store.Delete(ctx, "absent"))
}

func TestBadgerStore_Increment(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	n, err := store.Increment(ctx, "hits", 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = store.Increment(ctx, "hits", 4)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	n, err = store.Increment(ctx, "hits", -2)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)
}

// failingStore simulates an unreachable backend for best-effort tests.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend unreachable")
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("backend unreachable")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("backend unreachable")
}

func (failingStore) Increment(context.Context, string, int64) (int64, error) {
	return 0, errors.New("backend unreachable")
}
