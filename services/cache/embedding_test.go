// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCache_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewEmbeddingCache(store, "text-embedding-3-small", 0)
	ctx := context.Background()

	vector := []float32{0.1, -0.2, 0.3}
	c.Put(ctx, "what is a budget", vector)

	got, ok := c.Get(ctx, "what is a budget")
	require.True(t, ok)
	assert.Equal(t, vector, got)
}

func TestEmbeddingCache_Miss(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewEmbeddingCache(store, "text-embedding-3-small", 0)

	_, ok := c.Get(context.Background(), "never stored")
	assert.False(t, ok)
}

func TestEmbeddingCache_KeyNormalizesWhitespace(t *testing.T) {
	store, _ := newTestStore(t)
	c := NewEmbeddingCache(store, "m", 0)

	assert.Equal(t, c.Key("hello"), c.Key("  hello \n"))
	assert.NotEqual(t, c.Key("hello"), c.Key("hello world"))
}

func TestEmbeddingCache_KeyIncludesModel(t *testing.T) {
	store, _ := newTestStore(t)
	a := NewEmbeddingCache(store, "model-a", 0)
	b := NewEmbeddingCache(store, "model-b", 0)

	assert.NotEqual(t, a.Key("same text"), b.Key("same text"))
}

func TestEmbeddingCache_Expiry(t *testing.T) {
	store, clock := newTestStore(t)
	c := NewEmbeddingCache(store, "m", time.Minute)
	ctx := context.Background()

	c.Put(ctx, "text", []float32{1})
	*clock = clock.Add(2 * time.Minute)

	_, ok := c.Get(ctx, "text")
	assert.False(t, ok)
}

func TestEmbeddingCache_BackendFailureIsMiss(t *testing.T) {
	c := NewEmbeddingCache(failingStore{}, "m", 0)
	ctx := context.Background()

	// Neither call may panic or surface the backend error.
	c.Put(ctx, "text", []float32{1})
	_, ok := c.Get(ctx, "text")
	assert.False(t, ok)
}
