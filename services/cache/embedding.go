// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// DefaultEmbeddingTTL is long because embeddings for fixed text under a
// fixed model are deterministic.
const DefaultEmbeddingTTL = 24 * time.Hour

// EmbeddingCache maps text content to embedding vectors.
//
// Keys are content-addressed: embedding:{model}:{sha256(text)}. The cache
// is strictly advisory; every backend failure degrades to a miss and is
// logged at Warn. Retrieval correctness never depends on cache
// availability.
type EmbeddingCache struct {
	store Store
	model string
	ttl   time.Duration
}

// NewEmbeddingCache creates an EmbeddingCache for the given model
// identifier. ttl <= 0 selects DefaultEmbeddingTTL.
func NewEmbeddingCache(store Store, model string, ttl time.Duration) *EmbeddingCache {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}
	return &EmbeddingCache{store: store, model: model, ttl: ttl}
}

// Key returns the cache key for text. Surrounding whitespace is trimmed
// before hashing so that incidental padding does not fragment the cache.
func (c *EmbeddingCache) Key(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return "embedding:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached vector for text, or false on a miss. Backend
// failures are misses.
func (c *EmbeddingCache) Get(ctx context.Context, text string) ([]float32, bool) {
	raw, ok, err := c.store.Get(ctx, c.Key(text))
	if err != nil {
		slog.Warn("embedding cache get failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		slog.Warn("embedding cache holds undecodable entry", "error", err)
		return nil, false
	}
	return vector, true
}

// Put stores vector under the key for text. Failures are logged, not
// returned.
func (c *EmbeddingCache) Put(ctx context.Context, text string, vector []float32) {
	raw, err := json.Marshal(vector)
	if err != nil {
		slog.Warn("embedding cache encode failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, c.Key(text), raw, c.ttl); err != nil {
		slog.Warn("embedding cache put failed", "error", err)
	}
}
