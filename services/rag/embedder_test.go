// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthwarriors/wealthcoach/services/cache"
)

// countingProvider records calls and returns per-text vectors derived from
// the text length so stitching bugs are visible.
type countingProvider struct {
	embedCalls int
	batchCalls int
	batchSizes []int
	err        error
}

func (p *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.embedCalls++
	if p.err != nil {
		return nil, p.err
	}
	return []float32{float32(len(text))}, nil
}

func (p *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.batchCalls++
	p.batchSizes = append(p.batchSizes, len(texts))
	if p.err != nil {
		return nil, p.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text))}
	}
	return out, nil
}

func (p *countingProvider) ModelName() string { return "counting" }
func (p *countingProvider) Dimensions() int   { return 1 }

func newTestEmbeddingCache(t *testing.T) *cache.EmbeddingCache {
	t.Helper()
	db, err := cache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return cache.NewEmbeddingCache(cache.NewBadgerStore(db), "counting", 0)
}

func TestCachedEmbedder_SecondCallHitsCache(t *testing.T) {
	provider := &countingProvider{}
	e := NewCachedEmbedder(provider, newTestEmbeddingCache(t))
	ctx := context.Background()

	first, err := e.Embed(ctx, "what is a 401k?")
	require.NoError(t, err)
	second, err := e.Embed(ctx, "what is a 401k?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.embedCalls)
}

func TestCachedEmbedder_BatchStitchesMisses(t *testing.T) {
	provider := &countingProvider{}
	e := NewCachedEmbedder(provider, newTestEmbeddingCache(t))
	ctx := context.Background()

	// Prime the cache with one of three texts.
	_, err := e.Embed(ctx, "bb")
	require.NoError(t, err)

	vectors, err := e.EmbedBatch(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// Order preserved: vector values track input lengths.
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Equal(t, []float32{2}, vectors[1])
	assert.Equal(t, []float32{3}, vectors[2])

	// Only the two misses reached the provider, in one batch.
	require.Len(t, provider.batchSizes, 1)
	assert.Equal(t, 2, provider.batchSizes[0])
}

func TestCachedEmbedder_AllCachedSkipsProvider(t *testing.T) {
	provider := &countingProvider{}
	e := NewCachedEmbedder(provider, newTestEmbeddingCache(t))
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"x", "yy"})
	require.NoError(t, err)
	calls := provider.batchCalls

	_, err = e.EmbedBatch(ctx, []string{"x", "yy"})
	require.NoError(t, err)
	assert.Equal(t, calls, provider.batchCalls)
}

func TestCachedEmbedder_ProviderErrorPropagates(t *testing.T) {
	provider := &countingProvider{err: errors.New("rate limited")}
	e := NewCachedEmbedder(provider, newTestEmbeddingCache(t))

	_, err := e.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestCachedEmbedder_NilCachePassesThrough(t *testing.T) {
	provider := &countingProvider{}
	e := NewCachedEmbedder(provider, nil)

	_, err := e.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, 1, provider.embedCalls)
}
