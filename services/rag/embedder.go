// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rag provides retrieval-augmented generation support: query
// embedding with caching, vector similarity search against Weaviate, and
// assembly of retrieved document context for the LLM prompt.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/wealthwarriors/wealthcoach/services/cache"
)

// DefaultEmbeddingModel is the provider model used when EMBEDDING_MODEL is
// not set. Dimensions are reduced to keep the Weaviate index small; recall
// at this scale of corpus does not measurably improve past a few hundred.
const (
	DefaultEmbeddingModel      = "text-embedding-3-small"
	DefaultEmbeddingDimensions = 384
)

// EmbeddingProvider computes dense vectors for text.
type EmbeddingProvider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName reports the embedding model identifier, used in cache keys.
	ModelName() string

	// Dimensions reports the vector width this provider produces.
	Dimensions() int
}

// OpenAIEmbedder computes embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// NewOpenAIEmbedder builds an embedder from the environment, sharing the
// OPENAI_API_KEY secret resolution with the chat client.
func NewOpenAIEmbedder() (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		apiKeyBytes, err := os.ReadFile("/run/secrets/openai_api_key")
		if err != nil {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
		apiKey = strings.TrimSpace(string(apiKeyBytes))
	}

	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = DefaultEmbeddingModel
	}
	slog.Info("Initializing OpenAI embedder", "model", model, "dimensions", DefaultEmbeddingDimensions)
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      model,
		dimensions: DefaultEmbeddingDimensions,
	}, nil
}

// ModelName implements EmbeddingProvider.
func (e *OpenAIEmbedder) ModelName() string { return e.model }

// Dimensions implements EmbeddingProvider.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// Embed implements EmbeddingProvider.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements EmbeddingProvider.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	// The API documents input-order results but also carries an index per
	// datum; honor the index.
	vectors := make([][]float32, len(texts))
	for _, datum := range resp.Data {
		if datum.Index < 0 || datum.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding response index %d out of range", datum.Index)
		}
		vectors[datum.Index] = datum.Embedding
	}
	return vectors, nil
}

var _ EmbeddingProvider = (*OpenAIEmbedder)(nil)

// CachedEmbedder fronts an EmbeddingProvider with an EmbeddingCache.
// Cache failures never fail a request; provider failures always do.
type CachedEmbedder struct {
	provider EmbeddingProvider
	cache    *cache.EmbeddingCache
}

// NewCachedEmbedder wraps provider with embedCache. A nil cache passes
// every call straight through.
func NewCachedEmbedder(provider EmbeddingProvider, embedCache *cache.EmbeddingCache) *CachedEmbedder {
	return &CachedEmbedder{provider: provider, cache: embedCache}
}

// ModelName implements EmbeddingProvider.
func (e *CachedEmbedder) ModelName() string { return e.provider.ModelName() }

// Dimensions implements EmbeddingProvider.
func (e *CachedEmbedder) Dimensions() int { return e.provider.Dimensions() }

// Embed implements EmbeddingProvider.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.cache == nil {
		return e.provider.Embed(ctx, text)
	}
	if vector, ok := e.cache.Get(ctx, text); ok {
		return vector, nil
	}
	vector, err := e.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Put(ctx, text, vector)
	return vector, nil
}

// EmbedBatch implements EmbeddingProvider. Cached texts are served from
// the cache; the misses go to the provider in a single batch call, and the
// results are stitched back into input order.
func (e *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if e.cache == nil {
		return e.provider.EmbedBatch(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIndexes []int

	for i, text := range texts {
		if vector, ok := e.cache.Get(ctx, text); ok {
			vectors[i] = vector
			continue
		}
		missTexts = append(missTexts, text)
		missIndexes = append(missIndexes, i)
	}

	if len(missTexts) == 0 {
		return vectors, nil
	}

	fetched, err := e.provider.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, vector := range fetched {
		idx := missIndexes[j]
		vectors[idx] = vector
		e.cache.Put(ctx, texts[idx], vector)
	}
	return vectors, nil
}

var _ EmbeddingProvider = (*CachedEmbedder)(nil)
