// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var retrieverTracer = otel.Tracer("wealthcoach.rag")

// Retrieval defaults.
const (
	DefaultTopK            = 4
	DefaultScoreThreshold  = 0.7
	DefaultMaxContextChars = 6000

	// dedupPrefixLen is how much of a chunk's content participates in
	// near-duplicate detection. Corpus chunks overlap at their boundaries,
	// so identical openings mean the same underlying passage.
	dedupPrefixLen = 200

	// minChunkRemainder is the smallest context budget remainder worth
	// filling with a truncated chunk. Anything shorter is a sentence
	// fragment that misleads the model more than it informs.
	minChunkRemainder = 100
)

// RetrievalResult is the assembled output of one retrieval pass. A zero
// value means no relevant documents were found (or retrieval degraded),
// and the chat pipeline proceeds without augmentation.
type RetrievalResult struct {
	Chunks      []SearchResult
	ContextText string
	Sources     []string
}

// Empty reports whether the result carries no usable context.
func (r RetrievalResult) Empty() bool {
	return len(r.Chunks) == 0
}

// Retriever turns a user query into formatted document context: embed the
// query, search the vector store, filter and dedup the hits, and render
// them into a budgeted context block.
//
// Retrieval is advisory. Every failure path degrades to an empty result so
// the chat pipeline keeps answering, just without document grounding.
type Retriever struct {
	embedder        EmbeddingProvider
	store           VectorStore
	topK            int
	scoreThreshold  float64
	maxContextChars int
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithTopK sets the number of chunks to keep after filtering.
func WithTopK(k int) RetrieverOption {
	return func(r *Retriever) { r.topK = k }
}

// WithScoreThreshold sets the minimum certainty for a chunk to be used.
func WithScoreThreshold(threshold float64) RetrieverOption {
	return func(r *Retriever) { r.scoreThreshold = threshold }
}

// WithMaxContextChars caps the rendered context block size.
func WithMaxContextChars(limit int) RetrieverOption {
	return func(r *Retriever) { r.maxContextChars = limit }
}

// NewRetriever builds a retriever over embedder and store.
func NewRetriever(embedder EmbeddingProvider, store VectorStore, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		embedder:        embedder,
		store:           store,
		topK:            DefaultTopK,
		scoreThreshold:  DefaultScoreThreshold,
		maxContextChars: DefaultMaxContextChars,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve runs one retrieval pass for query. The returned error is always
// nil today; the signature keeps room for callers that must distinguish
// degradation from emptiness later.
func (r *Retriever) Retrieve(ctx context.Context, query string) (RetrievalResult, error) {
	ctx, span := retrieverTracer.Start(ctx, "retriever.retrieve")
	defer span.End()

	vector, err := r.embedder.Embed(ctx, strings.TrimSpace(query))
	if err != nil {
		slog.Warn("Query embedding failed, continuing without retrieval", "error", err)
		span.RecordError(err)
		return RetrievalResult{}, nil
	}

	// Over-fetch so threshold filtering and dedup still leave topK usable
	// chunks in the common case.
	fetchLimit := r.topK * 2
	hits, err := r.store.SimilaritySearch(ctx, vector, fetchLimit, r.scoreThreshold)
	if err != nil {
		slog.Warn("Vector search failed, continuing without retrieval", "error", err)
		span.RecordError(err)
		return RetrievalResult{}, nil
	}

	chunks := r.selectChunks(hits)
	span.SetAttributes(
		attribute.Int("rag.hits", len(hits)),
		attribute.Int("rag.chunks_kept", len(chunks)),
	)
	if len(chunks) == 0 {
		return RetrievalResult{}, nil
	}

	contextText := r.renderContext(chunks)
	result := RetrievalResult{
		Chunks:      chunks,
		ContextText: contextText,
		Sources:     uniqueSources(chunks),
	}
	span.SetAttributes(
		attribute.Int("rag.context_chars", len(contextText)),
		attribute.Int("rag.sources", len(result.Sources)),
	)
	return result, nil
}

// selectChunks filters hits below the threshold, orders them by score
// descending, drops near-duplicates, and truncates to topK.
func (r *Retriever) selectChunks(hits []SearchResult) []SearchResult {
	kept := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		// The store applies the threshold server-side, but re-check here
		// so alternative VectorStore implementations cannot leak weak hits.
		if hit.Score >= r.scoreThreshold {
			kept = append(kept, hit)
		}
	}

	// Stable keeps the store's ranking as a tiebreak for equal scores.
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	seen := make(map[string]struct{}, len(kept))
	deduped := kept[:0]
	for _, hit := range kept {
		key := dedupKey(hit.Content)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, hit)
	}

	if len(deduped) > r.topK {
		deduped = deduped[:r.topK]
	}
	return deduped
}

// dedupKey returns the normalized content prefix used for near-duplicate
// detection.
func dedupKey(content string) string {
	trimmed := strings.TrimSpace(content)
	if len(trimmed) > dedupPrefixLen {
		trimmed = trimmed[:dedupPrefixLen]
	}
	return trimmed
}

// renderContext formats chunks into the block injected into the system
// prompt, respecting the character budget. A chunk that does not fully fit
// is truncated into the remaining budget only if at least minChunkRemainder
// characters remain; then rendering stops.
func (r *Retriever) renderContext(chunks []SearchResult) string {
	var b strings.Builder
	for i, chunk := range chunks {
		entry := fmt.Sprintf("[Source %d: %s]\n%s\n", i+1, chunk.Source, strings.TrimSpace(chunk.Content))
		if b.Len()+len(entry) <= r.maxContextChars {
			b.WriteString(entry)
			continue
		}
		remaining := r.maxContextChars - b.Len()
		if remaining >= minChunkRemainder {
			b.WriteString(entry[:remaining])
		}
		break
	}
	return strings.TrimRight(b.String(), "\n")
}

// uniqueSources returns the distinct source names in first-seen order.
func uniqueSources(chunks []SearchResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	sources := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Source == "" {
			continue
		}
		if _, dup := seen[chunk.Source]; dup {
			continue
		}
		seen[chunk.Source] = struct{}{}
		sources = append(sources, chunk.Source)
	}
	return sources
}
