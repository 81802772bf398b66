// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// SearchResult is one scored document chunk from the vector store.
type SearchResult struct {
	Content  string
	Source   string
	Metadata map[string]string
	Score    float64
	ChunkID  string
}

// VectorStore runs similarity search over the document corpus.
type VectorStore interface {
	// SimilaritySearch returns up to limit chunks whose certainty is at
	// least threshold, ordered by the store's own relevance ranking.
	SimilaritySearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]SearchResult, error)
}

// WeaviateStore implements VectorStore over the FinanceDocument class.
type WeaviateStore struct {
	client *weaviate.Client
	class  string
}

// NewWeaviateStore wraps client. An empty class defaults to FinanceDocumentClassName.
func NewWeaviateStore(client *weaviate.Client, class string) *WeaviateStore {
	if class == "" {
		class = FinanceDocumentClassName
	}
	return &WeaviateStore{client: client, class: class}
}

// financeDocumentQueryResponse mirrors the GraphQL response shape for
// FinanceDocument searches.
type financeDocumentQueryResponse struct {
	Get struct {
		FinanceDocument []struct {
			Content    string `json:"content"`
			Source     string `json:"source"`
			Category   string `json:"category"`
			Additional struct {
				Certainty float64 `json:"certainty"`
				ID        string  `json:"id"`
			} `json:"_additional"`
		} `json:"FinanceDocument"`
	} `json:"Get"`
}

// SimilaritySearch implements VectorStore.
func (s *WeaviateStore) SimilaritySearch(ctx context.Context, vector []float32, limit int, threshold float64) ([]SearchResult, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(threshold))

	// Certainty is requested instead of distance because it is always in
	// [0,1] regardless of the index's distance metric.
	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "category"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
			{Name: "id"},
		}},
	}

	result, err := s.client.GraphQL().Get().
		WithClassName(s.class).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}

	parsed, err := parseGraphQLResponse[financeDocumentQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("parsing search results: %w", err)
	}

	results := make([]SearchResult, 0, len(parsed.Get.FinanceDocument))
	for _, doc := range parsed.Get.FinanceDocument {
		entry := SearchResult{
			Content: doc.Content,
			Source:  doc.Source,
			Score:   doc.Additional.Certainty,
			ChunkID: doc.Additional.ID,
		}
		if doc.Category != "" {
			entry.Metadata = map[string]string{"category": doc.Category}
		}
		results = append(results, entry)
	}
	slog.Debug("Vector search complete", "class", s.class, "results", len(results))
	return results, nil
}

var _ VectorStore = (*WeaviateStore)(nil)

// parseGraphQLResponse converts Weaviate's dynamic GraphQL response into a
// typed struct by round-tripping through JSON.
func parseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("GraphQL error: %s", resp.Errors[0].Message)
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling response data: %w", err)
	}
	var parsed T
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshaling response data: %w", err)
	}
	return &parsed, nil
}
