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

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// FinanceDocumentClassName is the Weaviate class holding the knowledge
// base: articles and guides on budgeting, investing, debt, and retirement.
const FinanceDocumentClassName = "FinanceDocument"

// FinanceDocumentSchema returns the class definition. Vectorizer is "none"
// because embeddings are computed client-side and supplied with each object.
func FinanceDocumentSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       FinanceDocumentClassName,
		Description: "Personal finance knowledge base chunks",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "content",
				DataType:     []string{"text"},
				Description:  "Chunk text",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Originating document title or URL",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Topic category: budgeting, investing, debt, retirement, taxes",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureSchema creates the FinanceDocument class if it does not exist.
// Idempotent.
func EnsureSchema(ctx context.Context, client *weaviate.Client) error {
	_, err := client.Schema().ClassGetter().WithClassName(FinanceDocumentClassName).Do(ctx)
	if err == nil {
		slog.Info("FinanceDocument schema already exists")
		return nil
	}

	slog.Info("Creating FinanceDocument schema")
	if err := client.Schema().ClassCreator().WithClass(FinanceDocumentSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating FinanceDocument schema: %w", err)
	}
	return nil
}
