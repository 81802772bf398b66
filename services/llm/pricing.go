// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelPrice holds per-1K-token prices in USD for one model.
type ModelPrice struct {
	PromptPer1K     float64 `yaml:"prompt_per_1k"`
	CompletionPer1K float64 `yaml:"completion_per_1k"`
}

// PriceTable maps model name to its price entry.
type PriceTable map[string]ModelPrice

// PriceFunc converts token counts into an estimated USD cost.
type PriceFunc func(model string, promptTokens, completionTokens int) float64

// DefaultPriceTable carries the built-in prices. Deployments override it
// with a YAML file via LoadPriceTable when provider pricing shifts.
var DefaultPriceTable = PriceTable{
	"gpt-4o-mini": {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
	"gpt-4o":      {PromptPer1K: 0.0025, CompletionPer1K: 0.01},
}

// Estimate returns the USD cost for the given usage, or 0 for a model the
// table does not know. Unknown models are not an error: cost attribution is
// advisory and must never fail a request.
func (t PriceTable) Estimate(model string, promptTokens, completionTokens int) float64 {
	price, ok := t[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*price.PromptPer1K +
		float64(completionTokens)/1000*price.CompletionPer1K
}

// LoadPriceTable reads a YAML price file of the form:
//
//	gpt-4o-mini:
//	  prompt_per_1k: 0.00015
//	  completion_per_1k: 0.0006
//
// Entries merge over the defaults, so a partial file only overrides the
// models it names.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading price file: %w", err)
	}
	var loaded PriceTable
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing price file %s: %w", path, err)
	}

	merged := make(PriceTable, len(DefaultPriceTable)+len(loaded))
	for model, price := range DefaultPriceTable {
		merged[model] = price
	}
	for model, price := range loaded {
		merged[model] = price
	}
	slog.Info("Loaded model price table", "path", path, "models", len(loaded))
	return merged, nil
}
