// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceTable_Estimate(t *testing.T) {
	table := PriceTable{
		"gpt-4o-mini": {PromptPer1K: 0.00015, CompletionPer1K: 0.0006},
	}

	cost := table.Estimate("gpt-4o-mini", 1000, 1000)
	assert.InDelta(t, 0.00075, cost, 1e-9)
}

func TestPriceTable_EstimateUnknownModel(t *testing.T) {
	assert.Zero(t, DefaultPriceTable.Estimate("some-future-model", 5000, 5000))
}

func TestLoadPriceTable_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.yaml")
	content := `gpt-4o-mini:
  prompt_per_1k: 0.0002
  completion_per_1k: 0.0008
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	table, err := LoadPriceTable(path)
	require.NoError(t, err)

	// Overridden entry.
	assert.Equal(t, 0.0002, table["gpt-4o-mini"].PromptPer1K)
	// Default entry survives.
	assert.Equal(t, DefaultPriceTable["gpt-4o"], table["gpt-4o"])
}

func TestLoadPriceTable_MissingFile(t *testing.T) {
	_, err := LoadPriceTable(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
