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

	"github.com/pkoukk/tiktoken-go"

	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
)

// TokenCounter estimates prompt and completion token counts locally so the
// gateway can attribute usage and cost without waiting on provider billing.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter builds a counter for the given model. Models unknown to
// the tokenizer registry fall back to the cl100k_base encoding, which keeps
// estimates in the right ballpark for chat-family models.
func NewTokenCounter(model string) (*TokenCounter, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		slog.Warn("No tokenizer registered for model, falling back to cl100k_base", "model", model)
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("loading fallback encoding: %w", err)
		}
	}
	return &TokenCounter{encoding: enc}, nil
}

// CountText returns the token count of a single string.
func (c *TokenCounter) CountText(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

// CountMessages estimates the prompt size of a chat request. Each message
// costs a fixed 3-token framing overhead plus its encoded role and content,
// and the assistant reply priming adds 3 more.
func (c *TokenCounter) CountMessages(messages []datatypes.Message) int {
	total := 0
	for _, m := range messages {
		total += 3
		total += len(c.encoding.Encode(m.Role, nil, nil))
		total += len(c.encoding.Encode(m.Content, nil, nil))
	}
	total += 3
	return total
}
