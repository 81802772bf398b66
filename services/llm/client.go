// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"

	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
)

// GenerationParams are the per-request knobs passed through to the backend.
// Nil pointer fields mean "use the provider default".
type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// StreamEventType discriminates streaming events.
type StreamEventType string

const (
	// StreamEventToken carries one incremental text chunk.
	StreamEventToken StreamEventType = "token"

	// StreamEventDone marks the end of a successful stream.
	StreamEventDone StreamEventType = "done"

	// StreamEventError carries a mid-stream failure.
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one event delivered during streaming generation.
type StreamEvent struct {
	Type    StreamEventType
	Content string
	Err     error
}

// StreamCallback receives stream events in order. Returning a non-nil
// error aborts the stream; ChatStream propagates that error to its caller.
type StreamCallback func(StreamEvent) error

// LLMClient is the standard interface for any LLM backend.
type LLMClient interface {
	// Chat issues a buffered completion and returns the full response text.
	Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error)

	// ChatStream issues a streaming completion, invoking callback for each
	// token as it arrives, then once with StreamEventDone. The sequence is
	// finite and not restartable.
	ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error

	// ModelName reports the backend model identifier, used in cache keys
	// and cost accounting.
	ModelName() string
}

// ProviderError is a classified backend failure. Retryable errors
// (timeouts, 5xx, rate limits) are eligible for the gateway's backoff
// policy; everything else propagates immediately.
type ProviderError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm provider error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm provider error: %s", e.Message)
}

// IsRetryableStatusCode reports whether an HTTP status from the provider
// warrants a retry.
func IsRetryableStatusCode(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
