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
	"log/slog"
	"time"
)

// DefaultResponseTTL bounds how long a generated answer is reused.
const DefaultResponseTTL = time.Hour

// ResponseCache maps conversation context to generated text so repeated
// queries skip the LLM call entirely.
//
// Two key shapes exist:
//
//   - MessagesKey: hash of the full ordered message list, used by the
//     buffered completion path.
//   - TurnKey: (user, conversation hash, message hash), used by the
//     WebSocket turn path where the session already maintains a history
//     digest.
//
// Same best-effort semantics as EmbeddingCache: miss and failure are
// indistinguishable to callers.
type ResponseCache struct {
	store Store
	model string
	ttl   time.Duration
}

// NewResponseCache creates a ResponseCache for the given model identifier.
// ttl <= 0 selects DefaultResponseTTL.
func NewResponseCache(store Store, model string, ttl time.Duration) *ResponseCache {
	if ttl <= 0 {
		ttl = DefaultResponseTTL
	}
	return &ResponseCache{store: store, model: model, ttl: ttl}
}

// MessagesKey derives a key from the canonical serialized message list
// (system prompt + history + current user message). Callers marshal the
// ordered list themselves so this package stays ignorant of message types.
func (c *ResponseCache) MessagesKey(serializedMessages []byte) string {
	sum := sha256.Sum256(serializedMessages)
	return "llm:" + c.model + ":" + hex.EncodeToString(sum[:])
}

// TurnKey derives a key from the user identity, the session's conversation
// hash, and the current message content. Identical recent context plus an
// identical message yields a hit; any change to one component changes the
// key.
func (c *ResponseCache) TurnKey(userID, conversationHash, message string) string {
	msgSum := sha256.Sum256([]byte(message))
	return "llm:" + c.model + ":chat:" + userID + ":" + conversationHash + ":" + hex.EncodeToString(msgSum[:])
}

// Get returns the cached response for key, or false on a miss. Backend
// failures are misses.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("response cache get failed", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	return string(raw), true
}

// Put stores content under key. Failures are logged, not returned.
func (c *ResponseCache) Put(ctx context.Context, key, content string) {
	if err := c.store.Set(ctx, key, []byte(content), c.ttl); err != nil {
		slog.Warn("response cache put failed", "error", err)
	}
}

// Model returns the model identifier baked into this cache's keys.
func (c *ResponseCache) Model() string {
	return c.model
}
