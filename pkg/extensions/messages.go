// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"sync"
	"time"
)

// StoredMessage is one durably persisted conversation turn.
type StoredMessage struct {
	SessionID string
	Role      string
	Content   string
	Metadata  map[string]string
	CreatedAt time.Time
}

// MessageStore persists conversation history durably.
//
// Append is called after each completed chat turn, usually from a goroutine
// so persistence never blocks token delivery; failures are logged by the
// caller, not surfaced to the end user. History supports the HTTP chat
// endpoint's session continuation and returns the most recent messages in
// chronological order. Implementations must be safe for concurrent use.
type MessageStore interface {
	Append(ctx context.Context, sessionID, role, content string, metadata map[string]string) error
	History(ctx context.Context, sessionID string, limit int) ([]StoredMessage, error)
}

// MemoryMessageStore keeps history in process memory. It backs standalone
// deployments and tests; anything durable should live behind a real store.
type MemoryMessageStore struct {
	mu       sync.Mutex
	sessions map[string][]StoredMessage
	now      func() time.Time
}

// NewMemoryMessageStore creates an empty MemoryMessageStore.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{
		sessions: make(map[string][]StoredMessage),
		now:      time.Now,
	}
}

// Append stores the turn at the end of the session's history.
func (s *MemoryMessageStore) Append(_ context.Context, sessionID, role, content string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], StoredMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: s.now(),
	})
	return nil
}

// History returns up to limit of the most recent messages, oldest first.
// limit <= 0 returns the full history.
func (s *MemoryMessageStore) History(_ context.Context, sessionID string, limit int) ([]StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.sessions[sessionID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]StoredMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

var _ MessageStore = (*MemoryMessageStore)(nil)
