// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session tracks per-connection conversation state and enforces
// the per-user concurrent connection limit.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
)

// MaxHistoryTurns bounds the rolling history window. Older messages fall
// off so long conversations keep a stable prompt size.
const MaxHistoryTurns = 10

// Session is the in-memory state of one WebSocket connection. It lives
// exactly as long as the connection; durable history belongs to the
// message store.
type Session struct {
	ConnID         string
	UserID         string
	ProfileContext string
	ConnectedAt    time.Time

	mu           sync.Mutex
	history      []datatypes.Message
	messageCount int
}

// New creates a session for an authenticated connection.
func New(connID, userID, profileContext string, now time.Time) *Session {
	return &Session{
		ConnID:         connID,
		UserID:         userID,
		ProfileContext: profileContext,
		ConnectedAt:    now,
	}
}

// AddMessage appends one message to the rolling history, evicting the
// oldest entries beyond MaxHistoryTurns.
func (s *Session) AddMessage(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, datatypes.Message{Role: role, Content: content})
	if len(s.history) > MaxHistoryTurns {
		s.history = s.history[len(s.history)-MaxHistoryTurns:]
	}
	s.messageCount++
}

// History returns a copy of the current history window.
func (s *Session) History() []datatypes.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]datatypes.Message, len(s.history))
	copy(out, s.history)
	return out
}

// MessageCount reports how many messages the session has seen in total,
// including ones evicted from the window.
func (s *Session) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messageCount
}

// ConversationHash fingerprints the current history window. Two sessions
// with identical visible history produce the same hash, which makes it
// usable as a response cache key component.
func (s *Session) ConversationHash() string {
	history := s.History()
	if len(history) == 0 {
		return "empty"
	}
	serialized, err := json.Marshal(history)
	if err != nil {
		return "empty"
	}
	sum := sha256.Sum256(serialized)
	return hex.EncodeToString(sum[:])
}
