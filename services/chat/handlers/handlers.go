// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the chat service's HTTP and WebSocket
// endpoints: the streaming WebSocket chat, the buffered HTTP chat, and the
// gateway statistics endpoint.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wealthwarriors/wealthcoach/pkg/extensions"
	"github.com/wealthwarriors/wealthcoach/services/chat/session"
	"github.com/wealthwarriors/wealthcoach/services/llm"
	"github.com/wealthwarriors/wealthcoach/services/rag"
)

// basePersona is the system prompt every conversation starts from. Profile
// context and retrieved documents are appended per turn.
const basePersona = `You are WealthCoach AI, a knowledgeable and supportive personal finance advisor.
Give practical, actionable guidance on budgeting, saving, investing, debt, and retirement planning.
Be concise and concrete. When you rely on provided reference material, ground your answer in it.
You are not a licensed financial advisor; for major decisions, recommend consulting a professional.`

// defaultAuthTimeout is how long a WebSocket client has to send its
// authenticate frame before the connection is closed.
const defaultAuthTimeout = 30 * time.Second

// Deps carries the collaborators the chat endpoints need. Retriever may be
// nil, which disables retrieval augmentation entirely.
type Deps struct {
	Gateway   *llm.Gateway
	Retriever *rag.Retriever
	Auth      extensions.AuthProvider
	Profiles  extensions.ProfileStore
	Messages  extensions.MessageStore
	Registry  *session.Registry

	// AuthTimeout bounds the wait for the authenticate frame; zero means
	// the default of 30 seconds.
	AuthTimeout time.Duration

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) authTimeout() time.Duration {
	if d.AuthTimeout > 0 {
		return d.AuthTimeout
	}
	return defaultAuthTimeout
}

// buildSystemPrompt assembles the per-turn system message from the persona,
// the user's profile context, and retrieved document context.
func buildSystemPrompt(profileContext string, retrieved rag.RetrievalResult) string {
	var b strings.Builder
	b.WriteString(basePersona)

	if profileContext != "" {
		b.WriteString("\n\nAbout this user:\n")
		b.WriteString(profileContext)
	}
	if !retrieved.Empty() {
		b.WriteString("\n\nReference material:\n")
		b.WriteString(retrieved.ContextText)
	}
	return b.String()
}

// retrieve runs retrieval when a retriever is configured, degrading to an
// empty result otherwise.
func (d *Deps) retrieve(ctx context.Context, query string) rag.RetrievalResult {
	if d.Retriever == nil {
		return rag.RetrievalResult{}
	}
	result, err := d.Retriever.Retrieve(ctx, query)
	if err != nil {
		slog.Warn("Retrieval failed", "error", err)
		return rag.RetrievalResult{}
	}
	return result
}

// persistTurn appends the user and assistant messages of a completed turn
// to the message store in the background. Persistence failures are logged
// and never surfaced to the user.
func (d *Deps) persistTurn(sessionID, userMessage, assistantMessage string, metadata map[string]string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := d.Messages.Append(ctx, sessionID, "user", userMessage, metadata); err != nil {
			slog.Warn("Failed to persist user message", "session_id", sessionID, "error", err)
			return
		}
		if err := d.Messages.Append(ctx, sessionID, "assistant", assistantMessage, metadata); err != nil {
			slog.Warn("Failed to persist assistant message", "session_id", sessionID, "error", err)
		}
	}()
}

// loadProfile fetches the user's profile context, degrading to empty on
// failure so a profile store outage never blocks chat.
func (d *Deps) loadProfile(ctx context.Context, userID string) string {
	profile, err := d.Profiles.LoadProfile(ctx, userID)
	if err != nil {
		slog.Warn("Failed to load user profile", "user_id", userID, "error", err)
		return ""
	}
	if !profile.HasProfile {
		return ""
	}
	return profile.Context
}

// genericTurnFailure is the only error text shown to end users for a failed
// turn. Provider details stay in the logs.
const genericTurnFailure = "Sorry, I could not generate a response right now. Please try again."

func turnMetadata(transport string, cached bool) map[string]string {
	return map[string]string{
		"transport": transport,
		"cached":    fmt.Sprintf("%t", cached),
	}
}
