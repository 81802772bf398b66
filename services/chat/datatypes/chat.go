// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the wire types for the chat service: chat
// messages, WebSocket frames in both directions, and the HTTP chat
// request/response shapes.
package datatypes

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Message is one chat turn in provider format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TokenUsage records provider token consumption for one completion, plus
// the locally estimated cost derived from a price function.
type TokenUsage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	EstimatedCost    float64 `json:"estimated_cost"`
}

// =============================================================================
// Client frames (WebSocket, client -> server)
// =============================================================================

// Client frame discriminator values.
const (
	ClientTypeAuthenticate = "authenticate"
	ClientTypeMessage      = "message"
	ClientTypePing         = "ping"
)

// ErrUnknownFrameType is returned by ParseClientFrame for an unrecognized
// type discriminator.
var ErrUnknownFrameType = errors.New("unknown frame type")

// ClientFrame is the tagged union of frames a client may send. Concrete
// types: AuthenticateFrame, ChatMessageFrame, PingFrame.
type ClientFrame interface {
	clientFrame()
}

// AuthenticateFrame carries the bearer token for in-band authentication.
type AuthenticateFrame struct {
	Token string
}

// ChatMessageFrame carries one user chat message.
type ChatMessageFrame struct {
	Content string
}

// PingFrame is a liveness probe; the server answers with a pong event.
type PingFrame struct{}

func (AuthenticateFrame) clientFrame() {}
func (ChatMessageFrame) clientFrame()  {}
func (PingFrame) clientFrame()         {}

// rawClientFrame is the superset shape frames are decoded into before
// dispatch on the type discriminator.
type rawClientFrame struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	Content string `json:"content"`
}

// ParseClientFrame decodes a client frame and rejects unknown shapes at the
// boundary, so handler code never threads raw JSON maps around. Semantic
// validation (empty message, missing token) stays with the caller, which
// knows whether the failure is a protocol close or an in-band error.
func ParseClientFrame(data []byte) (ClientFrame, error) {
	var raw rawClientFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch raw.Type {
	case ClientTypeAuthenticate:
		return AuthenticateFrame{Token: raw.Token}, nil
	case ClientTypeMessage:
		return ChatMessageFrame{Content: raw.Content}, nil
	case ClientTypePing:
		return PingFrame{}, nil
	case "":
		return nil, fmt.Errorf("frame missing type discriminator: %w", ErrUnknownFrameType)
	default:
		return nil, fmt.Errorf("frame type %q: %w", raw.Type, ErrUnknownFrameType)
	}
}

// =============================================================================
// Server events (WebSocket, server -> client)
// =============================================================================

// Server event discriminator values.
const (
	EventTypeConnected = "connected"
	EventTypeResponse  = "response"
	EventTypeError     = "error"
	EventTypePong      = "pong"
)

// ConnectedEvent is emitted once after successful authentication.
type ConnectedEvent struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

// ResponseEvent carries generated text. During streaming, Content holds the
// cumulative text so far and Done is false; the final event has Done true.
// Cached responses arrive as a single event with both Done and Cached true.
type ResponseEvent struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Done      bool   `json:"done"`
	Cached    bool   `json:"cached"`
	Timestamp string `json:"timestamp"`
}

// ErrorEvent reports a failed turn in-band; the connection stays open.
// Error holds a short, non-technical message only.
type ErrorEvent struct {
	Type      string `json:"type"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// PongEvent answers a ping frame.
type PongEvent struct {
	Type string `json:"type"`
}

// NewConnectedEvent builds a connected event stamped at now.
func NewConnectedEvent(userID string, now time.Time) ConnectedEvent {
	return ConnectedEvent{Type: EventTypeConnected, UserID: userID, Timestamp: now.UTC().Format(time.RFC3339)}
}

// NewResponseEvent builds a response event stamped at now.
func NewResponseEvent(content string, done, cached bool, now time.Time) ResponseEvent {
	return ResponseEvent{
		Type:      EventTypeResponse,
		Content:   content,
		Done:      done,
		Cached:    cached,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}

// NewErrorEvent builds an error event stamped at now.
func NewErrorEvent(message string, now time.Time) ErrorEvent {
	return ErrorEvent{Type: EventTypeError, Error: message, Timestamp: now.UTC().Format(time.RFC3339)}
}

// NewPongEvent builds a pong event.
func NewPongEvent() PongEvent {
	return PongEvent{Type: EventTypePong}
}

// =============================================================================
// HTTP chat types
// =============================================================================

// ChatRequest is the buffered HTTP chat request body. SessionID optionally
// continues a durably stored conversation; UseRAG defaults to true when the
// retriever is configured.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
	UseRAG    *bool  `json:"use_rag,omitempty"`
}

// ChatResponse is the buffered HTTP chat response body.
type ChatResponse struct {
	Response  string      `json:"response"`
	SessionID string      `json:"session_id"`
	Cached    bool        `json:"cached"`
	Sources   []string    `json:"sources,omitempty"`
	Usage     *TokenUsage `json:"usage,omitempty"`
}
