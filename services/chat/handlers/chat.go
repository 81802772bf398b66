// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wealthwarriors/wealthcoach/pkg/validation"
	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
	"github.com/wealthwarriors/wealthcoach/services/chat/middleware"
	"github.com/wealthwarriors/wealthcoach/services/chat/observability"
	"github.com/wealthwarriors/wealthcoach/services/llm"
	"github.com/wealthwarriors/wealthcoach/services/rag"
)

// historyLimit is how many stored messages a continued session contributes
// to the prompt, matching the WebSocket rolling window.
const historyLimit = 10

// HandleChat returns the buffered HTTP chat endpoint. It serves clients
// that cannot hold a WebSocket open: the whole response is generated, then
// returned in one JSON body. Passing session_id continues a durably stored
// conversation.
func HandleChat(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		authInfo := middleware.GetAuthInfo(c)
		if authInfo == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req datatypes.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
			return
		}
		if err := validation.ValidateChatMessage(req.Message); err != nil {
			observability.RecordMessage("http", "rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		message := strings.TrimSpace(req.Message)

		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = uuid.New().String()
		} else if err := validation.ValidateSessionID(sessionID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx := c.Request.Context()
		start := deps.now()

		history := loadHistory(deps, c, sessionID)

		var retrieved rag.RetrievalResult
		if req.UseRAG == nil || *req.UseRAG {
			retrieved = deps.retrieve(ctx, message)
		}

		profileContext := deps.loadProfile(ctx, authInfo.UserID)
		systemPrompt := buildSystemPrompt(profileContext, retrieved)

		messages := []datatypes.Message{{Role: datatypes.RoleSystem, Content: systemPrompt}}
		messages = append(messages, history...)
		messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: message})

		result, err := deps.Gateway.Complete(ctx, messages, llm.GenerationParams{})
		if err != nil {
			slog.Error("HTTP chat turn failed", "session_id", sessionID, "error", err)
			observability.RecordError("llm")
			observability.RecordMessage("http", "error")
			c.JSON(http.StatusBadGateway, gin.H{"error": genericTurnFailure})
			return
		}

		if result.Cached {
			observability.RecordCacheHit("http")
		}
		observability.RecordMessage("http", "ok")
		observability.RecordTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)
		observability.RecordTurnDuration("http", deps.now().Sub(start).Seconds())

		deps.persistTurn(sessionID, message, result.Content, turnMetadata("http", result.Cached))

		c.JSON(http.StatusOK, datatypes.ChatResponse{
			Response:  result.Content,
			SessionID: sessionID,
			Cached:    result.Cached,
			Sources:   retrieved.Sources,
			Usage:     &result.Usage,
		})
	}
}

// loadHistory reads the session's stored history. Failures degrade to an
// empty history; a fresh conversation beats a failed request.
func loadHistory(deps *Deps, c *gin.Context, sessionID string) []datatypes.Message {
	stored, err := deps.Messages.History(c.Request.Context(), sessionID, historyLimit)
	if err != nil {
		slog.Warn("Failed to load session history", "session_id", sessionID, "error", err)
		observability.RecordError("persistence")
		return nil
	}
	messages := make([]datatypes.Message, 0, len(stored))
	for _, m := range stored {
		messages = append(messages, datatypes.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}

// HandleStats returns the gateway statistics endpoint.
func HandleStats(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Gateway.Stats())
	}
}
