// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
	"github.com/wealthwarriors/wealthcoach/services/chat/middleware"
	"github.com/wealthwarriors/wealthcoach/services/llm"
)

func newHTTPRouter(deps *Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	authed := router.Group("/v1")
	authed.Use(middleware.AuthMiddleware(deps.Auth))
	authed.POST("/chat", HandleChat(deps))
	authed.GET("/chat/stats", HandleStats(deps))
	return router
}

func postChat(t *testing.T, router *gin.Engine, token string, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestHandleChat_Basic(t *testing.T) {
	deps := newTestDeps(t, &scriptedClient{tokens: []string{"Start with a simple budget."}})
	router := newHTTPRouter(deps)

	w := postChat(t, router, "tok-alice", map[string]any{"message": "How do I start budgeting?"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Start with a simple budget.", resp.Response)
	assert.NotEmpty(t, resp.SessionID)
	assert.False(t, resp.Cached)
	require.NotNil(t, resp.Usage)
}

func TestHandleChat_Unauthorized(t *testing.T) {
	deps := newTestDeps(t, &scriptedClient{tokens: []string{"x"}})
	router := newHTTPRouter(deps)

	w := postChat(t, router, "", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleChat_ValidationErrors(t *testing.T) {
	deps := newTestDeps(t, &scriptedClient{tokens: []string{"x"}})
	router := newHTTPRouter(deps)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing message", map[string]any{}},
		{"blank message", map[string]any{"message": "   "}},
		{"bad session id", map[string]any{"message": "hi", "session_id": "has spaces!"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postChat(t, router, "tok-alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestHandleChat_RepeatIsCached(t *testing.T) {
	client := &scriptedClient{tokens: []string{"Diversify across index funds."}}
	deps := newTestDeps(t, client)
	router := newHTTPRouter(deps)

	first := postChat(t, router, "tok-alice", map[string]any{"message": "Where should I invest?"})
	require.Equal(t, http.StatusOK, first.Code)

	second := postChat(t, router, "tok-alice", map[string]any{"message": "Where should I invest?"})
	require.Equal(t, http.StatusOK, second.Code)

	var resp datatypes.ChatResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, client.calls)
}

func TestHandleChat_SessionContinuation(t *testing.T) {
	client := &scriptedClient{tokens: []string{"Answer."}}
	deps := newTestDeps(t, client)
	router := newHTTPRouter(deps)

	w := postChat(t, router, "tok-alice", map[string]any{"message": "first question", "session_id": "sess-1"})
	require.Equal(t, http.StatusOK, w.Code)

	// Persistence runs in the background; wait for both turns to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		stored, err := deps.Messages.History(t.Context(), "sess-1", 0)
		require.NoError(t, err)
		if len(stored) == 2 {
			assert.Equal(t, "user", stored[0].Role)
			assert.Equal(t, "first question", stored[0].Content)
			assert.Equal(t, "assistant", stored[1].Role)
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stored history = %d messages, want 2", len(stored))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleChat_ProviderFailure(t *testing.T) {
	client := &scriptedClient{chatErr: &llm.ProviderError{StatusCode: 400, Message: "provider detail", Retryable: false}}
	deps := newTestDeps(t, client)
	router := newHTTPRouter(deps)

	w := postChat(t, router, "tok-alice", map[string]any{"message": "hello"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "provider detail")
}

func TestHandleStats(t *testing.T) {
	deps := newTestDeps(t, &scriptedClient{tokens: []string{"x"}})
	router := newHTTPRouter(deps)

	postChat(t, router, "tok-alice", map[string]any{"message": "hello"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/stats", nil)
	req.Header.Set("Authorization", "Bearer tok-alice")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats llm.GatewayStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRequests)
}
