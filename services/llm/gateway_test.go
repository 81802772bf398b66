// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wealthwarriors/wealthcoach/services/cache"
	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
)

// mockClient scripts Chat/ChatStream behavior per call.
type mockClient struct {
	model       string
	chatCalls   int
	streamCalls int

	chatFn   func(call int) (string, error)
	streamFn func(call int, callback StreamCallback) error
}

func (m *mockClient) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	m.chatCalls++
	return m.chatFn(m.chatCalls)
}

func (m *mockClient) ChatStream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) error {
	m.streamCalls++
	return m.streamFn(m.streamCalls, callback)
}

func (m *mockClient) ModelName() string {
	if m.model == "" {
		return "mock-model"
	}
	return m.model
}

func newTestGateway(t *testing.T, client LLMClient, withCache bool) *Gateway {
	t.Helper()
	var respCache *cache.ResponseCache
	if withCache {
		db, err := cache.OpenInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		respCache = cache.NewResponseCache(cache.NewBadgerStore(db), client.ModelName(), 0)
	}
	g := NewGateway(client, respCache, nil, nil)
	g.baseDelay = time.Millisecond
	g.maxDelay = 2 * time.Millisecond
	return g
}

func testMessages() []datatypes.Message {
	return []datatypes.Message{
		{Role: datatypes.RoleSystem, Content: "You are a financial advisor."},
		{Role: datatypes.RoleUser, Content: "What is an index fund?"},
	}
}

func TestGateway_Complete(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "An index fund tracks a market index.", nil
	}}
	g := newTestGateway(t, client, false)

	result, err := g.Complete(context.Background(), testMessages(), GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "An index fund tracks a market index.", result.Content)
	assert.False(t, result.Cached)
	assert.Equal(t, 1, client.chatCalls)
}

func TestGateway_Complete_CacheHit(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "first answer", nil
	}}
	g := newTestGateway(t, client, true)
	ctx := context.Background()

	first, err := g.Complete(ctx, testMessages(), GenerationParams{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := g.Complete(ctx, testMessages(), GenerationParams{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 1, client.chatCalls, "cache hit must not call the provider")
}

func TestGateway_Complete_RetriesTransientErrors(t *testing.T) {
	client := &mockClient{chatFn: func(call int) (string, error) {
		if call < 3 {
			return "", &ProviderError{StatusCode: 503, Message: "overloaded", Retryable: true}
		}
		return "recovered", nil
	}}
	g := newTestGateway(t, client, false)

	result, err := g.Complete(context.Background(), testMessages(), GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, 3, client.chatCalls)
}

func TestGateway_Complete_NoRetryOnPermanentError(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "", &ProviderError{StatusCode: 400, Message: "bad request", Retryable: false}
	}}
	g := newTestGateway(t, client, false)

	_, err := g.Complete(context.Background(), testMessages(), GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 1, client.chatCalls)
}

func TestGateway_Complete_RetryExhaustion(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "", &ProviderError{StatusCode: 500, Message: "boom", Retryable: true}
	}}
	g := newTestGateway(t, client, false)

	_, err := g.Complete(context.Background(), testMessages(), GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, 3, client.chatCalls)

	var provErr *ProviderError
	assert.True(t, errors.As(err, &provErr))
}

func TestGateway_Stream_Accumulates(t *testing.T) {
	client := &mockClient{streamFn: func(_ int, callback StreamCallback) error {
		for _, tok := range []string{"Index ", "funds ", "diversify."} {
			if err := callback(StreamEvent{Type: StreamEventToken, Content: tok}); err != nil {
				return err
			}
		}
		return callback(StreamEvent{Type: StreamEventDone})
	}}
	g := newTestGateway(t, client, false)

	var events []StreamEvent
	result, err := g.Stream(context.Background(), testMessages(), GenerationParams{}, func(e StreamEvent) error {
		events = append(events, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Index funds diversify.", result.Content)
	require.Len(t, events, 4)
	assert.Equal(t, StreamEventDone, events[3].Type)
}

func TestGateway_Stream_RetriesBeforeFirstToken(t *testing.T) {
	client := &mockClient{streamFn: func(call int, callback StreamCallback) error {
		if call == 1 {
			return &ProviderError{StatusCode: 502, Message: "bad gateway", Retryable: true}
		}
		if err := callback(StreamEvent{Type: StreamEventToken, Content: "ok"}); err != nil {
			return err
		}
		return callback(StreamEvent{Type: StreamEventDone})
	}}
	g := newTestGateway(t, client, false)

	result, err := g.Stream(context.Background(), testMessages(), GenerationParams{}, func(StreamEvent) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
	assert.Equal(t, 2, client.streamCalls)
}

func TestGateway_Stream_NoRetryAfterFirstToken(t *testing.T) {
	client := &mockClient{streamFn: func(_ int, callback StreamCallback) error {
		if err := callback(StreamEvent{Type: StreamEventToken, Content: "partial"}); err != nil {
			return err
		}
		return &ProviderError{StatusCode: 503, Message: "died mid-stream", Retryable: true}
	}}
	g := newTestGateway(t, client, false)

	_, err := g.Stream(context.Background(), testMessages(), GenerationParams{}, func(StreamEvent) error { return nil })
	require.Error(t, err)
	assert.Equal(t, 1, client.streamCalls, "must not replay tokens the client already saw")
}

func TestGateway_Stats(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "answer", nil
	}}
	g := newTestGateway(t, client, true)
	ctx := context.Background()

	_, err := g.Complete(ctx, testMessages(), GenerationParams{})
	require.NoError(t, err)
	_, err = g.Complete(ctx, testMessages(), GenerationParams{})
	require.NoError(t, err)

	stats := g.Stats()
	assert.Equal(t, int64(2), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.CacheHits)
	assert.InDelta(t, 0.5, stats.CacheHitRate, 0.001)
	assert.Equal(t, int64(0), stats.Errors)
}

func TestGateway_Stats_CountsErrors(t *testing.T) {
	client := &mockClient{chatFn: func(int) (string, error) {
		return "", &ProviderError{StatusCode: 401, Message: "unauthorized", Retryable: false}
	}}
	g := newTestGateway(t, client, false)

	_, err := g.Complete(context.Background(), testMessages(), GenerationParams{})
	require.Error(t, err)
	assert.Equal(t, int64(1), g.Stats().Errors)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&ProviderError{Retryable: true}))
	assert.False(t, isRetryable(&ProviderError{Retryable: false}))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.False(t, isRetryable(errors.New("plain error")))
}
