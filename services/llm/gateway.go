// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wealthwarriors/wealthcoach/services/cache"
	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 2 * time.Second
	defaultMaxDelay   = 10 * time.Second
)

// CompletionResult is a finished completion with its usage accounting.
type CompletionResult struct {
	Content      string
	Usage        datatypes.TokenUsage
	FinishReason string
	Cached       bool
}

// GatewayStats is a point-in-time snapshot of gateway activity.
type GatewayStats struct {
	TotalRequests         int64   `json:"total_requests"`
	CacheHits             int64   `json:"cache_hits"`
	CacheHitRate          float64 `json:"cache_hit_rate"`
	TotalPromptTokens     int64   `json:"total_prompt_tokens"`
	TotalCompletionTokens int64   `json:"total_completion_tokens"`
	TotalTokens           int64   `json:"total_tokens"`
	TotalCost             float64 `json:"total_cost"`
	AverageLatencyMs      float64 `json:"average_latency_ms"`
	Errors                int64   `json:"errors"`
}

// Gateway fronts an LLMClient with response caching, retry with exponential
// backoff, token accounting, and usage statistics. All completions in the
// service go through it so that cost and cache behavior stay observable in
// one place.
type Gateway struct {
	client     LLMClient
	cache      *cache.ResponseCache
	counter    *TokenCounter
	price      PriceFunc
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	tracer     trace.Tracer

	mu             sync.Mutex
	totalRequests  int64
	cacheHits      int64
	promptTokens   int64
	completionToks int64
	totalCost      float64
	totalLatency   time.Duration
	latencySamples int64
	errorCount     int64
}

// NewGateway builds a gateway. responseCache may be nil, which disables
// caching; price may be nil, which disables cost estimation.
func NewGateway(client LLMClient, responseCache *cache.ResponseCache, counter *TokenCounter, price PriceFunc) *Gateway {
	return &Gateway{
		client:     client,
		cache:      responseCache,
		counter:    counter,
		price:      price,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
		tracer:     otel.Tracer("wealthcoach.llm"),
	}
}

// ModelName reports the backend model the gateway fronts.
func (g *Gateway) ModelName() string {
	return g.client.ModelName()
}

// ResponseCache exposes the gateway's cache for callers that build their
// own keys, such as the per-turn WebSocket cache. Nil when caching is off.
func (g *Gateway) ResponseCache() *cache.ResponseCache {
	return g.cache
}

// Complete runs a buffered completion. The full message list is the cache
// key, so any change to system prompt, history, or user message is a
// distinct entry.
func (g *Gateway) Complete(ctx context.Context, messages []datatypes.Message, params GenerationParams) (*CompletionResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.complete",
		trace.WithAttributes(attribute.String("llm.model", g.client.ModelName())))
	defer span.End()

	start := time.Now()

	var cacheKey string
	if g.cache != nil {
		serialized, err := json.Marshal(messages)
		if err == nil {
			cacheKey = g.cache.MessagesKey(serialized)
			if content, ok := g.cache.Get(ctx, cacheKey); ok {
				span.SetAttributes(attribute.Bool("llm.cache_hit", true))
				result := g.buildResult(messages, content, "cached", true)
				g.recordRequest(result, time.Since(start), true, nil)
				return result, nil
			}
		}
	}

	content, err := g.chatWithRetry(ctx, messages, params)
	if err != nil {
		g.recordRequest(nil, time.Since(start), false, err)
		return nil, err
	}

	if g.cache != nil && cacheKey != "" {
		g.cache.Put(ctx, cacheKey, content)
	}

	result := g.buildResult(messages, content, "stop", false)
	g.recordRequest(result, time.Since(start), false, nil)
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", result.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", result.Usage.CompletionTokens),
	)
	return result, nil
}

// Stream runs a streaming completion, forwarding events to callback as they
// arrive and returning the accumulated result. Retries apply only while no
// token has been delivered; once the client has seen partial output a
// restart would replay text, so mid-stream failures propagate.
func (g *Gateway) Stream(ctx context.Context, messages []datatypes.Message, params GenerationParams, callback StreamCallback) (*CompletionResult, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.stream",
		trace.WithAttributes(attribute.String("llm.model", g.client.ModelName())))
	defer span.End()

	start := time.Now()
	retryDelay := g.baseDelay

	var accumulated string
	var tokenSeen bool

	wrapped := func(event StreamEvent) error {
		if event.Type == StreamEventToken {
			tokenSeen = true
			accumulated += event.Content
		}
		return callback(event)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying LLM stream", "attempt", attempt+1, "delay", retryDelay)
			select {
			case <-ctx.Done():
				g.recordRequest(nil, time.Since(start), false, ctx.Err())
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
			if retryDelay > g.maxDelay {
				retryDelay = g.maxDelay
			}
		}

		err := g.client.ChatStream(ctx, messages, params, wrapped)
		if err == nil {
			result := g.buildResult(messages, accumulated, "stop", false)
			g.recordRequest(result, time.Since(start), false, nil)
			span.SetAttributes(attribute.Int("llm.completion_tokens", result.Usage.CompletionTokens))
			return result, nil
		}

		lastErr = err
		if tokenSeen || !isRetryable(err) {
			break
		}
	}

	g.recordRequest(nil, time.Since(start), false, lastErr)
	return nil, fmt.Errorf("llm stream failed: %w", lastErr)
}

// chatWithRetry issues a buffered completion with exponential backoff on
// retryable provider errors.
func (g *Gateway) chatWithRetry(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	retryDelay := g.baseDelay
	var lastErr error

	for attempt := 0; attempt < g.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying LLM completion", "attempt", attempt+1, "delay", retryDelay)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
			if retryDelay > g.maxDelay {
				retryDelay = g.maxDelay
			}
		}

		content, err := g.client.Chat(ctx, messages, params)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return "", fmt.Errorf("llm completion failed after retries: %w", lastErr)
}

// buildResult assembles a CompletionResult with locally estimated usage.
// Counting locally keeps accounting uniform across buffered, streamed, and
// cached paths, none of which report provider-side usage the same way.
func (g *Gateway) buildResult(messages []datatypes.Message, content, finishReason string, cached bool) *CompletionResult {
	usage := datatypes.TokenUsage{}
	if g.counter != nil {
		usage.PromptTokens = g.counter.CountMessages(messages)
		usage.CompletionTokens = g.counter.CountText(content)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	if g.price != nil {
		usage.EstimatedCost = g.price(g.client.ModelName(), usage.PromptTokens, usage.CompletionTokens)
	}
	return &CompletionResult{
		Content:      content,
		Usage:        usage,
		FinishReason: finishReason,
		Cached:       cached,
	}
}

func (g *Gateway) recordRequest(result *CompletionResult, latency time.Duration, cacheHit bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.totalRequests++
	if cacheHit {
		g.cacheHits++
	}
	if err != nil {
		g.errorCount++
		return
	}
	if result != nil {
		g.promptTokens += int64(result.Usage.PromptTokens)
		g.completionToks += int64(result.Usage.CompletionTokens)
		g.totalCost += result.Usage.EstimatedCost
	}
	g.totalLatency += latency
	g.latencySamples++
}

// Stats returns a snapshot of cumulative gateway activity.
func (g *Gateway) Stats() GatewayStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	stats := GatewayStats{
		TotalRequests:         g.totalRequests,
		CacheHits:             g.cacheHits,
		TotalPromptTokens:     g.promptTokens,
		TotalCompletionTokens: g.completionToks,
		TotalTokens:           g.promptTokens + g.completionToks,
		TotalCost:             g.totalCost,
		Errors:                g.errorCount,
	}
	if g.totalRequests > 0 {
		stats.CacheHitRate = float64(g.cacheHits) / float64(g.totalRequests)
	}
	if g.latencySamples > 0 {
		stats.AverageLatencyMs = float64(g.totalLatency.Milliseconds()) / float64(g.latencySamples)
	}
	return stats
}

// isRetryable reports whether the gateway should retry after err.
func isRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return errors.Is(err, context.DeadlineExceeded)
}
