// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability exposes Prometheus metrics for the chat service.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// connectionsTotal counts WebSocket connection attempts.
	// Labels: status (connected, auth_failed, auth_timeout, limit_exceeded)
	connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "connections_total",
		Help:      "Total WebSocket connection attempts by outcome",
	}, []string{"status"})

	// activeConnections tracks currently open authenticated connections.
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "active_connections",
		Help:      "Currently open authenticated WebSocket connections",
	})

	// messagesTotal counts processed chat turns.
	// Labels: transport (ws, http), status (ok, error, rejected)
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "messages_total",
		Help:      "Total chat turns processed by transport and outcome",
	}, []string{"transport", "status"})

	// cacheHitsTotal counts response cache hits.
	// Labels: transport (ws, http)
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "cache_hits_total",
		Help:      "Total chat turns answered from the response cache",
	}, []string{"transport"})

	// tokensTotal counts estimated tokens consumed.
	// Labels: kind (prompt, completion)
	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "tokens_total",
		Help:      "Estimated tokens consumed by kind",
	}, []string{"kind"})

	// timeToFirstToken measures latency until the first streamed token.
	timeToFirstToken = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "time_to_first_token_seconds",
		Help:      "Latency from turn start to first streamed token",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
	})

	// turnDuration measures full chat turn duration.
	// Labels: transport (ws, http)
	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "turn_duration_seconds",
		Help:      "Full chat turn duration by transport",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"transport"})

	// errorsTotal counts failures by component.
	// Labels: component (llm, retrieval, cache, protocol, persistence)
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wealthcoach",
		Subsystem: "chat",
		Name:      "errors_total",
		Help:      "Total errors by component",
	}, []string{"component"})
)

// Connection outcome labels.
const (
	ConnConnected     = "connected"
	ConnAuthFailed    = "auth_failed"
	ConnAuthTimeout   = "auth_timeout"
	ConnLimitExceeded = "limit_exceeded"
)

// RecordConnection records a WebSocket connection attempt outcome. For
// ConnConnected the active gauge rises; pair it with RecordDisconnect.
func RecordConnection(status string) {
	connectionsTotal.WithLabelValues(status).Inc()
	if status == ConnConnected {
		activeConnections.Inc()
	}
}

// RecordDisconnect marks an authenticated connection as closed.
func RecordDisconnect() {
	activeConnections.Dec()
}

// RecordMessage records one processed chat turn.
func RecordMessage(transport, status string) {
	messagesTotal.WithLabelValues(transport, status).Inc()
}

// RecordCacheHit records a turn answered from the response cache.
func RecordCacheHit(transport string) {
	cacheHitsTotal.WithLabelValues(transport).Inc()
}

// RecordTokens records estimated token consumption for one turn.
func RecordTokens(promptTokens, completionTokens int) {
	tokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	tokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordTimeToFirstToken records streaming first-token latency.
func RecordTimeToFirstToken(seconds float64) {
	timeToFirstToken.Observe(seconds)
}

// RecordTurnDuration records full turn duration.
func RecordTurnDuration(transport string, seconds float64) {
	turnDuration.WithLabelValues(transport).Observe(seconds)
}

// RecordError records a component failure.
func RecordError(component string) {
	errorsTotal.WithLabelValues(component).Inc()
}
