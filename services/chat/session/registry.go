// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"errors"
	"sync"
)

// MaxConnectionsPerUser caps concurrent WebSocket connections per user.
const MaxConnectionsPerUser = 3

// ErrTooManyConnections is returned by Add when the user is at the limit.
var ErrTooManyConnections = errors.New("too many concurrent connections")

// Registry tracks live connections per user.
type Registry struct {
	mu    sync.Mutex
	conns map[string]map[string]struct{}
	limit int
}

// NewRegistry creates a registry with the default per-user limit.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]map[string]struct{}),
		limit: MaxConnectionsPerUser,
	}
}

// Add registers a connection for userID, failing with ErrTooManyConnections
// if the user is already at the limit.
func (r *Registry) Add(userID, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket := r.conns[userID]
	if len(bucket) >= r.limit {
		return ErrTooManyConnections
	}
	if bucket == nil {
		bucket = make(map[string]struct{})
		r.conns[userID] = bucket
	}
	bucket[connID] = struct{}{}
	return nil
}

// Remove unregisters a connection. Unknown connections are a no-op, so
// cleanup paths can call it unconditionally.
func (r *Registry) Remove(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(bucket, connID)
	if len(bucket) == 0 {
		delete(r.conns, userID)
	}
}

// Count reports the live connections for userID.
func (r *Registry) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns[userID])
}
