// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when token verification fails.
// Implementations should wrap this error with additional context:
//
//	if !validToken {
//	    return nil, fmt.Errorf("token expired: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// verification. UserID is always populated; the other fields depend on the
// identity provider.
type AuthInfo struct {
	// UserID is the unique identifier for the authenticated user.
	// Never empty on a successful Validate.
	UserID string

	// Email is the user's email address, when the provider supplies one.
	Email string

	// Claims holds additional token claims the provider chose to expose.
	Claims map[string]string
}

// AuthProvider validates authentication tokens and returns user identity.
//
// The chat core calls Validate exactly once per WebSocket connection (for
// the in-band authenticate message) and once per HTTP chat request (for the
// Authorization header). Implementations must be safe for concurrent use.
//
// The token format is implementation-specific: a JWT, a session ID, or an
// API key. Verification failures must return ErrUnauthorized (possibly
// wrapped); other errors indicate infrastructure problems.
type AuthProvider interface {
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// NopAuthProvider accepts every token as a fixed local user. It exists so
// the service runs without identity infrastructure; do not deploy it in
// front of real users.
type NopAuthProvider struct{}

// Validate always succeeds with UserID "local-user". The token is ignored.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: "local-user"}, nil
}

// StaticAuthProvider maps exact token strings to user IDs. Intended for
// tests and local development.
type StaticAuthProvider struct {
	// Tokens maps token -> user ID.
	Tokens map[string]string
}

// Validate looks the token up in the static table.
func (p *StaticAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	userID, ok := p.Tokens[token]
	if !ok {
		return nil, ErrUnauthorized
	}
	return &AuthInfo{UserID: userID}, nil
}

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*StaticAuthProvider)(nil)
)
