// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import "context"

// Profile is the user context injected into system prompts.
type Profile struct {
	// Context is a prose summary of the user's financial situation
	// (goals, income band, risk tolerance). Empty when HasProfile is false.
	Context string

	// HasProfile reports whether the user has completed profile setup.
	HasProfile bool
}

// ProfileStore loads user profile context.
//
// The chat core calls LoadProfile once per WebSocket connection at
// authentication time and caches the result in the session for the
// connection's lifetime; it is never re-queried mid-connection.
// Implementations must be safe for concurrent use.
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID string) (Profile, error)
}

// NopProfileStore reports no profile for every user.
type NopProfileStore struct{}

// LoadProfile returns an empty profile.
func (s *NopProfileStore) LoadProfile(_ context.Context, _ string) (Profile, error) {
	return Profile{}, nil
}

// StaticProfileStore serves fixed profile context per user. Intended for
// tests and local development.
type StaticProfileStore struct {
	// Profiles maps user ID -> profile context text.
	Profiles map[string]string
}

// LoadProfile returns the configured context, or an empty profile for
// unknown users.
func (s *StaticProfileStore) LoadProfile(_ context.Context, userID string) (Profile, error) {
	text, ok := s.Profiles[userID]
	if !ok {
		return Profile{}, nil
	}
	return Profile{Context: text, HasProfile: true}, nil
}

var (
	_ ProfileStore = (*NopProfileStore)(nil)
	_ ProfileStore = (*StaticProfileStore)(nil)
)
