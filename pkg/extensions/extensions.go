// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines the boundary interfaces the chat core consumes.
//
// The chat pipeline deliberately knows nothing about the surrounding web
// application: user accounts, JWT issuance, profile storage, and durable
// conversation history all live behind the interfaces in this package. The
// repository ships no-op and in-memory defaults so the service runs
// standalone; deployments inject real implementations via ServiceOptions.
//
// # Extension Categories
//
//   - auth.go: token verification (AuthProvider)
//   - profile.go: user profile context loading (ProfileStore)
//   - messages.go: durable conversation history (MessageStore)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use; multiple
// connection goroutines call them simultaneously.
package extensions

// ServiceOptions groups the external collaborators for service wiring.
//
// All fields are optional; nil values are replaced with defaults by
// DefaultOptions().
type ServiceOptions struct {
	// AuthProvider validates bearer tokens.
	// Default: NopAuthProvider (always returns a fixed local user).
	AuthProvider AuthProvider

	// ProfileStore loads per-user profile context for system prompts.
	// Default: NopProfileStore (no profile).
	ProfileStore ProfileStore

	// MessageStore persists conversation turns durably.
	// Default: NewMemoryMessageStore (process-local).
	MessageStore MessageStore
}

// DefaultOptions returns ServiceOptions with standalone defaults: every
// token is accepted as a local user, profiles are empty, and history lives
// in process memory.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider: &NopAuthProvider{},
		ProfileStore: &NopProfileStore{},
		MessageStore: NewMemoryMessageStore(),
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithProfiles returns a copy of opts with the given ProfileStore.
func (opts ServiceOptions) WithProfiles(store ProfileStore) ServiceOptions {
	opts.ProfileStore = store
	return opts
}

// WithMessages returns a copy of opts with the given MessageStore.
func (opts ServiceOptions) WithMessages(store MessageStore) ServiceOptions {
	opts.MessageStore = store
	return opts
}
