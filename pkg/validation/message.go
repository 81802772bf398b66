// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation for user-supplied chat
// content before it reaches cache keys, vector queries, or LLM providers.
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength bounds a single chat message. Longer inputs are rejected
// synchronously rather than truncated, so the user knows what was dropped.
const MaxMessageLength = 4000

// ValidateChatMessage checks a chat message for emptiness, length, encoding,
// and control characters.
//
// Valid messages:
//   - 1 to MaxMessageLength characters after trimming surrounding whitespace
//   - valid UTF-8
//   - no control characters other than newline and tab
//
// Returns an error describing the first violation found.
//
// Example:
//
//	if err := validation.ValidateChatMessage(req.Message); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateChatMessage(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if len(trimmed) > MaxMessageLength {
		return fmt.Errorf("message too long: %d characters (max %d)", len(trimmed), MaxMessageLength)
	}
	if !utf8.ValidString(trimmed) {
		return fmt.Errorf("message is not valid UTF-8")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return fmt.Errorf("message contains control characters")
		}
	}
	return nil
}

// ValidateSessionID checks an externally supplied session identifier.
// Session IDs are used as storage keys, so the character set is restricted
// to alphanumerics, hyphens, and underscores, max 64 characters.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if len(id) > 64 {
		return fmt.Errorf("session id too long: %d characters (max 64)", len(id))
	}
	for _, r := range id {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_'
		if !ok {
			return fmt.Errorf("session id contains invalid character %q", r)
		}
	}
	return nil
}
