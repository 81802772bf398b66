// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseClientFrame_Authenticate(t *testing.T) {
	frame, err := ParseClientFrame([]byte(`{"type":"authenticate","token":"tok-123"}`))
	if err != nil {
		t.Fatalf("ParseClientFrame() error: %v", err)
	}
	auth, ok := frame.(AuthenticateFrame)
	if !ok {
		t.Fatalf("expected AuthenticateFrame, got %T", frame)
	}
	if auth.Token != "tok-123" {
		t.Errorf("Token = %q, want tok-123", auth.Token)
	}
}

func TestParseClientFrame_Message(t *testing.T) {
	frame, err := ParseClientFrame([]byte(`{"type":"message","content":"hello"}`))
	if err != nil {
		t.Fatalf("ParseClientFrame() error: %v", err)
	}
	msg, ok := frame.(ChatMessageFrame)
	if !ok {
		t.Fatalf("expected ChatMessageFrame, got %T", frame)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want hello", msg.Content)
	}
}

func TestParseClientFrame_Ping(t *testing.T) {
	frame, err := ParseClientFrame([]byte(`{"type":"ping"}`))
	if err != nil {
		t.Fatalf("ParseClientFrame() error: %v", err)
	}
	if _, ok := frame.(PingFrame); !ok {
		t.Fatalf("expected PingFrame, got %T", frame)
	}
}

func TestParseClientFrame_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		wantUnknown bool
	}{
		{"unknown type", `{"type":"subscribe"}`, true},
		{"missing type", `{"content":"hi"}`, true},
		{"not json", `{{{`, false},
		{"wrong shape", `[1,2,3]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseClientFrame([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrUnknownFrameType); got != tt.wantUnknown {
				t.Errorf("errors.Is(err, ErrUnknownFrameType) = %v, want %v (err: %v)", got, tt.wantUnknown, err)
			}
		})
	}
}

func TestResponseEventJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	event := NewResponseEvent("partial text", false, false, now)

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if decoded["type"] != "response" {
		t.Errorf("type = %v, want response", decoded["type"])
	}
	if decoded["content"] != "partial text" {
		t.Errorf("content = %v", decoded["content"])
	}
	if decoded["done"] != false || decoded["cached"] != false {
		t.Errorf("done/cached flags wrong: %v", decoded)
	}
	if decoded["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("timestamp = %v", decoded["timestamp"])
	}
}

func TestConnectedEventJSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(NewConnectedEvent("user-1", now))
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	want := `{"type":"connected","user_id":"user-1","timestamp":"2026-03-01T12:00:00Z"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
