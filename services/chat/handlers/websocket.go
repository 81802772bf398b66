// Copyright (C) 2025 Wealth Warriors (dev@wealthwarriors.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wealthwarriors/wealthcoach/pkg/validation"
	"github.com/wealthwarriors/wealthcoach/services/chat/datatypes"
	"github.com/wealthwarriors/wealthcoach/services/chat/observability"
	"github.com/wealthwarriors/wealthcoach/services/chat/session"
	"github.com/wealthwarriors/wealthcoach/services/llm"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// closeWithReason sends a close frame with a policy-violation code and
// reason text, then closes the connection.
func closeWithReason(ws *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = ws.Close()
}

// HandleChatWebSocket returns the streaming chat endpoint.
//
// Protocol: the client's first frame must be an authenticate frame carrying
// a bearer token, sent within 30 seconds of connecting. Anything else
// closes the connection with a reason. After the server's connected event,
// the client sends message and ping frames; the server answers each message
// with a sequence of response events (cumulative content, done=false)
// ending in a final done=true event, or a single done+cached event when the
// turn is served from cache. Failed turns produce an in-band error event
// and the connection stays open.
func HandleChatWebSocket(deps *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade websocket", "error", err)
			return
		}

		authInfo, ok := authenticate(deps, ws)
		if !ok {
			return
		}

		connID := uuid.New().String()
		if err := deps.Registry.Add(authInfo.UserID, connID); err != nil {
			slog.Warn("Connection limit reached", "user_id", authInfo.UserID)
			observability.RecordConnection(observability.ConnLimitExceeded)
			closeWithReason(ws, "too many concurrent connections")
			return
		}
		defer func() {
			deps.Registry.Remove(authInfo.UserID, connID)
			observability.RecordDisconnect()
			ws.Close()
		}()

		profileContext := deps.loadProfile(c.Request.Context(), authInfo.UserID)
		sess := session.New(connID, authInfo.UserID, profileContext, deps.now())

		observability.RecordConnection(observability.ConnConnected)
		slog.Info("Websocket client connected", "user_id", authInfo.UserID, "conn_id", connID)

		if err := sendJSON(ws, datatypes.NewConnectedEvent(authInfo.UserID, deps.now())); err != nil {
			return
		}

		// Authenticated: no further read deadline, connections are
		// long-lived and idle between turns.
		_ = ws.SetReadDeadline(time.Time{})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Websocket client disconnected", "conn_id", connID, "error", err.Error())
				return
			}

			frame, err := datatypes.ParseClientFrame(data)
			if err != nil {
				observability.RecordError("protocol")
				if sendJSON(ws, datatypes.NewErrorEvent("unrecognized message", deps.now())) != nil {
					return
				}
				continue
			}

			switch f := frame.(type) {
			case datatypes.PingFrame:
				if sendJSON(ws, datatypes.NewPongEvent()) != nil {
					return
				}
			case datatypes.AuthenticateFrame:
				// Already authenticated; a second authenticate frame is a
				// protocol error but not worth dropping the connection.
				if sendJSON(ws, datatypes.NewErrorEvent("already authenticated", deps.now())) != nil {
					return
				}
			case datatypes.ChatMessageFrame:
				if !deps.handleChatTurn(c.Request.Context(), ws, sess, f.Content) {
					return
				}
			}
		}
	}
}

// authenticate runs the in-band authentication handshake. On failure the
// connection is closed with a reason and ok is false.
func authenticate(deps *Deps, ws *websocket.Conn) (info *authResult, ok bool) {
	_ = ws.SetReadDeadline(time.Now().Add(deps.authTimeout()))

	_, data, err := ws.ReadMessage()
	if err != nil {
		observability.RecordConnection(observability.ConnAuthTimeout)
		closeWithReason(ws, "authentication timeout")
		return nil, false
	}

	frame, err := datatypes.ParseClientFrame(data)
	if err != nil {
		observability.RecordConnection(observability.ConnAuthFailed)
		closeWithReason(ws, "expected authenticate message")
		return nil, false
	}
	auth, isAuth := frame.(datatypes.AuthenticateFrame)
	if !isAuth {
		observability.RecordConnection(observability.ConnAuthFailed)
		closeWithReason(ws, "expected authenticate message")
		return nil, false
	}
	if auth.Token == "" {
		observability.RecordConnection(observability.ConnAuthFailed)
		closeWithReason(ws, "missing token")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), deps.authTimeout())
	defer cancel()
	authInfo, err := deps.Auth.Validate(ctx, auth.Token)
	if err != nil {
		slog.Warn("Websocket authentication failed", "error", err)
		observability.RecordConnection(observability.ConnAuthFailed)
		closeWithReason(ws, "authentication failed")
		return nil, false
	}
	return &authResult{UserID: authInfo.UserID}, true
}

type authResult struct {
	UserID string
}

// handleChatTurn processes one message frame. The return value reports
// whether the connection is still writable; a false return ends the read
// loop.
func (d *Deps) handleChatTurn(ctx context.Context, ws *websocket.Conn, sess *session.Session, content string) bool {
	start := d.now()

	if err := validation.ValidateChatMessage(content); err != nil {
		observability.RecordMessage("ws", "rejected")
		return sendJSON(ws, datatypes.NewErrorEvent(err.Error(), d.now())) == nil
	}
	message := strings.TrimSpace(content)

	// The turn cache key covers user, conversation state, and message, so
	// a hit is only possible for the same user asking the same thing at
	// the same point in a conversation.
	respCache := d.Gateway.ResponseCache()
	var turnKey string
	if respCache != nil {
		turnKey = respCache.TurnKey(sess.UserID, sess.ConversationHash(), message)
		if cached, hit := respCache.Get(ctx, turnKey); hit {
			observability.RecordCacheHit("ws")
			observability.RecordMessage("ws", "ok")
			observability.RecordTurnDuration("ws", d.now().Sub(start).Seconds())

			sess.AddMessage(datatypes.RoleUser, message)
			sess.AddMessage(datatypes.RoleAssistant, cached)
			d.persistTurn(sess.ConnID, message, cached, turnMetadata("ws", true))
			return sendJSON(ws, datatypes.NewResponseEvent(cached, true, true, d.now())) == nil
		}
	}

	retrieved := d.retrieve(ctx, message)
	systemPrompt := buildSystemPrompt(sess.ProfileContext, retrieved)

	messages := []datatypes.Message{{Role: datatypes.RoleSystem, Content: systemPrompt}}
	messages = append(messages, sess.History()...)
	messages = append(messages, datatypes.Message{Role: datatypes.RoleUser, Content: message})

	var accumulated string
	var firstToken bool
	writeFailed := false

	result, err := d.Gateway.Stream(ctx, messages, llm.GenerationParams{}, func(event llm.StreamEvent) error {
		if event.Type != llm.StreamEventToken {
			return nil
		}
		if !firstToken {
			firstToken = true
			observability.RecordTimeToFirstToken(d.now().Sub(start).Seconds())
		}
		accumulated += event.Content
		if sendErr := sendJSON(ws, datatypes.NewResponseEvent(accumulated, false, false, d.now())); sendErr != nil {
			writeFailed = true
			return sendErr
		}
		return nil
	})
	if writeFailed {
		return false
	}
	if err != nil {
		slog.Error("Chat turn failed", "conn_id", sess.ConnID, "error", err)
		observability.RecordError("llm")
		observability.RecordMessage("ws", "error")
		return sendJSON(ws, datatypes.NewErrorEvent(genericTurnFailure, d.now())) == nil
	}

	if sendJSON(ws, datatypes.NewResponseEvent(result.Content, true, false, d.now())) != nil {
		return false
	}

	if respCache != nil && turnKey != "" {
		respCache.Put(ctx, turnKey, result.Content)
	}
	sess.AddMessage(datatypes.RoleUser, message)
	sess.AddMessage(datatypes.RoleAssistant, result.Content)
	d.persistTurn(sess.ConnID, message, result.Content, turnMetadata("ws", false))

	observability.RecordMessage("ws", "ok")
	observability.RecordTokens(result.Usage.PromptTokens, result.Usage.CompletionTokens)
	observability.RecordTurnDuration("ws", d.now().Sub(start).Seconds())
	return true
}
