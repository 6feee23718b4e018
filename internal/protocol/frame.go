// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// =============================================================================
// FRAME TYPES
// =============================================================================

// FrameType is the discriminant carried in every frame's "type" field.
type FrameType string

// Frame types spoken on the wire.
const (
	TypeAuth  FrameType = "auth"
	TypePing  FrameType = "ping"
	TypePong  FrameType = "pong"
	TypeChat  FrameType = "chat"
	TypeError FrameType = "error"
)

// ChatEventType tags the payload of a server-to-client chat frame.
type ChatEventType string

// Chat event types.
const (
	EventChunk ChatEventType = "chunk"
	EventDone  ChatEventType = "done"
)

// Error variables for frame parsing.
var (
	// ErrMalformedFrame indicates an inbound frame could not be parsed.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownFrameType indicates a frame with an unrecognized type field.
	ErrUnknownFrameType = errors.New("unknown frame type")
)

// =============================================================================
// ENVELOPE
// =============================================================================

// Frame is the tagged-union envelope for every message on the channel.
// Token is only present on client-to-server auth frames; Payload holds the
// type-specific body and stays raw until the caller decodes it.
type Frame struct {
	Type    FrameType       `json:"type"`
	Token   string          `json:"token,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ParseFrame decodes an inbound frame envelope. The payload is left raw.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch f.Type {
	case TypeAuth, TypePing, TypePong, TypeChat, TypeError:
		return &f, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, f.Type)
	}
}

// =============================================================================
// CLIENT-TO-SERVER PAYLOADS
// =============================================================================

// ChatSend is the payload of a client chat frame. A missing ConversationID
// tells the server to start a new conversation; a missing Model accepts the
// server default.
type ChatSend struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId,omitempty"`
	Model          string `json:"model,omitempty"`
}

// AuthFrame builds the authentication frame sent immediately on transport
// open. It is always the first frame on a fresh connection.
func AuthFrame(token string) ([]byte, error) {
	return json.Marshal(Frame{Type: TypeAuth, Token: token})
}

// PingFrame builds a heartbeat frame.
func PingFrame() ([]byte, error) {
	return json.Marshal(Frame{Type: TypePing})
}

// PongFrame builds the heartbeat reply.
func PongFrame() ([]byte, error) {
	return json.Marshal(Frame{Type: TypePong})
}

// ChatFrame builds a client chat frame carrying the given send payload.
func ChatFrame(send ChatSend) ([]byte, error) {
	payload, err := json.Marshal(send)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat payload: %w", err)
	}
	return json.Marshal(Frame{Type: TypeChat, Payload: payload})
}

// =============================================================================
// SERVER-TO-CLIENT PAYLOADS
// =============================================================================

// AuthAck is the payload of a server auth frame. Some server revisions omit
// the success flag entirely; Success therefore stays a pointer and absence
// is read as success (see Accepted).
type AuthAck struct {
	Success *bool  `json:"success,omitempty"`
	UserID  string `json:"userId,omitempty"`
	Message string `json:"message,omitempty"`
}

// Accepted reports whether the acknowledgement marks authentication as
// successful. A missing success field counts as success.
func (a AuthAck) Accepted() bool {
	return a.Success == nil || *a.Success
}

// Reason returns the server's explanation for a rejected auth frame, with
// a generic fallback.
func (a AuthAck) Reason() string {
	if a.Message != "" {
		return a.Message
	}
	return "authentication rejected"
}

// ChatEvent is the payload of a server chat frame: either an incremental
// content chunk or the done marker naming the owning conversation.
type ChatEvent struct {
	Type           ChatEventType `json:"type"`
	Content        string        `json:"content,omitempty"`
	ConversationID string        `json:"conversationId,omitempty"`
}

// ErrorPayload is the payload of a server error frame.
type ErrorPayload struct {
	Error string `json:"error"`
}

// DecodeAuthAck decodes the payload of an auth frame. A frame without any
// payload is a valid acknowledgement (the older server revision).
func (f *Frame) DecodeAuthAck() (AuthAck, error) {
	if len(f.Payload) == 0 {
		return AuthAck{}, nil
	}
	var ack AuthAck
	if err := json.Unmarshal(f.Payload, &ack); err != nil {
		return AuthAck{}, fmt.Errorf("%w: auth payload: %v", ErrMalformedFrame, err)
	}
	return ack, nil
}

// DecodeChatEvent decodes the payload of a server chat frame.
func (f *Frame) DecodeChatEvent() (ChatEvent, error) {
	var ev ChatEvent
	if err := json.Unmarshal(f.Payload, &ev); err != nil {
		return ChatEvent{}, fmt.Errorf("%w: chat payload: %v", ErrMalformedFrame, err)
	}
	if ev.Type != EventChunk && ev.Type != EventDone {
		return ChatEvent{}, fmt.Errorf("%w: chat event %q", ErrUnknownFrameType, ev.Type)
	}
	return ev, nil
}

// DecodeError decodes the payload of a server error frame. A frame without
// a usable payload yields a generic message rather than an error; error
// frames must always surface something to the user.
func (f *Frame) DecodeError() ErrorPayload {
	var p ErrorPayload
	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, &p); err == nil && p.Error != "" {
			return p
		}
	}
	return ErrorPayload{Error: "server error"}
}
