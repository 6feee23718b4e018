// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat thread with history and metadata. The server is
// the system of record; clients mirror conversations and mutate them only by
// appending messages and patching the title.
//
// The JSON tags follow the backend's wire format ("_id", "aiModel").
type Conversation struct {
	// Identity
	ID     string `json:"_id"`
	UserID string `json:"userId"`
	Title  string `json:"title"`

	// Messages, in insertion order. Insertion order is display order.
	Messages []Message `json:"messages"`

	// Model identifier used for generation.
	Model string `json:"aiModel"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends a message to the conversation. A conversation fresh off
// the wire may carry a nil message slice; append treats that as empty.
func (c *Conversation) AddMessage(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now().UTC()
}

// LastMessage returns the most recent message, or a zero Message and false
// if the conversation is empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// TITLE & PREVIEW
// =============================================================================

// GetTitle returns the conversation title or a default for untitled threads.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Chat"
}

// Preview returns a short preview from the first user message.
func (c *Conversation) Preview() string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && !msg.IsEmpty() {
			return msg.Preview(80)
		}
	}
	return "Empty conversation"
}

// =============================================================================
// COPY HELPERS
// =============================================================================

// Clone creates a deep copy of the conversation. The store hands out clones
// so callers never share the underlying message slice.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	if c.Messages != nil {
		clone.Messages = make([]Message, len(c.Messages))
		copy(clone.Messages, c.Messages)
	}
	return &clone
}
