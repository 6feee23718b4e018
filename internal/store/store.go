// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"sync"

	"github.com/jeranaias/relay-tui/internal/model"
)

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// Store is the mutable client-side view of conversations. All methods are
// safe for concurrent use.
type Store struct {
	mu sync.Mutex

	conversations []model.Conversation
	current       *model.Conversation

	// Streaming buffer for the assistant reply in flight.
	streaming        bool
	streamingContent string
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// =============================================================================
// CONVERSATION LIST
// =============================================================================

// SetConversations replaces the conversation list. The slice is copied; the
// caller keeps ownership of its argument. The current selection is
// preserved if its ID is still present, otherwise cleared.
func (s *Store) SetConversations(convs []model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]model.Conversation, len(convs))
	for i := range convs {
		s.conversations[i] = *convs[i].Clone()
	}

	if s.current != nil {
		if _, ok := s.findLocked(s.current.ID); !ok {
			s.current = nil
		}
	}
}

// Conversations returns a copy of the conversation list.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Conversation, len(s.conversations))
	for i := range s.conversations {
		out[i] = *s.conversations[i].Clone()
	}
	return out
}

// Count returns the number of conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// AddConversation inserts a conversation at the front of the list, newest
// first. A conversation with the same ID is replaced in place instead.
func (s *Store) AddConversation(conv model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.findLocked(conv.ID); ok {
		s.conversations[i] = *conv.Clone()
		s.syncCurrentLocked(conv.ID)
		return
	}
	s.conversations = append([]model.Conversation{*conv.Clone()}, s.conversations...)
}

// UpdateConversation replaces the stored conversation with the same ID and
// propagates the change to the current selection. Unknown IDs are ignored.
func (s *Store) UpdateConversation(conv model.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(conv.ID)
	if !ok {
		return
	}
	s.conversations[i] = *conv.Clone()
	s.syncCurrentLocked(conv.ID)
}

// RemoveConversation deletes a conversation by ID. If it was the current
// selection, the selection is cleared.
func (s *Store) RemoveConversation(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(id)
	if !ok {
		return
	}
	s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
}

// Get returns a copy of the conversation with the given ID.
func (s *Store) Get(id string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(id)
	if !ok {
		return model.Conversation{}, false
	}
	return *s.conversations[i].Clone(), true
}

// =============================================================================
// CURRENT SELECTION
// =============================================================================

// SetCurrent selects the conversation with the given ID. Selecting an ID
// not in the list is a no-op and reports false.
func (s *Store) SetCurrent(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.findLocked(id)
	if !ok {
		return false
	}
	s.current = s.conversations[i].Clone()
	return true
}

// Current returns a copy of the selected conversation, if any.
func (s *Store) Current() (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return model.Conversation{}, false
	}
	return *s.current.Clone(), true
}

// CurrentID returns the selected conversation's ID, or "" when nothing is
// selected. The empty ID is what the send path forwards to start a new
// conversation server-side.
func (s *Store) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ""
	}
	return s.current.ID
}

// ClearCurrent drops the selection without touching the list.
func (s *Store) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends a message to the conversation with the given ID, in
// both the list and the current selection when they match. Unknown IDs are
// ignored.
func (s *Store) AddMessage(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.findLocked(conversationID); ok {
		s.conversations[i].AddMessage(msg)
	}
	if s.current != nil && s.current.ID == conversationID {
		s.current.AddMessage(msg)
	}
}

// AddMessageToCurrent appends a message to the selected conversation.
// Reports false when nothing is selected.
func (s *Store) AddMessageToCurrent(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return false
	}
	s.current.AddMessage(msg)
	if i, ok := s.findLocked(s.current.ID); ok {
		s.conversations[i].AddMessage(msg)
	}
	return true
}

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// SetStreaming marks whether an assistant reply is in flight.
func (s *Store) SetStreaming(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = active
}

// IsStreaming reports whether an assistant reply is in flight.
func (s *Store) IsStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// AppendStreamingContent appends a chunk to the streaming buffer. A chunk
// arriving before the stream was marked in flight marks it now.
func (s *Store) AppendStreamingContent(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamingContent += chunk
	s.streaming = true
}

// SetStreamingContent replaces the streaming buffer wholesale.
func (s *Store) SetStreamingContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamingContent = content
}

// StreamingContent returns the accumulated buffer.
func (s *Store) StreamingContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamingContent
}

// ClearStreamingContent empties the buffer and marks the stream idle. It
// returns the text it held, so the caller can take the buffer and clear it
// in one step without a second reader seeing the content twice.
func (s *Store) ClearStreamingContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	content := s.streamingContent
	s.streamingContent = ""
	s.streaming = false
	return content
}

// =============================================================================
// INTERNAL
// =============================================================================

// findLocked returns the index of the conversation with the given ID.
// Caller must hold s.mu.
func (s *Store) findLocked(id string) (int, bool) {
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// syncCurrentLocked refreshes the current selection from the list when its
// ID matches. Caller must hold s.mu.
func (s *Store) syncCurrentLocked(id string) {
	if s.current == nil || s.current.ID != id {
		return
	}
	if i, ok := s.findLocked(id); ok {
		s.current = s.conversations[i].Clone()
	}
}
