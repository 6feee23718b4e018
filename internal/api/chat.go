// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jeranaias/relay-tui/internal/model"
)

// SendResult is the payload returned by the blocking message endpoint: the
// complete assistant message plus the conversation it landed in.
type SendResult struct {
	ConversationID string        `json:"conversationId"`
	Message        model.Message `json:"message"`
}

// Pagination describes one page of a conversation listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ConversationPage is one page of the conversation list, newest first.
type ConversationPage struct {
	Conversations []model.Conversation `json:"conversations"`
	Pagination    Pagination           `json:"pagination"`
}

// SendMessage sends a user message over the blocking REST path and waits for
// the full assistant reply. An empty conversationID starts a new
// conversation; an empty modelName uses the server default.
func (c *Client) SendMessage(ctx context.Context, message, conversationID, modelName string) (*SendResult, error) {
	if message == "" {
		return nil, errors.New("message is required")
	}

	body := struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversationId,omitempty"`
		Model          string `json:"model,omitempty"`
	}{
		Message:        message,
		ConversationID: conversationID,
		Model:          modelName,
	}

	env, err := c.do(ctx, http.MethodPost, "/api/chat/message", body)
	if err != nil {
		return nil, err
	}

	var result SendResult
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateConversation creates an empty conversation. Title and modelName may
// be empty; the server fills in defaults.
func (c *Client) CreateConversation(ctx context.Context, title, modelName string) (*model.Conversation, error) {
	body := struct {
		Title string `json:"title,omitempty"`
		Model string `json:"model,omitempty"`
	}{Title: title, Model: modelName}

	env, err := c.do(ctx, http.MethodPost, "/api/chat/conversations", body)
	if err != nil {
		return nil, err
	}
	return decodeConversation(env)
}

// ListConversations fetches one page of the caller's conversations, newest
// first. page starts at 1; non-positive page or limit fall back to the
// server defaults.
func (c *Client) ListConversations(ctx context.Context, page, limit int) (*ConversationPage, error) {
	path := "/api/chat/conversations"
	if page > 0 || limit > 0 {
		path = fmt.Sprintf("%s?page=%d&limit=%d", path, max(page, 1), max(limit, 1))
	}

	env, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var result ConversationPage
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetConversation fetches a single conversation with its full message
// history.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation id is required")
	}

	env, err := c.do(ctx, http.MethodGet, "/api/chat/conversations/"+escapePath(id), nil)
	if err != nil {
		return nil, err
	}
	return decodeConversation(env)
}

// UpdateConversationTitle renames a conversation and returns the updated
// record.
func (c *Client) UpdateConversationTitle(ctx context.Context, id, title string) (*model.Conversation, error) {
	if id == "" {
		return nil, errors.New("conversation id is required")
	}
	if title == "" {
		return nil, errors.New("title is required")
	}

	body := struct {
		Title string `json:"title"`
	}{Title: title}

	env, err := c.do(ctx, http.MethodPatch, "/api/chat/conversations/"+escapePath(id), body)
	if err != nil {
		return nil, err
	}
	return decodeConversation(env)
}

// DeleteConversation deletes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("conversation id is required")
	}
	_, err := c.do(ctx, http.MethodDelete, "/api/chat/conversations/"+escapePath(id), nil)
	return err
}

// decodeConversation handles both bare and wrapped conversation payloads.
func decodeConversation(env *envelope) (*model.Conversation, error) {
	var wrapped struct {
		Conversation *model.Conversation `json:"conversation"`
	}
	if err := decodeData(env, &wrapped); err == nil && wrapped.Conversation != nil {
		return wrapped.Conversation, nil
	}

	var conv model.Conversation
	if err := decodeData(env, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}
