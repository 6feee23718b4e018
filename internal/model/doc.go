// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for users, conversations and
// messages.
//
// This package defines the core domain types used throughout the application.
// The JSON tags mirror the backend's wire format, so the same types are used
// for API payloads and in-memory state.
//
// # Key Types
//
//   - User: An authenticated account (id, email, name)
//   - Message: Single message with role, content and timestamp
//   - Conversation: Container for a chat thread with messages and metadata
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Append a message to a conversation:
//
//	conv.AddMessage(model.NewUserMessage("Hello!"))
package model
