// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat surface for the TUI: the message
// viewport, the input line, the conversation sidebar, and the status bar.
//
// Outbound messages prefer the streaming connection and fall back to the
// blocking REST path when the stream is down. Inbound streaming events
// arrive as ws package messages bridged into the Bubble Tea loop by the
// composition root; the update loop here owns the exactly-once commit of
// the streamed reply into the conversation history.
package chat
