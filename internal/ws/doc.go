// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ws implements the streaming transport: a websocket client that
// authenticates on connect, heartbeats, reconnects after drops, and feeds
// assistant chunks into the conversation store as they arrive.
//
// The client walks a small state machine:
//
//	Disconnected -> Connecting -> Connected -> Authenticated
//
// The first frame after the socket opens is always the auth frame; chat
// sends are refused before the server acknowledges it. A dropped or silent
// connection schedules a reconnect after a fixed delay, and Close cancels
// any pending attempt.
//
// Every send is tagged with a generation ID. Incoming chunk, done, and
// error events carry the generation they belong to, so the UI can discard
// events from a superseded send instead of mixing two replies.
//
// The client reports everything through a notify callback. The composition
// root bridges that callback into the UI event loop; nothing in this
// package knows about rendering.
package ws
