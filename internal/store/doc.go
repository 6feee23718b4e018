// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the conversation list, the current selection, and the
// in-flight streaming buffer behind one mutex.
//
// The store is the UI's view of server state. The stream client mutates it
// from its read goroutine while the UI reads snapshots from the render
// loop, so every accessor copies on the way out; callers never hold
// references into store-owned slices.
//
// The streaming buffer accumulates assistant chunks for the reply in
// flight. It is kept separate from the conversation history until the
// stream finishes, at which point the chat surface commits the buffered
// text as a message exactly once.
package store
