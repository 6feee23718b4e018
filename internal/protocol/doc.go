// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the frame format spoken on the persistent
// WebSocket channel.
//
// Frames are JSON objects discriminated by a "type" field. Five frame types
// exist: auth, ping, pong, chat and error. Chat payloads are themselves
// tagged: "chunk" carries an incremental fragment of a generated response,
// "done" marks the end of a generation and names the owning conversation.
//
// # Key Types
//
//   - Frame: The tagged-union envelope
//   - ChatSend: Client-to-server chat request payload
//   - ChatEvent: Server-to-client chunk/done payload
//   - AuthAck: Server-to-client authentication acknowledgement
//
// Payload decoding is explicit: callers inspect Frame.Type and call the
// matching decode method. Malformed frames return an error; the connection
// is expected to log and drop them, never to tear down.
package protocol
