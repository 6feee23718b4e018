// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import "fmt"

// =============================================================================
// CONNECTION STATE
// =============================================================================

// State is one step of the connection state machine.
type State int

const (
	// StateDisconnected means no socket is open. A reconnect may be pending.
	StateDisconnected State = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateConnected means the socket is open and the auth frame has been
	// sent, but the server has not acknowledged it yet.
	StateConnected

	// StateAuthenticated means the server accepted the auth frame. Chat
	// sends are allowed only in this state.
	StateAuthenticated
)

// String returns a human-readable state name for logs and the status line.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// StateChangedMsg reports a state transition. Err is set when the
// transition was caused by a failure, such as a dropped connection.
type StateChangedMsg struct {
	State State
	Err   error
}

// AuthRejectedMsg reports that the server refused the auth frame. The
// client does not reconnect after a rejection; the token is the problem,
// not the network.
type AuthRejectedMsg struct {
	Reason string
}

// ChunkMsg carries one streamed fragment of the assistant reply.
type ChunkMsg struct {
	GenerationID string
	Content      string
}

// DoneMsg reports that the assistant reply finished. ConversationID names
// the conversation the exchange landed in, which may be newly created.
type DoneMsg struct {
	GenerationID   string
	ConversationID string
}

// StreamErrorMsg reports a server-side error during a reply. Partial holds
// whatever content had streamed before the failure.
type StreamErrorMsg struct {
	GenerationID string
	Partial      string
	Err          error
}
