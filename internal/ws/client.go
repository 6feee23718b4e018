// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/relay-tui/internal/protocol"
	"github.com/jeranaias/relay-tui/internal/store"
)

// Error variables for send preconditions.
var (
	// ErrNotConnected indicates no socket is open.
	ErrNotConnected = errors.New("not connected")

	// ErrNotAuthenticated indicates the socket is open but the server has
	// not accepted the auth frame yet.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrClosed indicates the client was shut down.
	ErrClosed = errors.New("client closed")

	// ErrNoToken indicates the session holds no bearer token, so there is
	// nothing to authenticate the stream with.
	ErrNoToken = errors.New("no session token")
)

// Default timing. The heartbeat interval matches the server's idle
// timeout expectations; the liveness window allows one lost pong before
// the connection is declared dead.
const (
	DefaultHeartbeatInterval = 25 * time.Second
	DefaultReconnectDelay    = 3 * time.Second
	defaultLivenessIntervals = 2
)

// =============================================================================
// CLIENT
// =============================================================================

// Client is the streaming connection to the chat server.
type Client struct {
	url         string
	dialer      Dialer
	tokenSource func() string
	store       *store.Store
	notify      func(msg any)

	heartbeatInterval time.Duration
	reconnectDelay    time.Duration
	livenessIntervals int

	mu             sync.Mutex
	state          State
	conn           Conn
	connID         int
	generationID   string
	lastPong       time.Time
	closed         bool
	reconnectTimer *time.Timer

	writeMu sync.Mutex
}

// NewClient creates a client for the given websocket URL. The token source
// is consulted on every connect, so a re-login takes effect on the next
// reconnect without rebuilding the client.
func NewClient(url string, tokenSource func() string, st *store.Store) *Client {
	return &Client{
		url:               url,
		dialer:            NewDialer(),
		tokenSource:       tokenSource,
		store:             st,
		notify:            func(any) {},
		heartbeatInterval: DefaultHeartbeatInterval,
		reconnectDelay:    DefaultReconnectDelay,
		livenessIntervals: defaultLivenessIntervals,
		state:             StateDisconnected,
	}
}

// WithDialer replaces the transport. Tests use this to run against an
// in-memory connection.
func (c *Client) WithDialer(d Dialer) *Client {
	c.dialer = d
	return c
}

// WithNotify sets the callback invoked for every event the client emits.
// The callback runs on the client's goroutines and must not block.
func (c *Client) WithNotify(fn func(msg any)) *Client {
	if fn != nil {
		c.notify = fn
	}
	return c
}

// WithHeartbeatInterval overrides the ping cadence.
func (c *Client) WithHeartbeatInterval(d time.Duration) *Client {
	if d > 0 {
		c.heartbeatInterval = d
	}
	return c
}

// WithReconnectDelay overrides the pause before a reconnect attempt.
func (c *Client) WithReconnectDelay(d time.Duration) *Client {
	if d > 0 {
		c.reconnectDelay = d
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// =============================================================================
// CONNECT / CLOSE
// =============================================================================

// Connect dials the server and performs the auth handshake. Any existing
// connection is closed first, so at most one socket is ever open. A dial
// failure schedules a reconnect and returns the error.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.tokenSource() == "" {
		// Logged out since the connect (or reconnect) was requested.
		c.cancelReconnectLocked()
		c.state = StateDisconnected
		c.mu.Unlock()
		return ErrNoToken
	}
	c.cancelReconnectLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connID++
	id := c.connID
	c.state = StateConnecting
	c.mu.Unlock()

	c.notify(StateChangedMsg{State: StateConnecting})
	log.Printf("ws: connecting to %s", c.url)

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.mu.Lock()
		// A newer Connect may have started while we were dialing.
		if c.connID != id || c.closed {
			c.mu.Unlock()
			return err
		}
		c.state = StateDisconnected
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.notify(StateChangedMsg{State: StateDisconnected, Err: err})
		return err
	}

	c.mu.Lock()
	if c.connID != id || c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.lastPong = time.Now()
	c.state = StateConnected
	c.mu.Unlock()

	c.notify(StateChangedMsg{State: StateConnected})

	// Auth is always the first frame on the wire.
	frame, err := protocol.AuthFrame(c.tokenSource())
	if err == nil {
		err = c.write(frame)
	}
	if err != nil {
		c.handleDisconnect(id, fmt.Errorf("auth send failed: %w", err))
		return err
	}

	go c.readLoop(conn, id)
	go c.heartbeat(id)
	return nil
}

// Close shuts the client down. Any open connection is closed and any
// pending reconnect is cancelled. The client cannot be reused.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancelReconnectLocked()
	c.state = StateDisconnected
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// SendChat sends a user message over the stream and returns the generation
// ID that tags the reply's events. The preconditions are checked before
// any I/O: an unauthenticated or closed client refuses without touching
// the socket. An empty conversationID asks the server to start a new
// conversation.
func (c *Client) SendChat(message, conversationID, model string) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	if c.conn == nil {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: stream is %s", ErrNotConnected, c.state)
	}
	if c.state != StateAuthenticated {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: stream is %s", ErrNotAuthenticated, c.state)
	}
	id := c.connID
	generation := uuid.NewString()
	c.generationID = generation
	c.mu.Unlock()

	// Any leftover buffer belongs to a superseded send.
	c.store.ClearStreamingContent()
	c.store.SetStreaming(true)

	frame, err := protocol.ChatFrame(protocol.ChatSend{
		Message:        message,
		ConversationID: conversationID,
		Model:          model,
	})
	if err != nil {
		return "", err
	}
	if err := c.write(frame); err != nil {
		c.store.SetStreaming(false)
		c.handleDisconnect(id, fmt.Errorf("chat send failed: %w", err))
		return "", err
	}
	return generation, nil
}

// write serializes frame writes. The reader and the heartbeat both write.
func (c *Client) write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(data)
}

// =============================================================================
// READ LOOP
// =============================================================================

// readLoop is the only reader of the connection. It dispatches frames
// until the connection fails, then hands off to disconnect handling.
func (c *Client) readLoop(conn Conn, id int) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(id, err)
			return
		}

		frame, err := protocol.ParseFrame(data)
		if err != nil {
			log.Printf("ws: dropping frame: %v", err)
			continue
		}

		switch frame.Type {
		case protocol.TypeAuth:
			c.handleAuth(id, frame)
		case protocol.TypePong:
			c.mu.Lock()
			if c.connID == id {
				c.lastPong = time.Now()
			}
			c.mu.Unlock()
		case protocol.TypePing:
			// Server-initiated keepalive; answer and move on.
			if pong, err := protocol.PongFrame(); err == nil {
				c.write(pong)
			}
		case protocol.TypeChat:
			c.handleChat(id, frame)
		case protocol.TypeError:
			c.handleError(id, frame)
		}
	}
}

func (c *Client) handleAuth(id int, frame *protocol.Frame) {
	ack, err := frame.DecodeAuthAck()
	if err != nil {
		log.Printf("ws: bad auth ack: %v", err)
		return
	}

	if !ack.Accepted() {
		reason := ack.Reason()
		log.Printf("ws: auth rejected: %s", reason)
		c.mu.Lock()
		if c.connID != id {
			c.mu.Unlock()
			return
		}
		// A rejected token will not heal with a retry. Supersede the
		// connection so the read loop's close error cannot schedule a
		// reconnect, and stay down until the caller brings fresh
		// credentials.
		c.cancelReconnectLocked()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.connID++
		c.state = StateDisconnected
		c.mu.Unlock()
		c.notify(AuthRejectedMsg{Reason: reason})
		c.notify(StateChangedMsg{State: StateDisconnected})
		return
	}

	c.mu.Lock()
	if c.connID != id {
		c.mu.Unlock()
		return
	}
	c.state = StateAuthenticated
	c.mu.Unlock()

	log.Printf("ws: authenticated")
	c.notify(StateChangedMsg{State: StateAuthenticated})
}

func (c *Client) handleChat(id int, frame *protocol.Frame) {
	event, err := frame.DecodeChatEvent()
	if err != nil {
		log.Printf("ws: bad chat event: %v", err)
		return
	}

	c.mu.Lock()
	if c.connID != id {
		c.mu.Unlock()
		return
	}
	generation := c.generationID
	c.mu.Unlock()

	switch event.Type {
	case protocol.EventChunk:
		c.store.AppendStreamingContent(event.Content)
		c.notify(ChunkMsg{GenerationID: generation, Content: event.Content})
	case protocol.EventDone:
		c.notify(DoneMsg{GenerationID: generation, ConversationID: event.ConversationID})
	}
}

func (c *Client) handleError(id int, frame *protocol.Frame) {
	payload := frame.DecodeError()

	c.mu.Lock()
	if c.connID != id {
		c.mu.Unlock()
		return
	}
	generation := c.generationID
	c.mu.Unlock()

	partial := c.store.ClearStreamingContent()
	c.notify(StreamErrorMsg{
		GenerationID: generation,
		Partial:      partial,
		Err:          errors.New(payload.Error),
	})
}

// =============================================================================
// HEARTBEAT & LIVENESS
// =============================================================================

// heartbeat pings on a fixed cadence and enforces liveness: a server that
// stays silent for livenessIntervals heartbeats is treated as gone.
func (c *Client) heartbeat(id int) {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.connID != id || c.conn == nil || c.closed {
			c.mu.Unlock()
			return
		}
		silent := time.Since(c.lastPong)
		c.mu.Unlock()

		if silent > time.Duration(c.livenessIntervals)*c.heartbeatInterval {
			c.handleDisconnect(id, fmt.Errorf("no pong for %v", silent.Round(time.Second)))
			return
		}

		ping, err := protocol.PingFrame()
		if err == nil {
			err = c.write(ping)
		}
		if err != nil {
			c.handleDisconnect(id, fmt.Errorf("ping failed: %w", err))
			return
		}
	}
}

// =============================================================================
// DISCONNECT & RECONNECT
// =============================================================================

// handleDisconnect tears down the connection identified by id and
// schedules a reconnect. Calls for a superseded connection are ignored, so
// the read loop, the heartbeat, and a failed write can all report the same
// failure without fighting.
func (c *Client) handleDisconnect(id int, err error) {
	c.mu.Lock()
	if c.connID != id || c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connID++
	c.state = StateDisconnected
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	log.Printf("ws: disconnected: %v", err)
	c.notify(StateChangedMsg{State: StateDisconnected, Err: err})
}

// scheduleReconnectLocked arms the reconnect timer. Caller must hold c.mu.
func (c *Client) scheduleReconnectLocked() {
	if c.closed || c.reconnectTimer != nil {
		return
	}
	c.reconnectTimer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		// Connect reschedules on failure, so one timer is enough.
		if err := c.Connect(context.Background()); err != nil {
			log.Printf("ws: reconnect failed: %v", err)
		}
	})
}

// cancelReconnectLocked disarms any pending reconnect. Caller must hold
// c.mu.
func (c *Client) cancelReconnectLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}
