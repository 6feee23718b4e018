// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/relay-tui/internal/store"
)

// =============================================================================
// FAKE TRANSPORT
// =============================================================================

type fakeConn struct {
	mu       sync.Mutex
	incoming chan []byte
	written  [][]byte
	closed   bool
	done     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.done:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("write on closed connection")
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// push delivers a raw server frame to the read loop.
func (c *fakeConn) push(raw string) {
	c.incoming <- []byte(raw)
}

// writes returns decoded top-level frames written by the client so far.
func (c *fakeConn) writes(t *testing.T) []map[string]json.RawMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]json.RawMessage, 0, len(c.written))
	for _, data := range c.written {
		var frame map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(data, &frame))
		out = append(out, frame)
	}
	return out
}

func frameType(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()
	var typ string
	require.NoError(t, json.Unmarshal(frame["type"], &typ))
	return typ
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	// At most one socket may be open: an earlier connection must already
	// be closed by the time a new dial happens.
	for _, prev := range d.conns {
		prev.mu.Lock()
		open := !prev.closed
		prev.mu.Unlock()
		if open {
			return nil, errors.New("dial while previous connection still open")
		}
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

// =============================================================================
// NOTIFY RECORDER
// =============================================================================

type recorder struct {
	ch chan any
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan any, 64)}
}

func (r *recorder) notify(msg any) {
	r.ch <- msg
}

// waitFor blocks until a notification matching the predicate arrives.
func (r *recorder) waitFor(t *testing.T, what string, match func(any) bool) any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-r.ch:
			if match(msg) {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func (r *recorder) waitState(t *testing.T, want State) StateChangedMsg {
	t.Helper()
	msg := r.waitFor(t, "state "+want.String(), func(m any) bool {
		sc, ok := m.(StateChangedMsg)
		return ok && sc.State == want
	})
	return msg.(StateChangedMsg)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// SETUP
// =============================================================================

func newTestClient(t *testing.T) (*Client, *fakeDialer, *store.Store, *recorder) {
	t.Helper()
	d := &fakeDialer{}
	st := store.New()
	rec := newRecorder()
	c := NewClient("ws://test/ws", func() string { return "tok-test" }, st).
		WithDialer(d).
		WithNotify(rec.notify).
		WithReconnectDelay(20 * time.Millisecond)
	t.Cleanup(func() { c.Close() })
	return c, d, st, rec
}

// authenticate connects the client and walks it to StateAuthenticated.
func authenticate(t *testing.T, c *Client, d *fakeDialer, rec *recorder) *fakeConn {
	t.Helper()
	require.NoError(t, c.Connect(context.Background()))
	conn := d.conn(d.count() - 1)
	conn.push(`{"type":"auth","payload":{"success":true}}`)
	rec.waitState(t, StateAuthenticated)
	return conn
}

// =============================================================================
// CONNECT & AUTH
// =============================================================================

func TestConnectRequiresToken(t *testing.T) {
	d := &fakeDialer{}
	rec := newRecorder()
	c := NewClient("ws://test/ws", func() string { return "" }, store.New()).
		WithDialer(d).
		WithNotify(rec.notify)
	t.Cleanup(func() { c.Close() })

	require.ErrorIs(t, c.Connect(context.Background()), ErrNoToken)
	require.Equal(t, 0, d.count())
	require.Equal(t, StateDisconnected, c.State())
}

func TestConnectSendsAuthFirst(t *testing.T) {
	c, d, _, _ := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, 1, d.count())

	writes := d.conn(0).writes(t)
	require.Len(t, writes, 1)
	assert.Equal(t, "auth", frameType(t, writes[0]))

	var token string
	require.NoError(t, json.Unmarshal(writes[0]["token"], &token))
	assert.Equal(t, "tok-test", token)
	assert.Equal(t, StateConnected, c.State())
}

func TestAuthAckAuthenticates(t *testing.T) {
	c, d, _, rec := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))
	d.conn(0).push(`{"type":"auth","payload":{"success":true}}`)

	rec.waitState(t, StateAuthenticated)
	assert.Equal(t, StateAuthenticated, c.State())
}

func TestAuthAckWithoutSuccessFieldCounts(t *testing.T) {
	c, d, _, rec := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))
	d.conn(0).push(`{"type":"auth"}`)

	rec.waitState(t, StateAuthenticated)
}

func TestAuthRejectedStaysDown(t *testing.T) {
	c, d, _, rec := newTestClient(t)

	require.NoError(t, c.Connect(context.Background()))
	d.conn(0).push(`{"type":"auth","payload":{"success":false,"message":"bad token"}}`)

	msg := rec.waitFor(t, "auth rejection", func(m any) bool {
		_, ok := m.(AuthRejectedMsg)
		return ok
	}).(AuthRejectedMsg)
	assert.Equal(t, "bad token", msg.Reason)

	eventually(t, "connection close", func() bool { return d.conn(0).isClosed() })
	assert.Equal(t, StateDisconnected, c.State())

	// A bad token is not retried.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, d.count())
}

// =============================================================================
// SENDING
// =============================================================================

func TestSendChatRequiresAuthentication(t *testing.T) {
	c, d, _, _ := newTestClient(t)

	_, err := c.SendChat("hello", "", "")
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Connect(context.Background()))
	_, err = c.SendChat("hello", "", "")
	require.ErrorIs(t, err, ErrNotAuthenticated)

	// The refusal happens before any I/O: only the auth frame went out.
	writes := d.conn(0).writes(t)
	require.Len(t, writes, 1)
	assert.Equal(t, "auth", frameType(t, writes[0]))
}

func TestSendChatWritesFrameAndMarksStreaming(t *testing.T) {
	c, d, st, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	gen, err := c.SendChat("hello there", "c1", "gpt-4")
	require.NoError(t, err)
	require.NotEmpty(t, gen)

	assert.True(t, st.IsStreaming())
	assert.Empty(t, st.StreamingContent())

	writes := conn.writes(t)
	require.Len(t, writes, 2)
	assert.Equal(t, "chat", frameType(t, writes[1]))

	var payload struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversationId"`
		Model          string `json:"model"`
	}
	require.NoError(t, json.Unmarshal(writes[1]["payload"], &payload))
	assert.Equal(t, "hello there", payload.Message)
	assert.Equal(t, "c1", payload.ConversationID)
	assert.Equal(t, "gpt-4", payload.Model)
}

func TestNewSendClearsStaleBuffer(t *testing.T) {
	c, d, st, rec := newTestClient(t)
	authenticate(t, c, d, rec)

	st.AppendStreamingContent("leftover from a superseded reply")

	_, err := c.SendChat("fresh question", "", "")
	require.NoError(t, err)
	assert.Empty(t, st.StreamingContent())
	assert.True(t, st.IsStreaming())
}

// =============================================================================
// STREAMING EVENTS
// =============================================================================

func TestChunksAppendInOrder(t *testing.T) {
	c, d, st, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	gen, err := c.SendChat("hi", "", "")
	require.NoError(t, err)

	conn.push(`{"type":"chat","payload":{"type":"chunk","content":"Hello"}}`)
	conn.push(`{"type":"chat","payload":{"type":"chunk","content":" there"}}`)

	first := rec.waitFor(t, "first chunk", func(m any) bool {
		ch, ok := m.(ChunkMsg)
		return ok && ch.Content == "Hello"
	}).(ChunkMsg)
	assert.Equal(t, gen, first.GenerationID)

	rec.waitFor(t, "second chunk", func(m any) bool {
		ch, ok := m.(ChunkMsg)
		return ok && ch.Content == " there"
	})
	assert.Equal(t, "Hello there", st.StreamingContent())
}

func TestDoneCarriesConversationID(t *testing.T) {
	c, d, _, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	gen, err := c.SendChat("hi", "", "")
	require.NoError(t, err)

	conn.push(`{"type":"chat","payload":{"type":"chunk","content":"Hi"}}`)
	conn.push(`{"type":"chat","payload":{"type":"done","conversationId":"c9"}}`)

	done := rec.waitFor(t, "done event", func(m any) bool {
		_, ok := m.(DoneMsg)
		return ok
	}).(DoneMsg)
	assert.Equal(t, gen, done.GenerationID)
	assert.Equal(t, "c9", done.ConversationID)
}

func TestUnsolicitedChunkMarksStreaming(t *testing.T) {
	c, d, st, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	conn.push(`{"type":"chat","payload":{"type":"chunk","content":"surprise"}}`)

	rec.waitFor(t, "chunk", func(m any) bool {
		_, ok := m.(ChunkMsg)
		return ok
	})
	assert.True(t, st.IsStreaming())
	assert.Equal(t, "surprise", st.StreamingContent())
}

func TestErrorFrameClearsStreaming(t *testing.T) {
	c, d, st, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	gen, err := c.SendChat("hi", "", "")
	require.NoError(t, err)

	conn.push(`{"type":"chat","payload":{"type":"chunk","content":"par"}}`)
	rec.waitFor(t, "chunk", func(m any) bool {
		_, ok := m.(ChunkMsg)
		return ok
	})

	conn.push(`{"type":"error","payload":{"error":"rate limited"}}`)

	streamErr := rec.waitFor(t, "stream error", func(m any) bool {
		_, ok := m.(StreamErrorMsg)
		return ok
	}).(StreamErrorMsg)
	assert.Equal(t, gen, streamErr.GenerationID)
	assert.Equal(t, "par", streamErr.Partial)
	assert.EqualError(t, streamErr.Err, "rate limited")

	assert.False(t, st.IsStreaming())
	assert.Empty(t, st.StreamingContent())
}

func TestMalformedFrameIsDropped(t *testing.T) {
	c, d, _, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	conn.push(`{not json`)
	conn.push(`{"type":"teleport"}`)
	conn.push(`{"type":"chat","payload":{"type":"chunk","content":"still alive"}}`)

	rec.waitFor(t, "chunk after junk", func(m any) bool {
		ch, ok := m.(ChunkMsg)
		return ok && ch.Content == "still alive"
	})
	assert.Equal(t, StateAuthenticated, c.State())
}

// =============================================================================
// RECONNECT
// =============================================================================

func TestReconnectAfterDrop(t *testing.T) {
	c, d, _, rec := newTestClient(t)
	conn := authenticate(t, c, d, rec)

	// Server drops the connection.
	conn.Close()
	rec.waitState(t, StateDisconnected)

	// The fake dialer refuses to open a second socket while the first is
	// still open, so reaching two connections proves ordering too.
	eventually(t, "redial", func() bool { return d.count() == 2 })

	second := d.conn(1)
	eventually(t, "auth on new connection", func() bool {
		return len(second.writes(t)) >= 1
	})
	assert.Equal(t, "auth", frameType(t, second.writes(t)[0]))

	second.push(`{"type":"auth","payload":{"success":true}}`)
	rec.waitState(t, StateAuthenticated)
}

func TestDialFailureRetries(t *testing.T) {
	c, d, _, rec := newTestClient(t)
	d.setFail(errors.New("network down"))

	err := c.Connect(context.Background())
	require.Error(t, err)
	rec.waitState(t, StateDisconnected)

	d.setFail(nil)
	eventually(t, "retry dial", func() bool { return d.count() == 1 })
}

func TestCloseCancelsReconnect(t *testing.T) {
	d := &fakeDialer{}
	st := store.New()
	rec := newRecorder()
	c := NewClient("ws://test/ws", func() string { return "tok" }, st).
		WithDialer(d).
		WithNotify(rec.notify).
		WithReconnectDelay(100 * time.Millisecond)

	require.NoError(t, c.Connect(context.Background()))
	conn := d.conn(0)
	conn.push(`{"type":"auth","payload":{"success":true}}`)
	rec.waitState(t, StateAuthenticated)

	conn.Close()
	rec.waitState(t, StateDisconnected)
	require.NoError(t, c.Close())

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, d.count())

	// A closed client refuses everything.
	require.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	_, err := c.SendChat("hi", "", "")
	require.ErrorIs(t, err, ErrClosed)
}

// =============================================================================
// HEARTBEAT
// =============================================================================

func TestHeartbeatPings(t *testing.T) {
	d := &fakeDialer{}
	st := store.New()
	rec := newRecorder()
	c := NewClient("ws://test/ws", func() string { return "tok" }, st).
		WithDialer(d).
		WithNotify(rec.notify).
		WithHeartbeatInterval(20 * time.Millisecond).
		WithReconnectDelay(time.Hour)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))
	conn := d.conn(0)
	conn.push(`{"type":"auth","payload":{"success":true}}`)
	rec.waitState(t, StateAuthenticated)

	eventually(t, "ping frame", func() bool {
		for _, frame := range conn.writes(t) {
			if frameType(t, frame) == "ping" {
				return true
			}
		}
		return false
	})

	conn.push(`{"type":"pong"}`)
}

func TestSilentServerForcesReconnect(t *testing.T) {
	d := &fakeDialer{}
	st := store.New()
	rec := newRecorder()
	c := NewClient("ws://test/ws", func() string { return "tok" }, st).
		WithDialer(d).
		WithNotify(rec.notify).
		WithHeartbeatInterval(20 * time.Millisecond).
		WithReconnectDelay(10 * time.Millisecond)
	t.Cleanup(func() { c.Close() })

	require.NoError(t, c.Connect(context.Background()))
	conn := d.conn(0)
	conn.push(`{"type":"auth","payload":{"success":true}}`)
	rec.waitState(t, StateAuthenticated)

	// Never answer pings: liveness declares the server gone and redials.
	msg := rec.waitState(t, StateDisconnected)
	require.Error(t, msg.Err)
	eventually(t, "redial after silence", func() bool { return d.count() >= 2 })
}
