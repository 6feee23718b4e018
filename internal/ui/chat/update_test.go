// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/session"
	"github.com/jeranaias/relay-tui/internal/store"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
	"github.com/jeranaias/relay-tui/internal/ws"
)

// =============================================================================
// FAKE SENDER
// =============================================================================

type sentChat struct {
	message        string
	conversationID string
	model          string
}

type fakeSender struct {
	state ws.State
	gen   string
	err   error
	sends []sentChat
}

func (f *fakeSender) SendChat(message, conversationID, modelName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sends = append(f.sends, sentChat{message, conversationID, modelName})
	return f.gen, nil
}

func (f *fakeSender) State() ws.State { return f.state }

// =============================================================================
// SETUP
// =============================================================================

func newTestChat(t *testing.T, sender *fakeSender) (Model, *store.Store) {
	t.Helper()
	st := store.New()
	sess := session.NewManager()
	sess.Establish(model.User{ID: "u1", Name: "Ada", Email: "a@b.com"}, "tok")
	m := New(styles.NewTheme(), st, sess, api.NewClient("http://localhost:0"), sender, "")
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, st
}

func typeAndSubmit(m Model, text string) (Model, tea.Cmd) {
	m.input.SetValue(text)
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func seedConversation(st *store.Store, id, title string) {
	st.SetConversations([]model.Conversation{{ID: id, Title: title}})
	st.SetCurrent(id)
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestSendPrefersStreamWhenAuthenticated(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")

	if len(sender.sends) != 1 {
		t.Fatalf("stream sends = %d, want 1", len(sender.sends))
	}
	if sender.sends[0].conversationID != "c1" {
		t.Errorf("conversationID = %q, want c1", sender.sends[0].conversationID)
	}
	if m.sending {
		t.Error("REST path should not be used while the stream is up")
	}
	if m.currentGeneration != "g1" {
		t.Errorf("generation = %q, want g1", m.currentGeneration)
	}
}

func TestSendFallsBackToRESTWhenStreamDown(t *testing.T) {
	sender := &fakeSender{state: ws.StateDisconnected}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, cmd := typeAndSubmit(m, "hello")

	if len(sender.sends) != 0 {
		t.Error("stream should not be used while disconnected")
	}
	if !m.sending {
		t.Error("REST fallback should mark sending")
	}
	if cmd == nil {
		t.Error("REST fallback should fire a command")
	}
}

func TestSendFallsBackWhenStreamErrors(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, err: errors.New("gone")}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, cmd := typeAndSubmit(m, "hello")

	if !m.sending || cmd == nil {
		t.Error("a failed stream send should fall back to REST")
	}
}

func TestOptimisticUserAppend(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")

	current, _ := st.Current()
	if len(current.Messages) != 1 || current.Messages[0].Role != model.RoleUser {
		t.Fatal("user message should appear immediately")
	}
	if m.pendingUser != "" {
		t.Error("pendingUser should be unused when a conversation is selected")
	}
}

func TestPendingUserWithoutSelection(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)

	m, _ = typeAndSubmit(m, "hello")

	if m.pendingUser != "hello" {
		t.Errorf("pendingUser = %q, want hello", m.pendingUser)
	}
	if st.Count() != 0 {
		t.Error("no conversation should exist before the server names one")
	}
	if sender.sends[0].conversationID != "" {
		t.Error("empty conversationID should be forwarded to start a new conversation")
	}
}

func TestSecondSendWhileBusyRefused(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "first")
	m, _ = typeAndSubmit(m, "second")

	if len(sender.sends) != 1 {
		t.Errorf("sends = %d, want 1 (busy refusal)", len(sender.sends))
	}
	if !strings.Contains(m.errText, "in progress") {
		t.Error("refusal should explain the in-progress reply")
	}
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func TestDoneCommitsExactlyOnce(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")
	st.AppendStreamingContent("Hi")
	st.AppendStreamingContent(" there")
	m, _ = m.Update(ws.ChunkMsg{GenerationID: "g1", Content: " there"})

	m, _ = m.Update(ws.DoneMsg{GenerationID: "g1", ConversationID: "c1"})

	current, _ := st.Current()
	if len(current.Messages) != 2 {
		t.Fatalf("messages = %d, want user + assistant", len(current.Messages))
	}
	last, _ := current.LastMessage()
	if last.Role != model.RoleAssistant || last.Content != "Hi there" {
		t.Errorf("assistant message = %q/%q", last.Role, last.Content)
	}
	if st.StreamingContent() != "" || st.IsStreaming() {
		t.Error("buffer should be cleared in the same update")
	}

	// A duplicate done frame is a no-op.
	m, _ = m.Update(ws.DoneMsg{GenerationID: "g1", ConversationID: "c1"})
	current, _ = st.Current()
	if len(current.Messages) != 2 {
		t.Errorf("duplicate done added a message: %d", len(current.Messages))
	}
}

func TestStaleGenerationIgnored(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g2"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")

	// A done frame for an older send must not commit.
	m, _ = m.Update(ws.DoneMsg{GenerationID: "g1", ConversationID: "c1"})
	current, _ := st.Current()
	if len(current.Messages) != 1 {
		t.Errorf("stale done committed: %d messages", len(current.Messages))
	}
	if m.currentGeneration != "g2" {
		t.Error("current generation should survive a stale done")
	}
}

func TestDoneWithNoSelectionBootstraps(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)

	m, _ = typeAndSubmit(m, "Hello")
	st.AppendStreamingContent("Hi")
	st.AppendStreamingContent(" there")

	m, cmd := m.Update(ws.DoneMsg{GenerationID: "g1", ConversationID: "c1"})
	if cmd == nil {
		t.Fatal("done with no selection should fetch the new conversation")
	}

	// The fetched record is authoritative for the whole exchange.
	loaded := &model.Conversation{
		ID:    "c1",
		Title: "Hello",
		Messages: []model.Message{
			model.NewUserMessage("Hello"),
			model.NewAssistantMessage("Hi there"),
		},
	}
	m, _ = m.Update(conversationLoadedMsg{conv: loaded, selectIt: true})

	current, ok := st.Current()
	if !ok || current.ID != "c1" {
		t.Fatal("bootstrapped conversation should be selected")
	}
	if len(current.Messages) != 2 {
		t.Errorf("messages = %d, want 2", len(current.Messages))
	}
	if m.pendingUser != "" {
		t.Error("pendingUser should clear once the conversation exists")
	}
}

func TestStreamErrorClearsInProgress(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")
	st.AppendStreamingContent("par")

	// The ws client clears the buffer before notifying; mirror that here.
	partial := st.ClearStreamingContent()
	m, _ = m.Update(ws.StreamErrorMsg{GenerationID: "g1", Partial: partial, Err: errors.New("rate limited")})

	if m.currentGeneration != "" {
		t.Error("error should consume the generation")
	}
	if !strings.Contains(m.errText, "rate limited") {
		t.Error("error text should surface the server message")
	}
	current, _ := st.Current()
	if len(current.Messages) != 1 {
		t.Error("no partial commit on error")
	}
}

func TestStateChangeUpdatesStatus(t *testing.T) {
	sender := &fakeSender{state: ws.StateDisconnected}
	m, _ := newTestChat(t, sender)

	m, _ = m.Update(ws.StateChangedMsg{State: ws.StateAuthenticated})
	if !strings.Contains(m.View(), "streaming") {
		t.Error("status bar should show the streaming state")
	}

	m, _ = m.Update(ws.StateChangedMsg{State: ws.StateDisconnected, Err: errors.New("socket closed")})
	view := m.View()
	if !strings.Contains(view, "offline") || !strings.Contains(view, "rest fallback") {
		t.Error("status bar should show offline with the REST fallback hint")
	}
}

// =============================================================================
// REST RESULTS
// =============================================================================

func TestRESTReplyCommits(t *testing.T) {
	sender := &fakeSender{state: ws.StateDisconnected}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")
	m, _ = m.Update(restReplyMsg{result: &api.SendResult{
		ConversationID: "c1",
		Message:        model.NewAssistantMessage("Hi!"),
	}})

	current, _ := st.Current()
	last, _ := current.LastMessage()
	if last.Role != model.RoleAssistant || last.Content != "Hi!" {
		t.Errorf("assistant message = %q/%q", last.Role, last.Content)
	}
	if m.sending {
		t.Error("reply should clear the sending flag")
	}
}

func TestRESTReplyNewConversationBootstraps(t *testing.T) {
	sender := &fakeSender{state: ws.StateDisconnected}
	m, _ := newTestChat(t, sender)

	m, _ = typeAndSubmit(m, "hello")
	m, cmd := m.Update(restReplyMsg{result: &api.SendResult{
		ConversationID: "c7",
		Message:        model.NewAssistantMessage("Hi!"),
	}})
	if cmd == nil {
		t.Error("new-conversation reply should fetch the record")
	}
	if m.pendingUser != "" {
		t.Error("pendingUser should clear on bootstrap")
	}
}

func TestRESTErrorSurfaces(t *testing.T) {
	sender := &fakeSender{state: ws.StateDisconnected}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "hello")
	m, _ = m.Update(restReplyMsg{err: errors.New("server exploded")})

	if !strings.Contains(m.errText, "server exploded") {
		t.Error("REST failure should surface in the status line")
	}
	if m.sending {
		t.Error("failure should clear the sending flag")
	}
}

// =============================================================================
// COMMANDS & SIDEBAR
// =============================================================================

func TestUnknownCommand(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, _ := newTestChat(t, sender)

	m, _ = typeAndSubmit(m, "/teleport")
	if !strings.Contains(m.errText, "unknown command") {
		t.Errorf("errText = %q", m.errText)
	}
	if len(sender.sends) != 0 {
		t.Error("slash commands must never hit the server as chat")
	}
}

func TestNewCommandClearsSelection(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")
	st.AppendStreamingContent("leftover")

	m, _ = typeAndSubmit(m, "/new")

	if _, ok := st.Current(); ok {
		t.Error("/new should clear the selection")
	}
	if st.StreamingContent() != "" {
		t.Error("/new should drop the streaming buffer")
	}
}

func TestRenameRequiresSelectionAndTitle(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated}
	m, st := newTestChat(t, sender)

	m, cmd := typeAndSubmit(m, "/rename New Title")
	if cmd != nil || !strings.Contains(m.errText, "no conversation") {
		t.Error("/rename without a selection should refuse")
	}

	seedConversation(st, "c1", "Test")
	m, cmd = typeAndSubmit(m, "/rename")
	if cmd != nil || !strings.Contains(m.errText, "usage") {
		t.Error("/rename without a title should show usage")
	}

	m, cmd = typeAndSubmit(m, "/rename Better Title")
	if cmd == nil {
		t.Error("/rename with a title should fire the API call")
	}
}

func TestDeletedConversationLeavesStore(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = m.Update(deletedMsg{id: "c1"})

	if st.Count() != 0 {
		t.Error("deleted conversation should leave the store")
	}
	if _, ok := st.Current(); ok {
		t.Error("deleting the selected conversation should clear the selection")
	}
}

func TestModelCommand(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated, gen: "g1"}
	m, st := newTestChat(t, sender)
	seedConversation(st, "c1", "Test")

	m, _ = typeAndSubmit(m, "/model gpt-4o")
	m, _ = typeAndSubmit(m, "question")

	if sender.sends[0].model != "gpt-4o" {
		t.Errorf("model = %q, want gpt-4o", sender.sends[0].model)
	}
}

func TestConversationsLoaded(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated}
	m, st := newTestChat(t, sender)

	m, _ = m.Update(conversationsLoadedMsg{page: &api.ConversationPage{
		Conversations: []model.Conversation{{ID: "c1", Title: "A"}, {ID: "c2", Title: "B"}},
	}})

	if st.Count() != 2 {
		t.Errorf("store count = %d, want 2", st.Count())
	}
}

func TestConversationListShowsPaging(t *testing.T) {
	sender := &fakeSender{state: ws.StateAuthenticated}
	m, _ := newTestChat(t, sender)

	m, _ = m.Update(conversationsLoadedMsg{page: &api.ConversationPage{
		Conversations: []model.Conversation{{ID: "c1", Title: "A"}},
		Pagination:    api.Pagination{Page: 1, Limit: 50, Total: 80, TotalPages: 2},
	}})

	if !strings.Contains(m.View(), "page 1 of 2") {
		t.Error("status line should show the page position when more pages exist")
	}
}
