// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/ws"
)

// Update processes one message and returns the next model state.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.setSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	// Streaming events bridged in from the ws client.
	case ws.StateChangedMsg:
		return m.handleStateChange(msg)
	case ws.AuthRejectedMsg:
		m.errText = "stream auth rejected: " + msg.Reason
		return m, nil
	case ws.ChunkMsg:
		return m.handleChunk(msg)
	case ws.DoneMsg:
		return m.handleDone(msg)
	case ws.StreamErrorMsg:
		return m.handleStreamError(msg)

	// REST results.
	case conversationsLoadedMsg:
		m.store.SetConversations(msg.page.Conversations)
		m.clampSidebarIndex()
		if p := msg.page.Pagination; p.TotalPages > 1 {
			m.errText = fmt.Sprintf("showing page %d of %d", p.Page, p.TotalPages)
		}
		m.refreshViewport()
		return m, nil
	case conversationLoadedMsg:
		return m.handleConversationLoaded(msg)
	case restReplyMsg:
		return m.handleRESTReply(msg)
	case renamedMsg:
		m.store.UpdateConversation(*msg.conv)
		m.refreshViewport()
		return m, nil
	case deletedMsg:
		m.store.RemoveConversation(msg.id)
		m.clampSidebarIndex()
		m.refreshViewport()
		return m, nil
	case errMsg:
		m.errText = msg.err.Error()
		m.sending = false
		return m, nil
	case infoMsg:
		m.errText = msg.text
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// busy reports whether a reply is pending on either path.
func (m Model) busy() bool {
	return m.sending || m.currentGeneration != ""
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Sidebar):
		return m, m.handleCommand("/list")

	case key.Matches(msg, m.keys.Up):
		if m.sidebarVisible() {
			if m.sidebarIndex > 0 {
				m.sidebarIndex--
			}
			return m, nil
		}
		m.viewport.LineUp(1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.sidebarVisible() {
			if m.sidebarIndex < m.store.Count()-1 {
				m.sidebarIndex++
			}
			return m, nil
		}
		m.viewport.LineDown(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.sidebarVisible() {
			return m.selectFromSidebar()
		}
		return m.submitInput()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// selectFromSidebar opens the highlighted conversation. The full history
// comes from the REST path; the list entries carry previews only.
func (m Model) selectFromSidebar() (Model, tea.Cmd) {
	convs := m.store.Conversations()
	if m.sidebarIndex >= len(convs) {
		return m, nil
	}
	picked := convs[m.sidebarIndex]
	m.showSidebar = false
	m.setSize(m.width, m.height)
	return m, m.fetchConversationCmd(picked.ID, true)
}

func (m *Model) clampSidebarIndex() {
	if count := m.store.Count(); m.sidebarIndex >= count {
		m.sidebarIndex = count - 1
	}
	if m.sidebarIndex < 0 {
		m.sidebarIndex = 0
	}
}

// =============================================================================
// SENDING
// =============================================================================

// submitInput sends the typed line: slash commands dispatch locally,
// everything else goes to the server. The stream is preferred; the REST
// path is the fallback when the stream is not authenticated.
func (m Model) submitInput() (Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}
	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		return m, m.handleCommand(text)
	}
	if m.busy() {
		m.errText = "a reply is still in progress"
		return m, nil
	}

	m.input.Reset()
	m.errText = ""
	conversationID := m.store.CurrentID()

	// Optimistic append: the user message shows immediately. With no
	// selection it is held aside until the server names the conversation.
	if conversationID != "" {
		m.store.AddMessageToCurrent(model.NewUserMessage(text))
	} else {
		m.pendingUser = text
	}

	if m.streamReady() {
		generation, err := m.stream.SendChat(text, conversationID, m.defaultModel)
		if err == nil {
			m.currentGeneration = generation
			m.refreshViewport()
			m.viewport.GotoBottom()
			return m, m.spinner.Tick
		}
		// The stream went away between the check and the send; fall
		// through to REST.
	}

	m.sending = true
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, tea.Batch(m.sendRESTCmd(text, conversationID), m.spinner.Tick)
}

// =============================================================================
// STREAM EVENTS
// =============================================================================

func (m Model) handleStateChange(msg ws.StateChangedMsg) (Model, tea.Cmd) {
	m.connState = msg.State
	if msg.Err != nil {
		m.errText = "stream: " + msg.Err.Error()
	}
	return m, nil
}

func (m Model) handleChunk(msg ws.ChunkMsg) (Model, tea.Cmd) {
	// The content is already in the store's streaming buffer; this event
	// only triggers a repaint. Chunks from a superseded send are ignored.
	if m.currentGeneration != "" && msg.GenerationID != m.currentGeneration {
		return m, nil
	}
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

// handleDone commits the streamed reply exactly once. The generation is
// consumed first, so a duplicate done frame finds nothing to commit.
func (m Model) handleDone(msg ws.DoneMsg) (Model, tea.Cmd) {
	if m.currentGeneration == "" || msg.GenerationID != m.currentGeneration {
		return m, nil
	}
	m.currentGeneration = ""

	content := m.store.ClearStreamingContent()

	current, selected := m.store.Current()
	if selected && current.ID == msg.ConversationID {
		if content != "" {
			m.store.AddMessage(current.ID, model.NewAssistantMessage(content))
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil
	}

	// The reply landed in a conversation we are not holding, usually a
	// brand new one. The server copy already has both sides of the
	// exchange; fetch it, select it, and drop the local buffer.
	m.pendingUser = ""
	return m, m.fetchConversationCmd(msg.ConversationID, true)
}

func (m Model) handleStreamError(msg ws.StreamErrorMsg) (Model, tea.Cmd) {
	if m.currentGeneration != "" && msg.GenerationID != m.currentGeneration {
		return m, nil
	}
	m.currentGeneration = ""
	m.errText = "stream: " + msg.Err.Error()
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// REST RESULTS
// =============================================================================

func (m Model) handleConversationLoaded(msg conversationLoadedMsg) (Model, tea.Cmd) {
	m.store.AddConversation(*msg.conv)
	if msg.selectIt {
		m.store.SetCurrent(msg.conv.ID)
		m.pendingUser = ""
	}
	m.refreshViewport()
	m.viewport.GotoBottom()
	return m, nil
}

func (m Model) handleRESTReply(msg restReplyMsg) (Model, tea.Cmd) {
	m.sending = false
	if msg.err != nil {
		m.errText = msg.err.Error()
		m.refreshViewport()
		return m, nil
	}

	current, selected := m.store.Current()
	if selected && current.ID == msg.result.ConversationID {
		m.store.AddMessage(current.ID, model.NewAssistantMessage(msg.result.Message.Content))
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil
	}

	// New conversation: fetch the authoritative record.
	m.pendingUser = ""
	return m, m.fetchConversationCmd(msg.result.ConversationID, true)
}
