// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Slash command registry and the Bubble Tea commands that talk to the
// REST API.
package chat

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/model"
)

// =============================================================================
// RESULT MESSAGES
// =============================================================================

// conversationsLoadedMsg carries one page of the conversation list.
type conversationsLoadedMsg struct {
	page *api.ConversationPage
}

// conversationLoadedMsg carries a full conversation, fetched either for
// sidebar selection or for new-conversation bootstrap after a reply.
type conversationLoadedMsg struct {
	conv     *model.Conversation
	selectIt bool
}

// restReplyMsg carries the result of a blocking REST send.
type restReplyMsg struct {
	result *api.SendResult
	err    error
}

// renamedMsg carries the updated conversation after a rename.
type renamedMsg struct {
	conv *model.Conversation
}

// deletedMsg names a deleted conversation.
type deletedMsg struct {
	id string
}

// errMsg surfaces a background failure.
type errMsg struct {
	err error
}

// infoMsg surfaces a transient notice.
type infoMsg struct {
	text string
}

// =============================================================================
// REST COMMANDS
// =============================================================================

func (m Model) loadConversationsCmd(page int) tea.Cmd {
	client := m.api
	return func() tea.Msg {
		result, err := client.ListConversations(context.Background(), page, 50)
		if err != nil {
			return errMsg{err: err}
		}
		return conversationsLoadedMsg{page: result}
	}
}

func (m Model) fetchConversationCmd(id string, selectIt bool) tea.Cmd {
	client := m.api
	return func() tea.Msg {
		conv, err := client.GetConversation(context.Background(), id)
		if err != nil {
			return errMsg{err: err}
		}
		return conversationLoadedMsg{conv: conv, selectIt: selectIt}
	}
}

func (m Model) sendRESTCmd(text, conversationID string) tea.Cmd {
	client := m.api
	modelName := m.defaultModel
	return func() tea.Msg {
		result, err := client.SendMessage(context.Background(), text, conversationID, modelName)
		return restReplyMsg{result: result, err: err}
	}
}

func (m Model) renameCmd(id, title string) tea.Cmd {
	client := m.api
	return func() tea.Msg {
		conv, err := client.UpdateConversationTitle(context.Background(), id, title)
		if err != nil {
			return errMsg{err: err}
		}
		return renamedMsg{conv: conv}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	client := m.api
	return func() tea.Msg {
		if err := client.DeleteConversation(context.Background(), id); err != nil {
			return errMsg{err: err}
		}
		return deletedMsg{id: id}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// commandHandler mutates the model and may fire a command.
type commandHandler func(m *Model, args []string) tea.Cmd

var commandHandlers = map[string]commandHandler{
	"help":   handleHelpCommand,
	"h":      handleHelpCommand,
	"?":      handleHelpCommand,
	"quit":   handleQuitCommand,
	"q":      handleQuitCommand,
	"exit":   handleQuitCommand,
	"new":    handleNewCommand,
	"n":      handleNewCommand,
	"list":   handleListCommand,
	"l":      handleListCommand,
	"rename": handleRenameCommand,
	"delete": handleDeleteCommand,
	"model":  handleModelCommand,
}

// handleCommand dispatches a /command line.
func (m *Model) handleCommand(line string) tea.Cmd {
	parts := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(parts) == 0 {
		return nil
	}

	handler, ok := commandHandlers[strings.ToLower(parts[0])]
	if !ok {
		m.errText = fmt.Sprintf("unknown command /%s (try /help)", parts[0])
		return nil
	}
	return handler(m, parts[1:])
}

func handleHelpCommand(m *Model, _ []string) tea.Cmd {
	m.showHelp = !m.showHelp
	return nil
}

func handleQuitCommand(_ *Model, _ []string) tea.Cmd {
	return tea.Quit
}

// handleNewCommand starts a fresh conversation. Nothing is created
// server-side until the first message is sent.
func handleNewCommand(m *Model, _ []string) tea.Cmd {
	m.store.ClearCurrent()
	m.store.ClearStreamingContent()
	m.currentGeneration = ""
	m.pendingUser = ""
	m.errText = ""
	m.refreshViewport()
	return nil
}

func handleListCommand(m *Model, _ []string) tea.Cmd {
	m.showSidebar = !m.showSidebar
	m.setSize(m.width, m.height)
	if m.showSidebar {
		return m.loadConversationsCmd(1)
	}
	return nil
}

func handleRenameCommand(m *Model, args []string) tea.Cmd {
	id := m.store.CurrentID()
	if id == "" {
		m.errText = "no conversation selected"
		return nil
	}
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		m.errText = "usage: /rename <new title>"
		return nil
	}
	return m.renameCmd(id, title)
}

func handleDeleteCommand(m *Model, _ []string) tea.Cmd {
	id := m.store.CurrentID()
	if id == "" {
		m.errText = "no conversation selected"
		return nil
	}
	return m.deleteCmd(id)
}

func handleModelCommand(m *Model, args []string) tea.Cmd {
	if len(args) == 0 {
		if m.defaultModel == "" {
			m.errText = "model: server default (set with /model <name>)"
		} else {
			m.errText = "model: " + m.defaultModel
		}
		return nil
	}
	m.defaultModel = args[0]
	return func() tea.Msg {
		return infoMsg{text: "model set to " + args[0]}
	}
}

// helpText lists the slash commands for the help overlay.
func helpText() string {
	return strings.Join([]string{
		"/new            start a new conversation",
		"/list           toggle the conversation sidebar",
		"/rename <title> rename the current conversation",
		"/delete         delete the current conversation",
		"/model [name]   show or set the requested model",
		"/help           toggle this help",
		"/quit           exit",
	}, "\n")
}
