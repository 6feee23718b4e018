// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Message rendering for the viewport.
package chat

import (
	"strings"

	"github.com/jeranaias/relay-tui/internal/model"
)

// refreshViewport rebuilds the viewport content from the store.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
}

// renderMessages renders the selected conversation's history, the
// optimistic user line, and the streaming buffer.
func (m *Model) renderMessages() string {
	var b strings.Builder

	current, selected := m.store.Current()
	switch {
	case selected:
		b.WriteString(m.theme.HeaderTitle.Render(current.GetTitle()))
		b.WriteString("\n\n")
		for _, msg := range current.Messages {
			b.WriteString(m.renderMessage(msg))
			b.WriteString("\n")
		}
	case m.pendingUser != "" || m.store.IsStreaming():
		b.WriteString(m.theme.HeaderMeta.Render("New conversation"))
		b.WriteString("\n\n")
	default:
		return m.renderWelcome()
	}

	if m.pendingUser != "" {
		b.WriteString(m.renderMessage(model.NewUserMessage(m.pendingUser)))
		b.WriteString("\n")
	}

	if streaming := m.store.StreamingContent(); streaming != "" {
		b.WriteString(m.theme.AssistantBubble.Render(streaming))
		b.WriteString(" ")
		b.WriteString(m.theme.StreamingMark.Render("▌"))
		b.WriteString("\n")
	} else if m.busy() {
		b.WriteString(m.spinner.View())
		b.WriteString(m.theme.HeaderMeta.Render(" thinking..."))
		b.WriteString("\n")
	}

	return b.String()
}

// renderMessage renders one message bubble with its timestamp.
func (m *Model) renderMessage(msg model.Message) string {
	meta := m.theme.MessageMeta.Render(msg.Timestamp.Local().Format("15:04"))

	switch msg.Role {
	case model.RoleUser:
		return m.theme.UserBubble.Render(msg.Content) + " " + meta
	case model.RoleAssistant:
		return m.theme.AssistantBubble.Render(m.renderMarkdown(msg.Content)) + " " + meta
	default:
		return m.theme.SystemBubble.Render(msg.Content)
	}
}

// renderMarkdown renders assistant markdown, falling back to the raw text
// when the renderer is unavailable or chokes.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// renderWelcome fills the viewport when nothing is selected.
func (m *Model) renderWelcome() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("relay"))
	b.WriteString("\n\n")
	b.WriteString(m.theme.HeaderMeta.Render("Type a message to start a conversation."))
	b.WriteString("\n")
	b.WriteString(m.theme.HeaderMeta.Render("Ctrl+L lists previous conversations, /help shows commands."))
	return b.String()
}
