// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/util"
	"github.com/jeranaias/relay-tui/internal/ws"
)

// sidebarWidth is the fixed width of the conversation list.
const sidebarWidth = 28

// View renders the chat surface.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	body := m.viewport.View()
	if m.sidebarVisible() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}
	b.WriteString(body)
	b.WriteString("\n")

	if m.showHelp {
		b.WriteString(m.theme.Container.Render(helpText()))
		b.WriteString("\n")
	}

	b.WriteString(m.theme.InputContainer.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// renderHeader shows the app name and the signed-in user.
func (m Model) renderHeader() string {
	user := m.session.User()
	who := user.Name
	if who == "" {
		who = user.Email
	}
	left := m.theme.HeaderTitle.Render("relay")
	right := m.theme.HeaderMeta.Render(who)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// renderSidebar shows the conversation list, newest first.
func (m Model) renderSidebar() string {
	convs := m.store.Conversations()
	currentID := m.store.CurrentID()

	var b strings.Builder
	b.WriteString(m.theme.ConvMeta.Render(fmt.Sprintf("conversations (%d)", len(convs))))
	b.WriteString("\n")

	for i, conv := range convs {
		title := util.TruncateWidth(conv.GetTitle(), sidebarWidth-6)
		line := title
		if conv.ID == currentID {
			line = "* " + line
		}
		if i == m.sidebarIndex {
			b.WriteString(m.theme.ConvItemSelected.Render(line))
		} else {
			b.WriteString(m.theme.ConvItem.Render(line))
		}
		b.WriteString("\n")
	}
	if len(convs) == 0 {
		b.WriteString(m.theme.ConvMeta.Render("none yet"))
		b.WriteString("\n")
	}

	return m.theme.ConvList.
		Width(sidebarWidth - 2).
		Height(m.viewport.Height - 2).
		Render(b.String())
}

// renderStatusBar shows connection state, transport, and shortcuts.
func (m Model) renderStatusBar() string {
	var conn string
	switch m.connState {
	case ws.StateAuthenticated:
		conn = m.theme.StatusConnected.Render("● streaming")
	case ws.StateConnected:
		conn = m.theme.StatusConnecting.Render("● authenticating")
	case ws.StateConnecting:
		conn = m.theme.StatusConnecting.Render("● connecting")
	default:
		conn = m.theme.StatusDisconnected.Render("● offline") + " " +
			m.theme.StatusFallback.Render("(rest fallback)")
	}

	parts := []string{conn}
	if m.defaultModel != "" {
		parts = append(parts, m.theme.ShortcutDesc.Render("model:"+m.defaultModel))
	}
	if m.errText != "" {
		parts = append(parts, m.theme.FormError.Render(util.TruncateWidth(m.errText, m.width/2)))
	}

	var shortcuts []string
	for _, binding := range m.keys.ShortHelp() {
		shortcuts = append(shortcuts,
			m.theme.ShortcutKey.Render(binding.Help().Key)+" "+
				m.theme.ShortcutDesc.Render(binding.Help().Desc))
	}
	parts = append(parts, strings.Join(shortcuts, "  "))

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}
