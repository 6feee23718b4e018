// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/session"
	"github.com/jeranaias/relay-tui/internal/store"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
	"github.com/jeranaias/relay-tui/internal/ws"
)

// =============================================================================
// STREAM SENDER
// =============================================================================

// Sender is the streaming side of the send path. The ws client implements
// it; tests substitute a fake.
type Sender interface {
	SendChat(message, conversationID, model string) (string, error)
	State() ws.State
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat surface.
type Model struct {
	// Collaborators
	theme   *styles.Theme
	store   *store.Store
	session *session.Manager
	api     *api.Client
	stream  Sender

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	keys     KeyMap
	renderer *glamour.TermRenderer

	// Dimensions
	width  int
	height int
	ready  bool

	// Connection and streaming state
	connState         ws.State
	currentGeneration string
	pendingUser       string
	sending           bool

	// Sidebar
	showSidebar  bool
	sidebarIndex int

	// Feedback
	errText  string
	showHelp bool

	// Send preferences
	defaultModel string
}

// New creates the chat surface.
func New(theme *styles.Theme, st *store.Store, sess *session.Manager, client *api.Client, stream Sender, defaultModel string) Model {
	input := textinput.New()
	input.Placeholder = "Type a message, or / for commands"
	input.Prompt = "> "
	input.CharLimit = 4096
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.InfoStyle

	m := Model{
		theme:        theme,
		store:        st,
		session:      sess,
		api:          client,
		stream:       stream,
		input:        input,
		spinner:      sp,
		keys:         DefaultKeyMap(),
		connState:    ws.StateDisconnected,
		defaultModel: defaultModel,
	}
	if stream != nil {
		m.connState = stream.State()
	}
	return m
}

// Init starts the blink cursor. The initial conversation list load happens
// here so the sidebar is populated on first paint.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadConversationsCmd(1))
}

// setSize lays out the components for a new terminal size.
func (m *Model) setSize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	chromeHeight := 4 // header + input + status
	vpWidth := width
	if m.sidebarVisible() {
		vpWidth = width - sidebarWidth
	}
	if !m.ready {
		m.viewport = viewport.New(vpWidth, height-chromeHeight)
		m.ready = true
	} else {
		m.viewport.Width = vpWidth
		m.viewport.Height = height - chromeHeight
	}
	m.input.Width = width - 4

	wrap := vpWidth - 4
	if wrap < 20 {
		wrap = 20
	}
	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	); err == nil {
		m.renderer = r
	}
	m.refreshViewport()
}

// sidebarVisible reports whether the sidebar fits and is toggled on.
func (m *Model) sidebarVisible() bool {
	return m.showSidebar && !m.theme.Compact()
}

// streamReady reports whether the send path may use the stream.
func (m *Model) streamReady() bool {
	return m.stream != nil && m.stream.State() == ws.StateAuthenticated
}
