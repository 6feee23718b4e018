// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package login

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/model"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
)

// =============================================================================
// FORM MODES
// =============================================================================

// Mode selects which form is shown.
type Mode int

const (
	ModeLogin Mode = iota
	ModeRegister
)

// Field indexes into the input slice. Name only exists in register mode.
const (
	fieldEmail = iota
	fieldPassword
	fieldName
	fieldCount
)

// =============================================================================
// MESSAGES
// =============================================================================

// SucceededMsg reports a successful login or registration to the root
// model.
type SucceededMsg struct {
	User  model.User
	Token string
}

// failedMsg carries the error shown under the form.
type failedMsg struct {
	err error
}

// =============================================================================
// LOGIN MODEL
// =============================================================================

// Model is the Bubble Tea model for the auth form.
type Model struct {
	theme *styles.Theme
	api   *api.Client

	mode       Mode
	inputs     []textinput.Model
	focus      int
	submitting bool
	errText    string

	width  int
	height int
}

// New creates the auth form in login mode.
func New(theme *styles.Theme, client *api.Client) Model {
	inputs := make([]textinput.Model, fieldCount)

	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = "email    > "
	email.CharLimit = 128
	email.Focus()
	inputs[fieldEmail] = email

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "password > "
	password.CharLimit = 128
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	inputs[fieldPassword] = password

	name := textinput.New()
	name.Placeholder = "display name"
	name.Prompt = "name     > "
	name.CharLimit = 64
	inputs[fieldName] = name

	return Model{
		theme:  theme,
		api:    client,
		mode:   ModeLogin,
		inputs: inputs,
	}
}

// Init starts the blink cursor.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Mode returns the active form mode.
func (m Model) Mode() Mode {
	return m.mode
}

// fieldCountForMode returns how many inputs the active mode uses.
func (m Model) fieldCountForMode() int {
	if m.mode == ModeRegister {
		return fieldCount
	}
	return fieldName // email + password
}

// =============================================================================
// UPDATE
// =============================================================================

// Update processes one message and returns the next model state.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case failedMsg:
		m.submitting = false
		m.errText = msg.err.Error()
		return m, nil

	case SucceededMsg:
		// The root model swaps views; nothing to do here.
		m.submitting = false
		return m, nil

	case tea.KeyMsg:
		if m.submitting {
			return m, nil
		}
		switch msg.String() {
		case "tab":
			m.toggleMode()
			return m, nil
		case "up", "shift+tab":
			m.setFocus(m.focus - 1)
			return m, nil
		case "down":
			m.setFocus(m.focus + 1)
			return m, nil
		case "enter":
			if m.focus < m.fieldCountForMode()-1 {
				m.setFocus(m.focus + 1)
				return m, nil
			}
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// toggleMode flips between login and registration, keeping typed values.
func (m *Model) toggleMode() {
	if m.mode == ModeLogin {
		m.mode = ModeRegister
	} else {
		m.mode = ModeLogin
	}
	m.errText = ""
	if m.focus >= m.fieldCountForMode() {
		m.setFocus(m.fieldCountForMode() - 1)
	}
}

// setFocus moves focus to the given field, wrapping at the edges.
func (m *Model) setFocus(idx int) {
	count := m.fieldCountForMode()
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.inputs[m.focus].Blur()
	m.focus = idx
	m.inputs[m.focus].Focus()
}

// submit validates the form and fires the API call.
func (m Model) submit() (Model, tea.Cmd) {
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	name := strings.TrimSpace(m.inputs[fieldName].Value())

	if email == "" || password == "" {
		m.errText = "email and password are required"
		return m, nil
	}
	if m.mode == ModeRegister && name == "" {
		m.errText = "name is required to register"
		return m, nil
	}

	m.submitting = true
	m.errText = ""

	client := m.api
	mode := m.mode
	return m, func() tea.Msg {
		ctx := context.Background()
		var result *api.AuthResult
		var err error
		if mode == ModeRegister {
			result, err = client.Register(ctx, api.Registration{
				Email:    email,
				Password: password,
				Name:     name,
			})
		} else {
			result, err = client.Login(ctx, api.Credentials{
				Email:    email,
				Password: password,
			})
		}
		if err != nil {
			return failedMsg{err: err}
		}
		return SucceededMsg{User: result.User, Token: result.Token}
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the form centered in the terminal.
func (m Model) View() string {
	var b strings.Builder

	title := "Sign in to relay"
	hint := "tab: register instead"
	if m.mode == ModeRegister {
		title = "Create a relay account"
		hint = "tab: sign in instead"
	}
	b.WriteString(m.theme.FormTitle.Render(title))
	b.WriteString("\n\n")

	for i := 0; i < m.fieldCountForMode(); i++ {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.submitting:
		b.WriteString(m.theme.FormHint.Render("signing in..."))
	case m.errText != "":
		b.WriteString(m.theme.FormError.Render(m.errText))
	default:
		b.WriteString(m.theme.FormHint.Render("enter: submit  " + hint))
	}

	box := m.theme.FormBox.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
