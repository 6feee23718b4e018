// relay TUI - a terminal client for the relay chat server.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/relay-tui/internal/api"
	"github.com/jeranaias/relay-tui/internal/config"
	"github.com/jeranaias/relay-tui/internal/session"
	"github.com/jeranaias/relay-tui/internal/store"
	"github.com/jeranaias/relay-tui/internal/ui/chat"
	"github.com/jeranaias/relay-tui/internal/ui/login"
	"github.com/jeranaias/relay-tui/internal/ui/styles"
	"github.com/jeranaias/relay-tui/internal/ws"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global program reference for async streaming. The ws client runs on its
// own goroutines; its events enter the Bubble Tea loop through
// program.Send.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

func notifyProgram(msg any) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func main() {
	opts, cmd, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(2)
	}

	switch cmd {
	case "version":
		fmt.Printf("relay %s (%s, built %s)\n", Version, GitCommit, BuildDate)
	case "help":
		printUsage()
	case "logout":
		if err := handleLogout(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Logged out.")
	case "login":
		runTUI(opts, true)
	default:
		runTUI(opts, false)
	}
}

// options are the command-line overrides.
type options struct {
	serverURL  string
	configPath string
}

func parseArgs(args []string) (options, string, error) {
	var opts options
	cmd := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--server":
			if i+1 >= len(args) {
				return opts, "", errors.New("--server requires a URL")
			}
			i++
			opts.serverURL = args[i]
		case "--config":
			if i+1 >= len(args) {
				return opts, "", errors.New("--config requires a path")
			}
			i++
			opts.configPath = args[i]
		case "login", "logout", "version", "help":
			cmd = args[i]
		case "-h", "--help":
			cmd = "help"
		default:
			return opts, "", fmt.Errorf("unknown argument %q", args[i])
		}
	}
	return opts, cmd, nil
}

func printUsage() {
	fmt.Println(`relay - terminal chat client

Usage:
  relay [flags]            start the chat TUI
  relay login              start at the sign-in form, ignoring any saved session
  relay logout             remove the saved session
  relay version            print version information

Flags:
  --server <url>   override the server base URL
  --config <path>  use an explicit config file`)
}

func handleLogout() error {
	dir, err := session.DefaultDir()
	if err != nil {
		return err
	}
	return session.Remove(dir)
}

// =============================================================================
// TUI STARTUP
// =============================================================================

func runTUI(opts options, forceLogin bool) {
	// Logs go to a file; stdout belongs to the TUI.
	if dir, err := session.DefaultDir(); err == nil {
		if err := os.MkdirAll(dir, 0755); err == nil {
			if f, err := os.OpenFile(dir+"/relay.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
				log.SetOutput(f)
				defer f.Close()
			}
		}
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sess := session.NewManager()
	stateDir, err := session.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.Server.BaseURL).WithTokenSource(sess.Token)

	if !forceLogin {
		restoreSession(sess, client, stateDir)
	}

	st := store.New()
	stream := ws.NewClient(cfg.WebSocketURL(), sess.Token, st).
		WithNotify(notifyProgram).
		WithHeartbeatInterval(time.Duration(cfg.Stream.HeartbeatSecs) * time.Second).
		WithReconnectDelay(time.Duration(cfg.Stream.ReconnectDelaySecs) * time.Second)
	defer stream.Close()

	app := newApp(cfg, sess, client, st, stream, stateDir)

	p := tea.NewProgram(app, tea.WithAltScreen())
	programMu.Lock()
	programRef = p
	programMu.Unlock()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFromPath(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.serverURL != "" {
		cfg.Server.BaseURL = opts.serverURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// restoreSession loads a saved session and checks the token against the
// server. A rejected token is cleared; a network failure keeps the session
// and lets the TUI surface the problem.
func restoreSession(sess *session.Manager, client *api.Client, dir string) {
	if err := sess.Restore(dir); err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("session restore: %v", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Me(ctx); err != nil {
		if errors.Is(err, api.ErrAuthFailed) {
			log.Printf("saved session rejected, clearing")
			sess.Clear()
			session.Remove(dir)
		} else {
			log.Printf("session check failed, keeping session: %v", err)
		}
	}
}

// =============================================================================
// ROOT MODEL
// =============================================================================

// view names the active surface.
type view int

const (
	viewLogin view = iota
	viewChat
)

// app is the root Bubble Tea model: it owns the login form and the chat
// surface and switches between them.
type app struct {
	cfg      *config.Config
	sess     *session.Manager
	client   *api.Client
	store    *store.Store
	stream   *ws.Client
	stateDir string

	active view
	login  login.Model
	chat   chat.Model

	width  int
	height int
}

func newApp(cfg *config.Config, sess *session.Manager, client *api.Client, st *store.Store, stream *ws.Client, stateDir string) app {
	theme := styles.NewTheme()

	a := app{
		cfg:      cfg,
		sess:     sess,
		client:   client,
		store:    st,
		stream:   stream,
		stateDir: stateDir,
		login:    login.New(theme, client),
		chat:     chat.New(theme, st, sess, client, stream, cfg.Server.DefaultModel),
	}
	if sess.IsAuthenticated() {
		a.active = viewChat
	}
	return a
}

func (a app) Init() tea.Cmd {
	if a.active == viewChat {
		return tea.Batch(a.chat.Init(), connectStreamCmd(a.stream))
	}
	return a.login.Init()
}

// connectStreamCmd opens the streaming connection. Failures schedule their
// own retries and surface through the notify bridge.
func connectStreamCmd(stream *ws.Client) tea.Cmd {
	return func() tea.Msg {
		if err := stream.Connect(context.Background()); err != nil {
			log.Printf("stream connect: %v", err)
		}
		return nil
	}
}

func (a app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		var loginCmd, chatCmd tea.Cmd
		a.login, loginCmd = a.login.Update(msg)
		a.chat, chatCmd = a.chat.Update(msg)
		return a, tea.Batch(loginCmd, chatCmd)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}

	case login.SucceededMsg:
		a.sess.Establish(msg.User, msg.Token)
		if err := a.sess.Save(a.stateDir); err != nil {
			log.Printf("session save: %v", err)
		}
		a.active = viewChat
		return a, tea.Batch(a.chat.Init(), connectStreamCmd(a.stream))
	}

	var cmd tea.Cmd
	switch a.active {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewChat:
		a.chat, cmd = a.chat.Update(msg)
	}
	return a, cmd
}

func (a app) View() string {
	switch a.active {
	case viewChat:
		return a.chat.View()
	default:
		return a.login.View()
	}
}
