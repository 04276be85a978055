// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/ui/styles"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds display options.
type Config struct {
	// File is attached to every message sent from this screen.
	File *chat.FileRef

	ShowTimestamps bool

	// BackendURL is shown in the header.
	BackendURL string

	// Markdown formats finished replies with glamour.
	Markdown bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the chat screen.
type Model struct {
	ctrl   *chat.Controller
	bridge *Bridge
	theme  *styles.Theme
	cfg    Config
	keys   KeyMap
	md     *markdownRenderer // nil when Markdown is off

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model

	width  int
	height int
	ready  bool // viewport sized

	started bool // bootstrap succeeded
	busy    bool
	err     error
}

// New creates the chat screen for ctrl. The bridge must be the one whose
// callbacks were installed into the controller's options.
func New(ctrl *chat.Controller, bridge *Bridge, theme *styles.Theme, cfg Config) Model {
	if theme == nil {
		theme = styles.NewTheme()
	}
	bridge.Watch(ctrl.Session().Log())

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "› "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.StatusBusy

	var md *markdownRenderer
	if cfg.Markdown {
		md = newMarkdownRenderer(theme)
	}

	return Model{
		ctrl:     ctrl,
		md:       md,
		bridge:   bridge,
		theme:    theme,
		cfg:      cfg,
		keys:     DefaultKeyMap(),
		input:    input,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		help:     help.New(),
	}
}

// Init starts the bootstrap and the event loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.bootstrapCmd(),
		m.bridge.Next(),
	)
}

func (m Model) bootstrapCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		err := ctrl.Bootstrap(context.Background())
		return BootstrapDoneMsg{ConversationID: ctrl.ConversationID(), Err: err}
	}
}

// Busy reports whether a reply is in flight.
func (m Model) Busy() bool {
	return m.busy
}

// Err returns the error currently shown in the banner.
func (m Model) Err() error {
	return m.err
}

// Input returns the current input text.
func (m Model) Input() string {
	return m.input.Value()
}
