// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat/internal/chat"
)

// Update handles tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case BootstrapDoneMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.started = true
		m.refresh()
		return m, nil

	case LogChangedMsg:
		m.refresh()
		return m, m.bridge.Next()

	case BusyMsg:
		m.busy = msg.Busy
		var cmd tea.Cmd
		if m.busy {
			cmd = m.spinner.Tick
		}
		m.refresh()
		return m, tea.Batch(cmd, m.bridge.Next())

	case ErrorMsg:
		m.err = msg.Err
		return m, m.bridge.Next()

	case bridgeClosedMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.bridge.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.Cancel()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.ViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.ViewDown()
		return m, nil

	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m = m.handleResize(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input. Input is kept when the send is refused so the
// user can retry.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	_, err := m.ctrl.Send(text, m.cfg.File)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return m, nil
	case err != nil:
		m.err = err
		return m, nil
	}
	m.err = nil
	m.input.Reset()
	m.viewport.GotoBottom()
	return m, nil
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.help.Width = msg.Width
	m.input.Width = max(msg.Width-4, 10)

	// header + status + input + help
	chrome := 4
	if m.help.ShowAll {
		chrome += 3
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = max(msg.Height-chrome, 1)
	m.ready = msg.Width > 0 && msg.Height > 0
	m.refresh()
	return m
}

// refresh re-renders the log into the viewport and follows the tail when
// the view was already at the bottom.
func (m *Model) refresh() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if follow {
		m.viewport.GotoBottom()
	}
}
