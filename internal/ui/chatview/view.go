// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/ui/components"
)

const (
	appTitle     = "agentchat"
	streamCursor = "▌"
	timeFormat   = "15:04"
)

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.Help.Render(m.help.View(m.keys)))
	return b.String()
}

// =============================================================================
// HEADER / STATUS
// =============================================================================

func (m Model) renderHeader() string {
	t := m.theme
	parts := []string{t.HeaderTitle.Render(appTitle)}

	switch id := m.ctrl.ConversationID(); {
	case id != "":
		parts = append(parts, t.HeaderSubtitle.Render("conversation "+shortID(id)))
	case m.err != nil && !m.started:
		parts = append(parts, t.StatusError.Render("not connected"))
	default:
		parts = append(parts, t.HeaderSubtitle.Render("connecting..."))
	}
	if m.cfg.BackendURL != "" {
		parts = append(parts, t.Muted.Render(m.cfg.BackendURL))
	}
	if m.cfg.File != nil {
		parts = append(parts, t.FileBadge.Render("📄 "+fileLabel(m.cfg.File.ID, m.cfg.File.Name)))
	}

	return t.Header.Width(m.width).MaxWidth(m.width).Render(strings.Join(parts, "  "))
}

func (m Model) renderStatus() string {
	t := m.theme
	switch {
	case m.err != nil:
		return components.RenderErrorBanner(t, components.Explain(m.err), t.Width)
	case m.busy:
		return m.spinner.View() + " " + t.TypingIndicator.Render("Agent is typing...")
	case m.started:
		return t.StatusReady.Render("● ready")
	default:
		return t.Muted.Render("○ connecting")
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func (m Model) renderMessages() string {
	msgs := m.ctrl.Messages()
	if len(msgs) == 0 {
		return m.theme.Muted.Render("No messages yet. Say hello.")
	}

	openID := m.ctrl.Session().OpenMessageID()
	width := m.theme.ContentWidth()

	blocks := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		blocks = append(blocks, m.renderMessage(msg, msg.ID == openID && m.busy, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, streaming bool, width int) string {
	t := m.theme

	label := t.AssistantLabel.Render(msg.Role.DisplayName())
	body := t.AssistantBody
	if msg.IsUser() {
		label = t.UserLabel.Render(msg.Role.DisplayName())
		body = t.UserBubble
	}
	if m.cfg.ShowTimestamps && !msg.Timestamp.IsZero() {
		label += " " + t.Timestamp.Render(msg.Timestamp.Local().Format(timeFormat))
	}

	content := msg.Content
	switch {
	case streaming:
		content += t.Cursor.Render(streamCursor)
	case m.md != nil && msg.IsAssistant() && content != "":
		content = m.md.Render(msg.ID, content, width-body.GetHorizontalFrameSize())
	}
	if content == "" {
		content = t.Muted.Render("(no reply)")
	}

	return lipgloss.JoinVertical(lipgloss.Left, label, body.Width(width).Render(content))
}

// =============================================================================
// HELPERS
// =============================================================================

// shortID abbreviates long identifiers for the header.
func shortID(id string) string {
	if runewidth.StringWidth(id) <= 12 {
		return id
	}
	return runewidth.Truncate(id, 12, "…")
}

func fileLabel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
