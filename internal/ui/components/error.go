// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentchat/internal/ui/styles"
	"github.com/jeranaias/agentchat/internal/util"
)

// RenderErrorBanner renders d on one line: icon, title, message and the
// first suggestion, truncated to width.
func RenderErrorBanner(theme *styles.Theme, d ErrorDisplay, width int) string {
	var b strings.Builder
	b.WriteString("✗ ")
	b.WriteString(d.Title)
	if d.Message != "" {
		b.WriteString(": ")
		b.WriteString(util.SingleLine(d.Message))
	}
	if hint := d.Hint(); hint != "" {
		b.WriteString(" · ")
		b.WriteString(hint)
	}

	style := theme.ErrorBanner
	if width > 0 {
		style = style.MaxWidth(width)
	}
	return style.Render(b.String())
}

// RenderErrorBlock renders d over several lines with every suggestion.
func RenderErrorBlock(d ErrorDisplay, titleStyle, dim lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(d.Title))
	if d.Message != "" {
		b.WriteString("\n  ")
		b.WriteString(d.Message)
	}
	for _, s := range d.Suggestions {
		b.WriteString("\n  ")
		b.WriteString(dim.Render("→ " + s))
	}
	return b.String()
}
