// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// renderMarkdown formats content for a terminal width columns wide. The
// auto style follows the terminal background; without colors the notty
// style is used. content is returned unchanged when glamour fails.
func renderMarkdown(content string, width int, colors bool) string {
	style := glamour.WithStandardStyle("notty")
	if colors {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
