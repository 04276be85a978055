// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/agentchat/internal/ui/styles"
)

// markdownRenderer formats finished replies. Output is cached per message
// so View stays cheap; a width change rebuilds the renderer and drops the
// cache.
type markdownRenderer struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	cache    map[string]renderedReply
}

type renderedReply struct {
	source string
	out    string
}

func newMarkdownRenderer(theme *styles.Theme) *markdownRenderer {
	return &markdownRenderer{style: glamourStyle(theme), cache: make(map[string]renderedReply)}
}

// glamourStyle picks the standard glamour style matching the theme.
func glamourStyle(theme *styles.Theme) string {
	switch {
	case theme.ColorProfile == termenv.Ascii:
		return "notty"
	case theme.IsDark:
		return "dark"
	default:
		return "light"
	}
}

// Render returns content formatted for width, or content unchanged when
// glamour fails.
func (r *markdownRenderer) Render(id, content string, width int) string {
	if width < 10 {
		return content
	}
	if r.renderer == nil || width != r.width {
		tr, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(r.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		r.renderer = tr
		r.width = width
		r.cache = make(map[string]renderedReply)
	}

	if c, ok := r.cache[id]; ok && c.source == content {
		return c.out
	}
	out, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	r.cache[id] = renderedReply{source: content, out: out}
	return out
}
