// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	ColorProfile termenv.Profile
	IsDark       bool
	Palette      Palette

	Width  int
	Height int

	// Header
	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// Messages
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantBody  lipgloss.Style
	Timestamp      lipgloss.Style
	Cursor         lipgloss.Style

	// Status
	StatusReady     lipgloss.Style
	StatusBusy      lipgloss.Style
	StatusError     lipgloss.Style
	ErrorBanner     lipgloss.Style
	TypingIndicator lipgloss.Style

	// Input and help
	InputPrompt lipgloss.Style
	FileBadge   lipgloss.Style
	Muted       lipgloss.Style
	Help        lipgloss.Style
}

// NewTheme detects the terminal's color support and builds the styles
// from DefaultPalette. NO_COLOR forces the ASCII profile.
func NewTheme() *Theme {
	return NewThemeWithPalette(DefaultPalette())
}

// NewThemeWithPalette is NewTheme with custom colors.
func NewThemeWithPalette(p Palette) *Theme {
	profile := termenv.ColorProfile()
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)

	t := &Theme{
		ColorProfile: profile,
		IsDark:       termenv.HasDarkBackground(),
		Palette:      p,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	p := t.Palette

	t.Header = lipgloss.NewStyle().
		Background(p.Surface).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Brand)
	t.HeaderSubtitle = lipgloss.NewStyle().
		Foreground(p.TextDim)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.User)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Brand)
	t.UserBubble = bodyStyle(p.UserText, p.UserRule)
	t.AssistantBody = bodyStyle(p.AgentText, p.AgentRule)
	t.Timestamp = lipgloss.NewStyle().
		Foreground(p.TextFaint)
	t.Cursor = lipgloss.NewStyle().
		Foreground(p.Pending).
		Bold(true)

	t.StatusReady = lipgloss.NewStyle().Foreground(p.Success)
	t.StatusBusy = lipgloss.NewStyle().Foreground(p.Pending)
	t.StatusError = lipgloss.NewStyle().Foreground(p.Danger)
	t.ErrorBanner = lipgloss.NewStyle().
		Foreground(p.BannerText).
		Background(p.BannerFill).
		Padding(0, 1)
	t.TypingIndicator = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Italic(true)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(p.User).
		Bold(true)
	t.FileBadge = lipgloss.NewStyle().
		Foreground(p.Success)
	t.Muted = lipgloss.NewStyle().Foreground(p.TextFaint)
	t.Help = lipgloss.NewStyle().Foreground(p.TextDim)
}

// bodyStyle draws a message body with a colored rule on its left edge.
func bodyStyle(fg, rule lipgloss.AdaptiveColor) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(fg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(rule).
		PaddingLeft(1)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth is the width available to message bodies.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		return 20
	}
	return w
}
