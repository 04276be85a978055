// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Palette names colors by what they mark on the chat screen. Every entry
// adapts to light and dark backgrounds.
type Palette struct {
	Brand   lipgloss.AdaptiveColor // title, agent label
	User    lipgloss.AdaptiveColor // user label, prompt
	Success lipgloss.AdaptiveColor // ready, attached file
	Danger  lipgloss.AdaptiveColor // not connected
	Pending lipgloss.AdaptiveColor // typing, stream cursor

	Surface   lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	TextDim   lipgloss.AdaptiveColor
	TextFaint lipgloss.AdaptiveColor

	UserText   lipgloss.AdaptiveColor
	UserRule   lipgloss.AdaptiveColor
	AgentText  lipgloss.AdaptiveColor
	AgentRule  lipgloss.AdaptiveColor
	BannerText lipgloss.AdaptiveColor
	BannerFill lipgloss.AdaptiveColor
}

// DefaultPalette returns the standard agentchat colors.
func DefaultPalette() Palette {
	return Palette{
		Brand:   adaptive("#7C3AED", "#A78BFA"),
		User:    adaptive("#0891B2", "#22D3EE"),
		Success: adaptive("#059669", "#34D399"),
		Danger:  adaptive("#E11D48", "#FB7185"),
		Pending: adaptive("#D97706", "#FBBF24"),

		Surface:   adaptive("#F5F5F5", "#181825"),
		Text:      adaptive("#1F2937", "#CDD6F4"),
		TextDim:   adaptive("#6B7280", "#A6ADC8"),
		TextFaint: adaptive("#9CA3AF", "#6C7086"),

		UserText:   adaptive("#1E40AF", "#E0F2FE"),
		UserRule:   adaptive("#3B82F6", "#3B82F6"),
		AgentText:  adaptive("#5B4B8A", "#E9E4F5"),
		AgentRule:  adaptive("#C4B5FD", "#A78BFA"),
		BannerText: adaptive("#991B1B", "#FECACA"),
		BannerFill: adaptive("#FEE2E2", "#881337"),
	}
}

func adaptive(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}
