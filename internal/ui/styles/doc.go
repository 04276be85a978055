// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the agentchat TUI.
//
// All colors are lipgloss.AdaptiveColor values, so they follow the
// terminal's light or dark background. NewTheme detects the color profile
// with termenv and honours NO_COLOR.
package styles
