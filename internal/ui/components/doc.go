// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable pieces of the agentchat TUI.
//
// ErrorPatternMatcher turns controller and backend errors into a titled
// ErrorDisplay with suggestions. The CLI uses the same matcher so an error
// reads the same in both front ends.
package components
