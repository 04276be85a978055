// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

// =============================================================================
// TEA MESSAGES
// =============================================================================

// BootstrapDoneMsg is sent when the conversation has started or failed to.
type BootstrapDoneMsg struct {
	ConversationID string
	Err            error
}

// LogChangedMsg is sent when the message log changed since the last
// render. Bursts of changes are coalesced into one message.
type LogChangedMsg struct{}

// BusyMsg is sent when the busy indicator flips.
type BusyMsg struct {
	Busy bool
}

// ErrorMsg carries a controller error for display.
type ErrorMsg struct {
	Err error
}

// bridgeClosedMsg ends the event loop after Bridge.Close.
type bridgeClosedMsg struct{}
