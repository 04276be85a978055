// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chatview is the Bubble Tea front end of agentchat.
//
// The view never owns conversation state. It renders the session's
// MessageLog, forwards input to a chat.Controller, and learns about log
// changes, busy flips and errors through a Bridge that turns controller
// callbacks into tea messages.
package chatview
