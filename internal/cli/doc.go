// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the agentchat command line.
//
// Commands:
//
//	agentchat [tui]                 Interactive chat (default)
//	agentchat ask TEXT              One-shot question, reply streamed to stdout
//	agentchat status                Agent status from the backend
//	agentchat sessions SUBCOMMAND   Persisted conversations
//	agentchat config SUBCOMMAND     Configuration file
//	agentchat version | help
//
// Every handler returns an error instead of exiting; main maps it to an
// exit code with ExitCode.
package cli
