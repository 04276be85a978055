// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the agentchat packages.
//
// # Key Functions
//
// Files:
//   - AtomicWriteFile: crash-safe replace of a file (temp file, fsync, rename)
//   - ExpandHome: resolve a leading "~" against the user's home directory
//   - DataDir: the per-user agentchat directory (~/.agentchat)
//
// Display:
//   - TruncateWidth: cut a string to a terminal column width
//   - SingleLine: collapse newlines for one-line previews
//
// # Usage
//
//	path := util.ExpandHome("~/.agentchat/conversations")
//	err := util.AtomicWriteFile(filepath.Join(path, "c1.json"), data, 0600)
package util
