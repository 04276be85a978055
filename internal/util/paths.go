// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
)

// AppDirName is the directory under $HOME that holds config, logs and
// persisted conversations.
const AppDirName = ".agentchat"

// DataDirEnv overrides the data directory.
const DataDirEnv = "AGENTCHAT_DATA_DIR"

// DataDir returns $AGENTCHAT_DATA_DIR if set, else ~/.agentchat, or
// ./.agentchat when the home directory cannot be determined.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return ExpandHome(dir)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return AppDirName
	}
	return filepath.Join(home, AppDirName)
}

// ExpandHome replaces a leading "~" with the user's home directory.
// Paths without the prefix are returned unchanged.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
