// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/jeranaias/agentchat/internal/model"
)

// Watch calls fn with the current log of conversationID and again each
// time the conversation file is rewritten, until ctx is cancelled.
//
// Saves replace the file by rename, so the directory is watched rather
// than the file itself.
func (s *FileStore) Watch(ctx context.Context, conversationID string, fn func([]model.Message)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.BaseDir); err != nil {
		return fmt.Errorf("watch %s: %w", s.BaseDir, err)
	}

	target := filepath.Clean(s.FilePath(conversationID))
	fn(s.Load(conversationID))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				fn(s.Load(conversationID))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", conversationID, err)
		}
	}
}
