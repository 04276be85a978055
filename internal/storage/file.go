// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/util"
)

// DefaultMaxConversations is the retention limit applied when none is set.
const DefaultMaxConversations = 100

// safeID matches conversation IDs that can be used as file names directly.
var safeID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps each conversation in its own JSON file under BaseDir.
type FileStore struct {
	// BaseDir is the directory holding the conversation files.
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited).
	// The least recently updated conversations are removed first.
	MaxConversations int

	logger *slog.Logger
	mu     sync.Mutex
	now    func() time.Time
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string, logger *slog.Logger) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		BaseDir:          baseDir,
		MaxConversations: DefaultMaxConversations,
		logger:           logger.With("component", "storage", "driver", "file"),
		now:              time.Now,
	}, nil
}

// =============================================================================
// STORE
// =============================================================================

// Load returns the persisted log or an empty slice.
func (s *FileStore) Load(conversationID string) []model.Message {
	return loadOrEmpty(s.logger, conversationID, s.Get)
}

// Save replaces the persisted log of conversationID.
func (s *FileStore) Save(conversationID string, messages []model.Message) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	data, err := encodeConversation(newStoredConversation(conversationID, messages, s.now()))
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.FilePath(conversationID)
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("save conversation %s: %w", conversationID, err)
	}

	if isNew && s.MaxConversations > 0 {
		s.enforceLimit(conversationID)
	}
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

// Get reads and validates a stored conversation.
func (s *FileStore) Get(conversationID string) (*StoredConversation, error) {
	data, err := os.ReadFile(s.FilePath(conversationID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return decodeConversation(data, conversationID)
}

// List returns all readable conversations, most recent first. Corrupt
// files are skipped.
func (s *FileStore) List() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := make([]ConversationMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.BaseDir, entry.Name()))
		if err != nil {
			continue
		}
		// File names of hashed IDs don't reveal the ID, so trust the
		// record and then check it maps back to this file.
		conv, err := decodeConversation(data, "")
		if err != nil || s.fileName(conv.ID) != entry.Name() {
			continue
		}
		metas = append(metas, conv.Meta())
	}

	sortByUpdated(metas)
	return metas, nil
}

// Delete removes a conversation by ID.
func (s *FileStore) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(conversationID)
}

func (s *FileStore) remove(conversationID string) error {
	if err := os.Remove(s.FilePath(conversationID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrConversationNotFound
		}
		return err
	}
	return nil
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

// FilePath returns the file that holds conversationID.
func (s *FileStore) FilePath(conversationID string) string {
	return filepath.Join(s.BaseDir, s.fileName(conversationID))
}

// fileName maps an ID to a file name. IDs that are not plain file names
// are hashed so distinct IDs can never collide or escape BaseDir.
func (s *FileStore) fileName(conversationID string) string {
	if safeID.MatchString(conversationID) && !strings.HasPrefix(conversationID, "h-") {
		return conversationID + ".json"
	}
	sum := sha256.Sum256([]byte(conversationID))
	return "h-" + hex.EncodeToString(sum[:]) + ".json"
}

// enforceLimit removes the oldest conversations beyond MaxConversations.
// keep is never removed. Called with s.mu held.
func (s *FileStore) enforceLimit(keep string) {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}

	// metas is newest first; everything past the limit goes.
	for _, meta := range metas[s.MaxConversations:] {
		if meta.ID == keep {
			continue
		}
		if err := s.remove(meta.ID); err != nil && !IsNotFound(err) {
			s.logger.Warn("failed to prune conversation", "conversation_id", meta.ID, "error", err)
			continue
		}
		s.logger.Debug("pruned conversation", "conversation_id", meta.ID)
	}
}
