// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jeranaias/agentchat/internal/model"
)

// MemoryStore keeps encoded conversations in a map. Records go through the
// same JSON encoding as the other drivers, so timestamps and validation
// behave identically.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	logger  *slog.Logger
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryStore{
		records: make(map[string][]byte),
		logger:  logger.With("component", "storage", "driver", "memory"),
		now:     time.Now,
	}
}

// Load returns the stored log or an empty slice.
func (s *MemoryStore) Load(conversationID string) []model.Message {
	return loadOrEmpty(s.logger, conversationID, s.Get)
}

// Save replaces the stored log of conversationID.
func (s *MemoryStore) Save(conversationID string, messages []model.Message) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	data, err := encodeConversation(newStoredConversation(conversationID, messages, s.now()))
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	s.mu.Lock()
	s.records[conversationID] = data
	s.mu.Unlock()
	return nil
}

// PutRaw stores data verbatim under conversationID. It exists to import
// exported records and to simulate damaged storage.
func (s *MemoryStore) PutRaw(conversationID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[conversationID] = append([]byte(nil), data...)
}

// Get decodes a stored conversation.
func (s *MemoryStore) Get(conversationID string) (*StoredConversation, error) {
	s.mu.RLock()
	data, ok := s.records[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrConversationNotFound
	}
	return decodeConversation(data, conversationID)
}

// List returns metadata for all decodable conversations.
func (s *MemoryStore) List() ([]ConversationMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := make([]ConversationMeta, 0, len(s.records))
	for id, data := range s.records {
		conv, err := decodeConversation(data, id)
		if err != nil {
			continue
		}
		metas = append(metas, conv.Meta())
	}
	sortByUpdated(metas)
	return metas, nil
}

// Delete removes a conversation.
func (s *MemoryStore) Delete(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[conversationID]; !ok {
		return ErrConversationNotFound
	}
	delete(s.records, conversationID)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
