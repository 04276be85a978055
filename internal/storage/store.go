// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/util"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Store loads and saves the message log of a conversation.
type Store interface {
	// Load returns the persisted log for conversationID, or an empty
	// slice when nothing usable is stored.
	Load(conversationID string) []model.Message

	// Save replaces the persisted log for conversationID.
	Save(conversationID string, messages []model.Message) error
}

// Catalog is a Store that can also enumerate and remove conversations.
type Catalog interface {
	Store

	// Get returns the full record or ErrConversationNotFound / ErrCorrupt.
	Get(conversationID string) (*StoredConversation, error)

	// List returns metadata for all readable conversations, most
	// recently updated first.
	List() ([]ConversationMeta, error)

	// Delete removes a conversation.
	Delete(conversationID string) error

	// Close releases resources held by the catalog.
	Close() error
}

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is the persisted form of a conversation.
type StoredConversation struct {
	ID        string          `json:"id"`
	Summary   string          `json:"summary"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []model.Message `json:"messages"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
}

// newStoredConversation builds the record written by Save.
func newStoredConversation(id string, messages []model.Message, now time.Time) *StoredConversation {
	msgs := make([]model.Message, len(messages))
	copy(msgs, messages)

	created := now
	if len(msgs) > 0 && !msgs[0].Timestamp.IsZero() {
		created = msgs[0].Timestamp
	}

	return &StoredConversation{
		ID:        id,
		Summary:   summarize(msgs),
		CreatedAt: created,
		UpdatedAt: now,
		Messages:  msgs,
	}
}

// Meta returns the listing metadata of the conversation.
func (c *StoredConversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:           c.ID,
		Summary:      c.Summary,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
		Preview:      c.Preview(),
	}
}

// Preview returns the first user message, truncated for display.
func (c *StoredConversation) Preview() string {
	for _, msg := range c.Messages {
		if msg.Role == model.RoleUser && msg.Content != "" {
			return util.TruncateWidth(util.SingleLine(msg.Content), 80)
		}
	}
	return ""
}

// summarize derives a title from the first user message.
func summarize(msgs []model.Message) string {
	for _, msg := range msgs {
		if msg.Role == model.RoleUser && strings.TrimSpace(msg.Content) != "" {
			return util.TruncateWidth(util.SingleLine(msg.Content), 50)
		}
	}
	return "New conversation"
}

// =============================================================================
// CODEC
// =============================================================================

func encodeConversation(conv *StoredConversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}

// decodeConversation parses a stored record. A record that belongs to a
// different conversation than wantID is reported as not found so one
// conversation can never surface another's messages.
func decodeConversation(data []byte, wantID string) (*StoredConversation, error) {
	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, corruptError(wantID, err)
	}
	if conv.ID == "" {
		return nil, corruptError(wantID, errors.New("record has no conversation id"))
	}
	if wantID != "" && conv.ID != wantID {
		return nil, ErrConversationNotFound
	}

	seen := make(map[string]bool, len(conv.Messages))
	for i, msg := range conv.Messages {
		if msg.ID == "" {
			return nil, corruptError(conv.ID, fmt.Errorf("message %d has no id", i))
		}
		if seen[msg.ID] {
			return nil, corruptError(conv.ID, fmt.Errorf("duplicate message id %s", msg.ID))
		}
		seen[msg.ID] = true
		if !msg.Role.Valid() {
			return nil, corruptError(conv.ID, fmt.Errorf("message %s has unknown role %q", msg.ID, msg.Role))
		}
	}
	if conv.Messages == nil {
		conv.Messages = []model.Message{}
	}
	return &conv, nil
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// loadOrEmpty implements Store.Load on top of a Get function.
func loadOrEmpty(logger *slog.Logger, id string, get func(string) (*StoredConversation, error)) []model.Message {
	conv, err := get(id)
	switch {
	case err == nil:
		return conv.Messages
	case IsNotFound(err):
		return []model.Message{}
	case IsCorrupt(err):
		logger.Warn("ignoring corrupt conversation", "conversation_id", id, "error", err)
		return []model.Message{}
	default:
		logger.Warn("failed to load conversation", "conversation_id", id, "error", err)
		return []model.Message{}
	}
}

// sortByUpdated orders metadata most recent first.
func sortByUpdated(metas []ConversationMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
}

// Search returns conversations whose summary or any message contains query
// (case-insensitive). An empty query matches everything.
func Search(c Catalog, query string) ([]ConversationMeta, error) {
	all, err := c.List()
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	query = strings.ToLower(query)
	var results []ConversationMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) {
			results = append(results, meta)
			continue
		}
		conv, err := c.Get(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrCorrupt is returned by Get when a record exists but cannot be used.
var ErrCorrupt = &ConversationError{Message: "conversation data is corrupt"}

// ConversationError represents a conversation-related error.
// Errors with the same Message match under errors.Is.
type ConversationError struct {
	Message string
	ID      string
	Cause   error
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg = "conversation " + e.ID + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConversationError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func corruptError(id string, cause error) error {
	return &ConversationError{Message: ErrCorrupt.Message, ID: id, Cause: cause}
}

// IsNotFound reports whether err means the conversation does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrConversationNotFound)
}

// IsCorrupt reports whether err means the stored record is unusable.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
