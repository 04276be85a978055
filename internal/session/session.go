// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/storage"
)

// =============================================================================
// SESSION
// =============================================================================

// Session tracks one conversation.
//
// At most one assistant message is open (receiving streamed content) at a
// time, and it is always owned by the active token.
type Session struct {
	mu sync.Mutex

	log    *model.MessageLog
	store  storage.Store
	logger *slog.Logger

	// Written under mu, readable without it so log listeners can use
	// the accessors.
	conversationID atomic.Value // string
	activeToken    atomic.Uint64
	openID         atomic.Value // string

	startTime  time.Time
	saveErrors atomic.Int64
}

// New creates a session around log (a new empty log when nil). store may
// be nil, in which case nothing is persisted.
func New(log *model.MessageLog, store storage.Store, logger *slog.Logger) *Session {
	if log == nil {
		log = model.NewMessageLog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{
		log:       log,
		store:     store,
		logger:    logger.With("component", "session"),
		startTime: time.Now(),
	}
	s.conversationID.Store("")
	s.openID.Store("")
	return s
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ConversationID returns the conversation ID, or "" before Attach.
func (s *Session) ConversationID() string {
	return s.conversationID.Load().(string)
}

// Log returns the session's message log.
func (s *Session) Log() *model.MessageLog {
	return s.log
}

// ActiveToken returns the most recently issued request token (0 = none).
func (s *Session) ActiveToken() uint64 {
	return s.activeToken.Load()
}

// IsActive reports whether token is the most recently issued one.
func (s *Session) IsActive(token uint64) bool {
	return token != 0 && s.activeToken.Load() == token
}

// OpenMessageID returns the ID of the assistant message still receiving
// content, or "".
func (s *Session) OpenMessageID() string {
	return s.openID.Load().(string)
}

// StartTime returns when the session was created.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// SaveErrors returns how many saves have failed.
func (s *Session) SaveErrors() int64 {
	return s.saveErrors.Load()
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Attach binds the session to conversationID and restores the persisted
// log. A non-empty persisted log replaces the current contents; an empty
// one leaves the log untouched. It returns the number of restored
// messages.
func (s *Session) Attach(conversationID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversationID.Store(conversationID)
	if s.store == nil {
		return 0
	}

	restored := s.store.Load(conversationID)
	if len(restored) > 0 {
		s.log.Replace(restored)
	}
	s.logger.Debug("session attached", "conversation_id", conversationID, "restored", len(restored))
	return len(restored)
}

// Begin supersedes any previous request. It issues a new token, appends
// the user message and an empty assistant reply, marks the reply open and
// persists the log.
func (s *Session) Begin(text string) (token uint64, user, reply model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token = s.activeToken.Add(1)
	user = model.NewMessage(model.RoleUser, text)
	reply = model.NewMessage(model.RoleAssistant, "")

	s.log.Append(user)
	s.log.Append(reply)
	s.openID.Store(reply.ID)
	s.persistLocked()
	return token, user, reply
}

// Apply sets the content of the open reply if token is still active and
// replyID is still open. It reports whether the update was applied.
func (s *Session) Apply(token uint64, replyID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(token, replyID) {
		return false
	}
	if !s.log.UpdateContent(replyID, content) {
		return false
	}
	s.persistLocked()
	return true
}

// Finish closes the open reply if token still owns it and persists the
// final log. A superseded token changes nothing and returns false.
func (s *Session) Finish(token uint64, replyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ownsLocked(token, replyID) {
		return false
	}
	s.openID.Store("")
	s.persistLocked()
	return true
}

func (s *Session) ownsLocked(token uint64, replyID string) bool {
	return s.IsActive(token) && s.OpenMessageID() == replyID
}

// persistLocked saves the log. Failures are logged and counted; the
// in-memory log stays authoritative.
func (s *Session) persistLocked() {
	id := s.ConversationID()
	if s.store == nil || id == "" {
		return
	}
	if err := s.store.Save(id, s.log.Messages()); err != nil {
		s.saveErrors.Add(1)
		s.logger.Warn("failed to persist conversation", "conversation_id", id, "error", err)
	}
}
