// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/storage"
)

// failingStore loads nothing and refuses every save.
type failingStore struct{ saves int }

func (f *failingStore) Load(string) []model.Message { return nil }
func (f *failingStore) Save(string, []model.Message) error {
	f.saves++
	return errors.New("disk full")
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, nil, nil)
	assert.Equal(t, "", s.ConversationID())
	assert.Equal(t, uint64(0), s.ActiveToken())
	assert.Equal(t, "", s.OpenMessageID())
	assert.NotNil(t, s.Log())
	assert.False(t, s.StartTime().IsZero())
	assert.False(t, s.IsActive(0))
}

func TestAttach_RestoresPersistedLog(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	prior := []model.Message{
		model.NewMessage(model.RoleUser, "Hi"),
		model.NewMessage(model.RoleAssistant, "Hello"),
	}
	require.NoError(t, store.Save("c1", prior))

	s := New(nil, store, nil)
	assert.Equal(t, 2, s.Attach("c1"))
	assert.Equal(t, "c1", s.ConversationID())

	msgs := s.Log().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, prior[0].ID, msgs[0].ID)
	assert.Equal(t, "Hello", msgs[1].Content)
}

func TestAttach_EmptyStoreKeepsLog(t *testing.T) {
	log := model.NewMessageLog()
	log.Append(model.NewMessage(model.RoleUser, "local"))

	s := New(log, storage.NewMemoryStore(nil), nil)
	assert.Equal(t, 0, s.Attach("fresh"))
	assert.Equal(t, 1, s.Log().Len())
}

func TestBeginApplyFinish(t *testing.T) {
	store := storage.NewMemoryStore(nil)
	s := New(nil, store, nil)
	s.Attach("c1")

	token, user, reply := s.Begin("Hi")
	assert.Equal(t, uint64(1), token)
	assert.True(t, s.IsActive(token))
	assert.Equal(t, reply.ID, s.OpenMessageID())
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "", reply.Content)

	// Persisted immediately with the empty reply.
	persisted := store.Load("c1")
	require.Len(t, persisted, 2)
	assert.Equal(t, "", persisted[1].Content)

	assert.True(t, s.Apply(token, reply.ID, "Hel"))
	assert.True(t, s.Apply(token, reply.ID, "Hello"))
	assert.Equal(t, "Hello", store.Load("c1")[1].Content)

	assert.True(t, s.Finish(token, reply.ID))
	assert.Equal(t, "", s.OpenMessageID())

	// Closed replies accept nothing more.
	assert.False(t, s.Apply(token, reply.ID, "late"))
	got, _ := s.Log().Get(reply.ID)
	assert.Equal(t, "Hello", got.Content)
}

func TestSupersededTokenIsIgnored(t *testing.T) {
	s := New(nil, storage.NewMemoryStore(nil), nil)
	s.Attach("c1")

	t1, _, r1 := s.Begin("first")
	assert.True(t, s.Apply(t1, r1.ID, "A"))

	t2, _, r2 := s.Begin("second")
	assert.Greater(t, t2, t1)
	assert.False(t, s.IsActive(t1))

	assert.False(t, s.Apply(t1, r1.ID, "AB"))
	assert.False(t, s.Finish(t1, r1.ID))
	assert.Equal(t, r2.ID, s.OpenMessageID(), "old token must not close the new reply")

	msgs := s.Log().Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "A", msgs[1].Content)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "", msgs[3].Content)
}

func TestPersistFailureIsCountedNotFatal(t *testing.T) {
	store := &failingStore{}
	s := New(nil, store, nil)
	s.Attach("c1")

	token, _, reply := s.Begin("Hi")
	assert.True(t, s.Apply(token, reply.ID, "x"))
	assert.Equal(t, int64(2), s.SaveErrors())
	assert.Equal(t, 2, store.saves)
	assert.Equal(t, 2, s.Log().Len())
}

func TestNoPersistenceBeforeAttach(t *testing.T) {
	store := &failingStore{}
	s := New(nil, store, nil)
	s.Begin("Hi")
	assert.Equal(t, 0, store.saves)
}

func TestListenerMayReadSession(t *testing.T) {
	s := New(nil, nil, nil)
	s.Attach("c1")

	var seenOpen []string
	s.Log().Subscribe(func(model.Change) {
		seenOpen = append(seenOpen, s.OpenMessageID())
		_ = s.ConversationID()
		_ = s.IsActive(s.ActiveToken())
	})

	token, _, reply := s.Begin("Hi")
	s.Apply(token, reply.ID, "x")
	assert.Len(t, seenOpen, 3)
}
