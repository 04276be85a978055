// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

// newCatalogs returns one instance of every driver.
func newCatalogs(t *testing.T) map[string]Catalog {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"), 0, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sqliteStore.Close() })

	return map[string]Catalog{
		DriverFile:   fileStore,
		DriverSQLite: sqliteStore,
		DriverMemory: NewMemoryStore(nil),
	}
}

func sampleLog() []model.Message {
	base := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)
	return []model.Message{
		{ID: "m1", Role: model.RoleUser, Content: "Hello there", Timestamp: base},
		{ID: "m2", Role: model.RoleAssistant, Content: "Hi! 👋", Timestamp: base.Add(time.Second)},
	}
}

// =============================================================================
// CONTRACT TESTS (ALL DRIVERS)
// =============================================================================

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			want := sampleLog()
			require.NoError(t, store.Save("conv-1", want))

			got := store.Load("conv-1")
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].ID, got[i].ID)
				assert.Equal(t, want[i].Role, got[i].Role)
				assert.Equal(t, want[i].Content, got[i].Content)
				assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp),
					"timestamp %v != %v", got[i].Timestamp, want[i].Timestamp)
			}
		})
	}
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			got := store.Load("never-saved")
			assert.NotNil(t, got)
			assert.Empty(t, got)

			_, err := store.Get("never-saved")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			log := sampleLog()
			require.NoError(t, store.Save("c", log))

			log[1].Content = "Hi! 👋 How can I help?"
			require.NoError(t, store.Save("c", log))

			got := store.Load("c")
			require.Len(t, got, 2)
			assert.Equal(t, "Hi! 👋 How can I help?", got[1].Content)
		})
	}
}

func TestStore_ConversationsAreIsolated(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("alpha", sampleLog()))
			require.NoError(t, store.Save("beta", []model.Message{
				model.NewMessage(model.RoleUser, "other"),
			}))

			alpha := store.Load("alpha")
			beta := store.Load("beta")
			require.Len(t, alpha, 2)
			require.Len(t, beta, 1)
			assert.Equal(t, "other", beta[0].Content)
		})
	}
}

func TestStore_EmptyIDRejected(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Save("", sampleLog()))
		})
	}
}

func TestCatalog_ListSearchDelete(t *testing.T) {
	for name, store := range newCatalogs(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("first", []model.Message{
				{ID: "a", Role: model.RoleUser, Content: "Tell me about gophers", Timestamp: time.Now()},
			}))
			time.Sleep(5 * time.Millisecond)
			require.NoError(t, store.Save("second", []model.Message{
				{ID: "b", Role: model.RoleUser, Content: "Weather today?", Timestamp: time.Now()},
				{ID: "c", Role: model.RoleAssistant, Content: "Sunny with a chance of gophers", Timestamp: time.Now()},
			}))

			metas, err := store.List()
			require.NoError(t, err)
			require.Len(t, metas, 2)
			assert.Equal(t, "second", metas[0].ID, "most recent first")
			assert.Equal(t, 2, metas[0].MessageCount)
			assert.Equal(t, "Weather today?", metas[0].Summary)
			assert.Equal(t, "Weather today?", metas[0].Preview)

			found, err := Search(store, "GOPHERS")
			require.NoError(t, err)
			assert.Len(t, found, 2)

			found, err = Search(store, "weather")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "second", found[0].ID)

			require.NoError(t, store.Delete("first"))
			assert.True(t, IsNotFound(store.Delete("first")))
			assert.Empty(t, store.Load("first"))

			metas, err = store.List()
			require.NoError(t, err)
			assert.Len(t, metas, 1)
		})
	}
}

// =============================================================================
// FILE STORE
// =============================================================================

func TestFileStore_CorruptFileLoadsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.FilePath("broken"), []byte("{not json"), 0600))

	assert.Empty(t, store.Load("broken"))
	_, err = store.Get("broken")
	assert.True(t, IsCorrupt(err))

	metas, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, metas, "corrupt files are skipped in listings")
}

func TestFileStore_InvalidRecordIsCorrupt(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	bad := `{"id":"c","messages":[{"id":"m1","role":"system","content":"x","timestamp":"2025-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(store.FilePath("c"), []byte(bad), 0600))

	assert.Empty(t, store.Load("c"))
	_, err = store.Get("c")
	assert.True(t, IsCorrupt(err))
}

func TestFileStore_ForeignRecordTreatedAsAbsent(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.Save("owner", sampleLog()))
	data, err := os.ReadFile(store.FilePath("owner"))
	require.NoError(t, err)

	// Another conversation's record placed under this id's file.
	require.NoError(t, os.WriteFile(store.FilePath("intruder"), data, 0600))

	assert.Empty(t, store.Load("intruder"))
	_, err = store.Get("intruder")
	assert.True(t, IsNotFound(err))
}

func TestFileStore_UnsafeIDsStayInBaseDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	ids := []string{"../escape", "a/b", "with space", ".hidden"}
	for _, id := range ids {
		require.NoError(t, store.Save(id, sampleLog()))
		assert.Equal(t, dir, filepath.Dir(store.FilePath(id)), "id %q", id)
		assert.Len(t, store.Load(id), 2, "id %q", id)
	}

	metas, err := store.List()
	require.NoError(t, err)
	var listed []string
	for _, m := range metas {
		listed = append(listed, m.ID)
	}
	assert.ElementsMatch(t, ids, listed)
}

func TestFileStore_EnforcesLimit(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	store.MaxConversations = 2

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, store.Save(id, sampleLog()))
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "three", metas[0].ID)
	assert.Equal(t, "two", metas[1].ID)
}

func TestFileStore_Watch(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan []model.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- store.Watch(ctx, "watched", func(msgs []model.Message) { updates <- msgs })
	}()

	select {
	case initial := <-updates:
		assert.Empty(t, initial)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	require.NoError(t, store.Save("other", sampleLog()))
	require.NoError(t, store.Save("watched", sampleLog()))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case msgs := <-updates:
			if len(msgs) == 2 {
				cancel()
				require.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("watch did not report the save")
		}
	}
}

// =============================================================================
// SQLITE STORE
// =============================================================================

func TestSQLiteStore_CorruptPayloadLoadsEmpty(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "c.db"), 0, nil)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`INSERT INTO conversations (id, summary, preview, message_count, created_at, updated_at, payload)
		VALUES ('bad', '', '', 0, '', '', 'garbage')`)
	require.NoError(t, err)

	assert.Empty(t, store.Load("bad"))
	_, err = store.Get("bad")
	assert.True(t, IsCorrupt(err))
}

func TestSQLiteStore_EnforcesLimit(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "c.db"), 2, nil)
	require.NoError(t, err)
	defer store.Close()

	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	for _, id := range []string{"one", "two", "three"} {
		require.NoError(t, store.Save(id, sampleLog()))
	}

	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "three", metas[0].ID)
	assert.Equal(t, "two", metas[1].ID)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.db")

	store, err := NewSQLiteStore(path, 0, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save("c", sampleLog()))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path, 0, nil)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Len(t, reopened.Load("c"), 2)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

func TestMemoryStore_CorruptRecordLoadsEmpty(t *testing.T) {
	store := NewMemoryStore(nil)
	store.PutRaw("c", []byte("\x00\x01"))

	assert.Empty(t, store.Load("c"))
	_, err := store.Get("c")
	assert.True(t, IsCorrupt(err))
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen(t *testing.T) {
	c, err := Open(Options{Driver: DriverFile, Dir: t.TempDir(), MaxConversations: 5})
	require.NoError(t, err)
	fs, ok := c.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, 5, fs.MaxConversations)

	c, err = Open(Options{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, c)

	_, err = Open(Options{Driver: "redis"})
	assert.Error(t, err)

	_, err = Open(Options{Driver: DriverSQLite})
	assert.Error(t, err)
}

// =============================================================================
// FORMATTING
// =============================================================================

func TestFormatSessionList(t *testing.T) {
	assert.Equal(t, "No conversations found.", FormatSessionList(nil))

	out := FormatSessionList([]ConversationMeta{
		{ID: "conv-1", Summary: "Tell me a story", UpdatedAt: time.Now(), MessageCount: 4},
	})
	assert.Contains(t, out, "conv-1")
	assert.Contains(t, out, "Tell me a story")
	assert.Contains(t, out, "4")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "New conversation", summarize(nil))
	assert.Equal(t, "line one line two", summarize([]model.Message{
		{ID: "x", Role: model.RoleAssistant, Content: "ignored"},
		{ID: "y", Role: model.RoleUser, Content: "line one\nline two"},
	}))
}
