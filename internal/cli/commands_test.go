// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/config"
	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/server"
	"github.com/jeranaias/agentchat/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	env *Env
	out *syncBuffer
	err *syncBuffer
	dir string
	srv *server.Server
}

// newHarness isolates config and storage in a temp dir and points the
// backend at a fresh development server.
func newHarness(t *testing.T, cfg server.Config) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGENTCHAT_DATA_DIR", dir)
	for _, key := range []string{"BACKEND_URL", "AGENTCHAT_BACKEND_URL", "AGENTCHAT_LOG_LEVEL", "AGENTCHAT_STORAGE_DRIVER"} {
		t.Setenv(key, "")
	}
	t.Setenv("NO_COLOR", "1")

	srv := server.New(cfg, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	h := &harness{out: &syncBuffer{}, err: &syncBuffer{}, dir: dir, srv: srv}
	env, err := NewEnv(Args{Backend: ts.URL}, h.out, h.err)
	require.NoError(t, err)
	h.env = env
	return h
}

func (h *harness) ask(t *testing.T, args Args) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return HandleAsk(ctx, h.env, args)
}

func (h *harness) onlyConversation(t *testing.T) string {
	t.Helper()
	store, err := h.env.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	metas, err := store.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)
	return metas[0].ID
}

func (h *harness) sessions(t *testing.T, raw ...string) (string, error) {
	t.Helper()
	before := len(h.out.String())
	err := HandleSessions(context.Background(), h.env, Args{Raw: raw})
	return h.out.String()[before:], err
}

// =============================================================================
// ASK
// =============================================================================

func TestHandleAsk_StreamsReply(t *testing.T) {
	h := newHarness(t, server.Config{ChunkSize: 3})

	require.NoError(t, h.ask(t, Args{Raw: []string{"héllo", "wörld"}}))
	assert.Equal(t, "✓ Echo #1 → héllo wörld\n", h.out.String())

	store, err := h.env.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	msgs := store.Load(h.onlyConversation(t))
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "✓ Echo #1 → héllo wörld", msgs[1].Content)
}

func TestHandleAsk_ResumesConversation(t *testing.T) {
	h := newHarness(t, server.Config{})
	require.NoError(t, h.ask(t, Args{Raw: []string{"first"}}))
	id := h.onlyConversation(t)

	require.NoError(t, h.ask(t, Args{Raw: []string{"second"}, Conversation: id}))
	assert.Contains(t, h.out.String(), "✓ Echo #2 → second")
	assert.Equal(t, int64(1), h.srv.Stats().Conversations.Load(), "resume must not start a new conversation")

	store, err := h.env.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	assert.Len(t, store.Load(id), 4)
}

func TestHandleAsk_FileContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("launch on friday"), 0600))
	h := newHarness(t, server.Config{Files: map[string]string{"f1": path}})

	require.NoError(t, h.ask(t, Args{Raw: []string{"when?"}, File: &chat.FileRef{ID: "f1"}}))
	assert.Contains(t, h.out.String(), "launch on friday")

	err := h.ask(t, Args{Raw: []string{"and this?"}, File: &chat.FileRef{ID: "missing"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrTransport)
	assert.Equal(t, 404, backend.StatusCode(err))
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}

func TestHandleAsk_Stdin(t *testing.T) {
	h := newHarness(t, server.Config{})
	h.env.In = strings.NewReader("  piped question \n")

	require.NoError(t, h.ask(t, Args{}))
	assert.Equal(t, "✓ Echo #1 → piped question\n", h.out.String())
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	h := newHarness(t, server.Config{})

	err := h.ask(t, Args{})
	assert.Equal(t, ExitUsageError, ExitCode(err))
	assert.Equal(t, int64(0), h.srv.Stats().Conversations.Load())
}

func TestHandleAsk_Unreachable(t *testing.T) {
	h := newHarness(t, server.Config{})
	h.env.Config.Backend.URL = "http://127.0.0.1:1"

	err := h.ask(t, Args{Raw: []string{"hello"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrBootstrap)
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}

// =============================================================================
// STATUS
// =============================================================================

func TestHandleStatus(t *testing.T) {
	h := newHarness(t, server.Config{AgentName: "Docs Agent", Model: "echo-7"})

	require.NoError(t, HandleStatus(context.Background(), h.env, Args{}))
	out := h.out.String()
	assert.Contains(t, out, "Docs Agent")
	assert.Contains(t, out, "echo-7")
	assert.Contains(t, out, "never")
}

func TestHandleStatus_JSON(t *testing.T) {
	h := newHarness(t, server.Config{})

	require.NoError(t, HandleStatus(context.Background(), h.env, Args{JSON: true}))
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Backend string              `json:"backend"`
			Agent   backend.AgentStatus `json:"agent"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.out.String()), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Agent.Available)
	assert.Equal(t, h.env.Config.Backend.URL, resp.Data.Backend)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestHandleSessions_Lifecycle(t *testing.T) {
	h := newHarness(t, server.Config{})
	require.NoError(t, h.ask(t, Args{Raw: []string{"deploy", "the", "docs"}}))
	id := h.onlyConversation(t)

	out, err := h.sessions(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "1 conversation(s)")

	out, err = h.sessions(t, "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "deploy the docs")
	assert.Contains(t, out, "Agent")

	out, err = h.sessions(t, "search", "DOCS")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	out, err = h.sessions(t, "search", "kubernetes")
	require.NoError(t, err)
	assert.NotContains(t, out, id)

	out, err = h.sessions(t, "export", id, "--format", "json")
	require.NoError(t, err)
	var exported storage.StoredConversation
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	assert.Equal(t, id, exported.ID)
	assert.Len(t, exported.Messages, 2)

	mdPath := filepath.Join(h.dir, "export", "conv.md")
	_, err = h.sessions(t, "export", id, "--output", mdPath)
	require.NoError(t, err)
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "**You**")

	htmlDir := t.TempDir()
	_, err = h.sessions(t, "export", id, "--format", "html", "--theme", "light", "--output", htmlDir)
	require.NoError(t, err)
	pages, err := filepath.Glob(filepath.Join(htmlDir, "conversation_*.html"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	data, err = os.ReadFile(pages[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `<body class="light-theme">`)

	_, err = h.sessions(t, "export", id, "--format", "pdf")
	assert.Equal(t, ExitUsageError, ExitCode(err))

	_, err = h.sessions(t, "delete", id)
	assert.Equal(t, ExitUsageError, ExitCode(err), "delete needs --confirm")

	out, err = h.sessions(t, "delete", "--confirm", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted")

	_, err = h.sessions(t, "show", id)
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
	_, err = h.sessions(t, "delete", id, "--confirm")
	assert.Equal(t, ExitNotFoundError, ExitCode(err))
}

func TestHandleSessions_ListJSONEmpty(t *testing.T) {
	h := newHarness(t, server.Config{})

	out, err := h.sessions(t, "--json")
	require.NoError(t, err)
	var resp JSONResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "sessions list", resp.Command)
}

func TestHandleSessions_Usage(t *testing.T) {
	h := newHarness(t, server.Config{})

	for _, raw := range [][]string{{"show"}, {"export"}, {"delete"}, {"search"}, {"watch"}, {"bogus"}} {
		_, err := h.sessions(t, raw...)
		assert.Equal(t, ExitUsageError, ExitCode(err), raw)
	}
}

func TestHandleSessions_WatchRequiresFileDriver(t *testing.T) {
	h := newHarness(t, server.Config{})
	h.env.Config.Storage.Driver = storage.DriverMemory

	_, err := h.sessions(t, "watch", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file storage driver")
}

func TestHandleSessions_Watch(t *testing.T) {
	h := newHarness(t, server.Config{})
	require.NoError(t, h.ask(t, Args{Raw: []string{"one"}}))
	id := h.onlyConversation(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- HandleSessions(ctx, h.env, Args{Raw: []string{"watch", id}})
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "✓ Echo #1 → one")
	}, 5*time.Second, 10*time.Millisecond)

	store, err := h.env.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	msgs := store.Load(id)
	msgs = append(msgs, model.NewMessage(model.RoleUser, "added elsewhere"))
	require.NoError(t, store.Save(id, msgs))

	assert.Eventually(t, func() bool {
		return strings.Contains(h.out.String(), "added elsewhere")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Equal(t, 1, strings.Count(h.out.String(), "✓ Echo #1 → one"), "unchanged messages are printed once")
}

func TestFollower_PrintsDeltas(t *testing.T) {
	var buf bytes.Buffer
	f := newFollower(&buf)

	user := model.NewMessage(model.RoleUser, "hi")
	reply := model.NewMessage(model.RoleAssistant, "")
	f.update([]model.Message{user, reply})

	reply.Content = "Hel"
	f.update([]model.Message{user, reply})
	reply.Content = "Hello"
	f.update([]model.Message{user, reply})

	assert.Equal(t, "\nYou\nhi\nAgent\nHello", buf.String())
}

// =============================================================================
// CONFIG
// =============================================================================

func TestHandleConfig(t *testing.T) {
	h := newHarness(t, server.Config{})
	path := config.ConfigPathTOML()

	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"init"}}))
	_, err := os.Stat(path)
	require.NoError(t, err)

	err = HandleConfig(h.env, Args{Raw: []string{"init"}})
	assert.Equal(t, ExitUsageError, ExitCode(err), "init refuses to overwrite")
	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"init", "--force"}}))

	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"set", "backend.timeout_secs", "45"}}))
	loaded, err := config.LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 45, loaded.Backend.TimeoutSecs)
	assert.Equal(t, config.DefaultURL, loaded.Backend.URL, "--backend override is not persisted")

	err = HandleConfig(h.env, Args{Raw: []string{"set", "backend.nope", "1"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))
	err = HandleConfig(h.env, Args{Raw: []string{"set", "storage.driver", "postgres"}})
	assert.Equal(t, ExitConfigError, ExitCode(err))
}

func TestHandleConfig_ShowAndGet(t *testing.T) {
	h := newHarness(t, server.Config{})

	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"show"}}))
	assert.Contains(t, h.out.String(), "[backend]")

	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"show", "--format", "yaml"}}))
	assert.Contains(t, h.out.String(), "backend:")

	err := HandleConfig(h.env, Args{Raw: []string{"show", "--format", "ini"}})
	assert.Equal(t, ExitUsageError, ExitCode(err))

	before := len(h.out.String())
	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"get", "storage.driver"}}))
	assert.Equal(t, "file\n", h.out.String()[before:])

	require.NoError(t, HandleConfig(h.env, Args{Raw: []string{"path"}}))
	assert.Contains(t, h.out.String(), config.ConfigPathTOML())
}
