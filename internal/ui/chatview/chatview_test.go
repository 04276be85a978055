// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/session"
	"github.com/jeranaias/agentchat/internal/storage"
	"github.com/jeranaias/agentchat/internal/ui/styles"
)

// cannedBackend answers every message with a fixed reply.
type cannedBackend struct {
	id       string
	startErr error
	reply    string
	lastReq  backend.StreamRequest
}

func (b *cannedBackend) StartConversation(ctx context.Context) (string, error) {
	return b.id, b.startErr
}

func (b *cannedBackend) OpenStream(ctx context.Context, id string, req backend.StreamRequest) (io.ReadCloser, error) {
	b.lastReq = req
	return io.NopCloser(strings.NewReader(b.reply)), nil
}

func newTestModel(t *testing.T, be *cannedBackend, cfg Config) (Model, *chat.Controller) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	bridge := NewBridge()
	opts := chat.Options{}
	bridge.Hook(&opts)

	sess := session.New(nil, storage.NewMemoryStore(nil), nil)
	ctrl := chat.NewController(sess, be, opts)
	t.Cleanup(func() {
		bridge.Close()
		ctrl.Close()
	})

	m := New(ctrl, bridge, styles.NewTheme(), cfg)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

// =============================================================================
// TESTS
// =============================================================================

func TestBootstrap_ShowsConversation(t *testing.T) {
	m, _ := newTestModel(t, &cannedBackend{id: "conv-1234"}, Config{})
	assert.Contains(t, m.View(), "connecting")

	m, _ = update(t, m, m.bootstrapCmd()())
	view := m.View()
	assert.Contains(t, view, "conversation conv-1234")
	assert.Contains(t, view, "ready")
	assert.Contains(t, view, "No messages yet")
}

func TestBootstrap_FailureShowsBanner(t *testing.T) {
	m, _ := newTestModel(t, &cannedBackend{startErr: errors.New("connection refused")}, Config{})

	m, _ = update(t, m, m.bootstrapCmd()())
	require.Error(t, m.Err())
	view := m.View()
	assert.Contains(t, view, "not connected")
	assert.Contains(t, view, "Backend Unreachable")
	assert.Contains(t, view, "connection refused")
}

func TestSubmit_StreamsReplyIntoView(t *testing.T) {
	be := &cannedBackend{id: "c1", reply: "Hello back"}
	m, ctrl := newTestModel(t, be, Config{File: &chat.FileRef{ID: "f-9", Name: "notes.txt"}})
	m, _ = update(t, m, m.bootstrapCmd()())

	m = typeText(t, m, "hi there")
	assert.Equal(t, "hi there", m.Input())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "", m.Input())
	ctrl.Wait()

	m, _ = update(t, m, LogChangedMsg{})
	view := m.View()
	assert.Contains(t, view, "hi there")
	assert.Contains(t, view, "Hello back")
	assert.Contains(t, view, "notes.txt (f-9)")
	require.NotNil(t, be.lastReq.FileID)
	assert.Equal(t, "f-9", *be.lastReq.FileID)
}

func TestSubmit_BeforeBootstrapKeepsInput(t *testing.T) {
	m, _ := newTestModel(t, &cannedBackend{id: "c1"}, Config{})

	m = typeText(t, m, "too early")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "too early", m.Input())
	assert.ErrorIs(t, m.Err(), chat.ErrNotReady)
}

func TestSubmit_BlankIsIgnored(t *testing.T) {
	m, ctrl := newTestModel(t, &cannedBackend{id: "c1"}, Config{})
	m, _ = update(t, m, m.bootstrapCmd()())

	m = typeText(t, m, "   ")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NoError(t, m.Err())
	assert.Empty(t, ctrl.Messages())
}

func TestBusyAndErrorMessages(t *testing.T) {
	m, _ := newTestModel(t, &cannedBackend{id: "c1"}, Config{})

	m, cmd := update(t, m, BusyMsg{Busy: true})
	assert.True(t, m.Busy())
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Agent is typing")

	m, _ = update(t, m, BusyMsg{Busy: false})
	m, _ = update(t, m, ErrorMsg{Err: errors.New("stream broke")})
	assert.Contains(t, m.View(), "stream broke")
}

func TestQuit(t *testing.T) {
	m, _ := newTestModel(t, &cannedBackend{id: "c1"}, Config{})

	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestBridge_CoalescesLogChanges(t *testing.T) {
	b := NewBridge()
	log := model.NewMessageLog()
	b.Watch(log)

	log.Append(model.NewMessage(model.RoleUser, "one"))
	log.Append(model.NewMessage(model.RoleAssistant, ""))
	log.Append(model.NewMessage(model.RoleUser, "two"))

	assert.Equal(t, LogChangedMsg{}, b.Next()())

	b.OnBusy(true)
	assert.Equal(t, BusyMsg{Busy: true}, b.Next()())

	b.Close()
	assert.Equal(t, bridgeClosedMsg{}, b.Next()())

	// Callbacks after Close do not block.
	b.OnError(errors.New("late"))
	log.Append(model.NewMessage(model.RoleUser, "three"))
}

func TestMarkdownRenderer_CachesPerMessage(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	r := newMarkdownRenderer(styles.NewTheme())
	assert.Equal(t, "notty", r.style)

	src := "# Title\n\nSome text here."
	out := r.Render("m1", src, 40)
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "Some text here.")
	assert.False(t, strings.HasPrefix(out, "\n"))
	assert.False(t, strings.HasSuffix(out, "\n"))

	assert.Equal(t, out, r.Render("m1", src, 40))
	assert.Len(t, r.cache, 1)

	assert.Contains(t, r.Render("m1", "changed", 40), "changed")
	assert.Len(t, r.cache, 1)

	r.Render("m2", src, 60)
	assert.Equal(t, 60, r.width)
	assert.Len(t, r.cache, 1, "width change drops the cache")

	assert.Equal(t, "tiny", r.Render("m3", "tiny", 5))
}

func TestSubmit_MarkdownReply(t *testing.T) {
	be := &cannedBackend{id: "c1", reply: "Hello back"}
	m, ctrl := newTestModel(t, be, Config{Markdown: true})
	m, _ = update(t, m, m.bootstrapCmd()())

	m = typeText(t, m, "hi")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	ctrl.Wait()
	m, _ = update(t, m, LogChangedMsg{})

	assert.Contains(t, m.View(), "Hello back")
	require.NotNil(t, m.md)
	assert.Len(t, m.md.cache, 1)
}
