// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/server"
)

func (h *harness) repl(t *testing.T, input string, args Args) error {
	t.Helper()
	h.env.In = strings.NewReader(input)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return HandleRepl(ctx, h.env, args)
}

func TestHandleRepl_Conversation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("launch on friday"), 0600))
	h := newHarness(t, server.Config{ChunkSize: 4, Files: map[string]string{"f1": path}})

	input := strings.Join([]string{
		"hello",
		"",
		"/file f1:notes.txt",
		"when?",
		"/file",
		"/nope",
		"/history",
		"/quit",
		"never sent",
	}, "\n") + "\n"
	require.NoError(t, h.repl(t, input, Args{}))

	out := h.out.String()
	assert.True(t, strings.HasPrefix(out, "✓ Echo #1 → hello\n"), out)
	assert.Contains(t, out, "attached notes.txt (f1)")
	assert.Contains(t, out, "✓ Echo #2 → when?")
	assert.Contains(t, out, "launch on friday")
	assert.Contains(t, out, "file detached")
	assert.Contains(t, out, "You: hello")
	assert.NotContains(t, out, "never sent")

	id := h.onlyConversation(t)
	errOut := h.err.String()
	assert.Contains(t, errOut, "unknown command")
	assert.Contains(t, errOut, "Resume with: agentchat repl --conversation "+id)

	store, err := h.env.OpenStore()
	require.NoError(t, err)
	defer store.Close()
	assert.Len(t, store.Load(id), 4)
}

func TestHandleRepl_EOFAndFailuresContinue(t *testing.T) {
	h := newHarness(t, server.Config{})

	require.NoError(t, h.repl(t, "/file missing\nfirst\n/file\nsecond", Args{}))

	assert.Contains(t, h.err.String(), "[ERROR]")
	assert.Contains(t, h.err.String(), "404")
	assert.Contains(t, h.out.String(), "→ second")
}

func TestHandleRepl_Resume(t *testing.T) {
	h := newHarness(t, server.Config{})
	require.NoError(t, h.repl(t, "one\n", Args{}))
	id := h.onlyConversation(t)

	require.NoError(t, h.repl(t, "/id\ntwo\n", Args{Conversation: id}))
	assert.Contains(t, h.out.String(), id+"\n")
	assert.Contains(t, h.out.String(), "✓ Echo #2 → two")
}

func TestHandleRepl_BootstrapFailure(t *testing.T) {
	h := newHarness(t, server.Config{})
	h.env.Config.Backend.URL = "http://127.0.0.1:1"

	err := h.repl(t, "hello\n", Args{})
	require.Error(t, err)
	assert.Equal(t, ExitNetworkError, ExitCode(err))
}
