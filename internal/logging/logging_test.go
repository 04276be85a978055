// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/agentchat/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.With("component", "chat").Info("exchange finished", "state", "completed", "note", "two words")
	logger.Debug("hidden")

	line := buf.String()
	assert.Contains(t, line, " INF exchange finished")
	assert.Contains(t, line, "component=chat")
	assert.Contains(t, line, "state=completed")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "hidden")
	assert.NotContains(t, line, "\x1b[", "non-terminal output has no colors")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	logger.Debug("stream opened", "token", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "stream opened", rec["msg"])
	assert.Equal(t, float64(3), rec["token"])
}

func TestColorHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewColorHandler(&buf, slog.LevelDebug, true))

	logger.WithGroup("req").With("id", "c1").Warn("slow", slog.Group("timing", "ms", 12))

	line := buf.String()
	assert.Contains(t, line, " WRN slow")
	assert.Contains(t, line, "req.id=c1")
	assert.Contains(t, line, "req.timing.ms=12")
}

func TestOpen_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agentchat.log")
	cfg := config.LoggingConfig{Level: "info", Format: "text", File: path}

	logger, f, err := Open(cfg)
	require.NoError(t, err)
	logger.Error("transport failed", "status", 500)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ERR transport failed status=500")
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
