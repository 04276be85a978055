// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command mock-backend runs a local agent backend for development.
//
// Usage:
//
//	mock-backend [-addr 127.0.0.1:8000] [-chunk 5] [-delay 25ms] [-file ID=PATH]...
//
// Replies echo the message and are streamed in small byte chunks that
// split multi-byte characters.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jeranaias/agentchat/internal/config"
	"github.com/jeranaias/agentchat/internal/logging"
	"github.com/jeranaias/agentchat/internal/server"
)

func main() {
	files := map[string]string{}

	addr := flag.String("addr", server.DefaultAddr, "listen address")
	name := flag.String("name", "Echo Agent", "agent display name")
	model := flag.String("model", "echo-1", "model name reported by /api/chat/status")
	chunk := flag.Int("chunk", server.DefaultChunkSize, "reply bytes per write")
	delay := flag.Duration("delay", server.DefaultChunkDelay, "pause between writes")
	rps := flag.Float64("rps", 0, "requests per second per client (0 = unlimited)")
	level := flag.String("log-level", "info", "log level: debug, info, warn, error")
	format := flag.String("log-format", "text", "log format: text, json")
	flag.Func("file", "register a file as ID=PATH (repeatable)", func(v string) error {
		id, path, ok := strings.Cut(v, "=")
		if !ok || id == "" || path == "" {
			return fmt.Errorf("expected ID=PATH, got %q", v)
		}
		files[id] = path
		return nil
	})
	flag.Parse()

	logger := logging.New(config.LoggingConfig{Level: *level, Format: *format}, os.Stderr)

	srv := server.New(server.Config{
		Addr:              *addr,
		AgentName:         *name,
		Model:             *model,
		ChunkSize:         *chunk,
		ChunkDelay:        *delay,
		Files:             files,
		RequestsPerSecond: *rps,
		Burst:             5,
	}, logger)

	if err := run(srv); err != nil {
		log.Fatal(err)
	}
}

func run(srv *server.Server) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
