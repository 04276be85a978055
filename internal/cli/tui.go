// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/logging"
	"github.com/jeranaias/agentchat/internal/session"
	"github.com/jeranaias/agentchat/internal/ui/chatview"
	"github.com/jeranaias/agentchat/internal/ui/styles"
)

// HandleTUI runs the interactive chat until the user quits or ctx ends.
// The terminal belongs to the program, so logs go to the configured file.
func HandleTUI(ctx context.Context, env *Env, args Args) error {
	logger, logFile, err := logging.Open(env.Config.Logging)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	env.Logger = logger

	store, err := env.OpenStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	bridge := chatview.NewBridge()
	opts := chat.Options{
		ConversationID:   args.Conversation,
		BootstrapTimeout: env.Config.Backend.Timeout(),
		Logger:           logger,
	}
	bridge.Hook(&opts)

	sess := session.New(nil, store, logger)
	ctrl := chat.NewController(sess, env.Client(), opts)

	view := chatview.New(ctrl, bridge, styles.NewTheme(), chatview.Config{
		File:           args.File,
		ShowTimestamps: env.Config.UI.ShowTimestamps,
		Markdown:       env.Config.UI.RenderMarkdown,
		BackendURL:     env.Config.Backend.URL,
	})

	logger.Info("tui started", "backend", env.Config.Backend.URL, "conversation_id", args.Conversation)
	program := tea.NewProgram(view, tea.WithAltScreen())

	stopped := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			program.Quit()
		case <-stopped:
		}
	}()
	_, runErr := program.Run()
	close(stopped)

	// Unblock pending callbacks before waiting for the exchanges.
	bridge.Close()
	ctrl.Close()

	if sess.SaveErrors() > 0 {
		fmt.Fprintf(env.Err, "%s %d save(s) failed, see %s\n", WarningStyle.Render("warning:"), sess.SaveErrors(), env.Config.Logging.File)
	}
	if id := ctrl.ConversationID(); id != "" {
		fmt.Fprintln(env.Out, DimStyle.Render("Resume with: agentchat --conversation "+id))
	}
	logger.Info("tui stopped", "conversation_id", ctrl.ConversationID())

	return runErr
}
