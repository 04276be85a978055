// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/session"
)

// maxStdinQuestion bounds a question piped on stdin.
const maxStdinQuestion = 1 << 20

// HandleAsk sends one message and streams the reply to env.Out as it
// arrives. The exchange is persisted like any other, so the conversation
// can be resumed with --conversation.
func HandleAsk(ctx context.Context, env *Env, args Args) error {
	text, err := askText(env, args)
	if err != nil {
		return err
	}

	store, err := env.OpenStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	sess := session.New(nil, store, env.Logger)
	ctrl := chat.NewController(sess, env.Client(), chat.Options{
		ConversationID:   args.Conversation,
		BootstrapTimeout: env.Config.Backend.Timeout(),
		Logger:           env.Logger,
	})
	defer ctrl.Close()

	if err := ctrl.Bootstrap(ctx); err != nil {
		return err
	}

	tty := IsTerminal(env.Out)
	if tty {
		ConfigureColors(env.Out)
		fmt.Fprintln(env.Out, AgentStyle.Render("agent")+DimStyle.Render(" · "+ctrl.ConversationID()))
	}

	w := &replyWriter{out: env.Out, log: sess.Log()}
	unsubscribe := sess.Log().Subscribe(w.onChange)
	defer unsubscribe()

	ex, err := ctrl.Send(text, args.File)
	if err != nil {
		return err
	}

	if _, err := ex.Wait(ctx); err != nil {
		ctrl.Cancel()
		<-ex.Done()
		fmt.Fprintln(env.Out)
		return chat.ErrCancelled
	}
	if w.written > 0 {
		fmt.Fprintln(env.Out)
	}

	switch ex.State() {
	case chat.StateFailed:
		return ex.Err()
	case chat.StateCancelled:
		return chat.ErrCancelled
	}
	env.Logger.Debug("ask finished", "conversation_id", ctrl.ConversationID(), "bytes", w.written)
	return nil
}

// askText takes the question from the arguments, or from stdin when it
// is piped and no arguments were given.
func askText(env *Env, args Args) (string, error) {
	text := strings.TrimSpace(JoinPositionalArgs(NewArgParser(args.Raw), 0))
	if text != "" {
		return text, nil
	}
	if f, ok := env.In.(*os.File); env.In != nil && !(ok && IsTerminal(f)) {
		data, err := io.ReadAll(io.LimitReader(env.In, maxStdinQuestion))
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return "", ErrMissingArgument("question", `agentchat ask "what changed in v2?"`)
	}
	return text, nil
}

// replyWriter prints the growing assistant reply as deltas. Log listeners
// are serialized by the session, so no locking is needed.
type replyWriter struct {
	out     io.Writer
	log     *model.MessageLog
	written int
}

func (w *replyWriter) onChange(c model.Change) {
	if c.Kind != model.ChangeUpdate {
		return
	}
	msg, ok := w.log.Get(c.ID)
	if !ok || !msg.IsAssistant() || len(msg.Content) <= w.written {
		return
	}
	n, _ := io.WriteString(w.out, msg.Content[w.written:])
	w.written += n
}
