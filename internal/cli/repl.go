// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/session"
	"github.com/jeranaias/agentchat/internal/util"
)

const (
	replPrompt      = "you> "
	historyFileName = "history"
)

const replHelp = `Commands:
  /file ID[:NAME]   Attach a file to the following messages
  /file             Stop attaching a file
  /id               Print the conversation ID
  /history          Print the conversation so far
  /help             Show this help
  /quit             Leave (Ctrl+D also works)

Ctrl+C cancels a reply that is still streaming.
`

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line per prompt. It returns io.EOF when the user
// is done.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linerReader adds line editing and history on an interactive terminal.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile); err == nil {
		_, _ = state.ReadHistory(f)
		f.Close()
	}
	return &linerReader{state: state, historyFile: historyFile}
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return line, err
}

func (r *linerReader) AppendHistory(line string) {
	r.state.AppendHistory(line)
}

// Close saves history owner-readable only and restores the terminal.
func (r *linerReader) Close() error {
	var buf bytes.Buffer
	if _, err := r.state.WriteHistory(&buf); err == nil {
		_ = util.AtomicWriteFile(r.historyFile, buf.Bytes(), 0600)
	}
	return r.state.Close()
}

// plainReader reads lines from a pipe or file.
type plainReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPlainReader(in io.Reader, out io.Writer) *plainReader {
	s := bufio.NewScanner(in)
	s.Buffer(make([]byte, 0, 64*1024), maxStdinQuestion)
	return &plainReader{scanner: s, out: out}
}

func (r *plainReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *plainReader) AppendHistory(string) {}

func (r *plainReader) Close() error { return nil }

// newLineReader uses liner only when both ends are the terminal; liner
// talks to os.Stdin and os.Stdout directly.
func newLineReader(env *Env) lineReader {
	in, ok := env.In.(*os.File)
	if ok && in == os.Stdin && IsTerminal(in) && env.Out == os.Stdout && IsTerminal(env.Out) {
		return newLinerReader(filepath.Join(util.DataDir(), historyFileName))
	}
	return newPlainReader(env.In, env.Out)
}

// =============================================================================
// REPL
// =============================================================================

type repl struct {
	env        *Env
	sess       *session.Session
	ctrl       *chat.Controller
	file       *chat.FileRef
	tty        bool
	interrupts <-chan os.Signal
}

type readResult struct {
	line string
	err  error
}

// HandleRepl runs a line-mode chat. Each line is sent as a message and
// the reply streams to env.Out; lines starting with "/" are commands.
func HandleRepl(ctx context.Context, env *Env, args Args) error {
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

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	r := &repl{
		env:        env,
		sess:       sess,
		ctrl:       ctrl,
		file:       args.File,
		tty:        IsTerminal(env.Out),
		interrupts: interrupts,
	}
	if r.tty {
		ConfigureColors(env.Out)
		fmt.Fprintln(env.Out, TitleStyle.Render("agentchat")+DimStyle.Render(" · "+ctrl.ConversationID()+" · /help for commands"))
	}

	reader := newLineReader(env)
	defer reader.Close()

	err = r.loop(ctx, reader)
	if n := sess.SaveErrors(); n > 0 {
		fmt.Fprintf(env.Err, "%s %d save(s) failed\n", WarningStyle.Render("warning:"), n)
	}
	fmt.Fprintln(env.Err, DimStyle.Render("Resume with: agentchat repl --conversation "+ctrl.ConversationID()))
	return err
}

func (r *repl) prompt() string {
	if r.tty {
		return replPrompt
	}
	return ""
}

// loop reads on its own goroutine so an interrupt or cancellation can end
// the session while a read is blocked.
func (r *repl) loop(ctx context.Context, reader lineReader) error {
	lines := make(chan readResult)
	next := make(chan struct{})
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			line, err := reader.Prompt(r.prompt())
			select {
			case lines <- readResult{line: line, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
			select {
			case <-next:
			case <-done:
				return
			}
		}
	}()

	for {
		var res readResult
		select {
		case res = <-lines:
		case <-r.interrupts:
			fmt.Fprintln(r.env.Out)
			return nil
		case <-ctx.Done():
			return nil
		}

		if res.err != nil {
			if errors.Is(res.err, io.EOF) {
				if r.tty {
					fmt.Fprintln(r.env.Out)
				}
				return nil
			}
			return fmt.Errorf("read input: %w", res.err)
		}

		if input := strings.TrimSpace(res.line); input != "" {
			reader.AppendHistory(input)
			quit, err := r.handle(ctx, input)
			if err != nil {
				DisplayError(r.env.Err, err, false)
			}
			if quit {
				return nil
			}
		}
		next <- struct{}{}
	}
}

func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	if strings.HasPrefix(input, "/") {
		return r.command(input)
	}
	return false, r.send(ctx, input)
}

func (r *repl) send(ctx context.Context, text string) error {
	w := &replyWriter{out: r.env.Out, log: r.sess.Log()}
	unsubscribe := r.sess.Log().Subscribe(w.onChange)
	defer unsubscribe()

	ex, err := r.ctrl.Send(text, r.file)
	if err != nil {
		return err
	}
	if r.tty {
		fmt.Fprint(r.env.Out, AgentStyle.Render("agent> "))
	}

	select {
	case <-ex.Done():
	case <-r.interrupts:
		r.ctrl.Cancel()
		<-ex.Done()
	case <-ctx.Done():
		r.ctrl.Cancel()
		<-ex.Done()
	}
	if w.written > 0 || r.tty {
		fmt.Fprintln(r.env.Out)
	}

	switch ex.State() {
	case chat.StateFailed:
		return ex.Err()
	case chat.StateCancelled:
		fmt.Fprintln(r.env.Err, WarningStyle.Render("[Cancelled]"))
	}
	return nil
}

func (r *repl) command(input string) (bool, error) {
	fields := strings.Fields(input)
	out := r.env.Out

	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/?":
		fmt.Fprint(out, replHelp)
	case "/id":
		fmt.Fprintln(out, r.ctrl.ConversationID())
	case "/file":
		if len(fields) == 1 {
			r.file = nil
			fmt.Fprintln(out, DimStyle.Render("file detached"))
			return false, nil
		}
		ref, err := ParseFileRef(strings.Join(fields[1:], " "))
		if err != nil {
			return false, err
		}
		r.file = ref
		fmt.Fprintln(out, DimStyle.Render("attached "+describeFile(ref)))
	case "/history":
		msgs := r.ctrl.Messages()
		if len(msgs) == 0 {
			fmt.Fprintln(out, DimStyle.Render("No messages yet."))
		}
		for _, msg := range msgs {
			fmt.Fprintln(out, roleLabel(msg)+": "+msg.Content)
		}
	default:
		return false, &UsageError{Field: "command", Value: fields[0], Reason: "unknown command", Example: "/help"}
	}
	return false, nil
}

func describeFile(ref *chat.FileRef) string {
	if ref.Name == "" {
		return ref.ID
	}
	return ref.Name + " (" + ref.ID + ")"
}
