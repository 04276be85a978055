// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/agentchat/internal/export"
	"github.com/jeranaias/agentchat/internal/model"
	"github.com/jeranaias/agentchat/internal/storage"
	"github.com/jeranaias/agentchat/internal/util"
)

// HandleSessions dispatches the "sessions" subcommands.
func HandleSessions(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	store, err := env.OpenStore()
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	ConfigureColors(env.Out)

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls", "l":
		return sessionsList(env, store, jsonMode)
	case "show":
		return sessionsShow(env, store, p.Positional(1), jsonMode)
	case "export":
		return sessionsExport(env, store, p.Positional(1), exportRequest{
			Format: p.FlagOrDefault("format", "md"),
			Output: p.Flag("output"),
			Theme:  p.FlagOrDefault("theme", "dark"),
		})
	case "delete", "rm":
		return sessionsDelete(env, store, p.Positional(1), p.BoolFlag("confirm"))
	case "search", "find":
		return sessionsSearch(env, store, JoinPositionalArgs(p, 1), jsonMode)
	case "watch", "tail":
		return sessionsWatch(ctx, env, store, p.Positional(1))
	default:
		return &UsageError{Field: "subcommand", Value: sub, Reason: "unknown sessions subcommand", Example: "agentchat sessions list"}
	}
}

func sessionsList(env *Env, store storage.Catalog, jsonMode bool) error {
	metas, err := store.List()
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	if jsonMode {
		return NewJSONResponse("sessions list", metas).Write(env.Out)
	}
	fmt.Fprint(env.Out, storage.FormatSessionList(metas))
	if len(metas) > 0 {
		fmt.Fprintln(env.Out, DimStyle.Render(fmt.Sprintf("%d conversation(s)", len(metas))))
	} else {
		fmt.Fprintln(env.Out)
	}
	return nil
}

func sessionsSearch(env *Env, store storage.Catalog, query string, jsonMode bool) error {
	if strings.TrimSpace(query) == "" {
		return ErrMissingArgument("query", "agentchat sessions search deploy")
	}
	metas, err := storage.Search(store, query)
	if err != nil {
		return fmt.Errorf("search conversations: %w", err)
	}
	if jsonMode {
		return NewJSONResponse("sessions search", metas).Write(env.Out)
	}
	fmt.Fprint(env.Out, storage.FormatSessionList(metas))
	fmt.Fprintln(env.Out)
	return nil
}

// getConversation maps storage's not-found error onto the CLI's.
func getConversation(store storage.Catalog, id string) (*storage.StoredConversation, error) {
	conv, err := store.Get(id)
	if storage.IsNotFound(err) {
		return nil, &NotFoundError{Resource: "conversation", ID: id}
	}
	return conv, err
}

func sessionsShow(env *Env, store storage.Catalog, id string, jsonMode bool) error {
	if id == "" {
		return ErrMissingArgument("id", "agentchat sessions show ID")
	}
	conv, err := getConversation(store, id)
	if err != nil {
		return err
	}
	if jsonMode {
		return NewJSONResponse("sessions show", conv).Write(env.Out)
	}

	out := env.Out
	fmt.Fprintln(out, TitleStyle.Render(conv.Summary))
	fmt.Fprintln(out, RenderField("Conversation", conv.ID))
	fmt.Fprintln(out, RenderField("Created", conv.CreatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintln(out, RenderField("Updated", conv.UpdatedAt.Local().Format("2006-01-02 15:04:05")))
	fmt.Fprintln(out, RenderField("Messages", fmt.Sprint(len(conv.Messages))))
	markdown := env.Config.UI.RenderMarkdown && IsTerminal(out)
	width := TerminalWidth(out)
	for _, msg := range conv.Messages {
		fmt.Fprintln(out)
		fmt.Fprintln(out, roleLabel(msg)+DimStyle.Render(" "+msg.Timestamp.Local().Format("15:04:05")))
		content := msg.Content
		if markdown && msg.IsAssistant() {
			content = renderMarkdown(content, width, ColorsEnabled(out))
		}
		fmt.Fprintln(out, content)
	}
	return nil
}

// exportRequest holds the "sessions export" flags.
type exportRequest struct {
	Format string
	Output string // file path, or an existing directory
	Theme  string
}

func sessionsExport(env *Env, store storage.Catalog, id string, req exportRequest) error {
	if id == "" {
		return ErrMissingArgument("id", "agentchat sessions export ID --format md")
	}
	conv, err := getConversation(store, id)
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.Theme = req.Theme
	exporter, err := export.ForFormat(req.Format, opts)
	if err != nil {
		return ErrUnsupportedFormat(req.Format, export.Formats())
	}

	if req.Output == "" {
		data, err := exporter.Export(conv)
		if err != nil {
			return err
		}
		_, err = env.Out.Write(data)
		return err
	}

	output := util.ExpandHome(req.Output)
	if info, statErr := os.Stat(output); statErr == nil && info.IsDir() {
		output, err = export.ExportToFile(conv, exporter, output, time.Now())
		if err != nil {
			return err
		}
	} else {
		data, err := exporter.Export(conv)
		if err != nil {
			return err
		}
		if err := util.AtomicWriteFile(output, data, 0600); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
	}
	fmt.Fprintln(env.Err, SuccessStyle.Render("Exported")+" "+id+" → "+output)
	return nil
}

func sessionsDelete(env *Env, store storage.Catalog, id string, confirm bool) error {
	if id == "" {
		return ErrMissingArgument("id", "agentchat sessions delete ID --confirm")
	}
	if !confirm {
		return &UsageError{Field: "confirm", Reason: "deleting a conversation requires --confirm", Example: "agentchat sessions delete " + id + " --confirm"}
	}
	if err := store.Delete(id); err != nil {
		if storage.IsNotFound(err) {
			return &NotFoundError{Resource: "conversation", ID: id}
		}
		return fmt.Errorf("delete conversation: %w", err)
	}
	fmt.Fprintln(env.Out, SuccessStyle.Render("Deleted")+" "+id)
	return nil
}

// sessionsWatch prints a conversation and then follows it as another
// agentchat process saves it, until ctx is cancelled.
func sessionsWatch(ctx context.Context, env *Env, store storage.Catalog, id string) error {
	if id == "" {
		return ErrMissingArgument("id", "agentchat sessions watch ID")
	}
	fs, ok := store.(*storage.FileStore)
	if !ok {
		return &UsageError{Field: "storage.driver", Value: env.Config.Storage.Driver, Reason: "watch requires the file storage driver"}
	}

	f := newFollower(env.Out)
	return fs.Watch(ctx, id, f.update)
}

// =============================================================================
// TRANSCRIPT FOLLOWER
// =============================================================================

// follower prints messages once and then only the text appended to them.
type follower struct {
	out     io.Writer
	printed map[string]int
}

func newFollower(out io.Writer) *follower {
	return &follower{out: out, printed: make(map[string]int)}
}

func (f *follower) update(msgs []model.Message) {
	for _, msg := range msgs {
		n, seen := f.printed[msg.ID]
		if !seen {
			fmt.Fprintf(f.out, "\n%s\n", roleLabel(msg))
		}
		if len(msg.Content) > n {
			io.WriteString(f.out, msg.Content[n:])
			f.printed[msg.ID] = len(msg.Content)
		} else if !seen {
			f.printed[msg.ID] = 0
		}
	}
}

func roleLabel(msg model.Message) string {
	if msg.IsUser() {
		return UserStyle.Render(msg.Role.DisplayName())
	}
	return AgentStyle.Render(msg.Role.DisplayName())
}
