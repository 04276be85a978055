// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/jeranaias/agentchat/internal/chat"
)

// Version information (overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the command selected on the command line.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdStatus
	CmdSessions
	CmdConfig
	CmdRepl
	CmdVersion
	CmdHelp
)

// String returns the command's name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdStatus:
		return "status"
	case CmdSessions:
		return "sessions"
	case CmdConfig:
		return "config"
	case CmdRepl:
		return "repl"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	ConfigPath   string
	Backend      string
	Conversation string
	File         *chat.FileRef
	JSON         bool
	Verbose      bool

	// Subcommand is the first argument after the command, if any.
	Subcommand string

	// Raw holds the arguments after the command name.
	Raw []string
}

const usageText = `agentchat - chat with a streaming agent from the terminal

Usage:
  agentchat [tui]                     Start the interactive chat (default)
  agentchat ask [--file ID] TEXT      Ask once and stream the reply to stdout
  agentchat repl                      Line-mode chat with input history
  agentchat status                    Show the agent's status
  agentchat sessions [subcommand]     Manage saved conversations
      list                            List conversations (default)
      show ID                         Print a conversation
      export ID [--format md|json|html] [--output PATH|DIR] [--theme dark|light]
      delete ID --confirm             Delete a conversation
      search QUERY                    Find conversations by content
      watch ID                        Follow a conversation as it is saved
  agentchat config [subcommand]       Manage configuration
      show [--format toml|yaml|json]  Print the effective configuration
      path                            Print the config file path
      init [--force]                  Write a default config file
      get KEY | set KEY VALUE         Read or change one setting
  agentchat version                   Show version information
  agentchat help                      Show this help

Global flags:
  --config PATH         Use this config file
  --backend URL         Backend base URL (overrides config)
  --conversation ID     Resume a conversation instead of starting one
  --file ID[:NAME]      Attach an uploaded file to sent messages
  --json                Machine-readable output
  -v, --verbose         Debug logging

Environment:
  AGENTCHAT_BACKEND_URL, BACKEND_URL, AGENTCHAT_LOG_LEVEL,
  AGENTCHAT_STORAGE_DRIVER, AGENTCHAT_DATA_DIR, NO_COLOR

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// VersionInfo is the data printed by "version".
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func versionInfo() VersionInfo {
	return VersionInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// HandleVersion prints version information.
func HandleVersion(w io.Writer, args Args) error {
	info := versionInfo()
	if args.JSON {
		return NewJSONResponse("version", info).Write(w)
	}
	fmt.Fprintf(w, "agentchat version %s\n", info.Version)
	fmt.Fprintf(w, "  Git commit: %s\n", info.GitCommit)
	fmt.Fprintf(w, "  Build date: %s\n", info.BuildDate)
	fmt.Fprintf(w, "  Go:         %s %s\n", info.GoVersion, info.Platform)
	return nil
}

// =============================================================================
// PARSING
// =============================================================================

// Parse splits argv (without the program name) into a command and its
// arguments. Global flags may appear anywhere.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]
	if len(args.Raw) > 0 && !strings.HasPrefix(args.Raw[0], "-") {
		args.Subcommand = strings.ToLower(args.Raw[0])
	}

	switch name {
	case "tui", "chat":
		return CmdTUI, args, nil
	case "ask", "a":
		return CmdAsk, args, nil
	case "status", "s":
		return CmdStatus, args, nil
	case "sessions", "session":
		return CmdSessions, args, nil
	case "repl", "shell":
		return CmdRepl, args, nil
	case "config":
		return CmdConfig, args, nil
	case "version", "--version":
		return CmdVersion, args, nil
	case "help":
		return CmdHelp, args, nil
	default:
		return CmdHelp, args, &UsageError{Field: "command", Value: name, Reason: "unknown command", Example: "agentchat help"}
	}
}

// parseGlobalFlags extracts global flags and returns the other arguments
// in order.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	var remaining []string

	value := func(i int, flag string) (string, error) {
		if i+1 >= len(argv) {
			return "", ErrMissingArgument(flag, "agentchat "+flag+" VALUE")
		}
		return argv[i+1], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		name, inline, hasInline := strings.Cut(arg, "=")

		switch name {
		case "--config", "--backend", "--conversation", "-c", "--file":
			v := inline
			if !hasInline {
				var err error
				if v, err = value(i, name); err != nil {
					return nil, args, err
				}
				i++
			}
			if err := args.setGlobal(name, v); err != nil {
				return nil, args, err
			}
		case "--json":
			args.JSON = true
		case "-v", "--verbose":
			args.Verbose = true
		case "-h", "--help":
			remaining = append([]string{"help"}, remaining...)
		default:
			remaining = append(remaining, arg)
		}
	}
	return remaining, args, nil
}

func (a *Args) setGlobal(flag, v string) error {
	switch flag {
	case "--config":
		a.ConfigPath = v
	case "--backend":
		a.Backend = strings.TrimRight(v, "/")
	case "--conversation", "-c":
		a.Conversation = strings.TrimSpace(v)
	case "--file":
		ref, err := ParseFileRef(v)
		if err != nil {
			return err
		}
		a.File = ref
	}
	return nil
}

// ParseFileRef parses "ID" or "ID:NAME".
func ParseFileRef(s string) (*chat.FileRef, error) {
	id, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &UsageError{Field: "file", Value: s, Reason: "file id is empty", Example: "--file 3f2a:notes.txt"}
	}
	return &chat.FileRef{ID: id, Name: strings.TrimSpace(name)}, nil
}
