// agentchat - a terminal client for streaming agent conversations.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/agentchat/internal/cli"
	"github.com/jeranaias/agentchat/internal/config"
	"github.com/jeranaias/agentchat/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	cmd, args, err := cli.Parse(argv)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		return cli.ExitCode(err)
	}

	switch cmd {
	case cli.CmdHelp:
		cli.PrintUsage(os.Stdout)
		return cli.ExitSuccess
	case cli.CmdVersion:
		return exit(cli.HandleVersion(os.Stdout, args), args)
	}

	env, err := cli.StdEnv(args)
	if err != nil {
		if cmd != cli.CmdConfig || (args.Subcommand != "init" && args.Subcommand != "path") {
			cli.DisplayError(os.Stderr, err, args.JSON)
			return cli.ExitCode(err)
		}
		// A broken config file must not prevent replacing it.
		env = &cli.Env{
			Config: config.Default(),
			In:     os.Stdin,
			Out:    os.Stdout,
			Err:    os.Stderr,
			Logger: logging.Discard(),
		}
	}

	// The REPL handles Ctrl+C itself: it cancels the reply, not the session.
	signals := []os.Signal{os.Interrupt, syscall.SIGTERM}
	if cmd == cli.CmdRepl {
		signals = signals[1:]
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	switch cmd {
	case cli.CmdTUI:
		err = cli.HandleTUI(ctx, env, args)
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, env, args)
	case cli.CmdRepl:
		err = cli.HandleRepl(ctx, env, args)
	case cli.CmdStatus:
		err = cli.HandleStatus(ctx, env, args)
	case cli.CmdSessions:
		err = cli.HandleSessions(ctx, env, args)
	case cli.CmdConfig:
		err = cli.HandleConfig(env, args)
	}
	return exit(err, args)
}

func exit(err error, args cli.Args) int {
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
	}
	return cli.ExitCode(err)
}
