// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/config"
	"github.com/jeranaias/agentchat/internal/logging"
	"github.com/jeranaias/agentchat/internal/storage"
)

// Env is what every command handler runs against.
type Env struct {
	Config     *config.Config
	ConfigPath string // "" when running on defaults
	In         io.Reader
	Out        io.Writer
	Err        io.Writer
	Logger     *slog.Logger
}

// NewEnv loads the configuration selected by args and applies the
// command-line overrides. Logs go to stderr.
func NewEnv(args Args, out, errw io.Writer) (*Env, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)
	if args.ConfigPath != "" {
		path = args.ConfigPath
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, path, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if args.Backend != "" {
		cfg.Backend.URL = args.Backend
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Env{
		Config:     cfg,
		ConfigPath: path,
		Out:        out,
		Err:        errw,
		Logger:     logging.New(cfg.Logging, errw),
	}, nil
}

// StdEnv is NewEnv on the process's standard streams.
func StdEnv(args Args) (*Env, error) {
	env, err := NewEnv(args, os.Stdout, os.Stderr)
	if err != nil {
		return nil, err
	}
	env.In = os.Stdin
	return env, nil
}

// Client builds the backend client from the configuration.
func (e *Env) Client() *backend.Client {
	b := e.Config.Backend
	return backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:           b.URL,
		Timeout:           b.Timeout(),
		RequestsPerSecond: b.RequestsPerSecond,
		Burst:             b.Burst,
		UserAgent:         "agentchat/" + Version,
	})
}

// OpenStore opens the configured conversation catalog.
func (e *Env) OpenStore() (storage.Catalog, error) {
	s := e.Config.Storage
	return storage.Open(storage.Options{
		Driver:           s.Driver,
		Dir:              s.Dir,
		SQLitePath:       s.SQLitePath,
		MaxConversations: s.MaxConversations,
		Logger:           e.Logger,
	})
}
