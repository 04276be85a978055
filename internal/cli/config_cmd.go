// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/agentchat/internal/config"
	"github.com/jeranaias/agentchat/internal/util"
)

var configFormats = []string{"toml", "yaml", "json"}

// HandleConfig dispatches the "config" subcommands.
func HandleConfig(env *Env, args Args) error {
	p := NewArgParser(args.Raw, "force", "json")

	switch sub := p.Subcommand(); sub {
	case "", "show":
		return configShow(env, p.FlagOrDefault("format", "toml"), args.JSON)
	case "path":
		return configPath(env)
	case "init":
		return configInit(env, args.ConfigPath, p.BoolFlag("force"))
	case "get":
		return configGet(env, p.Positional(1))
	case "set":
		return configSet(env, args.ConfigPath, p.Positional(1), JoinPositionalArgs(p, 2))
	case "keys":
		for _, k := range config.Keys() {
			fmt.Fprintln(env.Out, k)
		}
		return nil
	default:
		return &UsageError{Field: "subcommand", Value: sub, Reason: "unknown config subcommand", Example: "agentchat config show"}
	}
}

func configShow(env *Env, format string, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("config show", env.Config).Write(env.Out)
	}
	format = strings.ToLower(format)
	if !oneOf(format, configFormats) {
		return ErrUnsupportedFormat(format, configFormats)
	}
	data, err := config.Encode(env.Config, format)
	if err != nil {
		return err
	}
	_, err = env.Out.Write(data)
	return err
}

func configPath(env *Env) error {
	if env.ConfigPath != "" {
		fmt.Fprintln(env.Out, env.ConfigPath)
		return nil
	}
	fmt.Fprintln(env.Out, config.ConfigPathTOML())
	fmt.Fprintln(env.Err, DimStyle.Render("(not created yet; run 'agentchat config init')"))
	return nil
}

func configInit(env *Env, path string, force bool) error {
	if path == "" {
		path = config.ConfigPathTOML()
	}
	if _, err := os.Stat(path); err == nil && !force {
		return &UsageError{Field: "config", Value: path, Reason: "file already exists", Example: "agentchat config init --force"}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, SuccessStyle.Render("Wrote")+" "+path)
	return nil
}

func configGet(env *Env, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "agentchat config get backend.url")
	}
	v, err := env.Config.Get(key)
	if err != nil {
		return &UsageError{Field: "key", Value: key, Reason: err.Error(), Example: "agentchat config keys"}
	}
	fmt.Fprintln(env.Out, v)
	return nil
}

// configSet changes one key in the config file on disk. The file is
// reloaded without command-line overrides so they are not persisted.
func configSet(env *Env, path, key, value string) error {
	if key == "" || value == "" {
		return ErrMissingArgument("key and value", "agentchat config set backend.url http://agent:8000")
	}
	if path == "" {
		path = env.ConfigPath
	}
	if path == "" {
		path = config.ConfigPathTOML()
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Field: "key", Value: key, Reason: err.Error(), Example: "agentchat config keys"}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	if format := formatForPath(path); format != "toml" {
		data, err := config.Encode(cfg, format)
		if err != nil {
			return err
		}
		if err := util.AtomicWriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
	} else if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "%s %s = %v\n", SuccessStyle.Render("Set"), key, value)
	return nil
}

func formatForPath(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return "yaml"
	case strings.HasSuffix(lower, ".json"):
		return "json"
	default:
		return "toml"
	}
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}
