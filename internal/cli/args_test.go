// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"
	"testing"
)

// =============================================================================
// ARG PARSER TESTS
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		bools    []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "flag with value",
			args:    []string{"export", "abc", "--format", "json"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "json")
				}
				if p.Positional(1) != "abc" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "abc")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"export", "--output=/tmp/x.md"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("output") != "/tmp/x.md" {
					t.Errorf("Flag(output) = %q", p.Flag("output"))
				}
			},
		},
		{
			name:    "declared boolean does not swallow positional",
			args:    []string{"delete", "--confirm", "abc"},
			bools:   []string{"confirm"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
				if p.Positional(1) != "abc" {
					t.Errorf("Positional(1) = %q, want abc", p.Positional(1))
				}
			},
		},
		{
			name:    "explicit boolean value",
			args:    []string{"show", "--json=false"},
			bools:   []string{"json"},
			wantSub: "show",
			validate: func(t *testing.T, p *ArgParser) {
				if p.BoolFlag("json") {
					t.Error("BoolFlag(json) should be false")
				}
				if !p.HasFlag("json") {
					t.Error("HasFlag(json) should be true")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"search", "--", "--not-a-flag", "x"},
			wantSub: "search",
			validate: func(t *testing.T, p *ArgParser) {
				joined := JoinPositionalArgs(p, 1)
				if joined != "--not-a-flag x" {
					t.Errorf("JoinPositionalArgs = %q", joined)
				}
			},
		},
		{
			name:    "trailing flag is boolean",
			args:    []string{"init", "--force"},
			wantSub: "init",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("force") {
					t.Error("BoolFlag(force) should be true")
				}
			},
		},
		{
			name:    "no arguments",
			args:    nil,
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 0 || p.PositionalFrom(0) != nil {
					t.Error("expected no positionals")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			if p.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", p.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, p)
			}
		})
	}
}

func TestArgParser_Defaults(t *testing.T) {
	p := NewArgParser([]string{"list", "--limit", "abc", "--depth", "3"})

	if got := p.FlagIntOrDefault("limit", 10); got != 10 {
		t.Errorf("FlagIntOrDefault(limit) = %d, want 10 for malformed value", got)
	}
	if got := p.FlagIntOrDefault("depth", 1); got != 3 {
		t.Errorf("FlagIntOrDefault(depth) = %d, want 3", got)
	}
	if got := p.FlagOrDefault("format", "md"); got != "md" {
		t.Errorf("FlagOrDefault(format) = %q, want md", got)
	}
	if got := strings.Join(p.Raw(), " "); got != "list --limit abc --depth 3" {
		t.Errorf("Raw() = %q", got)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "Y", "on", "1", " true "} {
		if v, err := ParseBoolString(s); err != nil || !v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	for _, s := range []string{"no", "OFF", "0", "false"} {
		if v, err := ParseBoolString(s); err != nil || v {
			t.Errorf("ParseBoolString(%q) = %v, %v", s, v, err)
		}
	}
	if _, err := ParseBoolString("maybe"); err == nil {
		t.Error("expected error for 'maybe'")
	}
}
