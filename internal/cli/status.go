// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/agentchat/internal/backend"
)

// StatusReport is the output of "status".
type StatusReport struct {
	Backend   string               `json:"backend"`
	Agent     *backend.AgentStatus `json:"agent"`
	Latency   time.Duration        `json:"-"`
	LatencyMS int64                `json:"latency_ms"`
}

// HandleStatus queries the agent's status.
func HandleStatus(ctx context.Context, env *Env, args Args) error {
	client := env.Client()

	start := time.Now()
	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("query %s: %w", client.Config().BaseURL, err)
	}
	report := StatusReport{
		Backend: client.Config().BaseURL,
		Agent:   st,
		Latency: time.Since(start),
	}
	report.LatencyMS = report.Latency.Milliseconds()

	if args.JSON {
		return NewJSONResponse("status", report).Write(env.Out)
	}

	ConfigureColors(env.Out)
	out := env.Out
	fmt.Fprintln(out, TitleStyle.Render("Agent status"))
	fmt.Fprintln(out, RenderField("Backend", report.Backend))
	fmt.Fprintln(out, RenderField("Agent", st.AgentName))
	fmt.Fprintln(out, RenderField("Model", st.Model))

	state := WarningStyle.Render(st.Status)
	if st.Available {
		state = SuccessStyle.Render(st.Status)
	}
	fmt.Fprintln(out, LabelStyle.Render("Status")+state)

	lastUsed := "never"
	if st.LastUsed != nil {
		lastUsed = st.LastUsed.Local().Format("2006-01-02 15:04:05")
	}
	fmt.Fprintln(out, RenderField("Last used", lastUsed))
	fmt.Fprintln(out, RenderField("Latency", report.Latency.Round(time.Millisecond).String()))
	return nil
}
