// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/ui/styles"
)

func TestExplain(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
		title string
	}{
		{
			name:  "unreachable bootstrap",
			err:   &chat.Error{Kind: chat.KindBootstrap, Err: backend.ErrUnreachable},
			want:  CategoryNetwork,
			title: "Backend Unreachable",
		},
		{
			name:  "timeout",
			err:   &chat.Error{Kind: chat.KindBootstrap, Err: backend.ErrTimeout},
			want:  CategoryTimeout,
			title: "Backend Timed Out",
		},
		{
			name:  "missing file",
			err:   &chat.Error{Kind: chat.KindTransport, Err: &backend.ClientError{Type: backend.ErrTypeStatus, StatusCode: http.StatusNotFound, Message: "backend returned 404"}},
			want:  CategoryFile,
			title: "File Not Found",
		},
		{
			name:  "rate limited",
			err:   &backend.ClientError{Type: backend.ErrTypeStatus, StatusCode: http.StatusTooManyRequests, Message: "backend returned 429"},
			want:  CategoryRateLimit,
			title: "Rate Limited",
		},
		{
			name:  "server error",
			err:   &backend.ClientError{Type: backend.ErrTypeStatus, StatusCode: http.StatusBadGateway, Message: "backend returned 502"},
			want:  CategoryBackend,
			title: "Backend Error",
		},
		{
			name:  "interrupted stream",
			err:   &chat.Error{Kind: chat.KindTransport, Err: errors.New("unexpected EOF")},
			want:  CategoryNetwork,
			title: "Stream Interrupted",
		},
		{
			name:  "keyword fallback",
			err:   errors.New("storage: database is locked"),
			want:  CategoryStorage,
			title: "Storage Problem",
		},
		{
			name:  "unknown",
			err:   errors.New("something odd"),
			want:  CategoryUnknown,
			title: "Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Explain(tt.err)
			if d.Category != tt.want {
				t.Errorf("Category = %q, want %q", d.Category, tt.want)
			}
			if d.Title != tt.title {
				t.Errorf("Title = %q, want %q", d.Title, tt.title)
			}
			if d.Message != tt.err.Error() {
				t.Errorf("Message = %q, want %q", d.Message, tt.err.Error())
			}
		})
	}
}

func TestMatcher_CustomPatternOrder(t *testing.T) {
	m := &ErrorPatternMatcher{}
	m.AddPattern(ErrorPattern{Keywords: []string{"quota"}, Category: CategoryRateLimit, Title: "Quota"})
	m.AddPattern(ErrorPattern{Keywords: []string{"quota", "disk"}, Category: CategoryStorage, Title: "Disk"})

	if d := m.Match(errors.New("Quota exhausted")); d == nil || d.Title != "Quota" {
		t.Fatalf("first registered pattern should win, got %+v", d)
	}
	if d := m.Match(errors.New("disk full")); d == nil || d.Title != "Disk" {
		t.Fatalf("expected Disk, got %+v", d)
	}
	if m.Match(nil) != nil {
		t.Error("Match(nil) should be nil")
	}
}

func TestRenderErrorBanner(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	theme := styles.NewTheme()

	d := ErrorDisplay{Title: "Backend Unreachable", Message: "dial tcp\nrefused", Suggestions: []string{"start it"}}
	out := RenderErrorBanner(theme, d, 200)
	if !strings.Contains(out, "Backend Unreachable: dial tcp refused · start it") {
		t.Errorf("unexpected banner %q", out)
	}

	block := RenderErrorBlock(d, lipgloss.NewStyle(), lipgloss.NewStyle())
	if strings.Count(block, "→") != 1 || !strings.HasPrefix(block, "Backend Unreachable") {
		t.Errorf("unexpected block %q", block)
	}
}
