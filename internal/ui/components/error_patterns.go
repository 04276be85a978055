// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/jeranaias/agentchat/internal/backend"
	"github.com/jeranaias/agentchat/internal/chat"
)

// =============================================================================
// ERROR CATEGORIES
// =============================================================================

// ErrorCategory is the kind of problem shown to the user.
type ErrorCategory string

const (
	CategoryNetwork   ErrorCategory = "Network"
	CategoryTimeout   ErrorCategory = "Timeout"
	CategoryBackend   ErrorCategory = "Backend"
	CategoryFile      ErrorCategory = "File"
	CategoryRateLimit ErrorCategory = "Rate limit"
	CategoryConfig    ErrorCategory = "Config"
	CategoryStorage   ErrorCategory = "Storage"
	CategoryUnknown   ErrorCategory = "Error"
)

// =============================================================================
// ERROR PATTERN MATCHER
// =============================================================================

// ErrorPattern matches an error and says what to do about it.
type ErrorPattern struct {
	// Match reports whether the pattern applies. When nil, Keywords are
	// matched against the lowercased message instead.
	Match func(err error) bool

	// Keywords trigger the pattern when any appears in the message.
	Keywords []string

	Category    ErrorCategory
	Title       string
	Suggestions []string
}

// ErrorDisplay is a matched error ready to render.
type ErrorDisplay struct {
	Category    ErrorCategory
	Title       string
	Message     string
	Suggestions []string
}

// Hint returns the first suggestion, or "".
func (d ErrorDisplay) Hint() string {
	if len(d.Suggestions) == 0 {
		return ""
	}
	return d.Suggestions[0]
}

// ErrorPatternMatcher tries patterns in registration order; the first
// match wins, so specific patterns come first.
type ErrorPatternMatcher struct {
	mu       sync.RWMutex
	patterns []ErrorPattern
}

var (
	defaultMatcher     *ErrorPatternMatcher
	defaultMatcherOnce sync.Once
)

// DefaultMatcher returns the shared matcher with the built-in patterns.
func DefaultMatcher() *ErrorPatternMatcher {
	defaultMatcherOnce.Do(func() {
		defaultMatcher = NewErrorPatternMatcher()
	})
	return defaultMatcher
}

// NewErrorPatternMatcher creates a matcher with the built-in patterns.
func NewErrorPatternMatcher() *ErrorPatternMatcher {
	m := &ErrorPatternMatcher{}
	m.registerDefaultPatterns()
	return m
}

func statusIs(codes ...int) func(error) bool {
	return func(err error) bool {
		got := backend.StatusCode(err)
		for _, c := range codes {
			if got == c {
				return true
			}
		}
		return false
	}
}

func (m *ErrorPatternMatcher) registerDefaultPatterns() {
	m.AddPattern(ErrorPattern{
		Match:    func(err error) bool { return errors.Is(err, backend.ErrTimeout) },
		Category: CategoryTimeout,
		Title:    "Backend Timed Out",
		Suggestions: []string{
			"Try again, the agent may be busy",
			"Raise backend.timeout_secs in the config file",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    backend.IsConnection,
		Keywords: []string{"connection refused", "no such host"},
		Category: CategoryNetwork,
		Title:    "Backend Unreachable",
		Suggestions: []string{
			"Check that the backend is running: agentchat status",
			"Point at another backend with --backend URL or AGENTCHAT_BACKEND_URL",
			"For local testing run: go run ./cmd/mock-backend",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    statusIs(http.StatusNotFound),
		Keywords: []string{"file not found"},
		Category: CategoryFile,
		Title:    "File Not Found",
		Suggestions: []string{
			"Check the file id passed with --file",
			"Upload the file again and use the new id",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    statusIs(http.StatusTooManyRequests),
		Keywords: []string{"rate limit", "too many requests"},
		Category: CategoryRateLimit,
		Title:    "Rate Limited",
		Suggestions: []string{
			"Wait a moment and send again",
			"Lower backend.requests_per_second",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    statusIs(http.StatusUnprocessableEntity, http.StatusBadRequest),
		Category: CategoryBackend,
		Title:    "Request Rejected",
		Suggestions: []string{
			"The backend refused the message; check its logs",
		},
	})

	m.AddPattern(ErrorPattern{
		Match: func(err error) bool {
			return backend.StatusCode(err) >= http.StatusInternalServerError
		},
		Category: CategoryBackend,
		Title:    "Backend Error",
		Suggestions: []string{
			"Send the message again",
			"Check the backend logs",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    func(err error) bool { return errors.Is(err, chat.ErrTransport) },
		Keywords: []string{"unexpected eof", "connection reset"},
		Category: CategoryNetwork,
		Title:    "Stream Interrupted",
		Suggestions: []string{
			"The partial reply was kept; send again to retry",
		},
	})

	m.AddPattern(ErrorPattern{
		Match:    func(err error) bool { return errors.Is(err, chat.ErrNotReady) },
		Category: CategoryNetwork,
		Title:    "Not Connected Yet",
		Suggestions: []string{
			"Wait for the conversation to start",
		},
	})

	m.AddPattern(ErrorPattern{
		Keywords: []string{"config", "invalid backend.", "invalid storage.", "invalid logging."},
		Category: CategoryConfig,
		Title:    "Configuration Problem",
		Suggestions: []string{
			"Show the effective settings: agentchat config show",
			"Write a fresh file: agentchat config init --force",
		},
	})

	m.AddPattern(ErrorPattern{
		Keywords: []string{"corrupt", "database is locked", "permission denied"},
		Category: CategoryStorage,
		Title:    "Storage Problem",
		Suggestions: []string{
			"Check storage.dir / storage.sqlite_path",
			"Set AGENTCHAT_STORAGE_DRIVER=memory to run without saving",
		},
	})
}

// AddPattern appends a pattern.
func (m *ErrorPatternMatcher) AddPattern(p ErrorPattern) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, p)
}

// Match returns the display for err, or nil when no pattern applies.
func (m *ErrorPatternMatcher) Match(err error) *ErrorDisplay {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patterns {
		if matches(p, err, lower) {
			return &ErrorDisplay{
				Category:    p.Category,
				Title:       p.Title,
				Message:     msg,
				Suggestions: p.Suggestions,
			}
		}
	}
	return nil
}

// Explain returns the matched display or a generic one.
func (m *ErrorPatternMatcher) Explain(err error) ErrorDisplay {
	if d := m.Match(err); d != nil {
		return *d
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return ErrorDisplay{Category: CategoryUnknown, Title: "Error", Message: msg}
}

func matches(p ErrorPattern, err error, lower string) bool {
	if p.Match != nil && p.Match(err) {
		return true
	}
	for _, k := range p.Keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Explain uses the default matcher.
func Explain(err error) ErrorDisplay {
	return DefaultMatcher().Explain(err)
}
