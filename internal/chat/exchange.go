// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle state of an Exchange.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Active reports whether a request is in flight.
func (s State) Active() bool {
	return s == StateSending || s == StateStreaming
}

// Terminal reports whether the exchange has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// =============================================================================
// FILE REFERENCE
// =============================================================================

// FileRef names a previously uploaded file whose content the agent should
// use as context. A nil *FileRef means no file context.
type FileRef struct {
	ID   string
	Name string
}

// =============================================================================
// EXCHANGE
// =============================================================================

// Exchange is one user message and the streamed reply to it.
type Exchange struct {
	Token         uint64
	Text          string
	File          *FileRef
	UserMessageID string
	ReplyID       string
	StartedAt     time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	state   State
	err     error
	reply   strings.Builder
	bytes   int64
	endedAt time.Time
}

func newExchange(token uint64, text string, file *FileRef, userID, replyID string, cancel context.CancelFunc) *Exchange {
	return &Exchange{
		Token:         token,
		Text:          text,
		File:          file,
		UserMessageID: userID,
		ReplyID:       replyID,
		StartedAt:     time.Now(),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// State returns the current state.
func (e *Exchange) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the reported error of a Failed exchange, nil otherwise.
func (e *Exchange) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Reply returns the reply content this exchange has received.
func (e *Exchange) Reply() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reply.String()
}

// Duration returns how long the exchange ran, or has run so far.
func (e *Exchange) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.endedAt.IsZero() {
		return time.Since(e.StartedAt)
	}
	return e.endedAt.Sub(e.StartedAt)
}

// Done is closed once the exchange reaches a terminal state.
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the exchange ends or ctx is done, and returns the
// final state.
func (e *Exchange) Wait(ctx context.Context) (State, error) {
	select {
	case <-e.done:
		return e.State(), nil
	case <-ctx.Done():
		return e.State(), ctx.Err()
	}
}

// setState moves to s unless the exchange already ended.
func (e *Exchange) setState(s State) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Terminal() {
		return false
	}
	e.state = s
	return true
}

// appendReply records a fragment and returns the accumulated reply.
func (e *Exchange) appendReply(fragment string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reply.WriteString(fragment)
	e.bytes += int64(len(fragment))
	return e.reply.String()
}

func (e *Exchange) end(s State, err error) {
	e.mu.Lock()
	e.state = s
	e.err = err
	e.endedAt = time.Now()
	e.mu.Unlock()
	close(e.done)
}
