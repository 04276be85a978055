// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
)

// ErrorKind classifies controller errors.
type ErrorKind int

const (
	// KindBootstrap: the conversation could not be started.
	KindBootstrap ErrorKind = iota + 1
	// KindNotReady: a send was attempted before a conversation ID exists.
	KindNotReady
	// KindTransport: the streaming request failed or ended abnormally.
	KindTransport
	// KindCancelled: the exchange was preempted or cancelled. Never
	// reported to OnError.
	KindCancelled
)

// String returns a short name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindBootstrap:
		return "bootstrap failed"
	case KindNotReady:
		return "not ready"
	case KindTransport:
		return "transport failed"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is returned and reported by the Controller.
type Error struct {
	Kind           ErrorKind
	Op             string
	ConversationID string
	Partial        string // reply content received before a transport failure
	Err            error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for easy checking with errors.Is.
var (
	ErrBootstrap = &Error{Kind: KindBootstrap}
	ErrNotReady  = &Error{Kind: KindNotReady}
	ErrTransport = &Error{Kind: KindTransport}
	ErrCancelled = &Error{Kind: KindCancelled}

	// ErrEmptyMessage is returned by Send for blank input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("controller is closed")
)

// KindOf returns the ErrorKind carried by err, or 0.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
