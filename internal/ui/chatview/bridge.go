// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatview

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/agentchat/internal/chat"
	"github.com/jeranaias/agentchat/internal/model"
)

// =============================================================================
// BRIDGE
// =============================================================================

// Bridge converts controller callbacks and log notifications into tea
// messages. Callbacks never block: log changes collapse into a single
// pending flag and events are dropped once the bridge is closed.
type Bridge struct {
	dirty  chan struct{}
	events chan tea.Msg
	done   chan struct{}

	closeOnce sync.Once
	unwatch   func()
}

// eventBuffer bounds queued busy and error events.
const eventBuffer = 64

// NewBridge creates an open bridge.
func NewBridge() *Bridge {
	return &Bridge{
		dirty:  make(chan struct{}, 1),
		events: make(chan tea.Msg, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Hook installs the bridge's callbacks into opts.
func (b *Bridge) Hook(opts *chat.Options) {
	opts.OnError = b.OnError
	opts.OnBusy = b.OnBusy
}

// Watch subscribes to log. Only one log is watched at a time.
func (b *Bridge) Watch(log *model.MessageLog) {
	if b.unwatch != nil {
		b.unwatch()
	}
	b.unwatch = log.Subscribe(func(model.Change) {
		select {
		case b.dirty <- struct{}{}:
		default:
		}
	})
}

// OnError queues an ErrorMsg.
func (b *Bridge) OnError(err error) {
	b.send(ErrorMsg{Err: err})
}

// OnBusy queues a BusyMsg.
func (b *Bridge) OnBusy(busy bool) {
	b.send(BusyMsg{Busy: busy})
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case <-b.done:
	case b.events <- msg:
	}
}

// Next returns a command that waits for the next event. The model re-arms
// it after handling each event.
func (b *Bridge) Next() tea.Cmd {
	return func() tea.Msg {
		// Ordered events first so a busy flip is not overtaken by the
		// redraw it caused.
		select {
		case msg := <-b.events:
			return msg
		default:
		}
		select {
		case msg := <-b.events:
			return msg
		case <-b.dirty:
			return LogChangedMsg{}
		case <-b.done:
			return bridgeClosedMsg{}
		}
	}
}

// Close stops delivery and unsubscribes from the log.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		if b.unwatch != nil {
			b.unwatch()
		}
	})
}
