// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sync"
)

// =============================================================================
// CHANGE NOTIFICATIONS
// =============================================================================

// ChangeKind describes what a log mutation did.
type ChangeKind int

const (
	// ChangeAppend means a message was added at the end.
	ChangeAppend ChangeKind = iota
	// ChangeUpdate means an existing message's content was replaced.
	ChangeUpdate
	// ChangeReplace means the whole log was swapped (restore).
	ChangeReplace
)

// String returns a short name for the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeAppend:
		return "append"
	case ChangeUpdate:
		return "update"
	case ChangeReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after every mutation.
type Change struct {
	Kind  ChangeKind
	ID    string // affected message, empty for ChangeReplace
	Index int    // position of the affected message, -1 for ChangeReplace
	Len   int    // log length after the mutation
}

// Listener receives change notifications.
type Listener func(Change)

type subscription struct {
	id int
	fn Listener
}

// =============================================================================
// MESSAGE LOG
// =============================================================================

// MessageLog is the ordered list of messages of one conversation.
//
// Order is insertion order. Messages are never removed or reordered; the
// only in-place mutation is UpdateContent. Listeners run synchronously on
// the mutating goroutine after the log's lock has been released, so a
// listener may read the log but must not block for long.
type MessageLog struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int

	subMu   sync.Mutex
	subs    []subscription
	nextSub int
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{index: make(map[string]int)}
}

// Append adds msg at the end. It returns false, leaving the log unchanged,
// when msg has no ID or its ID is already present.
func (l *MessageLog) Append(msg Message) bool {
	l.mu.Lock()
	if msg.ID == "" {
		l.mu.Unlock()
		return false
	}
	if _, exists := l.index[msg.ID]; exists {
		l.mu.Unlock()
		return false
	}
	idx := len(l.messages)
	l.messages = append(l.messages, msg)
	l.index[msg.ID] = idx
	change := Change{Kind: ChangeAppend, ID: msg.ID, Index: idx, Len: len(l.messages)}
	l.mu.Unlock()

	l.notify(change)
	return true
}

// UpdateContent replaces the content of the message with the given ID.
// Position, role and timestamp are untouched. An unknown ID is a no-op and
// returns false.
func (l *MessageLog) UpdateContent(id, content string) bool {
	l.mu.Lock()
	idx, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return false
	}
	l.messages[idx].Content = content
	change := Change{Kind: ChangeUpdate, ID: id, Index: idx, Len: len(l.messages)}
	l.mu.Unlock()

	l.notify(change)
	return true
}

// Replace swaps the entire contents of the log, used when restoring a
// persisted conversation. Messages without an ID and repeated IDs are
// dropped, keeping the first occurrence.
func (l *MessageLog) Replace(msgs []Message) {
	l.mu.Lock()
	l.messages = make([]Message, 0, len(msgs))
	l.index = make(map[string]int, len(msgs))
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, dup := l.index[m.ID]; dup {
			continue
		}
		l.index[m.ID] = len(l.messages)
		l.messages = append(l.messages, m)
	}
	change := Change{Kind: ChangeReplace, Index: -1, Len: len(l.messages)}
	l.mu.Unlock()

	l.notify(change)
}

// Messages returns a copy of the log in order.
func (l *MessageLog) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Get returns the message with the given ID.
func (l *MessageLog) Get(id string) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.index[id]
	if !ok {
		return Message{}, false
	}
	return l.messages[idx], true
}

// Last returns the most recently appended message.
func (l *MessageLog) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Len returns the number of messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to be called after every mutation, in
// registration order. The returned function removes the subscription and
// is safe to call more than once.
func (l *MessageLog) Subscribe(fn Listener) (unsubscribe func()) {
	l.subMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs = append(l.subs, subscription{id: id, fn: fn})
	l.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subMu.Lock()
			defer l.subMu.Unlock()
			for i, s := range l.subs {
				if s.id == id {
					l.subs = append(l.subs[:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *MessageLog) notify(c Change) {
	l.subMu.Lock()
	subs := make([]subscription, len(l.subs))
	copy(subs, l.subs)
	l.subMu.Unlock()

	for _, s := range subs {
		s.fn(c)
	}
}
