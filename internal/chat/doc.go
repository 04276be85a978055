// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat drives a conversation with the remote agent: it bootstraps
// the conversation, sends user messages, streams replies into the message
// log, and lets a new send preempt a reply that is still streaming.
//
// # Exchange Lifecycle
//
// Each Send creates an Exchange that moves through
//
//	Idle -> Sending -> Streaming -> Completed | Cancelled | Failed
//
// A newer Send cancels the previous exchange; from then on the old stream
// can no longer touch the log, and it ends as Cancelled. Cancellation is
// never reported as an error. Failures are reported through
// Options.OnError and keep whatever partial reply had arrived.
//
// # Key Types
//
//   - Controller: bootstrap, send, cancel, busy state
//   - Exchange: one user message and its streamed reply
//   - State: exchange lifecycle state
//   - Error: typed error with an ErrorKind
//   - FileRef: optional file context sent with a message
//
// # Usage
//
//	ctrl := chat.NewController(sess, client, chat.Options{OnError: report})
//	if err := ctrl.Bootstrap(ctx); err != nil {
//	    return err
//	}
//	ex, err := ctrl.Send("Summarize the file", &chat.FileRef{ID: "f1"})
//	<-ex.Done()
package chat
