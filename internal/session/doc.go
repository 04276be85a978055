// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the state of one conversation: its identity, its
// message log, and the request token that decides which in-flight reply
// may still write to the log.
//
// Every mutation of the log goes through Session so that the token check,
// the mutation and the persistence of the result happen under one lock.
// A reply whose token has been superseded can therefore never write to
// the log, and saves are written in mutation order.
//
// # Key Types
//
//   - Session: conversation state shared by the controller and the UI
//
// # Usage
//
//	s := session.New(nil, store, logger)
//	s.Attach(conversationID)            // restore persisted messages
//	token, _, reply := s.Begin("Hello") // user message + open reply
//	s.Apply(token, reply.ID, "Hi")      // no-op once superseded
//	s.Finish(token, reply.ID)
//
// # Listener Constraint
//
// MessageLog listeners run while the session is locked. They may read the
// log and the session accessors but must not call Begin, Apply or Finish.
package session
