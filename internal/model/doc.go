// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the conversation data types and the ordered
// message log that the session controller mutates and the UI renders.
//
// # Key Types
//
//   - Role: message author (user or assistant)
//   - Message: one entry of a conversation, identified by a stable ID
//   - MessageLog: ordered, concurrency-safe list of messages with change
//     notifications
//   - Change: description of a single log mutation
//
// # Usage
//
//	log := model.NewMessageLog()
//	unsubscribe := log.Subscribe(func(c model.Change) {
//	    render(log.Messages())
//	})
//	defer unsubscribe()
//
//	reply := model.NewMessage(model.RoleAssistant, "")
//	log.Append(reply)
//	log.UpdateContent(reply.ID, "Hel")
//	log.UpdateContent(reply.ID, "Hello")
package model
