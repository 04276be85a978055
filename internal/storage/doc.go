// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversation message logs, one record per
// conversation ID.
//
// Loading never fails from the caller's point of view: a missing,
// unreadable or corrupt record yields an empty log, and the problem is
// logged. Saving replaces the whole record.
//
// # Key Types
//
//   - Store: the Load/Save pair used by the session controller
//   - Catalog: Store plus listing, search and deletion for the CLI
//   - FileStore: one JSON file per conversation, written atomically
//   - SQLiteStore: one row per conversation in a SQLite database
//   - MemoryStore: in-process store for tests and --ephemeral runs
//   - StoredConversation: the persisted record
//
// # Usage
//
//	store, err := storage.Open(storage.Options{Driver: "file", Dir: dir})
//	msgs := store.Load(conversationID)
//	err = store.Save(conversationID, log.Messages())
//
// # Storage Location
//
// The file driver writes to ~/.agentchat/conversations/ and the sqlite
// driver to ~/.agentchat/conversations.db unless configured otherwise.
package storage
