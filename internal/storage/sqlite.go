// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/agentchat/internal/model"
)

// SQLiteStore keeps each conversation as one row of a SQLite database.
// The message log is stored as the same JSON document the file driver
// writes, so both drivers share validation.
type SQLiteStore struct {
	db               *sql.DB
	logger           *slog.Logger
	maxConversations int
	now              func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
// Parent directories are created if needed.
func NewSQLiteStore(path string, maxConversations int, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage", "driver", "sqlite")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Saves arrive once per streamed fragment; serialize them.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:               db,
		logger:           logger,
		maxConversations: maxConversations,
		now:              time.Now,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Debug("sqlite store opened", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			preview TEXT NOT NULL,
			message_count INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_updated
			ON conversations(updated_at);
	`)
	return err
}

// Load returns the persisted log or an empty slice.
func (s *SQLiteStore) Load(conversationID string) []model.Message {
	return loadOrEmpty(s.logger, conversationID, s.Get)
}

// Save upserts the conversation row. created_at keeps its first value.
func (s *SQLiteStore) Save(conversationID string, messages []model.Message) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}

	conv := newStoredConversation(conversationID, messages, s.now())
	payload, err := encodeConversation(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}

	ctx := context.Background()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, summary, preview, message_count, created_at, updated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			preview = excluded.preview,
			message_count = excluded.message_count,
			updated_at = excluded.updated_at,
			payload = excluded.payload`,
		conv.ID, conv.Summary, conv.Preview(), len(conv.Messages),
		formatTime(conv.CreatedAt), formatTime(conv.UpdatedAt), string(payload),
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", conversationID, err)
	}

	if s.maxConversations > 0 {
		if n, _ := res.RowsAffected(); n > 0 {
			s.enforceLimit(ctx)
		}
	}
	return nil
}

// Get reads and validates a stored conversation.
func (s *SQLiteStore) Get(conversationID string) (*StoredConversation, error) {
	var payload string
	err := s.db.QueryRowContext(context.Background(),
		`SELECT payload FROM conversations WHERE id = ?`, conversationID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation %s: %w", conversationID, err)
	}
	return decodeConversation([]byte(payload), conversationID)
}

// List returns metadata for all conversations, most recent first.
func (s *SQLiteStore) List() ([]ConversationMeta, error) {
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT id, summary, preview, message_count, created_at, updated_at
		FROM conversations
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	metas := []ConversationMeta{}
	for rows.Next() {
		var meta ConversationMeta
		var created, updated string
		if err := rows.Scan(&meta.ID, &meta.Summary, &meta.Preview, &meta.MessageCount, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		meta.CreatedAt = parseTime(created)
		meta.UpdatedAt = parseTime(updated)
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return metas, nil
}

// Delete removes a conversation by ID.
func (s *SQLiteStore) Delete(conversationID string) error {
	res, err := s.db.ExecContext(context.Background(),
		`DELETE FROM conversations WHERE id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation %s: %w", conversationID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) enforceLimit(ctx context.Context) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM conversations
		WHERE id NOT IN (
			SELECT id FROM conversations ORDER BY updated_at DESC LIMIT ?
		)`, s.maxConversations)
	if err != nil {
		s.logger.Warn("failed to prune conversations", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("pruned conversations", "count", n)
	}
}

// timeFormat is fixed width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
