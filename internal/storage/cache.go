// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the local SQLite cache of conversation titles and
// transcripts.
//
// The cache backs the legacy request/response mode, which has no server
// history list, and the export command. It is never the source of truth in
// push mode.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrConversationNotFound is returned when the cache has no row for an id.
var ErrConversationNotFound = errors.New("conversation not found in cache")

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transcripts (
	conversation_id TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
	messages        TEXT NOT NULL,
	saved_at        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_created ON conversations(created_at DESC);
`

// Cache is a SQLite-backed conversation cache. It is safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the cache database at path. Use ":memory:"
// for a throwaway cache.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, errors.Wrap(err, "create cache directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	// SQLite has a single writer; one connection also keeps :memory: alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "set %q", pragma)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize cache schema")
	}

	return &Cache{db: db, now: time.Now}, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// PutConversation inserts or updates a conversation row. A zero CreatedAt is
// stamped with the current time on insert and left alone on update.
func (c *Cache) PutConversation(ctx context.Context, conv model.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	created, keepCreated := conv.CreatedAt, 0
	if created.IsZero() {
		created, keepCreated = now, 1
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			status = excluded.status,
			created_at = CASE WHEN ? = 1 THEN conversations.created_at ELSE excluded.created_at END,
			updated_at = excluded.updated_at`,
		conv.ID, conv.Title, conv.Status, created.UnixNano(), now.UnixNano(), keepCreated)
	return errors.Wrapf(err, "put conversation %s", conv.ID)
}

// ListConversations returns cached conversations newest first.
func (c *Cache) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, title, status, created_at FROM conversations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		var (
			conv    model.Conversation
			created int64
		)
		if err := rows.Scan(&conv.ID, &conv.Title, &conv.Status, &created); err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		conv.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, conv)
	}
	return out, errors.Wrap(rows.Err(), "list conversations")
}

// GetConversation returns one cached conversation.
func (c *Cache) GetConversation(ctx context.Context, id string) (model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		conv    model.Conversation
		created int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT id, title, status, created_at FROM conversations WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &conv.Status, &created)
	if err == sql.ErrNoRows {
		return conv, ErrConversationNotFound
	}
	if err != nil {
		return conv, errors.Wrapf(err, "get conversation %s", id)
	}
	conv.CreatedAt = time.Unix(0, created).UTC()
	return conv, nil
}

// RenameConversation changes the cached title.
func (c *Cache) RenameConversation(ctx context.Context, id, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?`,
		title, c.now().UnixNano(), id)
	if err != nil {
		return errors.Wrapf(err, "rename conversation %s", id)
	}
	return mustAffect(res)
}

// DeleteConversation removes a conversation and its transcript.
func (c *Cache) DeleteConversation(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "delete conversation %s", id)
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// SaveTranscript replaces the stored messages of a conversation. The
// conversation row is created with an empty title when missing. Streaming
// placeholders are not persisted.
func (c *Cache) SaveTranscript(ctx context.Context, conversationID string, msgs []model.Message) error {
	if conversationID == "" {
		return errors.New("conversation id is required")
	}
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsStreaming() {
			continue
		}
		kept = append(kept, m)
	}
	data, err := json.Marshal(kept)
	if err != nil {
		return errors.Wrap(err, "encode transcript")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transcript save")
	}
	defer tx.Rollback()

	now := c.now().UnixNano()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		conversationID, now, now); err != nil {
		return errors.Wrap(err, "touch conversation")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transcripts (conversation_id, messages, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			messages = excluded.messages,
			saved_at = excluded.saved_at`,
		conversationID, string(data), now); err != nil {
		return errors.Wrap(err, "save transcript")
	}
	return errors.Wrap(tx.Commit(), "commit transcript")
}

// LoadTranscript returns the stored messages of a conversation.
func (c *Cache) LoadTranscript(ctx context.Context, conversationID string) ([]model.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data string
	err := c.db.QueryRowContext(ctx,
		`SELECT messages FROM transcripts WHERE conversation_id = ?`, conversationID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load transcript %s", conversationID)
	}
	var msgs []model.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, errors.Wrapf(err, "decode transcript %s", conversationID)
	}
	return msgs, nil
}
