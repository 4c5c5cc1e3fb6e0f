// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists the client session: the signed-in user and the
// active conversation.
//
// The root view owns a Context and passes the ids down; nothing else writes
// the session. Saves are last-write-wins across processes.
package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/jeranaias/witness-lens/internal/util"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Session is the persisted client state. An empty ConversationID means no
// conversation is selected; an empty UserID means nobody is signed in.
type Session struct {
	UserID         string `json:"userId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// SignedIn reports whether a user is set.
func (s Session) SignedIn() bool {
	return s.UserID != ""
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes the session file.
type Store struct {
	path string
}

// NewStore creates a store for the session file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the session. A missing or unreadable file yields an empty
// session; a corrupt file is logged and treated the same way.
func (s *Store) Load() Session {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("could not read session file")
		}
		return Session{}
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("ignoring corrupt session file")
		return Session{}
	}
	return sess
}

// Save writes the session atomically with 0600 permissions.
func (s *Store) Save(sess Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session")
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return errors.Wrap(err, "save session")
	}
	return nil
}

// =============================================================================
// CONTEXT
// =============================================================================

// Context is the mutable session held by the root view. Every change is
// saved through the store.
type Context struct {
	mu      sync.RWMutex
	store   *Store
	cur     Session
	mintIDs bool
}

// NewContext loads the persisted session. When mintIDs is set, starting a
// new conversation creates its id immediately.
func NewContext(store *Store, mintIDs bool) *Context {
	return &Context{store: store, cur: store.Load(), mintIDs: mintIDs}
}

// Current returns a copy of the session.
func (c *Context) Current() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// UserID returns the signed-in user.
func (c *Context) UserID() string {
	return c.Current().UserID
}

// ConversationID returns the active conversation.
func (c *Context) ConversationID() string {
	return c.Current().ConversationID
}

func (c *Context) update(fn func(*Session)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.cur
	fn(&next)
	c.cur = next
	return c.store.Save(next)
}

// SetConversation makes id the active conversation.
func (c *Context) SetConversation(id string) error {
	return c.update(func(s *Session) { s.ConversationID = id })
}

// ClearConversation returns to the "no conversation selected" state.
func (c *Context) ClearConversation() error {
	return c.SetConversation("")
}

// NewConversation starts a new conversation and returns its id. Without id
// minting the session returns to the welcome state and the id is created by
// EnsureConversation when the first message is sent.
func (c *Context) NewConversation() (string, error) {
	id := ""
	if c.mintIDs {
		id = uuid.NewString()
	}
	return id, c.SetConversation(id)
}

// EnsureConversation returns the active conversation, minting and saving a
// new id when none is selected. created reports whether an id was minted.
func (c *Context) EnsureConversation() (id string, created bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur.ConversationID != "" {
		return c.cur.ConversationID, false, nil
	}
	next := c.cur
	next.ConversationID = uuid.NewString()
	c.cur = next
	return next.ConversationID, true, c.store.Save(next)
}

// SetUser signs a user in. Switching users drops the active conversation.
func (c *Context) SetUser(userID string) error {
	return c.update(func(s *Session) {
		if s.UserID != userID {
			s.ConversationID = ""
		}
		s.UserID = userID
	})
}

// Logout clears the whole session.
func (c *Context) Logout() error {
	return c.update(func(s *Session) { *s = Session{} })
}

// Adopt takes over a session written by another process without saving it
// back. It reports whether anything changed.
func (c *Context) Adopt(sess Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == sess {
		return false
	}
	c.cur = sess
	return true
}
