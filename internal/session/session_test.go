// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "session.json"))
}

func TestStoreLoadMissing(t *testing.T) {
	s := tempStore(t)
	assert.Equal(t, Session{}, s.Load())
}

func TestStoreLoadCorrupt(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0600))
	assert.Equal(t, Session{}, s.Load())
}

func TestStoreSaveRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := Session{UserID: "alice", ConversationID: "c1"}
	require.NoError(t, s.Save(want))
	assert.Equal(t, want, s.Load())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestContextSetAndClearConversation(t *testing.T) {
	s := tempStore(t)
	c := NewContext(s, true)

	require.NoError(t, c.SetConversation("c1"))
	assert.Equal(t, "c1", c.ConversationID())
	assert.Equal(t, "c1", s.Load().ConversationID)

	require.NoError(t, c.ClearConversation())
	assert.Empty(t, c.ConversationID())
	assert.Empty(t, s.Load().ConversationID)
}

func TestContextNewConversation(t *testing.T) {
	t.Run("mints id", func(t *testing.T) {
		c := NewContext(tempStore(t), true)
		id, err := c.NewConversation()
		require.NoError(t, err)
		assert.Len(t, id, 36)
		assert.Equal(t, id, c.ConversationID())

		other, err := c.NewConversation()
		require.NoError(t, err)
		assert.NotEqual(t, id, other)
	})

	t.Run("server assigned", func(t *testing.T) {
		c := NewContext(tempStore(t), false)
		require.NoError(t, c.SetConversation("old"))
		id, err := c.NewConversation()
		require.NoError(t, err)
		assert.Empty(t, id)
		assert.Empty(t, c.ConversationID())
	})
}

func TestContextEnsureConversation(t *testing.T) {
	s := tempStore(t)
	c := NewContext(s, false)

	id, created, err := c.EnsureConversation()
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, id, 36)
	assert.Equal(t, id, s.Load().ConversationID)

	again, created, err := c.EnsureConversation()
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id, again)
}

func TestContextSetUser(t *testing.T) {
	s := tempStore(t)
	c := NewContext(s, true)
	require.NoError(t, c.SetUser("alice"))
	require.NoError(t, c.SetConversation("c1"))

	// Same user keeps the conversation.
	require.NoError(t, c.SetUser("alice"))
	assert.Equal(t, "c1", c.ConversationID())

	require.NoError(t, c.SetUser("bob"))
	assert.Equal(t, Session{UserID: "bob"}, c.Current())
	assert.Equal(t, Session{UserID: "bob"}, s.Load())
}

func TestContextLogout(t *testing.T) {
	s := tempStore(t)
	c := NewContext(s, true)
	require.NoError(t, c.SetUser("alice"))
	require.NoError(t, c.SetConversation("c1"))
	require.NoError(t, c.Logout())

	assert.False(t, c.Current().SignedIn())
	assert.Equal(t, Session{}, s.Load())
}

func TestContextLoadsPersisted(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.Save(Session{UserID: "alice", ConversationID: "c9"}))
	c := NewContext(s, true)
	assert.Equal(t, "alice", c.UserID())
	assert.Equal(t, "c9", c.ConversationID())
}

func TestContextAdopt(t *testing.T) {
	c := NewContext(tempStore(t), true)
	assert.False(t, c.Adopt(Session{}))
	assert.True(t, c.Adopt(Session{UserID: "bob"}))
	assert.Equal(t, "bob", c.UserID())
	assert.False(t, c.Adopt(Session{UserID: "bob"}))
}

func TestStoreWatch(t *testing.T) {
	s := tempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx)
	require.NoError(t, err)

	other := NewStore(s.Path())
	require.NoError(t, other.Save(Session{UserID: "carol", ConversationID: "c2"}))

	select {
	case got := <-ch:
		assert.Equal(t, Session{UserID: "carol", ConversationID: "c2"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no session change reported")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
