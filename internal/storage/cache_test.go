// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCachePutAndList(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.PutConversation(ctx, model.Conversation{ID: "old", Title: "Old", CreatedAt: base}))
	require.NoError(t, c.PutConversation(ctx, model.Conversation{ID: "new", Title: "New", CreatedAt: base.Add(time.Hour)}))

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "new", convs[0].ID)
	assert.Equal(t, "old", convs[1].ID)
	assert.True(t, convs[1].CreatedAt.Equal(base))
}

func TestCachePutUpdateKeepsCreated(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.PutConversation(ctx, model.Conversation{ID: "a", Title: "first", CreatedAt: base}))
	require.NoError(t, c.PutConversation(ctx, model.Conversation{ID: "a", Title: "second"}))

	got, err := c.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
	assert.True(t, got.CreatedAt.Equal(base))
}

func TestCachePutRequiresID(t *testing.T) {
	c := openTemp(t)
	assert.Error(t, c.PutConversation(context.Background(), model.Conversation{Title: "x"}))
}

func TestCacheRename(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	require.NoError(t, c.PutConversation(ctx, model.Conversation{ID: "a"}))
	require.NoError(t, c.RenameConversation(ctx, "a", "Renamed"))

	got, err := c.GetConversation(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	err = c.RenameConversation(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestCacheDeleteCascades(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	msgs := []model.Message{{ID: "1", Role: model.RoleUser, Content: "hi"}}
	require.NoError(t, c.SaveTranscript(ctx, "a", msgs))
	require.NoError(t, c.DeleteConversation(ctx, "a"))

	_, err := c.LoadTranscript(ctx, "a")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	_, err = c.GetConversation(ctx, "a")
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	err = c.DeleteConversation(ctx, "a")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestCacheTranscriptRoundTrip(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "Where was the meeting?", ConversationID: "a"},
		{ID: "2", Role: model.RoleAssistant, Content: "In **Lyon**.", ConversationID: "a",
			References: []model.Reference{{ID: "r1", DisplayName: "minutes.pdf"}}},
		{ID: "packet-x", Role: model.RoleAssistant, Content: "partial", Streaming: true},
	}
	require.NoError(t, c.SaveTranscript(ctx, "a", msgs))

	got, err := c.LoadTranscript(ctx, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "In **Lyon**.", got[1].Content)
	assert.Equal(t, "minutes.pdf", got[1].References[0].DisplayName)

	// Saving again replaces the transcript.
	require.NoError(t, c.SaveTranscript(ctx, "a", msgs[:1]))
	got, err = c.LoadTranscript(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "a", convs[0].ID)
}

func TestCacheUnicodeContent(t *testing.T) {
	c := openTemp(t)
	ctx := context.Background()
	msgs := []model.Message{{ID: "1", Role: model.RoleUser, Content: "日本語 🙂 café"}}
	require.NoError(t, c.SaveTranscript(ctx, "u", msgs))
	got, err := c.LoadTranscript(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, "日本語 🙂 café", got[0].Content)
}

func TestCacheMemory(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.PutConversation(context.Background(), model.Conversation{ID: "m"}))
	convs, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	assert.Len(t, convs, 1)
}

func TestCacheCloseIdempotent(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestTranscriptExportMarkdown(t *testing.T) {
	tr := Transcript{
		Conversation: model.Conversation{ID: "c1", Title: "Trip notes"},
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "Question"},
			{Role: model.RoleAssistant, Content: "Answer"},
		},
		References: []model.Reference{
			{DisplayName: "a.pdf", DownloadURL: "http://x/a.pdf"},
			{DisplayName: "a.pdf", DownloadURL: "http://x/a2.pdf"},
			{DisplayName: "b.txt"},
		},
	}
	md := tr.ExportMarkdown()
	assert.True(t, strings.HasPrefix(md, "# Trip notes\n"))
	assert.Contains(t, md, "**You**:\n\nQuestion")
	assert.Contains(t, md, "**Witness Lens**:\n\nAnswer")
	assert.Contains(t, md, "- [a.pdf](http://x/a.pdf)\n")
	assert.Contains(t, md, "- b.txt\n")
	assert.Equal(t, 1, strings.Count(md, "- [a.pdf]"))
}

func TestTranscriptExportJSON(t *testing.T) {
	tr := Transcript{
		Conversation: model.Conversation{ID: "c1"},
		Messages:     []model.Message{{ID: "1", Role: model.RoleUser, Content: "hi"}},
	}
	data, err := tr.ExportJSON()
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Contains(t, back, "conversation")
	assert.Contains(t, back, "messages")
}

func TestFormatConversationList(t *testing.T) {
	assert.Equal(t, "No conversations found.\n", FormatConversationList(nil))

	out := FormatConversationList([]model.Conversation{
		{ID: "c1", Title: "Line\nbreak"},
		{ID: "c2"},
	})
	assert.Contains(t, out, "Line break")
	assert.Contains(t, out, model.DefaultTitle)
	assert.Equal(t, 4, strings.Count(out, "\n"))
}
