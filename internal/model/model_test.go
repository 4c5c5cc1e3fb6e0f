// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"system", "", true},
		{"", "", true},
		{"User", "", true},
	}

	for _, tc := range tests {
		got, err := ParseRole(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseRole(%q) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("c1", "Hello")
	if msg.ID != PlaceholderMessageID {
		t.Errorf("ID = %q, want %q", msg.ID, PlaceholderMessageID)
	}
	if !msg.IsUser() || !msg.IsPlaceholder() {
		t.Error("expected a user placeholder message")
	}
	if msg.IsStreaming() {
		t.Error("user messages never stream")
	}
}

func TestNewAssistantPlaceholder(t *testing.T) {
	a := NewAssistantPlaceholder("c1")
	b := NewAssistantPlaceholder("c1")
	if !strings.HasPrefix(a.ID, "packet-") {
		t.Errorf("ID = %q, want packet- prefix", a.ID)
	}
	if a.ID == b.ID {
		t.Error("placeholder ids must be unique")
	}
	if !a.IsStreaming() || a.Role != RoleAssistant {
		t.Error("expected a streaming assistant message")
	}
}

func TestMessage_JSONOmitsStreaming(t *testing.T) {
	data, err := json.Marshal(NewAssistantPlaceholder("c1"))
	require.NoError(t, err)
	require.NotContains(t, string(data), "Streaming")
	require.Contains(t, string(data), `"conversationId":"c1"`)
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestSortByCreatedDesc(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	convs := []Conversation{
		{ID: "old", CreatedAt: base},
		{ID: "new", CreatedAt: base.Add(2 * time.Hour)},
		{ID: "tie-a", CreatedAt: base.Add(time.Hour)},
		{ID: "tie-b", CreatedAt: base.Add(time.Hour)},
	}

	SortByCreatedDesc(convs)

	want := []string{"new", "tie-a", "tie-b", "old"}
	for i, id := range want {
		if convs[i].ID != id {
			t.Errorf("convs[%d] = %q, want %q", i, convs[i].ID, id)
		}
	}
}

func TestConversation_DisplayTitle(t *testing.T) {
	if got := (Conversation{}).DisplayTitle(); got != DefaultTitle {
		t.Errorf("DisplayTitle() = %q, want %q", got, DefaultTitle)
	}
	if got := (Conversation{Title: "Trip"}).DisplayTitle(); got != "Trip" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "Trip")
	}
}

func TestConversation_UnmarshalCreatedAt(t *testing.T) {
	var c Conversation
	err := json.Unmarshal([]byte(`{"id":"c1","title":"T","createdAt":"2024-05-01T10:00:00Z","status":"active"}`), &c)
	require.NoError(t, err)
	require.Equal(t, 2024, c.CreatedAt.Year())
	require.Equal(t, "active", c.Status)
}

// =============================================================================
// REFERENCE TESTS
// =============================================================================

func TestDisplayReferences(t *testing.T) {
	refs := []Reference{
		{DisplayName: "a.pdf", DownloadURL: "u1"},
		{DisplayName: "", DownloadURL: "u2"},
		{DisplayName: "b.pdf", DownloadURL: "u3"},
		{DisplayName: "a.pdf", DownloadURL: "u4"},
	}

	got := DisplayReferences(refs)

	require.Len(t, got, 2)
	require.Equal(t, "u1", got[0].DownloadURL)
	require.Equal(t, "b.pdf", got[1].DisplayName)
	require.Nil(t, DisplayReferences(nil))
}

// =============================================================================
// WIRE COMPATIBILITY TESTS
// =============================================================================

func TestMessage_UnmarshalAnnotations(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"references array", `{"id":"m","role":"assistant","content":"x","references":[{"displayName":"a","downloadURL":"u"}]}`, 1},
		{"annotations array", `{"id":"m","role":"assistant","content":"x","annotations":[{"displayName":"a","downloadURL":"u"},{"displayName":"b","downloadURL":"v"}]}`, 2},
		{"annotations string", `{"id":"m","role":"assistant","content":"x","annotations":"[{\"displayName\":\"a\",\"downloadURL\":\"u\"}]"}`, 1},
		{"empty string", `{"id":"m","role":"assistant","content":"x","annotations":""}`, 0},
		{"none", `{"id":"m","role":"assistant","content":"x"}`, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tc.input), &m))
			require.Len(t, m.References, tc.want)
			require.Equal(t, "x", m.Content)
			require.Equal(t, RoleAssistant, m.Role)
		})
	}
}

func TestMessage_UnmarshalBadReferences(t *testing.T) {
	var m Message
	require.Error(t, json.Unmarshal([]byte(`{"id":"m","annotations":"not json"}`), &m))
}

func TestConversation_UnmarshalLegacyID(t *testing.T) {
	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"abc","title":"T"}`), &c))
	require.Equal(t, "abc", c.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"same","_id":"same"}`), &c))
	require.Equal(t, "same", c.ID)

	err := json.Unmarshal([]byte(`{"id":"new","_id":"old"}`), &c)
	require.ErrorIs(t, err, ErrSchemaConflict)
}

func TestMessage_ConflictingReferenceSpellings(t *testing.T) {
	var m Message
	require.NoError(t, json.Unmarshal([]byte(
		`{"id":"m1","references":[{"displayName":"a"}],"annotations":[ {"displayName":"a"} ]}`), &m))
	require.Len(t, m.References, 1)

	err := json.Unmarshal([]byte(
		`{"id":"m1","references":[{"displayName":"a"}],"annotations":[{"displayName":"b"}]}`), &m)
	require.ErrorIs(t, err, ErrSchemaConflict)
}
