// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loaded returns a State with conversation id selected and its (empty)
// history applied.
func loaded(t *testing.T, id string, msgs ...model.Message) *State {
	t.Helper()
	s := New()
	tk := s.Select(id)
	require.True(t, s.ApplySnapshot(tk, &model.ConversationSnapshot{Messages: msgs}))
	return s
}

// =============================================================================
// SELECTION
// =============================================================================

func TestSelect_WelcomeStateNeedsNoFetch(t *testing.T) {
	s := New()
	tk := s.Select("")

	assert.False(t, tk.NeedsFetch())
	assert.False(t, s.Loading())
	assert.Empty(t, s.Messages())
	assert.Equal(t, "", s.ConversationID())
}

func TestSelect_ClearsPreviousConversation(t *testing.T) {
	s := loaded(t, "A", model.Message{ID: "m1", Role: model.RoleUser, Content: "from A"})
	s.ApplyReferences(push.ReferencesSnapshot{ConversationID: "A", References: []model.Reference{{DisplayName: "a.pdf"}}})

	tk := s.Select("B")

	assert.True(t, tk.NeedsFetch())
	assert.True(t, s.Loading())
	assert.Empty(t, s.Messages(), "previous conversation must never show while loading")
	assert.Empty(t, s.References())
}

func TestPlaceholder_ThreeSkeletons(t *testing.T) {
	p := New().Placeholder()
	require.Len(t, p, 3)
	assert.Equal(t, model.RoleUser, p[0].Role)
	assert.Equal(t, model.RoleAssistant, p[1].Role)
	assert.Equal(t, model.RoleUser, p[2].Role)
}

func TestApplySnapshot_ReplacesList(t *testing.T) {
	s := New()
	tk := s.Select("c1")
	snap := &model.ConversationSnapshot{
		Messages: []model.Message{
			{ID: "m1", Role: model.RoleUser, Content: "Hi"},
			{ID: "m2", Role: model.RoleAssistant, Content: "Hello"},
		},
		References: []model.Reference{{DisplayName: "a.pdf"}, {DisplayName: "a.pdf"}, {DisplayName: ""}},
	}

	require.True(t, s.ApplySnapshot(tk, snap))
	assert.False(t, s.Loading())
	assert.Len(t, s.Messages(), 2)
	assert.Len(t, s.References(), 1, "references are de-duplicated for display")
}

func TestApplySnapshot_StaleTicketDiscarded(t *testing.T) {
	s := New()
	tkA := s.Select("A")
	tkB := s.Select("B")

	// B resolves first, then A's late response arrives.
	require.True(t, s.ApplySnapshot(tkB, &model.ConversationSnapshot{
		Messages: []model.Message{{ID: "b", Role: model.RoleUser, Content: "B"}},
	}))
	assert.False(t, s.ApplySnapshot(tkA, &model.ConversationSnapshot{
		Messages: []model.Message{{ID: "a", Role: model.RoleUser, Content: "A"}},
	}))

	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "B", s.Messages()[0].Content)
}

func TestApplySnapshot_ReselectSameIDInvalidatesOldTicket(t *testing.T) {
	s := New()
	first := s.Select("A")
	second := s.Select("A")

	assert.False(t, s.ApplySnapshot(first, &model.ConversationSnapshot{}))
	assert.True(t, s.Loading())
	assert.True(t, s.ApplySnapshot(second, &model.ConversationSnapshot{}))
}

func TestApplyFetchError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notify bool
	}{
		{"not found is a new conversation", &api.ClientError{Type: api.ErrTypeNotFound, StatusCode: 404}, false},
		{"canceled is silent", &api.ClientError{Type: api.ErrTypeCanceled}, false},
		{"server error", &api.ClientError{Type: api.ErrTypeServer, StatusCode: 500}, true},
		{"connection", errors.New("dial tcp: refused"), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New()
			tk := s.Select("c1")
			assert.Equal(t, tc.notify, s.ApplyFetchError(tk, tc.err))
			assert.False(t, s.Loading())
			assert.Empty(t, s.Messages())
		})
	}
}

func TestApplyFetchError_Stale(t *testing.T) {
	s := New()
	old := s.Select("A")
	s.Select("B")

	assert.False(t, s.ApplyFetchError(old, errors.New("boom")))
	assert.True(t, s.Loading(), "stale error must not end the current load")
}

// =============================================================================
// LOCAL SEND
// =============================================================================

func TestAppendLocal_Optimistic(t *testing.T) {
	s := loaded(t, "c1")
	before := s.Version()

	msg, err := s.AppendLocal("Hello")
	require.NoError(t, err)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.PlaceholderMessageID, msgs[0].ID)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, msg, msgs[0])
	assert.True(t, s.Waiting())
	assert.Greater(t, s.Version(), before)
}

func TestAppendLocal_Rejections(t *testing.T) {
	s := New()
	s.Select("")
	_, err := s.AppendLocal("Hello")
	assert.ErrorIs(t, err, ErrNoConversation)

	s = loaded(t, "c1")
	_, err = s.AppendLocal("   ")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.AppendLocal("first")
	require.NoError(t, err)
	_, err = s.AppendLocal("second")
	assert.ErrorIs(t, err, ErrBusy)

	s = New()
	s.Select("c2")
	_, err = s.AppendLocal("while loading")
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSendFailed_ClearsWaiting(t *testing.T) {
	s := loaded(t, "c1")
	_, err := s.AppendLocal("Hello")
	require.NoError(t, err)

	s.SendFailed()
	assert.False(t, s.Waiting())
	assert.Len(t, s.Messages(), 1)
}

// =============================================================================
// STREAMED DELTAS
// =============================================================================

func TestApplyDelta_OverwritesNotAppends(t *testing.T) {
	s := loaded(t, "c1")
	_, err := s.AppendLocal("Hello")
	require.NoError(t, err)

	for _, snap := range []string{"H", "He", "Hel"} {
		require.True(t, s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: snap}))
	}

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hel", msgs[1].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.True(t, strings.HasPrefix(msgs[1].ID, "packet-"))
	assert.True(t, msgs[1].IsStreaming())
	assert.True(t, s.Waiting())
}

func TestApplyDelta_FinishedClearsWaiting(t *testing.T) {
	s := loaded(t, "c1")
	_, err := s.AppendLocal("Hello")
	require.NoError(t, err)

	s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: "Hi"})
	s.ApplyDelta(push.MessageDelta{
		ConversationID: "c1",
		Snapshot:       "Hi there",
		References:     []model.Reference{{DisplayName: "doc.pdf", DownloadURL: "u"}},
		Finished:       true,
	})

	assert.False(t, s.Waiting())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "Hi there", last.Content)
	assert.False(t, last.IsStreaming())
	assert.Len(t, last.References, 1)
}

func TestApplyDelta_OtherConversationIgnored(t *testing.T) {
	s := loaded(t, "A", model.Message{ID: "m1", Role: model.RoleUser, Content: "q"})
	before := s.Messages()
	v := s.Version()

	assert.False(t, s.ApplyDelta(push.MessageDelta{ConversationID: "B", Snapshot: "stale", Finished: true}))
	assert.Equal(t, before, s.Messages())
	assert.Equal(t, v, s.Version())
}

func TestApplyDelta_EmptyListAppendsAssistant(t *testing.T) {
	s := loaded(t, "c1")

	require.True(t, s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: "unprompted"}))
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAssistant, msgs[0].Role)
}

func TestApplyDelta_SecondAnswerAppendsNewMessage(t *testing.T) {
	s := loaded(t, "c1")
	_, _ = s.AppendLocal("one")
	s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: "first", Finished: true})
	_, err := s.AppendLocal("two")
	require.NoError(t, err)
	s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: "second"})

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[1].Content)
	assert.Equal(t, "second", msgs[3].Content)

	streaming := 0
	for i, m := range msgs {
		if m.IsStreaming() {
			streaming++
			assert.Equal(t, len(msgs)-1, i, "streaming message must be last")
		}
	}
	assert.Equal(t, 1, streaming)
}

func TestApplyDelta_NoConversation(t *testing.T) {
	s := New()
	assert.False(t, s.ApplyDelta(push.MessageDelta{ConversationID: "", Snapshot: "x"}))
}

func TestApplyReferences(t *testing.T) {
	s := loaded(t, "c1")

	assert.False(t, s.ApplyReferences(push.ReferencesSnapshot{ConversationID: "other"}))
	assert.True(t, s.ApplyReferences(push.ReferencesSnapshot{
		ConversationID: "c1",
		References:     []model.Reference{{DisplayName: "a"}, {DisplayName: "b"}, {DisplayName: "a"}},
	}))
	assert.Len(t, s.References(), 2)
}

func TestVersion_MovesOnEveryChange(t *testing.T) {
	s := New()
	v0 := s.Version()
	tk := s.Select("c1")
	v1 := s.Version()
	s.ApplySnapshot(tk, &model.ConversationSnapshot{})
	v2 := s.Version()
	_, _ = s.AppendLocal("x")
	v3 := s.Version()
	s.ApplyDelta(push.MessageDelta{ConversationID: "c1", Snapshot: "y"})
	v4 := s.Version()

	assert.True(t, v0 < v1 && v1 < v2 && v2 < v3 && v3 < v4)
}

func TestTicket_CurrentSelection(t *testing.T) {
	s := New()
	s.Select("c1")
	tk := s.Ticket()
	assert.Equal(t, "c1", tk.ConversationID)
	require.True(t, s.ApplySnapshot(tk, &model.ConversationSnapshot{}))

	_, err := s.AppendLocal("question")
	require.NoError(t, err)
	require.True(t, s.Waiting())

	// A full reload after a request/response round trip ends waiting.
	reply := &model.ConversationSnapshot{Messages: []model.Message{
		{ID: "1", Role: model.RoleUser, Content: "question"},
		{ID: "2", Role: model.RoleAssistant, Content: "answer"},
	}}
	require.True(t, s.ApplySnapshot(s.Ticket(), reply))
	assert.False(t, s.Waiting())
	assert.Len(t, s.Messages(), 2)

	old := s.Ticket()
	s.Select("c2")
	assert.False(t, s.ApplySnapshot(old, reply))
}
