// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the message list of the active conversation,
// merging the fetched history with streamed answer deltas.
//
// State is not safe for concurrent use; the view's update loop owns it.
package conversation

import (
	"errors"
	"strings"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoConversation is returned when sending with no conversation selected.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrBusy is returned when sending while an answer is pending or the
	// history is still loading.
	ErrBusy = errors.New("waiting for the previous answer")
	// ErrEmpty is returned for blank messages.
	ErrEmpty = errors.New("message is empty")
)

// Ticket identifies the fetch issued by one Select call. A response carrying
// an outdated ticket is discarded.
type Ticket struct {
	ConversationID string
	generation     uint64
}

// NeedsFetch reports whether the selection requires a history fetch.
func (t Ticket) NeedsFetch() bool {
	return t.ConversationID != ""
}

// State is the message reconciliation state of the chat view.
type State struct {
	conversationID string
	generation     uint64

	loading    bool
	waiting    bool
	messages   []model.Message
	references []model.Reference
	version    uint64
}

// New returns a State with no conversation selected.
func New() *State {
	return &State{}
}

// =============================================================================
// SELECTION AND FETCH
// =============================================================================

// Select switches to a conversation. Messages and references are cleared
// immediately; the previous conversation's content is never shown while the
// new one loads. An empty id selects the welcome state and needs no fetch.
func (s *State) Select(id string) Ticket {
	s.generation++
	s.conversationID = id
	s.messages = nil
	s.references = nil
	s.waiting = false
	s.loading = id != ""
	s.changed()
	return Ticket{ConversationID: id, generation: s.generation}
}

func (s *State) current(t Ticket) bool {
	if t.generation != s.generation || t.ConversationID != s.conversationID {
		log.Debug().
			Str("component", "conversation").
			Str("ticket", t.ConversationID).
			Str("active", s.conversationID).
			Msg("discarding stale fetch result")
		return false
	}
	return true
}

// Ticket returns a ticket for the current selection. A fetch issued with it
// is discarded if the selection changes before it completes.
func (s *State) Ticket() Ticket {
	return Ticket{ConversationID: s.conversationID, generation: s.generation}
}

// ApplySnapshot replaces the list with fetched history. A snapshot holds any
// answer that was pending, so it also ends waiting. Returns false when the
// ticket is stale.
func (s *State) ApplySnapshot(t Ticket, snap *model.ConversationSnapshot) bool {
	if !s.current(t) {
		return false
	}
	s.loading = false
	s.waiting = false
	s.messages = nil
	s.references = nil
	if snap != nil {
		s.messages = append([]model.Message(nil), snap.Messages...)
		s.references = append([]model.Reference(nil), snap.References...)
	}
	s.changed()
	return true
}

// ApplyFetchError empties the list after a failed fetch. notify is true when
// the user should see an error: a not-found response is the normal state of a
// brand-new conversation, and stale or canceled fetches are silent.
func (s *State) ApplyFetchError(t Ticket, err error) (notify bool) {
	if !s.current(t) {
		return false
	}
	s.loading = false
	s.messages = nil
	s.references = nil
	s.changed()
	return !api.IsNotFound(err) && !api.IsCanceled(err)
}

// =============================================================================
// LOCAL SEND AND STREAMED DELTAS
// =============================================================================

// AppendLocal optimistically appends the user's message and marks the view
// as waiting for an answer. The caller transmits the message.
func (s *State) AppendLocal(content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmpty
	}
	if s.conversationID == "" {
		return model.Message{}, ErrNoConversation
	}
	if s.waiting || s.loading {
		return model.Message{}, ErrBusy
	}

	msg := model.NewUserMessage(s.conversationID, content)
	s.messages = append(s.messages, msg)
	s.waiting = true
	s.changed()
	return msg, nil
}

// SendFailed clears the waiting flag after the transport refused the message.
// The optimistic message stays in the list.
func (s *State) SendFailed() {
	if !s.waiting {
		return
	}
	s.waiting = false
	s.changed()
}

// ApplyDelta writes a streamed answer snapshot into the trailing message.
// Deltas for other conversations are ignored. The first delta of an answer
// (trailing message authored by the user, or an empty list) appends a fresh
// assistant message.
func (s *State) ApplyDelta(d push.MessageDelta) bool {
	if s.conversationID == "" || d.ConversationID != s.conversationID {
		return false
	}

	n := len(s.messages)
	if n == 0 || s.messages[n-1].Role == model.RoleUser {
		s.messages = append(s.messages, model.NewAssistantPlaceholder(s.conversationID))
		n++
	}

	last := &s.messages[n-1]
	last.Content = d.Snapshot
	last.References = append([]model.Reference(nil), d.References...)
	last.Streaming = !d.Finished
	if d.Finished {
		s.waiting = false
	}
	s.changed()
	return true
}

// ApplyReferences replaces the references board. Snapshots for other
// conversations are ignored.
func (s *State) ApplyReferences(r push.ReferencesSnapshot) bool {
	if s.conversationID == "" || r.ConversationID != s.conversationID {
		return false
	}
	s.references = append([]model.Reference(nil), r.References...)
	s.changed()
	return true
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ConversationID returns the active conversation, empty for the welcome state.
func (s *State) ConversationID() string { return s.conversationID }

// Loading reports whether the history fetch is pending.
func (s *State) Loading() bool { return s.loading }

// Waiting reports whether an answer is pending.
func (s *State) Waiting() bool { return s.waiting }

// Version increases whenever the displayed list changes. The view scrolls to
// the latest message when it moves.
func (s *State) Version() uint64 { return s.version }

// Messages returns a copy of the display list.
func (s *State) Messages() []model.Message {
	return append([]model.Message(nil), s.messages...)
}

// Last returns the trailing message, if any.
func (s *State) Last() (model.Message, bool) {
	if len(s.messages) == 0 {
		return model.Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// References returns the board's references ready for display.
func (s *State) References() []model.Reference {
	return model.DisplayReferences(s.references)
}

// Placeholder returns the skeleton bubbles shown while loading: user,
// assistant, user.
func (s *State) Placeholder() []model.Message {
	return []model.Message{
		{ID: "skeleton-0", Role: model.RoleUser},
		{ID: "skeleton-1", Role: model.RoleAssistant},
		{ID: "skeleton-2", Role: model.RoleUser},
	}
}

func (s *State) changed() {
	s.version++
}
