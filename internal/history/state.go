// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history holds the side panel's list of past conversations.
//
// The list is fetched once and then kept current from push events. State is
// not safe for concurrent use; the view's update loop owns it.
package history

import (
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/util"
)

// State is the ordered history list, newest first.
type State struct {
	items   []model.Conversation
	loading bool
	version uint64
}

// New returns an empty, idle history.
func New() *State {
	return &State{}
}

// BeginLoad marks the initial fetch as pending.
func (s *State) BeginLoad() {
	s.loading = true
	s.version++
}

// Loading reports whether the initial fetch is pending.
func (s *State) Loading() bool { return s.loading }

// Version increases on every change to the list.
func (s *State) Version() uint64 { return s.version }

// Load replaces the list with fetched conversations, newest first.
func (s *State) Load(convs []model.Conversation) {
	s.items = make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		s.items = append(s.items, clean(c))
	}
	model.SortByCreatedDesc(s.items)
	s.loading = false
	s.version++
}

// LoadFailed empties the list after a failed fetch. The caller raises the
// notification.
func (s *State) LoadFailed() {
	s.items = nil
	s.loading = false
	s.version++
}

// Prepend inserts a conversation announced by the server at the top. An
// entry with the same id is replaced, so the list never holds duplicates.
func (s *State) Prepend(c model.Conversation) {
	if i := s.Index(c.ID); i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.items = append([]model.Conversation{clean(c)}, s.items...)
	s.version++
}

// UpdateMetadata replaces title and status of the entry with id, keeping its
// position. Unknown ids are ignored and report false.
func (s *State) UpdateMetadata(id, title, status string) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.items[i].Title = util.NormalizeTitle(title, "")
	s.items[i].Status = status
	s.version++
	return true
}

// Remove drops the entry with id after the server confirmed its deletion.
func (s *State) Remove(id string) bool {
	i := s.Index(id)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.version++
	return true
}

// Items returns a copy of the list.
func (s *State) Items() []model.Conversation {
	return append([]model.Conversation(nil), s.items...)
}

// Len returns the number of entries.
func (s *State) Len() int { return len(s.items) }

// Index returns the position of id, or -1.
func (s *State) Index(id string) int {
	for i, c := range s.items {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// Get returns the entry with id.
func (s *State) Get(id string) (model.Conversation, bool) {
	if i := s.Index(id); i >= 0 {
		return s.items[i], true
	}
	return model.Conversation{}, false
}

func clean(c model.Conversation) model.Conversation {
	c.Title = util.NormalizeTitle(c.Title, "")
	return c
}
