// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one entry of the user's history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Status    string    `json:"status,omitempty"`
}

// DefaultTitle is shown until the server summarizes a new conversation.
const DefaultTitle = "New conversation"

// DisplayTitle returns the title or DefaultTitle when the server has not
// named the conversation yet.
func (c Conversation) DisplayTitle() string {
	if c.Title == "" {
		return DefaultTitle
	}
	return c.Title
}

// SortByCreatedDesc sorts conversations newest first. Entries with equal
// timestamps keep their relative order.
func SortByCreatedDesc(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}

// ConversationSnapshot is the full history of a conversation as returned by
// the fetch endpoint.
type ConversationSnapshot struct {
	Messages   []Message   `json:"messages"`
	References []Reference `json:"references,omitempty"`
}

// LegacyConversation is the response shape of the request/response endpoint
// used before the push channel existed.
type LegacyConversation struct {
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}
