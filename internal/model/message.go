// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"

	"github.com/google/uuid"
)

// PlaceholderMessageID is the id carried by an optimistically inserted user
// message until the server history replaces it.
const PlaceholderMessageID = "temp_id"

// assistantIDPrefix prefixes the locally minted id of a streaming answer.
const assistantIDPrefix = "packet-"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the two roles the backend knows.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Witness Lens"
	default:
		return string(r)
	}
}

// ParseRole converts a wire value to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
type Message struct {
	ID             string      `json:"id"`
	Role           Role        `json:"role"`
	Content        string      `json:"content"`
	ConversationID string      `json:"conversationId,omitempty"`
	References     []Reference `json:"references,omitempty"`

	// Streaming is set while assistant deltas are still arriving.
	Streaming bool `json:"-"`
}

// NewUserMessage creates the optimistic copy of a message the user just sent.
func NewUserMessage(conversationID, content string) Message {
	return Message{
		ID:             PlaceholderMessageID,
		Role:           RoleUser,
		Content:        content,
		ConversationID: conversationID,
	}
}

// NewAssistantPlaceholder creates the empty assistant message that the first
// delta of an answer is written into.
func NewAssistantPlaceholder(conversationID string) Message {
	return Message{
		ID:             assistantIDPrefix + uuid.NewString(),
		Role:           RoleAssistant,
		ConversationID: conversationID,
		Streaming:      true,
	}
}

// IsStreaming reports whether the message is still being written.
func (m Message) IsStreaming() bool {
	return m.Streaming
}

// IsPlaceholder reports whether the message was inserted locally and has not
// been confirmed by the server yet.
func (m Message) IsPlaceholder() bool {
	return m.ID == PlaceholderMessageID
}

// IsUser reports whether the user authored the message.
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}
