// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"github.com/jeranaias/witness-lens/internal/model"
)

// Canonical event names carried in the envelope's "event" field.
const (
	EventNewConversation    = "newConversation"
	EventMetadataUpdate     = "conversationMetadataUpdate"
	EventMessage            = "message"
	EventReferencesSnapshot = "referencesSnapshot"
	EventHandshake          = "conversationHandshake"
)

// Event is anything delivered to subscribers.
type Event interface {
	EventName() string
}

// NewConversation announces a conversation the server just created.
type NewConversation struct {
	Conversation model.Conversation
}

func (NewConversation) EventName() string { return EventNewConversation }

// MetadataUpdate carries a new title and status for an existing conversation.
type MetadataUpdate struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

func (MetadataUpdate) EventName() string { return EventMetadataUpdate }

// MessageDelta is a cumulative snapshot of the answer being written.
// Snapshot holds the whole text so far, not a fragment.
type MessageDelta struct {
	ConversationID string            `json:"conversationId"`
	Snapshot       string            `json:"snapshot"`
	References     []model.Reference `json:"references,omitempty"`
	Finished       bool              `json:"finished"`
}

func (MessageDelta) EventName() string { return EventMessage }

// ReferencesSnapshot replaces the references board of a conversation.
type ReferencesSnapshot struct {
	ConversationID string            `json:"conversationId"`
	References     []model.Reference `json:"references"`
}

func (ReferencesSnapshot) EventName() string { return EventReferencesSnapshot }

// StatusEvent reports connection state changes. Err is the reason for a
// disconnect and nil on connect.
type StatusEvent struct {
	Connected bool
	Err       error
}

func (StatusEvent) EventName() string { return "status" }

// =============================================================================
// OUTBOUND
// =============================================================================

// SendMessage is the payload of an outgoing user message.
type SendMessage struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// HandshakeMessage announces a locally minted conversation id before its
// first message.
type HandshakeMessage struct {
	ConversationID string `json:"conversationId"`
}
