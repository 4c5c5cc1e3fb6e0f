// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jeranaias/witness-lens/internal/model"
)

// HandshakeStatusNew is returned by Handshake for a conversation the server
// has no history for.
const HandshakeStatusNew = "new"

type listConversationsResponse struct {
	Conversations []model.Conversation `json:"conversations"`
}

type handshakeResponse struct {
	Status string `json:"status"`
}

type referencesResponse struct {
	References []model.Reference `json:"references"`
}

// LegacyMessageRequest is the body of the request/response send endpoint.
type LegacyMessageRequest struct {
	Role           model.Role `json:"role"`
	Content        string     `json:"content"`
	ConversationID string     `json:"conversationId"`
}

// ListConversations returns the signed-in user's conversations in server
// order. Callers sort them for display.
func (c *Client) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	var resp listConversationsResponse
	if err := c.do(ctx, http.MethodGet, c.url("assistant", "conversations"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// GetConversation fetches the full message history and references of a
// conversation. A conversation the server has never seen yields an error for
// which IsNotFound is true.
func (c *Client) GetConversation(ctx context.Context, id string) (*model.ConversationSnapshot, error) {
	var snap model.ConversationSnapshot
	if err := c.do(ctx, http.MethodGet, c.url("assistant", "conversations", url.PathEscape(id)), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.url("assistant", "conversations", url.PathEscape(id)), nil, nil)
}

// ListReferences fetches the references board of a conversation.
func (c *Client) ListReferences(ctx context.Context, id string) ([]model.Reference, error) {
	var resp referencesResponse
	if err := c.do(ctx, http.MethodGet, c.url("assistant", "conversations", url.PathEscape(id), "references"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.References, nil
}

// Handshake announces a conversation id and reports whether the server
// already holds history for it.
func (c *Client) Handshake(ctx context.Context, id string) (string, error) {
	var resp handshakeResponse
	if err := c.do(ctx, http.MethodPost, c.url("assistant", "conversations", url.PathEscape(id), "handshake"), struct{}{}, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// =============================================================================
// LEGACY REQUEST/RESPONSE MODE
// =============================================================================

// GetLegacyConversation fetches a conversation from the endpoint used before
// the push channel existed.
func (c *Client) GetLegacyConversation(ctx context.Context, id string) (*model.LegacyConversation, error) {
	var conv model.LegacyConversation
	if err := c.do(ctx, http.MethodGet, c.url("assistant", "conversation", url.PathEscape(id)), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// SendLegacyMessage posts a user message and returns once the server has
// produced the answer. The answer itself is read with GetLegacyConversation.
func (c *Client) SendLegacyMessage(ctx context.Context, conversationID, content string) error {
	body := LegacyMessageRequest{
		Role:           model.RoleUser,
		Content:        content,
		ConversationID: conversationID,
	}
	return c.do(ctx, http.MethodPost, c.url("assistant", "conversation", "message"), body, nil)
}
