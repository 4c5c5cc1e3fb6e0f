// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures exchanged with the assistant
// backend: conversations, messages, and reference documents.
//
// # Key Types
//
//   - Conversation: history entry with id, title, creation time and status
//   - Message: single chat bubble, possibly still streaming
//   - Reference: downloadable document attached to an answer
//   - ConversationSnapshot: full history of one conversation
//
// The JSON tags are the canonical wire names. Legacy spellings are rewritten
// by the push decoder before they reach these types.
package model
