// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components renders the pieces of the chat view.
//
// Components hold no conversation state of their own. They take the state
// owned by internal/conversation, internal/history and internal/calendar and
// turn it into strings; the stateful ones (toasts, the login form, the
// history list) only track what is needed to draw and navigate.
package components
