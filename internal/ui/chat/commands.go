// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/calendar"
	"github.com/jeranaias/witness-lens/internal/conversation"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/session"
	"github.com/jeranaias/witness-lens/internal/storage"
)

// Everything here runs off the update loop and reports back with a message.

// =============================================================================
// REST
// =============================================================================

func loadHistoryCmd(ctx context.Context, c *api.Client) tea.Cmd {
	return func() tea.Msg {
		convs, err := c.ListConversations(ctx)
		return historyLoadedMsg{convs: convs, err: err}
	}
}

func loadCachedHistoryCmd(ctx context.Context, cache *storage.Cache) tea.Cmd {
	return func() tea.Msg {
		convs, err := cache.ListConversations(ctx)
		return historyLoadedMsg{convs: convs, err: err}
	}
}

func loadConversationCmd(ctx context.Context, c *api.Client, t conversation.Ticket) tea.Cmd {
	return func() tea.Msg {
		snap, err := c.GetConversation(ctx, t.ConversationID)
		return conversationLoadedMsg{ticket: t, snap: snap, err: err}
	}
}

func handshakeCmd(ctx context.Context, c *api.Client, t conversation.Ticket) tea.Cmd {
	return func() tea.Msg {
		status, err := c.Handshake(ctx, t.ConversationID)
		return handshakeDoneMsg{ticket: t, status: status, err: err}
	}
}

func loadLegacyCmd(ctx context.Context, c *api.Client, t conversation.Ticket) tea.Cmd {
	return func() tea.Msg {
		conv, err := c.GetLegacyConversation(ctx, t.ConversationID)
		if err != nil {
			return conversationLoadedMsg{ticket: t, err: err}
		}
		return conversationLoadedMsg{ticket: t, snap: &model.ConversationSnapshot{Messages: conv.Messages}}
	}
}

func deleteConversationCmd(ctx context.Context, c *api.Client, cache *storage.Cache, legacy bool, id string) tea.Cmd {
	return func() tea.Msg {
		if legacy {
			if cache == nil {
				return deleteDoneMsg{id: id}
			}
			return deleteDoneMsg{id: id, err: cache.DeleteConversation(ctx, id)}
		}
		err := c.DeleteConversation(ctx, id)
		if err == nil && cache != nil {
			if cerr := cache.DeleteConversation(ctx, id); cerr != nil && !errors.Is(cerr, storage.ErrConversationNotFound) {
				log.Debug().Err(cerr).Str("conversation", id).Msg("cache delete failed")
			}
		}
		return deleteDoneMsg{id: id, err: err}
	}
}

// legacySendCmd posts the message and reloads the conversation, which then
// holds the answer.
func legacySendCmd(ctx context.Context, c *api.Client, t conversation.Ticket, content string) tea.Cmd {
	return func() tea.Msg {
		if err := c.SendLegacyMessage(ctx, t.ConversationID, content); err != nil {
			return legacyReplyMsg{ticket: t, err: err}
		}
		conv, err := c.GetLegacyConversation(ctx, t.ConversationID)
		return legacyReplyMsg{ticket: t, conv: conv, err: err}
	}
}

// =============================================================================
// LOCAL CACHE
// =============================================================================

func saveTranscriptCmd(ctx context.Context, cache *storage.Cache, conv model.Conversation, msgs []model.Message) tea.Cmd {
	return func() tea.Msg {
		if err := cache.PutConversation(ctx, conv); err != nil {
			log.Warn().Err(err).Str("component", "chat").Msg("could not cache conversation")
			return nil
		}
		if err := cache.SaveTranscript(ctx, conv.ID, msgs); err != nil {
			log.Warn().Err(err).Str("component", "chat").Msg("could not cache transcript")
		}
		return nil
	}
}

// =============================================================================
// PUSH CHANNEL
// =============================================================================

func runPushCmd(ctx context.Context, c *push.Client) tea.Cmd {
	return func() tea.Msg {
		return pushStoppedMsg{err: c.Run(ctx)}
	}
}

// listenPushCmd waits for the next event. It is re-issued after every event
// so events reach Update one at a time in arrival order.
func listenPushCmd(sub *push.Subscription) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub.Events()
		if !ok {
			return nil
		}
		return pushEventMsg{sub: sub, event: ev}
	}
}

// =============================================================================
// SESSION, CALENDAR, CLIPBOARD, TIMERS
// =============================================================================

func watchSessionCmd(ch <-chan session.Session) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return sessionChangedMsg{session: s}
	}
}

func calendarMonthCmd(l *calendar.Loader, req calendar.Request) tea.Cmd {
	return func() tea.Msg {
		return calendarMonthMsg{result: l.Fetch(req)}
	}
}

func calendarDayCmd(ctx context.Context, l *calendar.Loader, year, month, day int) tea.Cmd {
	return func() tea.Msg {
		items, err := l.Day(ctx, year, month, day)
		return calendarDayMsg{day: day, items: items, err: err}
	}
}

func copyCmd(what, text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{what: what, err: clipboard.WriteAll(text)}
	}
}

func waitingTickCmd() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return waitingTickMsg{Time: t}
	})
}
