// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/witness-lens/internal/calendar"
	"github.com/jeranaias/witness-lens/internal/conversation"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/session"
)

// =============================================================================
// FETCH RESULTS
// =============================================================================

// historyLoadedMsg carries the conversation list.
type historyLoadedMsg struct {
	convs []model.Conversation
	err   error
}

// conversationLoadedMsg carries the history of one conversation.
type conversationLoadedMsg struct {
	ticket conversation.Ticket
	snap   *model.ConversationSnapshot
	err    error
}

// handshakeDoneMsg reports whether the server knows a stored conversation.
type handshakeDoneMsg struct {
	ticket conversation.Ticket
	status string
	err    error
}

// deleteDoneMsg reports the outcome of a delete request.
type deleteDoneMsg struct {
	id  string
	err error
}

// =============================================================================
// SENDING
// =============================================================================

// legacyReplyMsg carries the reloaded conversation after a request/response
// send.
type legacyReplyMsg struct {
	ticket conversation.Ticket
	conv   *model.LegacyConversation
	err    error
}

// waitingTickMsg animates the waiting dots.
type waitingTickMsg struct {
	Time time.Time
}

// =============================================================================
// PUSH CHANNEL AND SESSION
// =============================================================================

// pushEventMsg delivers one push event in arrival order. sub is the
// subscription it was read from; events from a closed subscription are
// dropped.
type pushEventMsg struct {
	sub   *push.Subscription
	event push.Event
}

// pushStoppedMsg is sent when the push client's Run returns.
type pushStoppedMsg struct {
	err error
}

// sessionChangedMsg reports an edit of the session file by another process.
type sessionChangedMsg struct {
	session session.Session
}

// =============================================================================
// CALENDAR AND CLIPBOARD
// =============================================================================

// calendarMonthMsg carries a month fetch result.
type calendarMonthMsg struct {
	result calendar.Result
}

// calendarDayMsg carries the items of one day.
type calendarDayMsg struct {
	day   int
	items []string
	err   error
}

// copiedMsg reports a clipboard write.
type copiedMsg struct {
	what string
	err  error
}
