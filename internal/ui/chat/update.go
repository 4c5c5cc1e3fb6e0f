// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/calendar"
	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/session"
	"github.com/jeranaias/witness-lens/internal/ui/components"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
	"github.com/jeranaias/witness-lens/internal/util"
)

var timeNow = time.Now

// legacyTitleRunes bounds the locally derived title of a legacy conversation.
const legacyTitleRunes = 48

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and keeps the derived view state in step.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case components.LoginSubmitMsg:
		cmds = append(cmds, m.handleLogin(msg))

	case historyLoadedMsg:
		if msg.err != nil {
			if !api.IsCanceled(msg.err) {
				log.Warn().Err(msg.err).Str("component", "chat").Msg("history fetch failed")
				m.notify("Could not load your conversations.")
			}
			m.hist.LoadFailed()
		} else {
			m.hist.Load(msg.convs)
		}

	case handshakeDoneMsg:
		cmds = append(cmds, m.handleHandshake(msg))

	case conversationLoadedMsg:
		if msg.err != nil {
			if m.conv.ApplyFetchError(msg.ticket, msg.err) {
				log.Warn().Err(msg.err).Str("conversation", msg.ticket.ConversationID).Msg("conversation fetch failed")
				m.notify("Could not load the conversation.")
			}
		} else {
			m.conv.ApplySnapshot(msg.ticket, msg.snap)
		}

	case legacyReplyMsg:
		cmds = append(cmds, m.handleLegacyReply(msg))

	case deleteDoneMsg:
		m.handleDeleted(msg)

	case pushEventMsg:
		cmds = append(cmds, m.handlePushEvent(msg))

	case pushStoppedMsg:
		log.Debug().Err(msg.err).Str("component", "chat").Msg("push client stopped")

	case sessionChangedMsg:
		cmds = append(cmds, m.handleSessionChange(msg.session), watchSessionCmd(m.watch))

	case calendarMonthMsg:
		if m.cal.Apply(msg.result) && msg.result.Err != nil {
			m.notify("Could not load the planning.")
		}

	case calendarDayMsg:
		if msg.err != nil {
			if !api.IsCanceled(msg.err) {
				m.notify("Could not load the planning of that day.")
			}
		} else if m.calendarOpen {
			m.calView.OpenDay(msg.day, msg.items)
		}

	case copiedMsg:
		if msg.err != nil {
			m.notify("Could not copy to the clipboard: " + msg.err.Error())
		} else {
			m.toasts.AddInfo("Copied " + msg.what + ".")
		}

	case waitingTickMsg:
		m.waitingTicking = false
		if m.conv.Waiting() {
			m.waitingFrame++
		}

	case components.ToastTickMsg:
		m.toastTicking = false
		m.toasts.Tick(msg.Time)

	case components.TypingTickMsg:
		cmds = append(cmds, m.histPanel.Update(msg))

	default:
		// Cursor blink and other component messages.
		if !m.signedIn() {
			cmds = append(cmds, m.login.Update(msg))
		} else {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m *Model) notify(message string) {
	m.toasts.AddError(message)
}

func logPushError(err error, msg string) {
	if errors.Is(err, push.ErrNotConnected) {
		log.Debug().Err(err).Str("component", "chat").Msg(msg)
		return
	}
	log.Warn().Err(err).Str("component", "chat").Msg(msg)
}

// =============================================================================
// KEYS
// =============================================================================

func (m *Model) handleKey(k tea.KeyMsg) tea.Cmd {
	if key.Matches(k, m.keys.Quit) {
		return tea.Quit
	}
	if !m.signedIn() {
		return m.login.Update(k)
	}
	if m.calendarOpen {
		return m.handleCalendarKey(k)
	}
	if m.confirmDelete != "" {
		id := m.confirmDelete
		m.confirmDelete = ""
		if key.Matches(k, m.keys.Confirm) {
			return deleteConversationCmd(m.ctx, m.api, m.cache, m.legacy(), id)
		}
		return nil
	}
	// Panel keys belong to the history filter while it is being typed.
	if m.focus == focusHistory && m.histPanel.Filtering() {
		return m.histPanel.Update(k)
	}

	switch {
	case key.Matches(k, m.keys.NewConv):
		m.newConversation()
		return nil
	case key.Matches(k, m.keys.History):
		m.showHistory = !m.showHistory
		if !m.historyVisible() && m.focus == focusHistory {
			m.setFocus(focusInput)
		}
		return nil
	case key.Matches(k, m.keys.References):
		m.showRefs = !m.showRefs
		if !m.refsVisible() && m.focus == focusReferences {
			m.setFocus(focusInput)
		}
		return nil
	case key.Matches(k, m.keys.Calendar):
		return m.openCalendar()
	case key.Matches(k, m.keys.CopyAnswer):
		return m.copyLastAnswer()
	case key.Matches(k, m.keys.Logout):
		m.logout()
		return nil
	case key.Matches(k, m.keys.FocusNext):
		m.cycleFocus()
		return nil
	case key.Matches(k, m.keys.Back):
		m.setFocus(focusInput)
		return nil
	case key.Matches(k, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return nil
	case key.Matches(k, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return nil
	}

	switch m.focus {
	case focusHistory:
		switch {
		case key.Matches(k, m.keys.Send):
			conv, ok := m.histPanel.Selected()
			if !ok {
				return nil
			}
			m.setFocus(focusInput)
			return m.openConversation(conv.ID)
		case key.Matches(k, m.keys.Delete):
			if conv, ok := m.histPanel.Selected(); ok {
				m.confirmDelete = conv.ID
			}
			return nil
		}
		return m.histPanel.Update(k)

	case focusReferences:
		switch {
		case key.Matches(k, m.keys.Up):
			m.refsPanel.Up()
		case key.Matches(k, m.keys.Down):
			m.refsPanel.Down()
		case key.Matches(k, m.keys.Send):
			if ref, ok := m.refsPanel.Selected(); ok && ref.DownloadURL != "" {
				return copyCmd("the link to "+ref.DisplayName, ref.DownloadURL)
			}
		}
		return nil
	}

	if key.Matches(k, m.keys.Send) {
		return m.send()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(k)
	return cmd
}

func (m *Model) setFocus(f focusArea) {
	m.focus = f
	m.histPanel.Blur()
	m.refsPanel.Blur()
	m.input.Blur()
	switch f {
	case focusHistory:
		m.histPanel.Focus()
	case focusReferences:
		m.refsPanel.Focus()
	default:
		m.input.Focus()
	}
}

func (m *Model) cycleFocus() {
	order := []focusArea{focusInput}
	if m.historyVisible() {
		order = append(order, focusHistory)
	}
	if m.refsVisible() {
		order = append(order, focusReferences)
	}
	for i, f := range order {
		if f == m.focus {
			m.setFocus(order[(i+1)%len(order)])
			return
		}
	}
	m.setFocus(focusInput)
}

func (m *Model) handleCalendarKey(k tea.KeyMsg) tea.Cmd {
	year, month := m.cal.Month()
	days := calendar.DaysIn(year, month)

	switch {
	case key.Matches(k, m.keys.Back):
		if m.calView.DayOpen() {
			m.calView.CloseDay()
		} else {
			m.closeCalendar()
		}
	case key.Matches(k, m.keys.Left):
		m.calView.MoveCursor(-1, days)
	case key.Matches(k, m.keys.Right):
		m.calView.MoveCursor(1, days)
	case key.Matches(k, m.keys.Up):
		m.calView.MoveCursor(-7, days)
	case key.Matches(k, m.keys.Down):
		m.calView.MoveCursor(7, days)
	case key.Matches(k, m.keys.PrevMonth):
		return m.loadMonth(m.cal.Prev(m.ctx))
	case key.Matches(k, m.keys.NextMonth):
		return m.loadMonth(m.cal.Next(m.ctx))
	case key.Matches(k, m.keys.Send):
		return calendarDayCmd(m.ctx, m.cal, year, month, m.calView.Cursor())
	}
	return nil
}

// =============================================================================
// ACTIONS
// =============================================================================

func (m *Model) handleLogin(msg components.LoginSubmitMsg) tea.Cmd {
	user, err := m.verifier.Verify(msg.User, msg.Password)
	if err != nil {
		m.login.Reset()
		m.notify("Invalid credentials")
		return nil
	}
	if err := m.sess.SetUser(user); err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	m.setFocus(focusInput)
	return m.start()
}

func (m *Model) logout() {
	m.stop()
	if err := m.sess.Logout(); err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	m.api.SetUser("")
	m.login.Reset()
}

// canSend reports whether the send control is enabled.
func (m *Model) canSend() bool {
	return m.signedIn() &&
		!m.conv.Waiting() &&
		!m.conv.Loading() &&
		strings.TrimSpace(m.input.Value()) != ""
}

func (m *Model) send() tea.Cmd {
	if !m.canSend() {
		return nil
	}
	content := strings.TrimSpace(m.input.Value())

	var cmds []tea.Cmd
	id, created, err := m.sess.EnsureConversation()
	if err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	if created || m.conv.ConversationID() != id {
		m.openFresh(id)
		if m.legacy() {
			cmds = append(cmds, m.addLegacyConversation(id, content))
		}
	}

	if _, err := m.conv.AppendLocal(content); err != nil {
		log.Debug().Err(err).Msg("message rejected")
		return tea.Batch(cmds...)
	}
	m.input.Reset()

	if m.legacy() {
		cmds = append(cmds, legacySendCmd(m.ctx, m.api, m.conv.Ticket(), content))
		return tea.Batch(cmds...)
	}
	if err := m.push.Send(push.SendMessage{ConversationID: id, Content: content}); err != nil {
		logPushError(err, "message not sent")
		m.conv.SendFailed()
		m.notify("Message not sent: the connection is down.")
	}
	return tea.Batch(cmds...)
}

// addLegacyConversation records a conversation started in legacy mode, which
// has no server-side history list.
func (m *Model) addLegacyConversation(id, firstMessage string) tea.Cmd {
	conv := model.Conversation{
		ID:        id,
		Title:     util.TruncateRunes(util.NormalizeTitle(firstMessage, ""), legacyTitleRunes),
		CreatedAt: timeNow(),
	}
	m.hist.Prepend(conv)
	if m.cache == nil {
		return nil
	}
	return saveTranscriptCmd(m.ctx, m.cache, conv, nil)
}

func (m *Model) newConversation() {
	id, err := m.sess.NewConversation()
	if err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	m.setFocus(focusInput)
	if id == "" {
		m.fetch.cancel()
		m.conv.Select("")
		return
	}
	m.openFresh(id)
	if m.legacy() {
		m.hist.Prepend(model.Conversation{ID: id, CreatedAt: timeNow()})
	}
}

func (m *Model) openConversation(id string) tea.Cmd {
	if id == m.conv.ConversationID() && !m.conv.Loading() {
		return nil
	}
	if err := m.sess.SetConversation(id); err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	return m.selectConversation(id, false)
}

func (m *Model) openCalendar() tea.Cmd {
	m.calendarOpen = true
	m.calView.CloseDay()
	year, month := m.cal.Month()
	return m.loadMonth(m.cal.Load(m.ctx, year, month))
}

func (m *Model) loadMonth(req calendar.Request) tea.Cmd {
	m.calView.CloseDay()
	m.calView.ClampCursor(calendar.DaysIn(req.Year, req.Month))
	return calendarMonthCmd(m.cal, req)
}

func (m *Model) copyLastAnswer() tea.Cmd {
	msgs := m.conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == model.RoleAssistant && msgs[i].Content != "" {
			return copyCmd("the answer", msgs[i].Content)
		}
	}
	m.toasts.AddInfo("Nothing to copy yet.")
	return nil
}

// =============================================================================
// RESULTS
// =============================================================================

func (m *Model) handleHandshake(msg handshakeDoneMsg) tea.Cmd {
	if msg.ticket != m.conv.Ticket() {
		return nil
	}
	if msg.err == nil && msg.status == api.HandshakeStatusNew {
		m.conv.ApplySnapshot(msg.ticket, nil)
		return nil
	}
	if msg.err != nil && !api.IsCanceled(msg.err) {
		log.Debug().Err(msg.err).Msg("handshake failed, fetching history")
	}
	return loadConversationCmd(m.fetch.start(m.ctx), m.api, msg.ticket)
}

func (m *Model) handleLegacyReply(msg legacyReplyMsg) tea.Cmd {
	if msg.err != nil {
		if msg.ticket == m.conv.Ticket() {
			m.conv.SendFailed()
		}
		log.Warn().Err(msg.err).Str("conversation", msg.ticket.ConversationID).Msg("legacy send failed")
		m.notify("Message not sent.")
		return nil
	}

	id := msg.ticket.ConversationID
	m.conv.ApplySnapshot(msg.ticket, &model.ConversationSnapshot{Messages: msg.conv.Messages})

	conv, _ := m.hist.Get(id)
	conv.ID = id
	if title := util.NormalizeTitle(msg.conv.Title, ""); title != "" {
		conv.Title = title
		m.hist.UpdateMetadata(id, title, conv.Status)
	}
	if m.cache == nil {
		return nil
	}
	return saveTranscriptCmd(m.ctx, m.cache, conv, msg.conv.Messages)
}

func (m *Model) handleDeleted(msg deleteDoneMsg) {
	if msg.err != nil {
		log.Warn().Err(msg.err).Str("conversation", msg.id).Msg("delete failed")
		m.notify("Could not delete the conversation.")
		return
	}
	m.hist.Remove(msg.id)
	if msg.id != m.sess.ConversationID() && msg.id != m.conv.ConversationID() {
		return
	}
	if err := m.sess.ClearConversation(); err != nil {
		m.notify("Could not save the session: " + err.Error())
	}
	m.fetch.cancel()
	m.conv.Select("")
}

// handlePushEvent applies an event and re-arms the listener. Only the
// listener of the current subscription re-arms, so exactly one reader is
// alive per subscription; events read from a closed one are dropped.
func (m *Model) handlePushEvent(msg pushEventMsg) tea.Cmd {
	if msg.sub == nil || msg.sub != m.sub {
		log.Debug().
			Str("component", "chat").
			Str("event", msg.event.EventName()).
			Msg("dropping event from a closed subscription")
		return nil
	}
	return tea.Batch(m.handlePush(msg.event), listenPushCmd(m.sub))
}

func (m *Model) handlePush(ev push.Event) tea.Cmd {
	switch ev := ev.(type) {
	case push.NewConversation:
		m.hist.Prepend(ev.Conversation)
	case push.MetadataUpdate:
		m.hist.UpdateMetadata(ev.ID, ev.Title, ev.Status)
	case push.MessageDelta:
		if m.conv.ApplyDelta(ev) && ev.Finished && m.cache != nil {
			conv, ok := m.hist.Get(ev.ConversationID)
			if !ok {
				conv = model.Conversation{ID: ev.ConversationID}
			}
			return saveTranscriptCmd(m.ctx, m.cache, conv, m.conv.Messages())
		}
	case push.ReferencesSnapshot:
		m.conv.ApplyReferences(ev)
	case push.StatusEvent:
		m.connected = ev.Connected
	}
	return nil
}

func (m *Model) handleSessionChange(s session.Session) tea.Cmd {
	prev := m.sess.Current()
	if !m.sess.Adopt(s) {
		return nil
	}
	switch {
	case s.UserID == "":
		m.stop()
		m.api.SetUser("")
		m.login.Reset()
		m.toasts.AddInfo("Signed out from another terminal.")
		return nil
	case s.UserID != prev.UserID:
		m.stop()
		return m.start()
	case s.ConversationID != prev.ConversationID:
		return m.selectConversation(s.ConversationID, true)
	}
	return nil
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// sync brings panels, the viewport and timers in line with the state
// holders after every message.
func (m *Model) sync() tea.Cmd {
	var cmds []tea.Cmd

	active := m.conv.ConversationID()
	if v := m.hist.Version(); v != m.historyVersion || m.histActive != active {
		m.historyVersion, m.histActive = v, active
		cmds = append(cmds, m.histPanel.Sync(m.hist.Items(), active))
	}
	m.refsPanel.SetReferences(m.conv.References())

	m.layout()
	m.renderViewport()

	if m.conv.Waiting() && !m.waitingTicking {
		m.waitingTicking = true
		cmds = append(cmds, waitingTickCmd())
	}
	if len(m.toasts.Toasts()) > 0 && !m.toastTicking {
		m.toastTicking = true
		cmds = append(cmds, components.ToastTickCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) historyVisible() bool {
	return m.showHistory && m.theme.Layout() != styles.LayoutNarrow
}

func (m *Model) refsVisible() bool {
	return m.showRefs && m.theme.Layout() == styles.LayoutWide
}

// mainWidth is the width of the message column.
func (m *Model) mainWidth() int {
	w := m.width
	if m.historyVisible() {
		w -= m.theme.PanelWidth()
	}
	if m.refsVisible() {
		w -= m.theme.PanelWidth()
	}
	return max(w, 20)
}

func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	mainW := m.mainWidth()
	// header, status line, input border and input
	vpH := m.height - 4 - len(m.toasts.Toasts())
	m.viewport.Width = mainW
	m.viewport.Height = max(vpH, 1)
	m.input.Width = max(mainW-12, 10)

	panelH := max(m.height-2, 3)
	m.histPanel.SetSize(m.theme.PanelWidth(), panelH)
	m.refsPanel.SetSize(m.theme.PanelWidth(), panelH)
}

// renderViewport rebuilds the message column when the list changed and
// scrolls to the latest message.
func (m *Model) renderViewport() {
	if m.width == 0 {
		return
	}
	version := m.conv.Version()
	width := m.viewport.Width
	dots := m.showWaitingDots()
	frame := -1
	if dots {
		frame = m.waitingFrame
	}
	if version == m.renderedVersion && width == m.renderedWidth && frame == m.renderedFrame {
		return
	}
	listChanged := version != m.renderedVersion
	m.renderedVersion, m.renderedWidth, m.renderedFrame = version, width, frame

	var body string
	switch {
	case m.conv.ConversationID() == "":
		body = ""
	case m.conv.Loading():
		body = components.RenderSkeletonMessages(m.theme, m.conv.Placeholder(), width)
	default:
		body = m.renderer.RenderList(m.conv.Messages(), width)
		if dots {
			if body != "" {
				body += "\n\n"
			}
			body += m.renderer.RenderWaiting(m.waitingFrame, width)
		}
	}
	m.viewport.SetContent(body)
	if listChanged || dots {
		m.viewport.GotoBottom()
	}
}

// showWaitingDots reports whether the answer is pending and no delta has
// arrived yet.
func (m *Model) showWaitingDots() bool {
	if !m.conv.Waiting() {
		return false
	}
	last, ok := m.conv.Last()
	return !ok || last.IsUser()
}
