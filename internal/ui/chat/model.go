// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the root Bubble Tea model of the terminal client.
//
// The model owns the session context, the single push subscription and the
// three state holders (conversation, history, calendar). Components receive
// their slice of that state when drawing; none of them fetch on their own.
package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/auth"
	"github.com/jeranaias/witness-lens/internal/calendar"
	"github.com/jeranaias/witness-lens/internal/config"
	"github.com/jeranaias/witness-lens/internal/conversation"
	"github.com/jeranaias/witness-lens/internal/history"
	"github.com/jeranaias/witness-lens/internal/push"
	"github.com/jeranaias/witness-lens/internal/session"
	"github.com/jeranaias/witness-lens/internal/storage"
	"github.com/jeranaias/witness-lens/internal/ui/components"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

// pushBuffer is the subscription buffer of the chat view.
const pushBuffer = 256

// focusArea is the part of the screen receiving keys.
type focusArea int

const (
	focusInput focusArea = iota
	focusHistory
	focusReferences
)

// Options are the collaborators of the chat view. Push is nil in legacy
// mode; Cache and SessionWatch are optional.
type Options struct {
	Context      context.Context
	Config       *config.Config
	API          *api.Client
	Push         *push.Client
	Session      *session.Context
	SessionWatch <-chan session.Session
	Cache        *storage.Cache
	Verifier     *auth.Verifier
	Theme        *styles.Theme
}

// Model is the root model of the chat view.
type Model struct {
	ctx      context.Context
	cfg      *config.Config
	api      *api.Client
	push     *push.Client
	sess     *session.Context
	watch    <-chan session.Session
	cache    *storage.Cache
	verifier *auth.Verifier
	theme    *styles.Theme
	keys     KeyMap

	conv *conversation.State
	hist *history.State
	cal  *calendar.Loader

	toasts    *components.ToastManager
	renderer  *components.MessageRenderer
	histPanel *components.HistoryPanel
	refsPanel *components.ReferencesPanel
	calView   *components.CalendarView
	login     *components.LoginForm
	input     textinput.Model
	viewport  viewport.Model

	fetch      *cancelManager
	pushCancel context.CancelFunc
	sub        *push.Subscription

	width, height   int
	focus           focusArea
	showHistory     bool
	showRefs        bool
	calendarOpen    bool
	confirmDelete   string
	connected       bool
	waitingFrame    int
	waitingTicking  bool
	toastTicking    bool
	renderedVersion uint64
	renderedWidth   int
	renderedFrame   int
	historyVersion  uint64
	histActive      string
}

// New creates the chat view.
func New(opts Options) *Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(cfg.UI.Theme)
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier(cfg.Auth.Users)
	}

	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "Ask Witness Lens..."
	ti.CharLimit = 8192
	ti.Focus()

	cal := calendar.NewLoader(opts.API)
	_, _, today := timeNow().Date()

	m := &Model{
		ctx:      ctx,
		cfg:      cfg,
		api:      opts.API,
		push:     opts.Push,
		sess:     opts.Session,
		watch:    opts.SessionWatch,
		cache:    opts.Cache,
		verifier: verifier,
		theme:    theme,
		keys:     DefaultKeyMap(),

		conv: conversation.New(),
		hist: history.New(),
		cal:  cal,

		toasts:    components.NewToastManager(cfg.ErrorToastDuration()),
		renderer:  components.NewMessageRenderer(theme, cfg.UI.Markdown),
		histPanel: components.NewHistoryPanel(theme),
		refsPanel: components.NewReferencesPanel(theme),
		calView:   components.NewCalendarView(theme, today),
		login:     components.NewLoginForm(theme, !verifier.Open()),
		input:     ti,
		viewport:  viewport.New(80, 20),

		fetch:         newCancelManager(),
		renderedFrame: -1,
		showHistory:   cfg.UI.ShowHistory,
		showRefs:      cfg.UI.ShowReferences,
	}
	if cfg.Session.User != "" && m.sess.UserID() != cfg.Session.User {
		if err := m.sess.SetUser(cfg.Session.User); err != nil {
			m.toasts.AddError("Could not save session: " + err.Error())
		}
	}
	return m
}

// Init starts the session when a user is already signed in.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, watchSessionCmd(m.watch)}
	if m.signedIn() {
		cmds = append(cmds, m.start())
	}
	return tea.Batch(cmds...)
}

func (m *Model) signedIn() bool {
	return m.sess.UserID() != ""
}

func (m *Model) legacy() bool {
	return m.cfg.Legacy() || m.push == nil
}

// start brings up everything owned by a signed-in user: the push
// connection, the history list and the stored conversation.
func (m *Model) start() tea.Cmd {
	user := m.sess.UserID()
	m.api.SetUser(user)

	var cmds []tea.Cmd
	m.hist.BeginLoad()
	if m.legacy() {
		if m.cache != nil {
			cmds = append(cmds, loadCachedHistoryCmd(m.ctx, m.cache))
		} else {
			m.hist.Load(nil)
		}
	} else {
		m.push.SetUser(user)
		ctx, cancel := context.WithCancel(m.ctx)
		m.pushCancel = cancel
		m.sub = m.push.Hub().Subscribe(pushBuffer)
		cmds = append(cmds, runPushCmd(ctx, m.push), listenPushCmd(m.sub), loadHistoryCmd(m.ctx, m.api))
	}
	cmds = append(cmds, m.selectConversation(m.sess.ConversationID(), true))
	return tea.Batch(cmds...)
}

// stop tears down the push connection and clears per-user state.
func (m *Model) stop() {
	m.fetch.cancel()
	if m.pushCancel != nil {
		m.pushCancel()
		m.pushCancel = nil
	}
	if m.sub != nil {
		m.sub.Close()
		m.sub = nil
	}
	m.connected = false
	m.conv.Select("")
	m.hist.Load(nil)
	m.closeCalendar()
	m.confirmDelete = ""
	m.focus = focusInput
	m.input.Reset()
}

// Close releases background work. Call after the program exits.
func (m *Model) Close() {
	m.stop()
	m.cal.Close()
}

// selectConversation switches the active conversation and issues the fetch
// for it. restored marks an id read back from the session file: its
// existence is checked with a handshake first.
func (m *Model) selectConversation(id string, restored bool) tea.Cmd {
	ticket := m.conv.Select(id)
	m.refsPanel.SetReferences(nil)
	if !ticket.NeedsFetch() {
		m.fetch.cancel()
		return nil
	}
	ctx := m.fetch.start(m.ctx)
	switch {
	case m.legacy():
		return loadLegacyCmd(ctx, m.api, ticket)
	case restored:
		return handshakeCmd(ctx, m.api, ticket)
	default:
		return loadConversationCmd(ctx, m.api, ticket)
	}
}

// openFresh selects a conversation that is known to be empty.
func (m *Model) openFresh(id string) {
	m.fetch.cancel()
	ticket := m.conv.Select(id)
	m.conv.ApplySnapshot(ticket, nil)
	m.refsPanel.SetReferences(nil)
	if !m.legacy() {
		if err := m.push.Handshake(id); err != nil {
			logPushError(err, "handshake not sent")
		}
	}
}

func (m *Model) closeCalendar() {
	m.calendarOpen = false
	m.calView.CloseDay()
	m.cal.Close()
}
