// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/ui/components"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
	"github.com/jeranaias/witness-lens/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if !m.signedIn() {
		return m.loginView()
	}

	var row []string
	if m.historyVisible() {
		row = append(row, m.histPanel.View(m.hist.Loading()))
	}
	row = append(row, m.mainView())
	if m.refsVisible() {
		row = append(row, m.refsPanel.View(m.conv.Loading()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		lipgloss.JoinHorizontal(lipgloss.Top, row...),
		m.statusView(),
	)
}

func (m *Model) loginView() string {
	toasts := components.RenderToasts(m.theme, m.toasts.Toasts(), m.width)
	h := m.height
	if toasts != "" {
		h -= lipgloss.Height(toasts)
	}
	form := m.login.View(m.width, h)
	if toasts == "" {
		return form
	}
	return lipgloss.JoinVertical(lipgloss.Left, form, toasts)
}

func (m *Model) headerView() string {
	brand := m.theme.HeaderBrand.Render("WITNESS LENS")

	title := ""
	if id := m.conv.ConversationID(); id != "" {
		conv, ok := m.hist.Get(id)
		if !ok {
			conv = model.Conversation{ID: id}
		}
		title = conv.DisplayTitle()
	}

	var link string
	switch {
	case m.legacy():
		link = m.theme.Muted.Render("legacy")
	case m.connected:
		link = m.theme.Connected.Render("● online")
	default:
		link = m.theme.Offline.Render("○ connecting")
	}
	user := m.theme.Muted.Render(m.sess.UserID())

	right := user + "  " + link
	avail := m.width - 2 - lipgloss.Width(brand) - lipgloss.Width(right) - 4
	if title != "" && avail > 3 {
		title = "  " + m.theme.HeaderTitle.Render(util.TruncateWidth(title, avail))
	} else {
		title = ""
	}
	left := brand + title
	gap := max(m.width-2-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return m.theme.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) mainView() string {
	width := m.mainWidth()

	var body string
	switch {
	case m.calendarOpen:
		body = m.calendarView(width, m.viewport.Height)
	case m.conv.ConversationID() == "":
		body = components.RenderWelcome(m.theme, m.sess.UserID(), width, m.viewport.Height)
	default:
		body = m.viewport.View()
	}
	body = lipgloss.NewStyle().Width(width).Height(m.viewport.Height).MaxHeight(m.viewport.Height).Render(body)

	parts := []string{body}
	if toasts := components.RenderToasts(m.theme, m.toasts.Toasts(), width); toasts != "" {
		parts = append(parts, toasts)
	}
	parts = append(parts, m.inputView(width))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) calendarView(width, height int) string {
	year, month := m.cal.Month()
	box := m.calView.View(year, month, m.cal.IsHighlighted, m.cal.Loading())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) inputView(width int) string {
	var send string
	switch {
	case m.conv.Waiting():
		send = m.theme.InputDisabled.Render("waiting")
	case m.canSend():
		send = m.theme.ShortcutKey.Render("[send]")
	default:
		send = m.theme.InputDisabled.Render("[send]")
	}
	line := m.input.View()
	gap := max(width-lipgloss.Width(line)-lipgloss.Width(send), 1)
	return m.theme.InputContainer.Width(width).Render(line + strings.Repeat(" ", gap) + send)
}

func (m *Model) statusView() string {
	var content string
	switch {
	case m.confirmDelete != "":
		conv, _ := m.hist.Get(m.confirmDelete)
		name := conv.DisplayTitle()
		content = m.theme.Offline.Render(fmt.Sprintf("Delete %q? ", util.TruncateRunes(name, 40))) +
			m.theme.ShortcutKey.Render("y") + m.theme.ShortcutDsc.Render(" confirm  any other key cancels")
	case m.calendarOpen:
		content = m.shortcuts([][2]string{
			{"arrows", "move"}, {"enter", "open day"}, {"[ ]", "month"}, {"esc", "close"},
		})
	default:
		var pairs [][2]string
		for _, b := range m.keys.ShortHelp() {
			pairs = append(pairs, [2]string{b.Help().Key, b.Help().Desc})
		}
		content = m.shortcuts(pairs)
	}
	return m.theme.StatusBar.Width(m.width).MaxWidth(m.width).MaxHeight(1).Render(content)
}

func (m *Model) shortcuts(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, m.theme.ShortcutKey.Render(p[0])+" "+m.theme.ShortcutDsc.Render(p[1]))
	}
	if m.theme.Layout() == styles.LayoutNarrow && len(parts) > 4 {
		parts = parts[:4]
	}
	return strings.Join(parts, "  ")
}
