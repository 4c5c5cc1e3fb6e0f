// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
	"github.com/jeranaias/witness-lens/internal/util"
)

// =============================================================================
// HISTORY ITEMS
// =============================================================================

type historyItem struct {
	conv   model.Conversation
	shown  string // title as currently drawn, shorter while typing
	active bool
}

func (i historyItem) FilterValue() string { return i.conv.DisplayTitle() }

func (i historyItem) Title() string {
	title := i.shown
	if title == "" {
		title = i.conv.DisplayTitle()
	}
	if i.active {
		return "● " + title
	}
	return title
}

func (i historyItem) Description() string {
	if i.conv.CreatedAt.IsZero() {
		return ""
	}
	return i.conv.CreatedAt.Local().Format("Jan 2, 15:04")
}

// =============================================================================
// HISTORY PANEL
// =============================================================================

// TypingTickMsg advances the title typing animation of the history panel.
type TypingTickMsg struct{}

const typingInterval = 60 * time.Millisecond

func typingTick() tea.Cmd {
	return tea.Tick(typingInterval, func(time.Time) tea.Msg { return TypingTickMsg{} })
}

// HistoryPanel is the side panel listing the user's conversations. When the
// server renames a conversation the new title is typed in word by word.
type HistoryPanel struct {
	theme   *styles.Theme
	list    list.Model
	focused bool
	width   int
	height  int

	titles map[string]string   // last synced title per id
	typing map[string][]string // remaining frames per id
}

// NewHistoryPanel creates an empty panel.
func NewHistoryPanel(theme *styles.Theme) *HistoryPanel {
	d := list.NewDefaultDelegate()
	d.SetSpacing(0)
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(styles.Indigo).BorderForeground(styles.Indigo)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(styles.TextSecondary).BorderForeground(styles.Indigo)

	l := list.New(nil, d, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()

	return &HistoryPanel{
		theme:  theme,
		list:   l,
		titles: make(map[string]string),
		typing: make(map[string][]string),
	}
}

// SetSize sets the outer size of the panel.
func (p *HistoryPanel) SetSize(width, height int) {
	p.width, p.height = width, height
	// border, padding and title line
	p.list.SetSize(max(width-4, 1), max(height-4, 1))
}

// Focus gives the panel keyboard focus.
func (p *HistoryPanel) Focus() { p.focused = true }

// Blur removes keyboard focus.
func (p *HistoryPanel) Blur() { p.focused = false }

// Focused reports whether the panel has keyboard focus.
func (p *HistoryPanel) Focused() bool { return p.focused }

// Filtering reports whether the user is typing a filter; keys then belong
// to the filter input.
func (p *HistoryPanel) Filtering() bool {
	return p.list.SettingFilter()
}

// Sync replaces the listed conversations. Titles that changed from the
// default title start the typing animation.
func (p *HistoryPanel) Sync(convs []model.Conversation, activeID string) tea.Cmd {
	animate := false
	seen := make(map[string]bool, len(convs))
	for _, c := range convs {
		seen[c.ID] = true
		prev, known := p.titles[c.ID]
		if known && prev != c.Title && (prev == "" || prev == model.DefaultTitle) && c.Title != "" {
			p.typing[c.ID] = util.Words(c.Title)
			animate = true
		}
		p.titles[c.ID] = c.Title
	}
	for id := range p.titles {
		if !seen[id] {
			delete(p.titles, id)
			delete(p.typing, id)
		}
	}

	cmd := p.list.SetItems(p.items(convs, activeID))
	if animate {
		return tea.Batch(cmd, typingTick())
	}
	return cmd
}

func (p *HistoryPanel) items(convs []model.Conversation, activeID string) []list.Item {
	items := make([]list.Item, 0, len(convs))
	for _, c := range convs {
		it := historyItem{conv: c, active: c.ID == activeID}
		if frames := p.typing[c.ID]; len(frames) > 0 {
			it.shown = frames[0]
		}
		items = append(items, it)
	}
	return items
}

// Typing reports whether a title animation is running.
func (p *HistoryPanel) Typing() bool {
	return len(p.typing) > 0
}

// Update handles navigation keys while focused and typing ticks.
func (p *HistoryPanel) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(TypingTickMsg); ok {
		return p.advanceTyping()
	}
	if !p.focused {
		return nil
	}
	var cmd tea.Cmd
	p.list, cmd = p.list.Update(msg)
	return cmd
}

func (p *HistoryPanel) advanceTyping() tea.Cmd {
	if len(p.typing) == 0 {
		return nil
	}
	for id, frames := range p.typing {
		if len(frames) <= 1 {
			delete(p.typing, id)
		} else {
			p.typing[id] = frames[1:]
		}
	}
	items := p.list.Items()
	for i, raw := range items {
		it := raw.(historyItem)
		it.shown = ""
		if frames := p.typing[it.conv.ID]; len(frames) > 0 {
			it.shown = frames[0]
		}
		items[i] = it
	}
	cmd := p.list.SetItems(items)
	if len(p.typing) > 0 {
		return tea.Batch(cmd, typingTick())
	}
	return cmd
}

// Selected returns the highlighted conversation.
func (p *HistoryPanel) Selected() (model.Conversation, bool) {
	it, ok := p.list.SelectedItem().(historyItem)
	if !ok {
		return model.Conversation{}, false
	}
	return it.conv, true
}

// View draws the panel. While loading, skeleton rows replace the list.
func (p *HistoryPanel) View(loading bool) string {
	style := p.theme.Panel
	if p.focused {
		style = p.theme.PanelFocused
	}
	inner := max(p.width-4, 1)

	var body string
	switch {
	case loading:
		body = SkeletonLines(p.theme, max(p.height/3, 3), inner)
	case len(p.list.Items()) == 0:
		body = p.theme.Muted.Render("No conversations yet.")
	default:
		body = p.list.View()
	}
	content := lipgloss.JoinVertical(lipgloss.Left, p.theme.PanelTitle.Render("History"), body)
	return style.Width(max(p.width-2, 1)).Height(max(p.height-2, 1)).Render(content)
}
