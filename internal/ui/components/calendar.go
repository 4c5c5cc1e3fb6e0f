// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/calendar"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

// CalendarView draws the planning overlay: a month grid with highlighted
// days, a day cursor, and the item list of the opened day.
type CalendarView struct {
	theme  *styles.Theme
	cursor int

	// Opened day; nil items means the day modal is closed.
	openDay int
	items   []string
}

// NewCalendarView creates the overlay with the cursor on day.
func NewCalendarView(theme *styles.Theme, day int) *CalendarView {
	return &CalendarView{theme: theme, cursor: max(day, 1)}
}

// Cursor returns the selected day.
func (c *CalendarView) Cursor() int { return c.cursor }

// MoveCursor moves the cursor by delta days, clamped to the month.
func (c *CalendarView) MoveCursor(delta, daysInMonth int) {
	c.cursor += delta
	if c.cursor < 1 {
		c.cursor = 1
	}
	if c.cursor > daysInMonth {
		c.cursor = daysInMonth
	}
}

// ClampCursor keeps the cursor inside a month after switching months.
func (c *CalendarView) ClampCursor(daysInMonth int) {
	c.MoveCursor(0, daysInMonth)
}

// OpenDay shows the items of a day. An empty list leaves the modal closed.
func (c *CalendarView) OpenDay(day int, items []string) bool {
	if len(items) == 0 {
		c.CloseDay()
		return false
	}
	c.openDay, c.items = day, items
	return true
}

// CloseDay closes the day modal.
func (c *CalendarView) CloseDay() {
	c.openDay, c.items = 0, nil
}

// DayOpen reports whether the day modal is shown.
func (c *CalendarView) DayOpen() bool { return c.items != nil }

// View draws the month. highlighted reports days with planned items.
func (c *CalendarView) View(year, month int, highlighted func(int) bool, loading bool) string {
	title := time.Month(month).String() + " " + fmt.Sprint(year)
	if loading {
		title += "  " + c.theme.Muted.Render("loading...")
	}

	var sb strings.Builder
	sb.WriteString(c.theme.Muted.Render(" Su Mo Tu We Th Fr Sa") + "\n")
	for _, week := range calendar.Grid(year, month) {
		for _, d := range week {
			if d == 0 {
				sb.WriteString("   ")
				continue
			}
			cell := fmt.Sprintf("%3d", d)
			style := c.theme.CalendarDay
			if highlighted(d) {
				style = c.theme.CalendarHighlight
			}
			if d == c.cursor {
				style = style.Inherit(c.theme.CalendarCursor)
			}
			sb.WriteString(style.Render(cell))
		}
		sb.WriteString("\n")
	}

	parts := []string{c.theme.PanelTitle.Render(title), strings.TrimRight(sb.String(), "\n")}
	if c.DayOpen() {
		lines := make([]string, 0, len(c.items)+1)
		lines = append(lines, c.theme.LoginLabel.Render(fmt.Sprintf("%s %d", time.Month(month).String(), c.openDay)))
		for _, it := range c.items {
			lines = append(lines, "• "+it)
		}
		parts = append(parts, "", strings.Join(lines, "\n"))
	}
	parts = append(parts, "", c.theme.Muted.Render("←/→ day  ↑/↓ week  [/] month  enter open  esc close"))
	return c.theme.CalendarBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
