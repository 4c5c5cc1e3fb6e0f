// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

// =============================================================================
// MESSAGE RENDERER
// =============================================================================

// MessageRenderer draws message bubbles. Assistant content is Markdown and is
// rendered with glamour; user content is shown as typed.
type MessageRenderer struct {
	theme    *styles.Theme
	markdown bool

	// glamour renderers are built per wrap width
	width int
	md    *glamour.TermRenderer
}

// NewMessageRenderer creates a renderer. With markdown off assistant content
// is shown as plain text.
func NewMessageRenderer(theme *styles.Theme, markdown bool) *MessageRenderer {
	return &MessageRenderer{theme: theme, markdown: markdown}
}

func (r *MessageRenderer) renderer(width int) *glamour.TermRenderer {
	if r.md != nil && r.width == width {
		return r.md
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(r.theme.GlamourStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		log.Warn().Err(err).Str("component", "ui").Msg("markdown renderer unavailable")
		r.markdown = false
		return nil
	}
	r.md, r.width = md, width
	return md
}

// Markdown renders assistant content at the given wrap width. It falls back
// to the raw text when rendering fails.
func (r *MessageRenderer) Markdown(content string, width int) string {
	if !r.markdown || content == "" {
		return wrapText(content, width)
	}
	md := r.renderer(width)
	if md == nil {
		return wrapText(content, width)
	}
	out, err := md.Render(content)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return wrapText(content, width)
	}
	return strings.Trim(out, "\n")
}

// Render draws one message in a column of width.
func (r *MessageRenderer) Render(msg model.Message, width int) string {
	bw := bubbleWidth(width)
	inner := bw - 4

	var body string
	style := r.theme.AssistantBubble
	if msg.IsUser() {
		style = r.theme.UserBubble
		body = wrapText(msg.Content, inner)
	} else {
		body = r.Markdown(msg.Content, inner)
		if msg.IsStreaming() && body == "" {
			body = r.theme.WaitingDots.Render("...")
		}
	}
	if lipgloss.Width(body) > inner {
		style = style.Width(bw - 2)
	}

	label := r.theme.RoleLabel.Render(msg.Role.DisplayName())
	block := lipgloss.JoinVertical(lipgloss.Left, label, style.Render(body))
	if msg.IsUser() {
		block = lipgloss.JoinVertical(lipgloss.Right, label, style.Render(body))
	}
	return alignBubble(block, msg.IsUser(), width)
}

// RenderList draws a whole message list separated by blank lines.
func (r *MessageRenderer) RenderList(msgs []model.Message, width int) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, r.Render(m, width))
	}
	return strings.Join(parts, "\n\n")
}

// =============================================================================
// WAITING INDICATOR
// =============================================================================

var waitingFrames = []string{".  ", ".. ", "...", " ..", "  .", "   "}

// RenderWaiting draws the assistant bubble with animated dots shown between
// sending a message and the first delta of the answer.
func (r *MessageRenderer) RenderWaiting(frame, width int) string {
	dots := waitingFrames[(frame%len(waitingFrames)+len(waitingFrames))%len(waitingFrames)]
	label := r.theme.RoleLabel.Render(model.RoleAssistant.DisplayName())
	bubble := r.theme.AssistantBubble.Render(r.theme.WaitingDots.Render(dots))
	return alignBubble(lipgloss.JoinVertical(lipgloss.Left, label, bubble), false, width)
}

// WaitingFrames is the number of frames in the waiting animation.
func WaitingFrames() int {
	return len(waitingFrames)
}

// wrapText wraps text at word boundaries to width columns, keeping explicit
// line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	return lipgloss.NewStyle().Width(width).Render(text)
}
