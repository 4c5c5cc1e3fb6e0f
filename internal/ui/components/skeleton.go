// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

const skeletonRune = "░"

// skeletonWidths gives the loading blocks uneven lengths so they read as text.
var skeletonWidths = []int{70, 45, 60, 35, 55}

// SkeletonLines renders n grey bars no wider than width.
func SkeletonLines(theme *styles.Theme, n, width int) string {
	if n <= 0 || width <= 0 {
		return ""
	}
	lines := make([]string, n)
	for i := range lines {
		w := width * skeletonWidths[i%len(skeletonWidths)] / 100
		if w < 1 {
			w = 1
		}
		lines[i] = theme.SkeletonBlock.Render(strings.Repeat(skeletonRune, w))
	}
	return strings.Join(lines, "\n")
}

// RenderSkeletonMessages renders loading placeholders in the shape of message
// bubbles, aligned by role.
func RenderSkeletonMessages(theme *styles.Theme, placeholders []model.Message, width int) string {
	bubbleWidth := bubbleWidth(width)
	parts := make([]string, 0, len(placeholders))
	for i, p := range placeholders {
		style := theme.AssistantBubble
		if p.IsUser() {
			style = theme.UserBubble
		}
		body := SkeletonLines(theme, 2+i%2, bubbleWidth-4)
		bubble := style.BorderForeground(styles.Skeleton).Render(body)
		parts = append(parts, alignBubble(bubble, p.IsUser(), width))
	}
	return strings.Join(parts, "\n\n")
}

func alignBubble(bubble string, right bool, width int) string {
	if width <= 0 {
		return bubble
	}
	pos := lipgloss.Left
	if right {
		pos = lipgloss.Right
	}
	return lipgloss.PlaceHorizontal(width, pos, bubble)
}

// bubbleWidth is the outer width of a message bubble in a column of width.
func bubbleWidth(width int) int {
	w := width * 3 / 4
	if w < 20 {
		w = width
	}
	if w < 10 {
		w = 10
	}
	return w
}
