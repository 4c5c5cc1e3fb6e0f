// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

const welcomeArt = `
 _    _ _ _
| |  | (_) |
| |  | |_| |_ _ __   ___  ___ ___
| |/\| | | __| '_ \ / _ \/ __/ __|
\  /\  / | |_| | | |  __/\__ \__ \
 \/  \/|_|\__|_| |_|\___||___/___/
            L E N S`

// RenderWelcome draws the screen shown when no conversation is selected.
func RenderWelcome(theme *styles.Theme, user string, width, height int) string {
	greeting := "Ask a question to start a new conversation."
	if user != "" {
		greeting = "Hello " + user + ". " + greeting
	}
	hints := theme.Muted.Render("ctrl+o history  ctrl+r references  ctrl+k calendar  ctrl+n new")

	body := lipgloss.JoinVertical(lipgloss.Center,
		theme.WelcomeTitle.Render(welcomeArt),
		"",
		theme.Welcome.Render(greeting),
		"",
		hints,
	)
	if width <= 0 || height <= 0 {
		return body
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, body)
}
