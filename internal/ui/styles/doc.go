// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles is the terminal theme of witness-lens.
//
// Colors are lipgloss.AdaptiveColor values so the same palette works on
// light and dark terminals. NewTheme detects the background with termenv
// unless the configuration forces one.
//
// # Usage
//
//	theme := styles.NewTheme("auto")
//	theme.SetSize(width, height)
//	bubble := theme.UserBubble.Render(text)
package styles
