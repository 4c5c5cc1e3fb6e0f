// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeForcedModes(t *testing.T) {
	assert.True(t, NewTheme(ModeDark).IsDark)
	assert.False(t, NewTheme(ModeLight).IsDark)
}

func TestGlamourStyle(t *testing.T) {
	tests := []struct {
		name    string
		profile termenv.Profile
		dark    bool
		want    string
	}{
		{"ascii", termenv.Ascii, true, "notty"},
		{"dark", termenv.TrueColor, true, "dark"},
		{"light", termenv.ANSI256, false, "light"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := &Theme{ColorProfile: tt.profile, IsDark: tt.dark}
			assert.Equal(t, tt.want, th.GlamourStyle())
		})
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
		panel int
	}{
		{40, LayoutNarrow, 28},
		{79, LayoutNarrow, 28},
		{80, LayoutMedium, 28},
		{119, LayoutMedium, 28},
		{120, LayoutWide, 32},
	}
	th := NewTheme(ModeDark)
	for _, tt := range tests {
		th.SetSize(tt.width, 40)
		assert.Equal(t, tt.want, th.Layout(), "width %d", tt.width)
		assert.Equal(t, tt.panel, th.PanelWidth(), "width %d", tt.width)
	}
}

func TestThemeStylesRender(t *testing.T) {
	th := NewTheme(ModeDark)
	assert.Contains(t, th.UserBubble.Render("hello"), "hello")
	assert.Contains(t, th.ToastError.Render("boom"), "boom")
	assert.Contains(t, StatusIndicators.Error, "X")
}
