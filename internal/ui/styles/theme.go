// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components of the chat view.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Header and status line
	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	Connected   lipgloss.Style
	Offline     lipgloss.Style
	ShortcutKey lipgloss.Style
	ShortcutDsc lipgloss.Style

	// Messages
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	RoleLabel       lipgloss.Style
	SkeletonBlock   lipgloss.Style
	WaitingDots     lipgloss.Style
	Welcome         lipgloss.Style
	WelcomeTitle    lipgloss.Style

	// Input
	InputContainer lipgloss.Style
	InputDisabled  lipgloss.Style

	// Side panels
	Panel         lipgloss.Style
	PanelFocused  lipgloss.Style
	PanelTitle    lipgloss.Style
	HistoryItem   lipgloss.Style
	HistoryActive lipgloss.Style
	Reference     lipgloss.Style
	Muted         lipgloss.Style

	// Calendar overlay
	CalendarBox       lipgloss.Style
	CalendarDay       lipgloss.Style
	CalendarHighlight lipgloss.Style
	CalendarCursor    lipgloss.Style

	// Toasts
	ToastError lipgloss.Style
	ToastInfo  lipgloss.Style

	// Login form
	LoginBox   lipgloss.Style
	LoginLabel lipgloss.Style
}

// NewTheme creates a theme. mode is "auto", "dark" or "light"; auto asks the
// terminal for its background color.
func NewTheme(mode string) *Theme {
	profile := termenv.ColorProfile()
	isDark := true
	switch mode {
	case ModeLight:
		isDark = false
	case ModeDark:
	default:
		isDark = termenv.HasDarkBackground()
	}
	if mode == ModeLight || mode == ModeDark {
		lipgloss.SetHasDarkBackground(isDark)
	}

	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// GlamourStyle returns the name of the glamour style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.ColorProfile == termenv.Ascii {
		return "notty"
	}
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Indigo)
	t.HeaderTitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.Connected = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	t.Offline = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Teal).Bold(true)
	t.ShortcutDsc = lipgloss.NewStyle().Foreground(TextMuted)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.RoleLabel = lipgloss.NewStyle().
		Foreground(TextMuted).
		Bold(true)
	t.SkeletonBlock = lipgloss.NewStyle().
		Foreground(Skeleton)
	t.WaitingDots = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)
	t.Welcome = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Align(lipgloss.Center)
	t.WelcomeTitle = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.InputDisabled = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)
	t.PanelFocused = t.Panel.
		BorderForeground(Indigo)
	t.PanelTitle = lipgloss.NewStyle().
		Foreground(Indigo).
		Bold(true).
		MarginBottom(1)
	t.HistoryItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.HistoryActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Indigo).
		Bold(true)
	t.Reference = lipgloss.NewStyle().
		Foreground(Teal).
		Underline(true)
	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.CalendarBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Indigo).
		Padding(0, 2)
	t.CalendarDay = lipgloss.NewStyle().
		Foreground(TextSecondary)
	t.CalendarHighlight = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Emerald).
		Bold(true)
	t.CalendarCursor = lipgloss.NewStyle().
		Reverse(true)

	t.ToastError = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Rose).
		Padding(0, 1)
	t.ToastInfo = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Teal).
		Padding(0, 1)

	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Indigo).
		Padding(1, 3)
	t.LoginLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// LayoutMode is the responsive layout chosen from the terminal width.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 80 columns, panels hidden
	LayoutMedium                   // 80-119 columns, history only
	LayoutWide                     // >= 120 columns, history and references
)

// Layout returns the layout mode for the current width.
func (t *Theme) Layout() LayoutMode {
	switch {
	case t.Width < 80:
		return LayoutNarrow
	case t.Width < 120:
		return LayoutMedium
	default:
		return LayoutWide
	}
}

// PanelWidth returns the outer width of a side panel.
func (t *Theme) PanelWidth() int {
	if t.Layout() == LayoutWide {
		return 32
	}
	return 28
}
