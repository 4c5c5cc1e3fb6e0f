// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/ui/styles"
	"github.com/jeranaias/witness-lens/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// ToastKind is the type of a toast notification.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastError
)

// DefaultErrorToastDuration is how long an error toast stays up.
const DefaultErrorToastDuration = 10 * time.Second

// InfoToastDuration is how long an info toast stays up.
const InfoToastDuration = 4 * time.Second

// maxToasts caps the visible stack; older toasts are dropped.
const maxToasts = 4

// Toast is a non-blocking notification that dismisses itself.
type Toast struct {
	ID        int
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// Expired reports whether the toast should be gone at now.
func (t Toast) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) >= t.Duration
}

// =============================================================================
// TOAST MANAGER
// =============================================================================

// ToastManager holds the visible toasts, newest first.
type ToastManager struct {
	mu            sync.Mutex
	toasts        []Toast
	nextID        int
	errorDuration time.Duration
	now           func() time.Time
}

// NewToastManager creates a manager. Error toasts dismiss after
// errorDuration; zero selects DefaultErrorToastDuration.
func NewToastManager(errorDuration time.Duration) *ToastManager {
	if errorDuration <= 0 {
		errorDuration = DefaultErrorToastDuration
	}
	return &ToastManager{nextID: 1, errorDuration: errorDuration, now: time.Now}
}

func (m *ToastManager) add(kind ToastKind, message string, d time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := Toast{ID: m.nextID, Message: message, Kind: kind, CreatedAt: m.now(), Duration: d}
	m.nextID++
	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[:maxToasts]
	}
	return t.ID
}

// AddError shows an error toast and returns its id.
func (m *ToastManager) AddError(message string) int {
	return m.add(ToastError, message, m.errorDuration)
}

// AddInfo shows an info toast and returns its id.
func (m *ToastManager) AddInfo(message string) int {
	return m.add(ToastInfo, message, InfoToastDuration)
}

// Dismiss removes a toast by id.
func (m *ToastManager) Dismiss(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// DismissAll removes every toast.
func (m *ToastManager) DismissAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toasts = nil
}

// Tick drops expired toasts and reports whether any remain.
func (m *ToastManager) Tick(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	active := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired(now) {
			active = append(active, t)
		}
	}
	m.toasts = active
	return len(m.toasts) > 0
}

// Toasts returns a copy of the visible toasts.
func (m *ToastManager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Toast, len(m.toasts))
	copy(out, m.toasts)
	return out
}

// =============================================================================
// TOAST MESSAGES
// =============================================================================

// ToastTickMsg drives expiry of toasts.
type ToastTickMsg struct {
	Time time.Time
}

// ToastTickCmd ticks toasts every 250ms.
func ToastTickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return ToastTickMsg{Time: t}
	})
}

// =============================================================================
// TOAST RENDERING
// =============================================================================

// RenderToasts stacks the toasts vertically, right-aligned within width.
func RenderToasts(theme *styles.Theme, toasts []Toast, width int) string {
	if len(toasts) == 0 {
		return ""
	}
	maxWidth := 60
	if width > 0 && width-4 < maxWidth {
		maxWidth = width - 4
	}
	if maxWidth < 20 {
		maxWidth = 20
	}

	rendered := make([]string, 0, len(toasts))
	for _, t := range toasts {
		style, icon := theme.ToastInfo, styles.StatusIndicators.Info
		if t.Kind == ToastError {
			style, icon = theme.ToastError, styles.StatusIndicators.Error
		}
		text := util.TruncateWidth(icon+" "+t.Message, maxWidth-2)
		rendered = append(rendered, style.Render(text))
	}
	stack := lipgloss.JoinVertical(lipgloss.Right, rendered...)
	if width <= 0 {
		return stack
	}
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, stack)
}
