// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/ui/styles"
)

// LoginSubmitMsg is emitted when the user submits the login form.
type LoginSubmitMsg struct {
	User     string
	Password string
}

// LoginForm is the user name and password form shown before the chat.
type LoginForm struct {
	theme    *styles.Theme
	user     textinput.Model
	password textinput.Model
	focus    int
	askPW    bool
}

// NewLoginForm creates the form with the user field focused. The password
// field is left out when askPassword is false.
func NewLoginForm(theme *styles.Theme, askPassword bool) *LoginForm {
	user := textinput.New()
	user.Placeholder = "user name"
	user.CharLimit = 64
	user.Prompt = "› "
	user.Focus()

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	pw.CharLimit = 128
	pw.Prompt = "› "

	return &LoginForm{theme: theme, user: user, password: pw, askPW: askPassword}
}

// Reset clears both fields and focuses the user field.
func (f *LoginForm) Reset() {
	f.user.Reset()
	f.password.Reset()
	f.setFocus(0)
}

func (f *LoginForm) setFocus(i int) {
	f.focus = i
	if i == 0 {
		f.user.Focus()
		f.password.Blur()
	} else {
		f.user.Blur()
		f.password.Focus()
	}
}

// Update handles typing, tab to switch fields and enter to submit.
func (f *LoginForm) Update(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch k.Type {
		case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
			if f.askPW {
				f.setFocus(1 - f.focus)
			}
			return textinput.Blink
		case tea.KeyEnter:
			if f.askPW && f.focus == 0 && f.user.Value() != "" {
				f.setFocus(1)
				return textinput.Blink
			}
			submit := LoginSubmitMsg{User: f.user.Value(), Password: f.password.Value()}
			return func() tea.Msg { return submit }
		}
	}

	var cmd tea.Cmd
	if f.focus == 0 {
		f.user, cmd = f.user.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

// Values returns the current field contents.
func (f *LoginForm) Values() (string, string) {
	return f.user.Value(), f.password.Value()
}

// View draws the form centered in width x height.
func (f *LoginForm) View(width, height int) string {
	rows := []string{
		f.theme.WelcomeTitle.Render("Witness Lens"),
		"",
		f.theme.LoginLabel.Render("User"),
		f.user.View(),
	}
	hint := "enter sign in  ctrl+c quit"
	if f.askPW {
		rows = append(rows, "", f.theme.LoginLabel.Render("Password"), f.password.View())
		hint = "tab switch field  " + hint
	}
	rows = append(rows, "", f.theme.Muted.Render(hint))
	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	box := f.theme.LoginBox.Render(form)
	if width <= 0 || height <= 0 {
		return box
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
