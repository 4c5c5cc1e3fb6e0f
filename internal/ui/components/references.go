// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/ui/styles"
	"github.com/jeranaias/witness-lens/internal/util"
)

// ReferencesPanel is the board listing the documents the answers cite. The
// caller passes already de-duplicated references.
type ReferencesPanel struct {
	theme   *styles.Theme
	refs    []model.Reference
	cursor  int
	focused bool
	width   int
	height  int
}

// NewReferencesPanel creates an empty board.
func NewReferencesPanel(theme *styles.Theme) *ReferencesPanel {
	return &ReferencesPanel{theme: theme}
}

// SetSize sets the outer size of the panel.
func (p *ReferencesPanel) SetSize(width, height int) {
	p.width, p.height = width, height
}

// SetReferences replaces the listed references, keeping the cursor in range.
func (p *ReferencesPanel) SetReferences(refs []model.Reference) {
	p.refs = refs
	if p.cursor >= len(refs) {
		p.cursor = max(len(refs)-1, 0)
	}
}

func (p *ReferencesPanel) Focus()        { p.focused = true }
func (p *ReferencesPanel) Blur()         { p.focused = false }
func (p *ReferencesPanel) Focused() bool { return p.focused }

// Up moves the cursor up.
func (p *ReferencesPanel) Up() {
	if p.cursor > 0 {
		p.cursor--
	}
}

// Down moves the cursor down.
func (p *ReferencesPanel) Down() {
	if p.cursor < len(p.refs)-1 {
		p.cursor++
	}
}

// Selected returns the reference under the cursor.
func (p *ReferencesPanel) Selected() (model.Reference, bool) {
	if len(p.refs) == 0 {
		return model.Reference{}, false
	}
	return p.refs[p.cursor], true
}

// View draws the board; loading shows skeleton rows.
func (p *ReferencesPanel) View(loading bool) string {
	style := p.theme.Panel
	if p.focused {
		style = p.theme.PanelFocused
	}
	inner := max(p.width-4, 1)

	var body string
	switch {
	case loading:
		body = SkeletonLines(p.theme, 4, inner)
	case len(p.refs) == 0:
		body = p.theme.Muted.Render("No references.")
	default:
		lines := make([]string, 0, len(p.refs))
		for i, r := range p.refs {
			marker := "  "
			if p.focused && i == p.cursor {
				marker = "> "
			}
			name := util.TruncateWidth(r.DisplayName, inner-4)
			if r.HasPreview() {
				name += " " + p.theme.Muted.Render("[img]")
			}
			lines = append(lines, marker+p.theme.Reference.Render(name))
		}
		body = strings.Join(lines, "\n")
	}
	content := lipgloss.JoinVertical(lipgloss.Left, p.theme.PanelTitle.Render("References"), body)
	return style.Width(max(p.width-2, 1)).Height(max(p.height-2, 1)).Render(content)
}
