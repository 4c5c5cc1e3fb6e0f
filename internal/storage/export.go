// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/jeranaias/witness-lens/internal/util"
)

// Transcript is a conversation with its messages and references, as written
// by the export command.
type Transcript struct {
	Conversation model.Conversation `json:"conversation"`
	Messages     []model.Message    `json:"messages"`
	References   []model.Reference  `json:"references,omitempty"`
}

// ExportMarkdown renders the transcript as Markdown.
func (t Transcript) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# " + t.Conversation.DisplayTitle() + "\n\n")
	if t.Conversation.ID != "" {
		sb.WriteString("Conversation: `" + t.Conversation.ID + "`\n\n")
	}
	if !t.Conversation.CreatedAt.IsZero() {
		sb.WriteString("Created: " + t.Conversation.CreatedAt.Format(time.RFC3339) + "\n\n")
	}
	sb.WriteString("---\n\n")

	for _, msg := range t.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "**:\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	if refs := model.DisplayReferences(t.References); len(refs) > 0 {
		sb.WriteString("## References\n\n")
		for _, r := range refs {
			if r.DownloadURL != "" {
				sb.WriteString("- [" + r.DisplayName + "](" + r.DownloadURL + ")\n")
			} else {
				sb.WriteString("- " + r.DisplayName + "\n")
			}
		}
	}
	return sb.String()
}

// ExportJSON renders the transcript as indented JSON.
func (t Transcript) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FormatConversationList renders conversations as a fixed-width table.
func FormatConversationList(convs []model.Conversation) string {
	if len(convs) == 0 {
		return "No conversations found.\n"
	}

	var sb strings.Builder
	sb.WriteString(util.PadWidth("ID", 36) + "  " + util.PadWidth("Created", 16) + "  Title\n")
	sb.WriteString(strings.Repeat("-", 36+2+16+2+30) + "\n")
	for _, c := range convs {
		created := ""
		if !c.CreatedAt.IsZero() {
			created = c.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		sb.WriteString(util.PadWidth(c.ID, 36) + "  " +
			util.PadWidth(created, 16) + "  " +
			util.TruncateWidth(util.NormalizeTitle(c.Title, model.DefaultTitle), 50) + "\n")
	}
	return sb.String()
}
