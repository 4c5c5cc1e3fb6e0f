// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// Reference is a supporting document attached to an answer or to the
// conversation's references board.
type Reference struct {
	ID              string `json:"id,omitempty"`
	FileID          string `json:"fileId,omitempty"`
	DownloadURL     string `json:"downloadURL"`
	DisplayName     string `json:"displayName"`
	PreviewImageURL string `json:"previewImageURL,omitempty"`
}

// HasPreview reports whether the reference carries a preview image.
func (r Reference) HasPreview() bool {
	return r.PreviewImageURL != ""
}

// DisplayReferences returns the references that can be rendered: entries
// without a display name are dropped and duplicates by display name keep
// their first occurrence. Order is preserved.
func DisplayReferences(refs []Reference) []Reference {
	if len(refs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if r.DisplayName == "" {
			continue
		}
		if _, dup := seen[r.DisplayName]; dup {
			continue
		}
		seen[r.DisplayName] = struct{}{}
		out = append(out, r)
	}
	return out
}
