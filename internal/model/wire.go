// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Older backend revisions used "_id" for conversation ids and "annotations"
// for message references, and sometimes sent the references as a JSON string.
// The decoders below accept those spellings. A payload carrying both
// spellings with different values is rejected, for REST and push alike.

// ErrSchemaConflict is returned when a payload carries both the legacy and
// the canonical spelling of a field with different values.
var ErrSchemaConflict = errors.New("conflicting field spellings")

// UnmarshalReferences decodes a reference list that is either a JSON array
// or a string holding one. null and "" decode to nil.
func UnmarshalReferences(data []byte) ([]Reference, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, err
		}
		if inner == "" {
			return nil, nil
		}
		data = []byte(inner)
	}
	var refs []Reference
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("decode references: %w", err)
	}
	return refs, nil
}

// UnmarshalJSON accepts "annotations" as an alias of "references".
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		References  json.RawMessage `json:"references"`
		Annotations json.RawMessage `json:"annotations"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)

	raw := aux.References
	if len(raw) == 0 {
		raw = aux.Annotations
	} else if len(aux.Annotations) > 0 && !sameJSON(aux.References, aux.Annotations) {
		return errors.Wrap(ErrSchemaConflict, "annotations vs references")
	}
	refs, err := UnmarshalReferences(raw)
	if err != nil {
		return err
	}
	m.References = refs
	return nil
}

// UnmarshalJSON accepts "_id" as an alias of "id".
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	var aux struct {
		plain
		LegacyID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = Conversation(aux.plain)
	switch {
	case c.ID == "":
		c.ID = aux.LegacyID
	case aux.LegacyID != "" && aux.LegacyID != c.ID:
		return errors.Wrapf(ErrSchemaConflict, "_id %q vs id %q", aux.LegacyID, c.ID)
	}
	return nil
}

func sameJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
