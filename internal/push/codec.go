// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jeranaias/witness-lens/internal/model"
	"github.com/pkg/errors"
)

var (
	// ErrUnknownEvent is returned for event names the client does not handle.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrSchemaConflict is returned when a payload carries both the legacy and
	// the canonical spelling of a field with different values.
	ErrSchemaConflict = model.ErrSchemaConflict
	// ErrMissingField is returned when a required field is absent or empty.
	ErrMissingField = errors.New("missing required field")
)

// envelope is the frame format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventAliases maps legacy event names to canonical ones.
var eventAliases = map[string]string{
	"send":              EventMessage,
	"referenceSnapshot": EventReferencesSnapshot,
}

// fieldAliases maps legacy field names to canonical ones.
var fieldAliases = map[string]string{
	"_id":         "id",
	"annotations": "references",
	"text":        "snapshot",
}

// Decode parses one inbound frame into a typed event.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	name := env.Event
	if canonical, ok := eventAliases[name]; ok {
		name = canonical
	}

	fields, err := normalize(env.Data)
	if err != nil {
		return nil, errors.Wrapf(err, "event %s", name)
	}

	switch name {
	case EventNewConversation:
		var conv model.Conversation
		if err := remarshal(fields, &conv); err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if conv.ID == "" {
			return nil, errors.Wrapf(ErrMissingField, "event %s: id", name)
		}
		return NewConversation{Conversation: conv}, nil

	case EventMetadataUpdate:
		var upd MetadataUpdate
		if err := remarshal(fields, &upd); err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if upd.ID == "" {
			return nil, errors.Wrapf(ErrMissingField, "event %s: id", name)
		}
		return upd, nil

	case EventMessage:
		var delta MessageDelta
		refs, err := takeReferences(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if err := remarshal(fields, &delta); err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if delta.ConversationID == "" {
			return nil, errors.Wrapf(ErrMissingField, "event %s: conversationId", name)
		}
		delta.References = refs
		return delta, nil

	case EventReferencesSnapshot:
		var snap ReferencesSnapshot
		refs, err := takeReferences(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if err := remarshal(fields, &snap); err != nil {
			return nil, errors.Wrapf(err, "event %s", name)
		}
		if snap.ConversationID == "" {
			return nil, errors.Wrapf(ErrMissingField, "event %s: conversationId", name)
		}
		snap.References = refs
		return snap, nil
	}

	return nil, errors.Wrapf(ErrUnknownEvent, "%q", env.Event)
}

// normalize rewrites legacy field names to canonical ones.
func normalize(data json.RawMessage) (map[string]json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.Wrap(err, "decode payload")
	}

	for legacy, canonical := range fieldAliases {
		old, hasOld := fields[legacy]
		if !hasOld {
			continue
		}
		delete(fields, legacy)
		cur, hasCur := fields[canonical]
		if !hasCur {
			fields[canonical] = old
			continue
		}
		if !sameJSON(old, cur) {
			return nil, errors.Wrapf(ErrSchemaConflict, "%s vs %s", legacy, canonical)
		}
	}
	return fields, nil
}

// takeReferences removes and decodes the references field, which may be a
// string-encoded array.
func takeReferences(fields map[string]json.RawMessage) ([]model.Reference, error) {
	raw, ok := fields["references"]
	if !ok {
		return nil, nil
	}
	delete(fields, "references")
	return model.UnmarshalReferences(raw)
}

func remarshal(fields map[string]json.RawMessage, out interface{}) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func sameJSON(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if json.Compact(&ca, a) != nil || json.Compact(&cb, b) != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}

// Encode builds an outbound frame.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(envelope{Event: event, Data: data})
}
