// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_FanOutInOrder(t *testing.T) {
	h := NewHub()
	a := h.Subscribe(8)
	b := h.Subscribe(8)
	defer a.Close()
	defer b.Close()

	for _, s := range []string{"a", "ab", "abc"} {
		h.Publish(MessageDelta{ConversationID: "c1", Snapshot: s})
	}

	for _, sub := range []*Subscription{a, b} {
		for _, want := range []string{"a", "ab", "abc"} {
			ev := <-sub.Events()
			require.Equal(t, want, ev.(MessageDelta).Snapshot)
		}
	}
}

func TestHub_DropsOldestWhenFull(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(2)
	defer s.Close()

	h.Publish(MetadataUpdate{ID: "1"})
	h.Publish(MetadataUpdate{ID: "2"})
	h.Publish(MetadataUpdate{ID: "3"})

	require.Equal(t, 1, s.Dropped())
	require.Equal(t, "2", (<-s.Events()).(MetadataUpdate).ID)
	require.Equal(t, "3", (<-s.Events()).(MetadataUpdate).ID)
}

func TestSubscription_Close(t *testing.T) {
	h := NewHub()
	s := h.Subscribe(1)
	require.Equal(t, 1, h.Len())

	s.Close()
	s.Close()

	require.Equal(t, 0, h.Len())
	_, ok := <-s.Events()
	require.False(t, ok)

	// Publishing after close must not panic.
	h.Publish(StatusEvent{Connected: true})
}
