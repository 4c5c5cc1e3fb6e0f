// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Hub fans events out to subscribers. Each subscriber sees events in publish
// order. Publish never blocks: a full subscriber buffer loses its oldest
// event.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	hub     *Hub
	ch      chan Event
	dropped int
}

// Subscribe registers a consumer with the given buffer size (minimum 1).
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &Subscription{hub: h, ch: make(chan Event, buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Events returns the channel events are delivered on. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel. Safe to call
// more than once.
func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.ch)
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish delivers ev to every subscriber.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- ev:
			continue
		default:
		}
		// Full: drop the oldest event to make room.
		select {
		case <-s.ch:
		default:
		}
		s.dropped++
		log.Warn().
			Str("component", "push").
			Str("event", ev.EventName()).
			Int("dropped", s.dropped).
			Msg("subscriber buffer full, dropped oldest event")
		select {
		case s.ch <- ev:
		default:
		}
	}
}

// Dropped returns how many events this subscription lost to overflow.
func (s *Subscription) Dropped() int {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()
	return s.dropped
}
