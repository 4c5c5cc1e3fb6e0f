// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// testServer upgrades every request and hands the connection to handle.
func testServer(t *testing.T, handle func(n int, r *http.Request, conn *websocket.Conn)) string {
	t.Helper()
	var conns int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handle(int(atomic.AddInt32(&conns, 1)), r, conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		URL:            url,
		PingInterval:   time.Second,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
		OutboxSize:     4,
	})
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClient_ReceivesEventsInOrder(t *testing.T) {
	url := testServer(t, func(_ int, r *http.Request, conn *websocket.Conn) {
		require.Equal(t, "alice", r.Header.Get("X-User-Id"))
		for _, s := range []string{"H", "He", "Hel"} {
			conn.WriteMessage(websocket.TextMessage,
				[]byte(`{"event":"message","data":{"conversationId":"c1","snapshot":"`+s+`"}}`))
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"typing","data":{}}`))
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"message","data":{"conversationId":"c1","snapshot":"Hello","finished":true}}`))
		conn.ReadMessage()
	})

	c := newTestClient(url)
	c.SetUser("alice")
	sub := c.Hub().Subscribe(16)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Equal(t, StatusEvent{Connected: true}, nextEvent(t, sub))
	for _, want := range []string{"H", "He", "Hel", "Hello"} {
		ev := nextEvent(t, sub).(MessageDelta)
		require.Equal(t, want, ev.Snapshot)
	}
}

func TestClient_SendAndHandshake(t *testing.T) {
	got := make(chan string, 2)
	url := testServer(t, func(_ int, _ *http.Request, conn *websocket.Conn) {
		for i := 0; i < 2; i++ {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			got <- string(frame)
		}
		conn.ReadMessage()
	})

	c := newTestClient(url)
	sub := c.Hub().Subscribe(4)
	defer sub.Close()

	require.ErrorIs(t, c.Send(SendMessage{ConversationID: "c1", Content: "Hello"}), ErrNotConnected)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)
	require.Equal(t, StatusEvent{Connected: true}, nextEvent(t, sub))

	require.NoError(t, c.Handshake("c1"))
	require.NoError(t, c.Send(SendMessage{ConversationID: "c1", Content: "Hello"}))

	require.JSONEq(t, `{"event":"conversationHandshake","data":{"conversationId":"c1"}}`, <-got)
	require.JSONEq(t, `{"event":"message","data":{"conversationId":"c1","content":"Hello"}}`, <-got)
}

func TestClient_Reconnects(t *testing.T) {
	url := testServer(t, func(n int, _ *http.Request, conn *websocket.Conn) {
		if n == 1 {
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "restart"))
			return
		}
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"event":"conversationMetadataUpdate","data":{"id":"c1","title":"After"}}`))
		conn.ReadMessage()
	})

	c := newTestClient(url)
	sub := c.Hub().Subscribe(16)
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	require.Equal(t, StatusEvent{Connected: true}, nextEvent(t, sub))
	down := nextEvent(t, sub).(StatusEvent)
	require.False(t, down.Connected)
	require.Error(t, down.Err)
	require.Equal(t, StatusEvent{Connected: true}, nextEvent(t, sub))
	require.Equal(t, "After", nextEvent(t, sub).(MetadataUpdate).Title)
}

func TestClient_QueueWhileOffline(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", OutboxSize: 1, QueueWhileOffline: true})

	require.NoError(t, c.Send(SendMessage{ConversationID: "c1", Content: "one"}))
	require.ErrorIs(t, c.Send(SendMessage{ConversationID: "c1", Content: "two"}), ErrOutboxFull)
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	c := newTestClient("ws://127.0.0.1:1")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.False(t, c.Connected())
}

func TestClient_SetUserDiscardsQueuedFrames(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1", OutboxSize: 4, QueueWhileOffline: true})
	c.SetUser("alice")

	require.NoError(t, c.Send(SendMessage{ConversationID: "c1", Content: "one"}))
	c.SetUser("alice")
	require.Len(t, c.outbox, 1, "same user keeps its frames")

	c.SetUser("bob")
	require.Empty(t, c.outbox)
}

func TestClient_NewUserConnectionGetsOnlyItsFrames(t *testing.T) {
	got := make(chan string, 2)
	url := testServer(t, func(_ int, r *http.Request, conn *websocket.Conn) {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return
		}
		got <- r.Header.Get("X-User-Id") + " " + string(frame)
		conn.ReadMessage()
	})

	c := NewClient(Config{
		URL:               url,
		PingInterval:      time.Second,
		InitialBackoff:    10 * time.Millisecond,
		OutboxSize:        4,
		QueueWhileOffline: true,
	})
	c.SetUser("alice")
	require.NoError(t, c.Send(SendMessage{ConversationID: "a1", Content: "from alice"}))
	c.SetUser("bob")
	require.NoError(t, c.Handshake("b1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	select {
	case frame := <-got:
		require.True(t, strings.HasPrefix(frame, "bob "), frame)
		require.Contains(t, frame, `"b1"`)
		require.NotContains(t, frame, "from alice")
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}
