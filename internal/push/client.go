// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package push implements the client side of the push channel: one websocket
// connection that streams conversation events in and carries user messages
// out.
package push

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotConnected is returned by Send while the connection is down and
	// offline queueing is disabled.
	ErrNotConnected = errors.New("push channel not connected")
	// ErrOutboxFull is returned when outgoing frames are not drained fast
	// enough.
	ErrOutboxFull = errors.New("push outbox full")
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// Config holds configuration options for the push client.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:4000/ws
	URL string

	// UserHeader names the header carrying the user id on the upgrade request.
	UserHeader string

	// PingInterval between keepalive pings (default: 30s). The read deadline
	// is twice this value.
	PingInterval time.Duration

	// InitialBackoff and MaxBackoff bound the reconnect delay (default: 1s, 5s).
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// OutboxSize is the number of frames that may wait for the writer.
	OutboxSize int

	// QueueWhileOffline lets Send queue frames while reconnecting.
	QueueWhileOffline bool

	// Dialer overrides websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		URL:            "ws://localhost:4000/ws",
		UserHeader:     "X-User-Id",
		PingInterval:   30 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		OutboxSize:     64,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client owns the push connection for one signed-in user. Run keeps it
// alive; subscribers read events from Hub.
type Client struct {
	cfg    Config
	hub    *Hub
	outbox chan []byte

	mu        sync.RWMutex
	userID    string
	connected bool
}

// NewClient creates a push client. Zero config values take defaults.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.UserHeader == "" {
		cfg.UserHeader = def.UserHeader
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = def.OutboxSize
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{
		cfg:    cfg,
		hub:    NewHub(),
		outbox: make(chan []byte, cfg.OutboxSize),
	}
}

// Hub returns the event hub fed by this client.
func (c *Client) Hub() *Hub {
	return c.hub
}

// SetUser sets the user id sent on the next connection. Frames still queued
// for a different user are discarded.
func (c *Client) SetUser(userID string) {
	c.mu.Lock()
	changed := c.userID != userID
	c.userID = userID
	c.mu.Unlock()
	if changed {
		c.drainOutbox()
	}
}

// drainOutbox discards queued frames and returns how many were dropped.
func (c *Client) drainOutbox() int {
	n := 0
	for {
		select {
		case <-c.outbox:
			n++
		default:
			if n > 0 {
				log.Debug().Str("component", "push").Int("frames", n).Msg("discarded queued frames")
			}
			return n
		}
	}
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *Client) setConnected(v bool, err error) {
	c.mu.Lock()
	changed := c.connected != v
	c.connected = v
	c.mu.Unlock()
	if changed {
		c.hub.Publish(StatusEvent{Connected: v, Err: err})
	}
}

// Send queues a user message for the writer.
func (c *Client) Send(msg SendMessage) error {
	frame, err := Encode(EventMessage, msg)
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

// Handshake announces a conversation id before its first message.
func (c *Client) Handshake(conversationID string) error {
	frame, err := Encode(EventHandshake, HandshakeMessage{ConversationID: conversationID})
	if err != nil {
		return err
	}
	return c.enqueue(frame)
}

func (c *Client) enqueue(frame []byte) error {
	if !c.Connected() && !c.cfg.QueueWhileOffline {
		return ErrNotConnected
	}
	select {
	case c.outbox <- frame:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Run connects and keeps reconnecting with exponential backoff until ctx is
// done. It returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	logger := log.With().Str("component", "push").Str("url", c.cfg.URL).Logger()
	backoff := c.cfg.InitialBackoff

	for {
		conn, err := c.dial(ctx)
		if err == nil {
			logger.Info().Msg("connected")
			backoff = c.cfg.InitialBackoff
			c.setConnected(true, nil)
			err = c.serve(ctx, conn)
			c.setConnected(false, err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn().Err(err).Dur("retry_in", backoff).Msg("push channel down")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.MaxBackoff {
			backoff = c.cfg.MaxBackoff
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	c.mu.RLock()
	if c.userID != "" {
		header.Set(c.cfg.UserHeader, c.userID)
	}
	c.mu.RUnlock()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrap(err, "dial push channel")
	}
	return conn, nil
}

// serve pumps one connection until it fails or ctx is done.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	readTimeout := 2 * c.cfg.PingInterval
	readErr := make(chan error, 1)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go func() {
		for {
			_, frame, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(readTimeout))
			c.dispatch(frame)
		}
	}()

	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return ctx.Err()

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.Wrap(err, "server closed push channel")
			}
			return errors.Wrap(err, "read push frame")

		case frame := <-c.outbox:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return errors.Wrap(err, "write push frame")
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return errors.Wrap(err, "ping")
			}
		}
	}
}

func (c *Client) dispatch(frame []byte) {
	ev, err := Decode(frame)
	if err != nil {
		l := log.Warn()
		if errors.Is(err, ErrUnknownEvent) {
			l = log.Debug()
		}
		l.Str("component", "push").Err(err).Msg("dropping push frame")
		return
	}
	c.hub.Publish(ev)
}
