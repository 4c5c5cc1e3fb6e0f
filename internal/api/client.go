// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for the assistant conversation API and
// the planning endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the API client.
type ClientConfig struct {
	// BaseURL is the conversation API root, e.g. http://localhost:4000/api
	BaseURL string

	// PlanningURL is the calendar root, e.g. http://localhost:4000/api/planning
	PlanningURL string

	// UserHeader names the header that carries the signed-in user id.
	UserHeader string

	// Timeout for a single request (default: 30s)
	Timeout time.Duration

	// MaxRetries for idempotent requests that hit connection or 5xx failures.
	MaxRetries int

	// RetryDelay between retries (default: 500ms)
	RetryDelay time.Duration

	// RequestsPerSecond limits outgoing requests. Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:     "http://localhost:4000/api",
		PlanningURL: "http://localhost:4000/api/planning",
		UserHeader:  "X-User-Id",
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  500 * time.Millisecond,
		Burst:       5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the conversation API. Every request carries the current
// user id. The Client is safe for concurrent use.
//
// Example:
//
//	client := api.NewClientWithConfig(cfg)
//	client.SetUser("alice")
//	convs, err := client.ListConversations(ctx)
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter

	mu     sync.RWMutex
	userID string
}

// NewClient creates a client for baseURL with default settings.
func NewClient(baseURL string) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.PlanningURL = strings.TrimRight(baseURL, "/") + "/planning"
	return NewClientWithConfig(cfg)
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.PlanningURL == "" {
		config.PlanningURL = config.BaseURL + "/planning"
	}
	config.PlanningURL = strings.TrimRight(config.PlanningURL, "/")
	if config.UserHeader == "" {
		config.UserHeader = "X-User-Id"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 500 * time.Millisecond
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, config.Burst)
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    limiter,
	}
}

// SetUser changes the user id sent with subsequent requests.
func (c *Client) SetUser(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
}

// User returns the user id sent with requests.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// BaseURL returns the conversation API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends one request and decodes a JSON response into out (when non-nil).
// Idempotent requests are retried on connection failures and 5xx responses.
func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
		}
	}

	attempts := 1
	if method == http.MethodGet || method == http.MethodDelete {
		attempts += c.config.MaxRetries
	}

	var lastErr *ClientError
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			log.Debug().
				Str("component", "api").
				Str("method", method).
				Str("url", url).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("retrying request")
			select {
			case <-ctx.Done():
				return classify(ctx.Err(), "request canceled")
			case <-time.After(c.config.RetryDelay):
			}
		}

		err := c.once(ctx, method, url, payload, out)
		if err == nil {
			return nil
		}
		// An earlier attempt may have deleted the resource before its
		// response was lost.
		if attempt > 1 && method == http.MethodDelete && err.Type == ErrTypeNotFound {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, url string, payload []byte, out interface{}) *ClientError {
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(err, "rate limiter")
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user := c.User(); user != "" {
		req.Header.Set(c.config.UserHeader, user)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return &ClientError{Type: ErrTypeNotFound, Message: "not found", StatusCode: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ClientError{
			Type:       ErrTypeServer,
			Message:    fmt.Sprintf("unexpected status: %s", strings.TrimSpace(string(snippet))),
			StatusCode: resp.StatusCode,
		}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return classify(ctx.Err(), "request canceled")
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func (c *Client) url(parts ...string) string {
	return c.config.BaseURL + "/" + strings.Join(parts, "/")
}
