// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the conversation API client.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel errors by type so errors.Is(err, ErrNotFound) works for
// any not-found response.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t == sentinel(e.Type)
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConnection
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeNotFound
	ErrTypeServer
	ErrTypeInvalidResponse
)

func (t ErrorType) String() string {
	switch t {
	case ErrTypeConnection:
		return "connection"
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeCanceled:
		return "canceled"
	case ErrTypeNotFound:
		return "not_found"
	case ErrTypeServer:
		return "server"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks.
var (
	ErrNotFound = &ClientError{Type: ErrTypeNotFound, Message: "conversation not found"}
	ErrCanceled = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
	ErrTimeout  = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
)

func sentinel(t ErrorType) *ClientError {
	switch t {
	case ErrTypeNotFound:
		return ErrNotFound
	case ErrTypeCanceled:
		return ErrCanceled
	case ErrTypeTimeout:
		return ErrTimeout
	}
	return nil
}

// TypeOf returns the ErrorType carried by err, or ErrTypeUnknown.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsNotFound reports whether err is a 404 from the API. The conversation
// fetch treats this as the initial state of a brand-new conversation.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrTypeNotFound
}

// IsCanceled reports whether err comes from a canceled context. Canceled
// requests are superseded, never shown to the user.
func IsCanceled(err error) bool {
	return TypeOf(err) == ErrTypeCanceled || errors.Is(err, context.Canceled)
}

// classify converts a transport error into a ClientError.
func classify(err error, msg string) *ClientError {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &ClientError{Type: ErrTypeCanceled, Message: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	var urlErr *url.Error
	var opErr *net.OpError
	if errors.As(err, &urlErr) || errors.As(err, &opErr) {
		return &ClientError{Type: ErrTypeConnection, Message: msg, Cause: err}
	}
	return &ClientError{Type: ErrTypeUnknown, Message: msg, Cause: err}
}

// retryable reports whether a request may be repeated after err.
func retryable(err *ClientError) bool {
	if err.Type == ErrTypeConnection {
		return true
	}
	return err.Type == ErrTypeServer && err.StatusCode >= 500
}
