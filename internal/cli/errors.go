// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jeranaias/witness-lens/internal/api"
	"github.com/jeranaias/witness-lens/internal/auth"
	"github.com/jeranaias/witness-lens/internal/config"
)

// Commands always return errors; Execute prints them once and maps them to
// an exit code.

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrNotSignedIn is returned by commands that need a user.
var ErrNotSignedIn = errors.New("not signed in; run `witness-lens login <user>` first")

// CommandError wraps a failure with the command and action that failed.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// NewCommandError wraps err, or returns nil for a nil err.
func NewCommandError(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// UsageError is an invalid invocation.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// NewUsageError creates a UsageError.
func NewUsageError(format string, args ...interface{}) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		usage *UsageError
		cfg   config.ValidateErrors
	)
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfg):
		return ExitConfigError
	case errors.Is(err, ErrNotSignedIn), errors.Is(err, auth.ErrInvalidCredentials):
		return ExitAuthError
	case api.IsNotFound(err):
		return ExitNotFoundError
	}
	switch api.TypeOf(err) {
	case api.ErrTypeTimeout:
		return ExitTimeoutError
	case api.ErrTypeConnection:
		return ExitNetworkError
	}
	return ExitGeneralError
}
