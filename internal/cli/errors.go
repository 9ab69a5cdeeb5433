// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for hms commands.
//
// Handlers return errors; main decides how to display them and which
// exit code to use.

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitAuthError    = 4
	ExitNetworkError = 5
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports a malformed command line.
type UsageError struct {
	Reason string
	Hint   string
}

func (e *UsageError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s\nUsage: %s", e.Reason, e.Hint)
	}
	return e.Reason
}

// ConfigError wraps a failure to load, validate or save configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// ErrNotSignedIn is returned by commands that need a stored session.
var ErrNotSignedIn = errors.New("not signed in")

// ErrMissingArgument builds a usage error for a required flag.
func ErrMissingArgument(argName, usage string) error {
	return &UsageError{Reason: fmt.Sprintf("missing required argument: %s", argName), Hint: usage}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError prints err to stderr, or as a JSON error response on stdout
// in JSON mode.
func DisplayError(command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		resp := NewJSONErrorResponse(command, err)
		resp.ErrorType = errorType(err)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(resp)
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func errorType(err error) string {
	var usage *UsageError
	var cfg *ConfigError
	var apiErr *api.APIError
	switch {
	case errors.As(err, &usage):
		return "usage_error"
	case errors.As(err, &cfg):
		return "config_error"
	case errors.Is(err, session.ErrUnreachable), api.IsNetworkError(err):
		return "network_error"
	case errors.Is(err, session.ErrRejected), errors.Is(err, session.ErrRoleMismatch), errors.Is(err, ErrNotSignedIn):
		return "auth_error"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "generic_error"
	}
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	var cfg *ConfigError
	if errors.As(err, &cfg) {
		return ExitConfigError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}
	if errors.Is(err, session.ErrUnreachable) || api.IsNetworkError(err) {
		return ExitNetworkError
	}
	if errors.Is(err, session.ErrRejected) || errors.Is(err, session.ErrRoleMismatch) ||
		errors.Is(err, session.ErrInvalidRole) || errors.Is(err, ErrNotSignedIn) {
		return ExitAuthError
	}
	return ExitGeneralError
}
