// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "errors"

var (
	// ErrRejected indicates the backend refused the credentials.
	ErrRejected = errors.New("login rejected")

	// ErrUnreachable indicates the backend could not be reached or timed out.
	ErrUnreachable = errors.New("authentication server unreachable")

	// ErrRoleMismatch indicates the account's role differs from the role
	// signed in with.
	ErrRoleMismatch = errors.New("account role does not match the selected portal")

	// ErrInvalidRole indicates Login was called with a role outside the four portals.
	ErrInvalidRole = errors.New("unknown role")
)

// LoginError classifies a failed login while keeping the underlying message.
//
//	errors.Is(err, session.ErrUnreachable) // kind
//	err.Error()                            // "Invalid credentials"
type LoginError struct {
	Kind error
	Err  error
}

// Error returns the cause's message, which is what the login form shows.
func (e *LoginError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}

// Unwrap returns the cause.
func (e *LoginError) Unwrap() error {
	return e.Err
}

// Is matches the error's kind.
func (e *LoginError) Is(target error) bool {
	return target == e.Kind
}
