// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNetwork indicates the backend could not be reached.
	ErrNetwork = errors.New("Network error: Unable to connect to the server")

	// ErrMalformedResponse indicates a 2xx reply that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response from server")

	// ErrNoUserEcho indicates a successful registration whose reply did not
	// describe the created user. The account exists.
	ErrNoUserEcho = errors.New("registration reply did not include the user")

	// ErrResponseTooLarge indicates a reply over MaxResponseSize.
	ErrResponseTooLarge = errors.New("response exceeded maximum size")
)

// NetworkError wraps a transport failure. Its message is fixed so the UI can
// show it verbatim; the cause stays reachable through Unwrap.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return ErrNetwork.Error()
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// APIError is an error reported by the backend.
type APIError struct {
	Status  int
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// StatusCode returns the HTTP status, or 0 when err is not an *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorBody is the error envelope the backend uses.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// handleErrorResponse converts a non-2xx reply. The message prefers the
// body's "message", then its "error", then the status line.
func handleErrorResponse(statusCode int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Message != "":
			return &APIError{Status: statusCode, Message: eb.Message}
		case eb.Error != "":
			return &APIError{Status: statusCode, Message: eb.Error}
		}
	}
	return &APIError{Status: statusCode, Message: fmt.Sprintf("HTTP error! status: %d", statusCode)}
}

// embeddedError returns an *APIError when a 2xx body still carries "error".
func embeddedError(statusCode int, body []byte) error {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && eb.Error != "" {
		return &APIError{Status: statusCode, Message: eb.Error}
	}
	return nil
}
