// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - --json output for hms commands.
//
// Every command prints the same envelope so scripts can check "success"
// before reading "data".

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONResponse is the envelope for --json output.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *string     `json:"error"`

	// ErrorType classifies failures: usage_error, config_error, auth_error,
	// network_error, api_error or generic_error.
	ErrorType string `json:"error_type,omitempty"`

	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to stdout.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// String returns the indented JSON.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// StderrPrint prints to stderr, keeping stdout clean in JSON mode.
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// StatusData is the payload of hms status.
type StatusData struct {
	SignedIn  bool   `json:"signed_in"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Dashboard string `json:"dashboard,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	ExpiresIn string `json:"expires_in,omitempty"`
	Backend   string `json:"backend"`
	Store     string `json:"store,omitempty"`
	API       string `json:"api"`
}

// LoginData is the payload of hms login.
type LoginData struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Dashboard string `json:"dashboard"`
	ExpiresAt string `json:"expires_at"`
}

// SessionRecord is the payload of hms session show. The token is never
// included, only whether one is stored and whether it is sealed.
type SessionRecord struct {
	User        json.RawMessage `json:"user,omitempty"`
	ExpiresAt   string          `json:"expires_at,omitempty"`
	LoginTime   string          `json:"login_time,omitempty"`
	HasToken    bool            `json:"has_token"`
	TokenSealed bool            `json:"token_sealed"`
	Valid       bool            `json:"valid"`
	Keys        []string        `json:"keys"`
}

// RegisterData is the payload of hms register.
type RegisterData struct {
	Email   string `json:"email"`
	Role    string `json:"role"`
	Message string `json:"message"`
}

// ConfigValueData is the payload of hms config get/set.
type ConfigValueData struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
	Path  string      `json:"path,omitempty"`
}

// VersionData is the payload of hms version.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
