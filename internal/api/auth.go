// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"github.com/jeranaias/hms-tui/internal/model"
)

// MinPasswordLength is the registration form's password floor.
const MinPasswordLength = 6

// =============================================================================
// LOGIN
// =============================================================================

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// LoginResponse is the body of a successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Login exchanges credentials for a bearer token and user profile.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: login reply has no token", ErrMalformedResponse)
	}
	if resp.User == nil {
		return nil, fmt.Errorf("%w: login reply has no user", ErrMalformedResponse)
	}
	if err := resp.User.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}

// =============================================================================
// CURRENT USER
// =============================================================================

// CurrentUser returns the profile the token belongs to.
func (c *Client) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "no token"}
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, &raw); err != nil {
		return nil, err
	}
	u, err := decodeUserEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// decodeUserEnvelope accepts both a bare user object and {"user": {...}}.
func decodeUserEnvelope(raw json.RawMessage) (*model.User, error) {
	var env struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.User != nil {
		if err := env.User.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return env.User, nil
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &u, nil
}

// =============================================================================
// REGISTER
// =============================================================================

// PatientData is the patient-specific part of a registration.
type PatientData struct {
	Age        int    `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	BloodGroup string `json:"blood_group,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name        string       `json:"name"`
	Email       string       `json:"email"`
	Password    string       `json:"password"`
	Role        model.Role   `json:"role"`
	Mobile      string       `json:"mobile,omitempty"`
	PatientData *PatientData `json:"patientData,omitempty"`
}

// Validate checks the fields the registration form requires.
func (r RegisterRequest) Validate() error {
	var problems []string
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		problems = append(problems, "a valid email is required")
	}
	if len(r.Password) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if !r.Role.IsKnown() {
		problems = append(problems, fmt.Sprintf("unknown role %q", r.Role))
	}
	if r.PatientData != nil && r.PatientData.Age < 0 {
		problems = append(problems, "age cannot be negative")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// Register creates an account. The backend replies with the created user,
// either bare or wrapped in {"user": ...}; an empty reply yields nil. A reply
// that is not a user yields ErrNoUserEcho, which callers may ignore.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	u, err := decodeUserEnvelope(raw)
	if err != nil {
		if c.verbose {
			log.Printf("API: register reply is not a user: %v", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoUserEcho, err)
	}
	return u, nil
}
