// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for portal users and roles.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// USER TYPE
// =============================================================================

// ErrInvalidUser is returned by Validate when a required field is missing.
var ErrInvalidUser = errors.New("invalid user record")

// User is the identity record the backend returns for a signed-in account.
//
// Role-specific profile fields the client does not model are kept in Extra
// so a record read back from storage marshals to the same bytes it was
// written with.
type User struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               Role   `json:"role"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Mobile             string `json:"mobile,omitempty"`

	// Extra holds any profile fields not listed above, keyed by JSON name.
	Extra map[string]json.RawMessage `json:"-"`
}

// knownUserFields are the JSON names decoded into typed fields.
var knownUserFields = map[string]bool{
	"id":                 true,
	"name":               true,
	"email":              true,
	"role":               true,
	"registrationNumber": true,
	"mobile":             true,
}

// userFields mirrors User without its methods so encoding/json can be reused.
type userFields struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               Role   `json:"role"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Mobile             string `json:"mobile,omitempty"`
}

// UnmarshalJSON decodes the typed fields and collects the rest into Extra.
// Backends that send a numeric id are accepted; the id is kept as its decimal text.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var f userFields
	for key, value := range raw {
		if !knownUserFields[key] {
			continue
		}
		var err error
		switch key {
		case "id":
			f.ID, err = decodeID(value)
		case "name":
			err = json.Unmarshal(value, &f.Name)
		case "email":
			err = json.Unmarshal(value, &f.Email)
		case "role":
			err = json.Unmarshal(value, &f.Role)
		case "registrationNumber":
			err = json.Unmarshal(value, &f.RegistrationNumber)
		case "mobile":
			err = json.Unmarshal(value, &f.Mobile)
		}
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}

	*u = User{
		ID:                 f.ID,
		Name:               f.Name,
		Email:              f.Email,
		Role:               f.Role,
		RegistrationNumber: f.RegistrationNumber,
		Mobile:             f.Mobile,
	}
	for key, value := range raw {
		if knownUserFields[key] {
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]json.RawMessage)
		}
		u.Extra[key] = value
	}
	return nil
}

// MarshalJSON encodes the typed fields and Extra as one object with sorted keys.
func (u User) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(userFields{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		RegistrationNumber: u.RegistrationNumber,
		Mobile:             u.Mobile,
	})
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return base, nil
	}

	merged := make(map[string]json.RawMessage, len(u.Extra)+len(knownUserFields))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, value := range u.Extra {
		if knownUserFields[key] {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

// Validate checks the fields every session needs: id, email and role.
func (u *User) Validate() error {
	var missing []string
	if strings.TrimSpace(u.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(u.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(string(u.Role)) == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidUser, strings.Join(missing, ", "))
	}
	return nil
}

// DisplayName returns the name, falling back to the email.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Clone returns a deep copy of the user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// decodeID accepts a JSON string or number.
func decodeID(value json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(value, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}
