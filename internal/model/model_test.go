// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"Doctor", RoleDoctor, false},
		{"  STAFF ", RoleStaff, false},
		{"patient", RolePatient, false},
		{"nurse", "", true},
		{"", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseRole(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestRole_DisplayName(t *testing.T) {
	if got := RoleDoctor.DisplayName(); got != "Doctor" {
		t.Errorf("DisplayName() = %q, want %q", got, "Doctor")
	}
	if got := Role("").DisplayName(); got != "Unknown" {
		t.Errorf("DisplayName() of empty role = %q, want %q", got, "Unknown")
	}
}

func TestContainsRole(t *testing.T) {
	roles := []Role{RoleAdmin, RoleStaff}
	if !ContainsRole(roles, RoleStaff) {
		t.Error("ContainsRole should find staff")
	}
	if ContainsRole(roles, RolePatient) {
		t.Error("ContainsRole should not find patient")
	}
	if ContainsRole(nil, RoleAdmin) {
		t.Error("ContainsRole on nil slice should be false")
	}
}

// =============================================================================
// USER JSON TESTS
// =============================================================================

func TestUser_RoundTripKeepsExtraFields(t *testing.T) {
	in := []byte(`{"id":"u1","name":"Dr. Lee","email":"lee@example.org","role":"doctor","specialization":"Cardiology","departmentId":7}`)

	var u User
	require.NoError(t, json.Unmarshal(in, &u))
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, RoleDoctor, u.Role)
	require.Contains(t, u.Extra, "specialization")

	first, err := json.Marshal(u)
	require.NoError(t, err)

	var again User
	require.NoError(t, json.Unmarshal(first, &again))
	second, err := json.Marshal(again)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.JSONEq(t, string(in), string(first))
}

func TestUser_NumericID(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"email":"a@b.c","role":"staff"}`), &u))
	assert.Equal(t, "42", u.ID)
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"complete", User{ID: "1", Email: "a@b.c", Role: RoleAdmin}, false},
		{"unknown role still valid", User{ID: "1", Email: "a@b.c", Role: "auditor"}, false},
		{"missing id", User{Email: "a@b.c", Role: RoleAdmin}, true},
		{"missing email", User{ID: "1", Role: RoleAdmin}, true},
		{"missing role", User{ID: "1", Email: "a@b.c"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.user.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidUser) {
				t.Errorf("Validate() error = %v, want ErrInvalidUser", err)
			}
		})
	}
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := &User{ID: "1", Extra: map[string]json.RawMessage{"x": json.RawMessage(`1`)}}
	c := u.Clone()
	c.Extra["x"][0] = '2'
	assert.Equal(t, "1", string(u.Extra["x"]))

	var nilUser *User
	assert.Nil(t, nilUser.Clone())
}
