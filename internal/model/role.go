// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for portal users and roles.
package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role is the portal role a user signs in with.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

// AllRoles returns every known role in display order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDoctor, RoleStaff, RolePatient}
}

// IsKnown reports whether r is one of the four portal roles.
func (r Role) IsKnown() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleStaff, RolePatient:
		return true
	}
	return false
}

// String returns the wire value of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns the role title-cased for headers and prompts.
func (r Role) DisplayName() string {
	if r == "" {
		return "Unknown"
	}
	// cases.Caser is stateful; one per call
	return cases.Title(language.English).String(string(r))
}

// ParseRole converts user input into a Role. Matching is case-insensitive.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsKnown() {
		return "", fmt.Errorf("unknown role %q: must be one of admin, doctor, staff, patient", s)
	}
	return r, nil
}

// ContainsRole reports whether role is a member of roles.
func ContainsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
