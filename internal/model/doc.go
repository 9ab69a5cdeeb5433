// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for portal users and roles.
//
// These types are shared by the API client, the session store and the
// access guard, so the package has no dependencies inside the module.
//
// # Key Types
//
//   - User: Identity record returned by the backend (id, name, email, role, profile fields)
//   - Role: Portal role enumeration (admin, doctor, staff, patient)
//
// # Usage
//
// Parse a role from user input:
//
//	role, err := model.ParseRole("Doctor")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(role.DisplayName()) // "Doctor"
//
// Decode a backend user and keep unknown profile fields:
//
//	var u model.User
//	if err := json.Unmarshal(data, &u); err != nil {
//	    return err
//	}
//	if err := u.Validate(); err != nil {
//	    return err
//	}
package model
