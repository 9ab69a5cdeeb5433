// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package guard decides whether a screen may render for the current session.
//
// Evaluate is a pure function of a session snapshot and the screen's allowed
// roles. It has four outcomes:
//
//	Loading          session still initializing; show a spinner, do not redirect
//	Unauthenticated  no valid session; replace the route with "/"
//	Forbidden        valid session, role not allowed; replace with the role's dashboard
//	Authorized       render the screen
//
// The role-to-dashboard table is a Dashboards value injected at construction.
// The same table drives the post-login redirect.
package guard
