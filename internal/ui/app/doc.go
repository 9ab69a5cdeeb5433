// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app is the hms terminal UI.
//
// Every screen is addressed by a route path ("/", "/login/doctor",
// "/admin/dashboard", ...). Public routes render directly. Protected routes
// are evaluated by the access guard on every update:
//
//   - Loading: a "Verifying Access" spinner while the session restores
//   - Unauthenticated: the route is replaced with "/"
//   - Forbidden: the route is replaced with the user's own dashboard
//   - Authorized: the screen renders and the activity observer is attached
//
// A one-second tick discards expired sessions, and an optional storage
// watcher channel lets a logout in another terminal sign this one out.
//
// # Usage
//
//	err := app.Run(app.Options{
//	    Store:     store,
//	    Guard:     guard.New(nil),
//	    Registrar: client,
//	})
package app
