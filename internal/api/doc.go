// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the hospital management backend.
//
// Only the authentication endpoints are implemented:
//
//	POST /auth/login     {email, password, role} -> {token, user}
//	GET  /auth/me        bearer                  -> user
//	POST /auth/register  registration payload    -> created user
//
// Every failure is one of two kinds. Transport failures (refused connection,
// DNS, timeout, cancelled context) satisfy errors.Is(err, ErrNetwork).
// Everything the backend said no to is an *APIError carrying the HTTP status
// and the backend's message.
package api
