// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the signed-in user, the bearer token and the expiry.
//
// # Key Types
//
//   - Store: the session state machine, backed by a storage.KV
//   - ActivityObserver: refreshes the session on user input while attached
//   - TickMsg, ChangedMsg, ExpiryWarningMsg: Bubble Tea messages
//
// # Usage
//
//	kv, _ := storage.Open(storage.BackendSQLite, path)
//	store := session.NewStore(kv, api.NewClient(baseURL),
//	    session.WithAuditor(auditLog),
//	    session.WithTokenCodec(sealer),
//	)
//	store.Initialize(ctx)
//
//	if err := store.Login(ctx, email, password, model.RoleDoctor); err != nil {
//	    switch {
//	    case errors.Is(err, session.ErrUnreachable):
//	    case errors.Is(err, session.ErrRoleMismatch):
//	    }
//	}
//
// # Persistence
//
// The session is four keys: the user JSON, the expiry in epoch milliseconds,
// the token and the login time. They are written together by Login and
// deleted together by Logout, expiry and corruption. A session is valid
// while a user is present and the current time is before the expiry.
package session
