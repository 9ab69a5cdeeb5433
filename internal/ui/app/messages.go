// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
)

// =============================================================================
// MESSAGES
// =============================================================================

// NavigateMsg replaces the current route and drops all screen state.
// The session store sends it on logout.
type NavigateMsg struct {
	Path string
}

// initializedMsg is sent once Store.Initialize returns.
type initializedMsg struct{}

// storageChangedMsg is sent when another process touched the session keyspace.
type storageChangedMsg struct{}

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	Role model.Role
	Err  error
}

// registerResultMsg carries the outcome of a registration.
type registerResultMsg struct {
	Email string
	Err   error
}

// =============================================================================
// COMMANDS
// =============================================================================

func initializeCmd(ctx context.Context, store *session.Store) tea.Cmd {
	return func() tea.Msg {
		store.Initialize(ctx)
		return initializedMsg{}
	}
}

// waitForStorage blocks on the watcher channel. A closed channel ends the loop.
func waitForStorage(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return storageChangedMsg{}
	}
}

func (m Model) loginCmd(email, password string, role model.Role) tea.Cmd {
	ctx, store, timeout := m.ctx, m.store, m.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return loginResultMsg{Role: role, Err: store.Login(ctx, email, password, role)}
	}
}

func (m Model) registerCmd(req api.RegisterRequest) tea.Cmd {
	ctx, reg, timeout := m.ctx, m.registrar, m.requestTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := reg.Register(ctx, req)
		if errors.Is(err, api.ErrNoUserEcho) {
			err = nil
		}
		return registerResultMsg{Email: req.Email, Err: err}
	}
}
