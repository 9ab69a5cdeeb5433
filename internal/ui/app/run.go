// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/hms-tui/internal/session"
)

// Run starts the TUI and blocks until it exits.
func Run(opts Options) error {
	if opts.Store == nil {
		return fmt.Errorf("ui: no session store")
	}

	m := New(opts)
	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}
	if opts.Context != nil {
		progOpts = append(progOpts, tea.WithContext(opts.Context))
	}
	p := tea.NewProgram(m, progOpts...)

	// Store callbacks can fire inside Update; Send must not block the loop.
	opts.Store.SetNavigator(func(path string) {
		go p.Send(NavigateMsg{Path: path})
	})
	remove := opts.Store.OnChange(func(snap session.Snapshot) {
		go p.Send(session.ChangedMsg{Snapshot: snap})
	})
	defer remove()
	defer opts.Store.SetNavigator(nil)

	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.Close()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
