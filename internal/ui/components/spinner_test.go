// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER TESTS
// =============================================================================

func TestNewSpinner(t *testing.T) {
	s := NewSpinner()

	if s.message != "Loading" {
		t.Errorf("NewSpinner() message = %q, want %q", s.message, "Loading")
	}
	if s.isActive {
		t.Error("NewSpinner() should not be active initially")
	}
	if s.View() != "" {
		t.Error("inactive spinner should render nothing")
	}
}

func TestAccessSpinner(t *testing.T) {
	s := NewAccessSpinner()
	s.Start()

	view := s.View()
	if !strings.Contains(view, "Verifying Access") {
		t.Errorf("View() = %q, want Verifying Access", view)
	}
	if !strings.Contains(view, "Please wait while we verify your credentials...") {
		t.Errorf("View() = %q, want the detail line", view)
	}
}

func TestSpinnerStartStop(t *testing.T) {
	s := NewSpinner()

	if cmd := s.Start(); cmd == nil {
		t.Error("Start() should return a tick command")
	}
	if !s.IsActive() {
		t.Error("spinner should be active after Start()")
	}

	s.Stop()
	if s.IsActive() {
		t.Error("spinner should be inactive after Stop()")
	}

	_, cmd := s.Update(spinner.TickMsg{})
	if cmd != nil {
		t.Error("stopped spinner should not schedule ticks")
	}
}

func TestRequestSpinnerTimer(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s := NewRequestSpinner("Signing in")
	s.now = func() time.Time { return now }
	s.Start()

	now = base.Add(3 * time.Second)
	if got := s.Elapsed(); got != 3*time.Second {
		t.Errorf("Elapsed() = %v, want 3s", got)
	}
	if view := s.View(); !strings.Contains(view, "(3s)") {
		t.Errorf("View() = %q, want elapsed timer", view)
	}
}
