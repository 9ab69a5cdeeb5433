// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides UI components for the hms TUI.
package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/ui/styles"
	"github.com/jeranaias/hms-tui/internal/util"
)

// =============================================================================
// SPINNER MODEL
// =============================================================================

// Spinner is a loading indicator with a message, an optional detail line
// and an elapsed timer.
type Spinner struct {
	spinner spinner.Model

	message   string
	detail    string
	startTime time.Time

	isActive  bool
	showTimer bool
	now       func() time.Time
}

// NewSpinner creates a spinner with ASCII-compatible frames.
func NewSpinner() Spinner {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	return Spinner{
		spinner: s,
		message: "Loading",
		now:     time.Now,
	}
}

// NewAccessSpinner creates the spinner shown while a guarded screen waits
// for the session to load.
func NewAccessSpinner() Spinner {
	s := NewSpinner()
	s.message = "Verifying Access"
	s.detail = "Please wait while we verify your credentials..."
	return s
}

// NewRequestSpinner creates a spinner for a form submission.
func NewRequestSpinner(message string) Spinner {
	s := NewSpinner()
	s.message = message
	s.showTimer = true
	return s
}

// SetMessage sets the text displayed next to the spinner.
func (s *Spinner) SetMessage(msg string) {
	s.message = msg
}

// SetDetail sets additional detail text below the spinner.
func (s *Spinner) SetDetail(detail string) {
	s.detail = detail
}

// Message returns the current message.
func (s Spinner) Message() string {
	return s.message
}

// =============================================================================
// STATE MANAGEMENT
// =============================================================================

// Start activates the spinner and records the start time.
func (s *Spinner) Start() tea.Cmd {
	s.isActive = true
	s.startTime = s.now()
	return s.spinner.Tick
}

// Stop deactivates the spinner.
func (s *Spinner) Stop() {
	s.isActive = false
}

// IsActive returns whether the spinner is currently running.
func (s Spinner) IsActive() bool {
	return s.isActive
}

// Elapsed returns the duration since the spinner started.
func (s Spinner) Elapsed() time.Duration {
	if s.startTime.IsZero() {
		return 0
	}
	return s.now().Sub(s.startTime)
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update advances the animation. Inactive spinners drop their ticks.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.isActive {
		return s, nil
	}
	var cmd tea.Cmd
	s.spinner, cmd = s.spinner.Update(msg)
	return s, cmd
}

// View renders the spinner.
func (s Spinner) View() string {
	if !s.isActive {
		return ""
	}

	spinnerView := lipgloss.NewStyle().
		Foreground(styles.Teal).
		Render(s.spinner.View())

	messageView := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Bold(true).
		Render(s.message)

	result := spinnerView + " " + messageView

	if s.showTimer && !s.startTime.IsZero() {
		result += lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render(" (" + util.FormatRemaining(s.Elapsed()) + ")")
	}

	if s.detail != "" {
		result += "\n" + lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			PaddingLeft(2).
			Render(s.detail)
	}

	return result
}
