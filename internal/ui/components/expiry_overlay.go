// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/ui/styles"
	"github.com/jeranaias/hms-tui/internal/util"
)

// =============================================================================
// EXPIRY OVERLAY
// =============================================================================

// ExpiryOverlay covers the screen when the session is about to run out.
// Any key dismisses it; the keypress itself counts as activity.
type ExpiryOverlay struct {
	visible   bool
	remaining time.Duration
	width     int
	height    int
}

// NewExpiryOverlay creates a hidden overlay.
func NewExpiryOverlay() ExpiryOverlay {
	return ExpiryOverlay{}
}

// SetSize sets the area the overlay is centered in.
func (o *ExpiryOverlay) SetSize(width, height int) {
	o.width = width
	o.height = height
}

// Show displays the overlay with the time left.
func (o *ExpiryOverlay) Show(remaining time.Duration) {
	o.visible = true
	o.remaining = remaining
}

// SetRemaining updates the countdown.
func (o *ExpiryOverlay) SetRemaining(remaining time.Duration) {
	o.remaining = remaining
}

// Hide dismisses the overlay.
func (o *ExpiryOverlay) Hide() {
	o.visible = false
}

// Visible reports whether the overlay is showing.
func (o ExpiryOverlay) Visible() bool {
	return o.visible
}

// Remaining returns the last countdown value.
func (o ExpiryOverlay) Remaining() time.Duration {
	return o.remaining
}

// View renders the overlay, or "" when hidden.
func (o ExpiryOverlay) View() string {
	if !o.visible {
		return ""
	}

	width, height := o.width, o.height
	if width == 0 {
		width = 60
	}
	if height == 0 {
		height = 24
	}
	boxWidth := width - 8
	if boxWidth < 40 {
		boxWidth = 40
	}
	if boxWidth > 60 {
		boxWidth = 60
	}

	title := lipgloss.NewStyle().
		Foreground(styles.Amber).
		Bold(true).
		Render(styles.StatusIndicators.Warning + " Session Expiring")

	countdown := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true).
		Render(util.FormatRemaining(o.remaining))
	msg := lipgloss.NewStyle().
		Foreground(styles.TextPrimary).
		Width(boxWidth - 8).
		Align(lipgloss.Center).
		Render("Your session will expire in " + countdown + ".")

	hint := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Italic(true).
		Render("Press any key to stay signed in")

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", msg, "", hint)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(styles.Amber).
		Padding(1, 3).
		Width(boxWidth).
		Align(lipgloss.Center).
		Render(content)

	return lipgloss.Place(
		width, height,
		lipgloss.Center, lipgloss.Center,
		box,
		lipgloss.WithWhitespaceBackground(styles.SurfaceDim),
	)
}
