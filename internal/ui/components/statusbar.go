// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for hms TUI.
package components

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
	"github.com/jeranaias/hms-tui/internal/util"
)

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// Shortcut is a key hint shown on the right of the status bar.
type Shortcut struct {
	Key  string
	Desc string
}

// StatusBar shows the route, the signed-in user and the time left on the session.
type StatusBar struct {
	Width         int
	Path          string
	Message       string
	ShowShortcuts bool
	Shortcuts     []Shortcut

	// WarnWindow is how close to expiry the countdown turns amber
	WarnWindow time.Duration

	loading   bool
	user      *model.User
	remaining time.Duration
	theme     *styles.Theme
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetSession updates the user and countdown from a snapshot.
func (s *StatusBar) SetSession(snap session.Snapshot) {
	s.loading = snap.Loading
	if snap.Valid {
		s.user = snap.User
		s.remaining = snap.Remaining()
	} else {
		s.user = nil
		s.remaining = 0
	}
}

// Warning reports whether the countdown is inside the warning window.
func (s *StatusBar) Warning() bool {
	return s.user != nil && s.WarnWindow > 0 && s.remaining <= s.WarnWindow
}

// View renders the status bar.
func (s *StatusBar) View() string {
	if s.Width < 60 {
		return s.render(s.viewNarrow())
	}
	return s.render(s.viewWide())
}

// viewNarrow: [ROLE] 23h 59m
func (s *StatusBar) viewNarrow() string {
	switch {
	case s.loading:
		return styles.StatusIndicators.Pending + " ..."
	case s.user == nil:
		return "signed out"
	}
	return "[" + strings.ToUpper(string(s.user.Role)) + "] " + s.countdown()
}

// viewWide: /path | Name (Role) | expires in 23h 59m | message      keys
func (s *StatusBar) viewWide() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	left := []string{lipgloss.NewStyle().Foreground(styles.Teal).Render(s.Path)}
	switch {
	case s.loading:
		left = append(left, styles.StatusIndicators.Pending+" restoring session")
	case s.user == nil:
		left = append(left, lipgloss.NewStyle().Foreground(styles.TextMuted).Render("signed out"))
	default:
		name := s.user.Name
		if name == "" {
			name = s.user.Email
		}
		who := util.TruncateWidth(name, 24) + " (" + s.user.Role.DisplayName() + ")"
		left = append(left,
			lipgloss.NewStyle().Foreground(styles.RoleColor(s.user.Role)).Render(who),
			"expires in "+s.countdown(),
		)
	}
	if s.Message != "" {
		left = append(left, s.Message)
	}
	leftSection := strings.Join(left, sep)

	rightSection := ""
	if s.ShowShortcuts && len(s.Shortcuts) > 0 {
		rightSection = s.renderShortcuts()
	}

	// Padding(0, 1) costs two columns
	avail := s.Width - 2
	rightWidth := lipgloss.Width(rightSection)
	if lipgloss.Width(leftSection)+rightWidth+2 > avail {
		rightSection = ""
		rightWidth = 0
	}
	gap := avail - lipgloss.Width(leftSection) - rightWidth
	if gap < 1 {
		return leftSection
	}
	return leftSection + strings.Repeat(" ", gap) + rightSection
}

func (s *StatusBar) countdown() string {
	text := util.FormatRemaining(s.remaining)
	if s.Warning() {
		return lipgloss.NewStyle().Foreground(styles.WarningHighContrast).Bold(true).
			Render(styles.StatusIndicators.Warning + " " + text)
	}
	return text
}

func (s *StatusBar) renderShortcuts() string {
	keyStyle := lipgloss.NewStyle().Foreground(styles.Teal).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
	if s.theme != nil {
		keyStyle = s.theme.ShortcutKey
		descStyle = s.theme.ShortcutDesc
	}
	parts := make([]string, 0, len(s.Shortcuts))
	for _, sc := range s.Shortcuts {
		parts = append(parts, keyStyle.Render(sc.Key)+" "+descStyle.Render(sc.Desc))
	}
	return strings.Join(parts, "  ")
}

func (s *StatusBar) render(content string) string {
	style := lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Foreground(styles.TextSecondary).
		Padding(0, 1)
	if s.theme != nil {
		style = s.theme.StatusBar
	}
	return style.Width(s.Width).MaxHeight(1).Render(content)
}
