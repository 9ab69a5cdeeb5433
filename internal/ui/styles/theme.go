// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for hms TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/hms-tui/internal/model"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	App         lipgloss.Style
	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderBrand lipgloss.Style
	Card        lipgloss.Style
	Subtitle    lipgloss.Style
	Muted       lipgloss.Style

	// ==========================================================================
	// FORMS
	// ==========================================================================

	Label        lipgloss.Style
	InputFocused lipgloss.Style
	InputBlurred lipgloss.Style
	Button       lipgloss.Style
	ButtonActive lipgloss.Style
	FormError    lipgloss.Style
	Notice       lipgloss.Style

	// ==========================================================================
	// MENUS
	// ==========================================================================

	MenuItem         lipgloss.Style
	MenuItemSelected lipgloss.Style
	MenuKey          lipgloss.Style

	// ==========================================================================
	// STATUS BAR
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusWarn   lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// ACCESS STATES
	// ==========================================================================

	Loading lipgloss.Style
	Denied  lipgloss.Style
}

// NewTheme creates a theme. mode is "dark", "light" or "auto"; auto asks the
// terminal for its background.
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	var isDark bool
	switch mode {
	case ModeDark:
		isDark = true
		lipgloss.SetHasDarkBackground(true)
	case ModeLight:
		lipgloss.SetHasDarkBackground(false)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
		Width:        80,
		Height:       24,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.App = lipgloss.NewStyle().Padding(0, 1)

	// Frame
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		Background(SurfaceDim).
		Padding(0, 2)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.Card = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay).
		Padding(1, 3)

	t.Subtitle = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Forms
	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.InputFocused = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Teal).
		Padding(0, 1)

	t.InputBlurred = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.Button = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.ButtonActive = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Teal).
		Bold(true).
		Padding(0, 2)

	t.FormError = lipgloss.NewStyle().
		Foreground(ErrorHighContrast).
		Bold(true)

	t.Notice = lipgloss.NewStyle().
		Foreground(SuccessHighContrast)

	// Menus
	t.MenuItem = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)

	t.MenuItemSelected = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.MenuKey = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusWarn = lipgloss.NewStyle().
		Foreground(WarningHighContrast).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Access states
	t.Loading = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.Denied = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)
}

// RoleBadge renders a role as a colored badge.
func (t *Theme) RoleBadge(r model.Role) string {
	return lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(RoleColor(r)).
		Bold(true).
		Padding(0, 1).
		Render(r.DisplayName())
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
