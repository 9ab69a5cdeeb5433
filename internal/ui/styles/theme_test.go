// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/model"
)

// =============================================================================
// THEME CREATION TESTS
// =============================================================================

func TestNewTheme(t *testing.T) {
	theme := NewTheme(ModeDark)

	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}
	if !theme.IsDark {
		t.Error("dark mode should set IsDark")
	}
	if theme.Width == 0 || theme.Height == 0 {
		t.Error("NewTheme() should set default dimensions")
	}

	light := NewTheme(ModeLight)
	if light.IsDark {
		t.Error("light mode should clear IsDark")
	}
}

func TestThemeInitStyles(t *testing.T) {
	theme := NewTheme(ModeDark)

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"Card", theme.Card},
		{"InputFocused", theme.InputFocused},
		{"ButtonActive", theme.ButtonActive},
		{"StatusBar", theme.StatusBar},
		{"Loading", theme.Loading},
		{"Denied", theme.Denied},
	}

	for _, s := range styles {
		if !strings.Contains(s.style.Render("test"), "test") {
			t.Errorf("%s style should render its content", s.name)
		}
	}
}

// =============================================================================
// LAYOUT TESTS
// =============================================================================

func TestGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}

	theme := NewTheme(ModeDark)
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("GetLayoutMode() at width %d = %v, want %v", tt.width, got, tt.want)
		}
	}
}

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRoleColor(t *testing.T) {
	seen := map[lipgloss.AdaptiveColor]model.Role{}
	for _, r := range model.AllRoles() {
		c := RoleColor(r)
		if prev, ok := seen[c]; ok {
			t.Errorf("RoleColor(%s) duplicates %s", r, prev)
		}
		seen[c] = r
	}
	if RoleColor("janitor") != TextSecondary {
		t.Error("unknown role should use TextSecondary")
	}
}

func TestRoleBadge(t *testing.T) {
	theme := NewTheme(ModeDark)
	if got := theme.RoleBadge(model.RoleDoctor); !strings.Contains(got, "Doctor") {
		t.Errorf("RoleBadge() = %q, want it to contain Doctor", got)
	}
}

// =============================================================================
// ACCESSIBILITY TESTS
// =============================================================================

func TestRenderHelpersIncludeIndicators(t *testing.T) {
	tests := []struct {
		name      string
		render    func(string) string
		indicator string
	}{
		{"success", RenderSuccess, StatusIndicators.Success},
		{"error", RenderError, StatusIndicators.Error},
		{"warning", RenderWarning, StatusIndicators.Warning},
		{"info", RenderInfo, StatusIndicators.Info},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.render("message")
			if !strings.Contains(got, tt.indicator) || !strings.Contains(got, "message") {
				t.Errorf("render = %q, want indicator %q and message", got, tt.indicator)
			}
		})
	}
}
