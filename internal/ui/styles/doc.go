// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the hms TUI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection. The theme mode can be pinned with [ui] theme in the config.

# Color System (colors.go)

  - Teal - Brand color for headers and focused inputs
  - Rose - Errors, access denied, admin portal
  - Cyan - Doctor portal
  - Purple - Staff portal
  - Emerald - Patient portal
  - Amber - Session expiry warnings

RoleColor maps a role to its portal accent.

# Accessibility

Status messages carry ASCII shape indicators ([OK], [X], [!], [i]) in
addition to color:

	styles.RenderError("Invalid credentials")

# Theme (theme.go)

	theme := styles.NewTheme("auto")
	theme.SetSize(width, height)
	header := theme.Header.Render("Admin Dashboard")
*/
package styles
