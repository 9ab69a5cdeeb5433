// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the hms TUI.

Components are built on Bubble Tea, Bubbles and Lip Gloss and take their
colors from the styles package.

# Components

Spinner (spinner.go) - Loading indicator. NewAccessSpinner is the
"Verifying Access" screen shown while a guarded route waits for the
session to load.

StatusBar (statusbar.go) - Bottom bar with the current route, the
signed-in user, and a countdown that turns amber inside the warning window.

Form (form.go) - Stacked text inputs with a submit button, shared by the
login screens and patient registration.

# Usage

	bar := components.NewStatusBar(theme)
	bar.SetWidth(msg.Width)
	bar.SetSession(store.Snapshot())
	footer := bar.View()
*/
package components
