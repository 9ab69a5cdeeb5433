// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// EXPIRY OVERLAY TESTS
// =============================================================================

func TestExpiryOverlay_Hidden(t *testing.T) {
	o := NewExpiryOverlay()
	if o.Visible() {
		t.Error("new overlay should be hidden")
	}
	if o.View() != "" {
		t.Error("hidden overlay should render nothing")
	}
}

func TestExpiryOverlay_ShowAndHide(t *testing.T) {
	o := NewExpiryOverlay()
	o.SetSize(80, 24)
	o.Show(5 * time.Minute)

	if !o.Visible() {
		t.Fatal("Show() should make the overlay visible")
	}
	view := o.View()
	if !strings.Contains(view, "Session Expiring") {
		t.Errorf("View() missing title: %q", view)
	}
	if !strings.Contains(view, "5m 00s") {
		t.Errorf("View() missing countdown: %q", view)
	}
	if !strings.Contains(view, "Press any key to stay signed in") {
		t.Errorf("View() missing hint: %q", view)
	}

	o.SetRemaining(90 * time.Second)
	if o.Remaining() != 90*time.Second {
		t.Errorf("Remaining() = %v, want 1m30s", o.Remaining())
	}
	if !strings.Contains(o.View(), "1m 30s") {
		t.Error("View() should show the updated countdown")
	}

	o.Hide()
	if o.Visible() || o.View() != "" {
		t.Error("Hide() should clear the overlay")
	}
}
