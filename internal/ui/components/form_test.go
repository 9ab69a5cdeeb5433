// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func typeInto(f Form, s string) Form {
	for _, r := range s {
		f, _, _ = f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return f
}

func press(f Form, k tea.KeyType) (Form, bool) {
	f, _, submitted := f.Update(tea.KeyMsg{Type: k})
	return f, submitted
}

// ===== FORM TESTS

func TestForm_TypingAndNavigation(t *testing.T) {
	f := NewForm(nil, "Sign In",
		FieldSpec{Label: "Email"},
		FieldSpec{Label: "Password", Password: true},
	)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, 0, f.Focused())

	f = typeInto(f, " a@b.com ")
	f, submitted := press(f, tea.KeyTab)
	assert.False(t, submitted)
	assert.Equal(t, 1, f.Focused())

	f = typeInto(f, " secret ")
	assert.Equal(t, "a@b.com", f.Value(0), "text fields are trimmed")
	assert.Equal(t, " secret ", f.Value(1), "password fields are not")

	f, _ = press(f, tea.KeyShiftTab)
	assert.Equal(t, 0, f.Focused())
}

func TestForm_EnterAdvancesThenSubmits(t *testing.T) {
	f := NewForm(nil, "Sign In", FieldSpec{Label: "Email"}, FieldSpec{Label: "Password", Password: true})

	f, submitted := press(f, tea.KeyEnter)
	assert.False(t, submitted)
	assert.Equal(t, 1, f.Focused())

	_, submitted = press(f, tea.KeyEnter)
	assert.True(t, submitted)
}

func TestForm_FocusWraps(t *testing.T) {
	f := NewForm(nil, "Go", FieldSpec{Label: "A"}, FieldSpec{Label: "B"})

	f, _ = press(f, tea.KeyShiftTab)
	assert.Equal(t, 2, f.Focused(), "wraps to the button")

	f, _ = press(f, tea.KeyTab)
	assert.Equal(t, 0, f.Focused())
}

func TestForm_DisabledIgnoresInput(t *testing.T) {
	f := NewForm(nil, "Go", FieldSpec{Label: "A", Value: "x"})
	f.Disabled = true

	f = typeInto(f, "yz")
	_, submitted := press(f, tea.KeyEnter)
	assert.Equal(t, "x", f.Value(0))
	assert.False(t, submitted)
	assert.Contains(t, f.View(), "Go...")
}

func TestForm_SetValue(t *testing.T) {
	f := NewForm(nil, "Go", FieldSpec{Label: "Email"})
	f.SetValue(0, "pat@example.com")
	f.SetValue(5, "ignored")
	assert.Equal(t, "pat@example.com", f.Value(0))
	assert.Equal(t, "", f.Value(5))
}
