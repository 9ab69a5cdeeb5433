// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/ui/styles"
)

// =============================================================================
// FORM
// =============================================================================

// FieldSpec describes one input.
type FieldSpec struct {
	Label       string
	Placeholder string
	Value       string
	Password    bool
	CharLimit   int
}

// FormKeys are the bindings a form reacts to.
type FormKeys struct {
	Next   key.Binding
	Prev   key.Binding
	Submit key.Binding
}

// DefaultFormKeys returns tab/shift+tab/enter navigation.
func DefaultFormKeys() FormKeys {
	return FormKeys{
		Next:   key.NewBinding(key.WithKeys("tab", "down"), key.WithHelp("tab", "next field")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "up"), key.WithHelp("shift+tab", "previous")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
	}
}

// Form is a vertical list of text inputs followed by a submit button.
// Focus index len(inputs) is the button.
type Form struct {
	labels []string
	inputs []textinput.Model
	focus  int
	submit string
	keys   FormKeys
	theme  *styles.Theme

	// Disabled ignores input while a request is in flight
	Disabled bool
}

// NewForm creates a form with the first field focused.
func NewForm(theme *styles.Theme, submit string, fields ...FieldSpec) Form {
	f := Form{
		submit: submit,
		keys:   DefaultFormKeys(),
		theme:  theme,
	}
	for _, spec := range fields {
		in := textinput.New()
		in.Placeholder = spec.Placeholder
		in.Prompt = ""
		in.SetValue(spec.Value)
		if spec.CharLimit > 0 {
			in.CharLimit = spec.CharLimit
		}
		if spec.Password {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '*'
		}
		f.labels = append(f.labels, spec.Label)
		f.inputs = append(f.inputs, in)
	}
	f.setFocus(0)
	return f
}

// Keys returns the form bindings for help rendering.
func (f Form) Keys() FormKeys {
	return f.keys
}

// Len returns the number of fields.
func (f Form) Len() int {
	return len(f.inputs)
}

// Value returns the trimmed value of field i. Password fields are not trimmed.
func (f Form) Value(i int) string {
	if i < 0 || i >= len(f.inputs) {
		return ""
	}
	if f.inputs[i].EchoMode == textinput.EchoPassword {
		return f.inputs[i].Value()
	}
	return strings.TrimSpace(f.inputs[i].Value())
}

// SetValue replaces the value of field i.
func (f *Form) SetValue(i int, v string) {
	if i >= 0 && i < len(f.inputs) {
		f.inputs[i].SetValue(v)
	}
}

// Focused returns the focused index; Len() means the button.
func (f Form) Focused() int {
	return f.focus
}

// FocusField moves focus to field i.
func (f *Form) FocusField(i int) {
	f.setFocus(i)
}

func (f *Form) setFocus(i int) {
	n := len(f.inputs) + 1
	f.focus = ((i % n) + n) % n
	for j := range f.inputs {
		if j == f.focus {
			f.inputs[j].Focus()
		} else {
			f.inputs[j].Blur()
		}
	}
}

// Update handles navigation and typing. submitted is true when enter was
// pressed on the last field or on the button.
func (f Form) Update(msg tea.Msg) (Form, tea.Cmd, bool) {
	if f.Disabled {
		return f, nil, false
	}
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, f.keys.Submit):
			if f.focus >= len(f.inputs)-1 {
				return f, nil, true
			}
			f.setFocus(f.focus + 1)
			return f, textinput.Blink, false
		case key.Matches(km, f.keys.Next):
			f.setFocus(f.focus + 1)
			return f, textinput.Blink, false
		case key.Matches(km, f.keys.Prev):
			f.setFocus(f.focus - 1)
			return f, textinput.Blink, false
		}
	}
	if f.focus < len(f.inputs) {
		var cmd tea.Cmd
		f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
		return f, cmd, false
	}
	return f, nil, false
}

// View renders labels, inputs and the button.
func (f Form) View() string {
	labelStyle := lipgloss.NewStyle().Bold(true)
	focused := lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(styles.Teal).Padding(0, 1)
	blurred := lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(styles.Overlay).Padding(0, 1)
	button := lipgloss.NewStyle().Padding(0, 2)
	buttonActive := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 2)
	if f.theme != nil {
		labelStyle = f.theme.Label
		focused = f.theme.InputFocused
		blurred = f.theme.InputBlurred
		button = f.theme.Button
		buttonActive = f.theme.ButtonActive
	}

	var b strings.Builder
	for i, in := range f.inputs {
		b.WriteString(labelStyle.Render(f.labels[i]))
		b.WriteString("\n")
		box := blurred
		if i == f.focus {
			box = focused
		}
		b.WriteString(box.Width(40).Render(in.View()))
		b.WriteString("\n")
	}

	label := f.submit
	if f.Disabled {
		label = f.submit + "..."
	}
	if f.focus == len(f.inputs) {
		b.WriteString(buttonActive.Render(label))
	} else {
		b.WriteString(button.Render("[ " + label + " ]"))
	}
	return b.String()
}
