// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"
	"log"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
)

// profileCard renders the signed-in user as markdown. The renderer is
// rebuilt only when the wrap width changes.
type profileCard struct {
	style    string
	width    int
	renderer *glamour.TermRenderer

	lastSource string
	lastOut    string
}

func newProfileCard(theme *styles.Theme) *profileCard {
	style := "light"
	switch {
	case theme.ColorProfile == termenv.Ascii:
		style = "notty"
	case theme.IsDark:
		style = "dark"
	}
	return &profileCard{style: style}
}

// profileMarkdown describes the user and session as a small table.
func profileMarkdown(u *model.User, snap session.Snapshot) string {
	var b strings.Builder
	name := u.Name
	if name == "" {
		name = u.Email
	}
	fmt.Fprintf(&b, "## %s\n\n", name)
	b.WriteString("| Field | Value |\n|---|---|\n")
	row := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, "| %s | %s |\n", k, strings.ReplaceAll(v, "|", "/"))
		}
	}
	row("Email", u.Email)
	row("Role", u.Role.DisplayName())
	row("Registration No.", u.RegistrationNumber)
	row("Mobile", u.Mobile)
	if !snap.LoginTime.IsZero() {
		row("Signed in", snap.LoginTime.Format("2006-01-02 15:04"))
	}
	if !snap.ExpiresAt.IsZero() {
		row("Session expires", snap.ExpiresAt.Format("2006-01-02 15:04"))
	}
	return b.String()
}

// Render returns the card for width columns. Rendering failures fall back to
// the raw markdown.
func (p *profileCard) Render(u *model.User, snap session.Snapshot, width int) string {
	if u == nil {
		return ""
	}
	if width < 20 {
		width = 20
	}
	src := profileMarkdown(u, snap)

	if p.renderer == nil || p.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(p.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			log.Printf("ui: profile renderer: %v", err)
			return src
		}
		p.renderer = r
		p.width = width
		p.lastSource = ""
	}

	if src == p.lastSource {
		return p.lastOut
	}
	out, err := p.renderer.Render(src)
	if err != nil {
		log.Printf("ui: profile render: %v", err)
		return src
	}
	p.lastSource, p.lastOut = src, strings.TrimRight(out, "\n")
	return p.lastOut
}
