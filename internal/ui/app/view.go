// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
)

// loginDescriptions is the subtitle of each portal's login screen.
var loginDescriptions = map[model.Role]string{
	model.RoleAdmin:   "Manage users, departments and hospital reports",
	model.RoleDoctor:  "Access your schedule, patients and prescriptions",
	model.RoleStaff:   "Manage patient records and appointments",
	model.RolePatient: "View your appointments and medical records",
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the current screen with header and footer.
func (m Model) View() string {
	if m.expiry.Visible() {
		return m.expiry.View()
	}

	var body string
	switch m.screen {
	case screenLanding:
		body = m.viewLanding()
	case screenDashboards:
		body = m.viewMenuScreen("Dashboards", "Every portal in the system. Each one requires its own role.")
	case screenLogin:
		body = m.viewLogin()
	case screenRegister:
		body = m.viewRegister()
	case screenProtected:
		body = m.viewProtected()
	default:
		body = m.viewNotFound()
	}

	parts := []string{m.viewHeader(), m.theme.App.Render(body)}
	if m.help.ShowAll || !m.isForm() {
		parts = append(parts, m.theme.Muted.Render(m.help.View(m.keys)))
	}
	if m.showBar {
		parts = append(parts, m.statusBar.View())
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewHeader() string {
	title := "Not Found"
	if m.found {
		title = m.route.Title
	}
	return m.theme.Header.Width(m.width).Render(
		m.theme.HeaderBrand.Render("HMS") + "  " + m.theme.HeaderTitle.Render(title),
	)
}

func (m Model) viewMenu() string {
	var b strings.Builder
	for i, item := range m.menu() {
		if i == m.cursor {
			b.WriteString(m.theme.MenuItemSelected.Render("> " + item.label))
		} else {
			b.WriteString(m.theme.MenuItem.Render(item.label))
		}
		if item.path != "" {
			b.WriteString(" " + m.theme.MenuKey.Render(item.path))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewMenuScreen(title, subtitle string) string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render(title) + "\n")
	b.WriteString(m.theme.Subtitle.Render(subtitle) + "\n\n")
	b.WriteString(m.viewMenu())
	return b.String()
}

func (m Model) viewLanding() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Hospital Management System") + "\n")
	if m.snap.Valid && m.snap.User != nil {
		b.WriteString(m.theme.Subtitle.Render("Signed in as "+displayName(m.snap.User)) + " " +
			m.theme.RoleBadge(m.snap.User.Role) + "\n\n")
	} else {
		b.WriteString(m.theme.Subtitle.Render("Choose your portal to sign in") + "\n\n")
	}
	if m.flash != "" {
		b.WriteString(m.flash + "\n\n")
	}
	b.WriteString(m.viewMenu())
	return b.String()
}

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(m.theme.RoleBadge(m.loginRole) + " " + m.theme.HeaderTitle.Render(m.route.Title) + "\n")
	b.WriteString(m.theme.Subtitle.Render(loginDescriptions[m.loginRole]) + "\n\n")
	if m.notice != "" {
		b.WriteString(styles.RenderSuccess(m.notice) + "\n\n")
	}
	b.WriteString(m.login.View() + "\n")
	b.WriteString(m.viewFormStatus())
	if m.loginRole == model.RolePatient {
		b.WriteString("\n" + m.theme.Muted.Render("New patient? Go back and choose \"Register as a new patient\"."))
	}
	return m.theme.Card.Render(b.String())
}

func (m Model) viewRegister() string {
	var b strings.Builder
	b.WriteString(m.theme.HeaderTitle.Render("Create your patient account") + "\n")
	b.WriteString(m.theme.Subtitle.Render("All fields except age, gender, address and blood group are required") + "\n\n")
	b.WriteString(m.register.View() + "\n")
	b.WriteString(m.viewFormStatus())
	return m.theme.Card.Render(b.String())
}

func (m Model) viewFormStatus() string {
	switch {
	case m.submitting:
		return m.busy.View() + "\n"
	case m.formErr != "":
		return styles.RenderError(m.formErr) + "\n"
	}
	return ""
}

func (m Model) viewProtected() string {
	switch m.decision.State {
	case guard.StateLoading:
		return lipgloss.Place(m.width-2, 7, lipgloss.Center, lipgloss.Center, m.access.View())
	case guard.StateAuthorized:
	default:
		// A redirect has already replaced this route; this frame is never kept.
		return m.theme.Muted.Render("Redirecting...")
	}

	u := m.snap.User
	var b strings.Builder
	if m.route.Role != "" {
		b.WriteString(m.theme.HeaderTitle.Render("Welcome, "+displayName(u)) + " " + m.theme.RoleBadge(u.Role) + "\n\n")
		b.WriteString(m.profile.Render(u, m.snap, min(m.width-4, 72)) + "\n\n")
	} else {
		b.WriteString(m.theme.HeaderTitle.Render(m.route.Title) + "\n")
		b.WriteString(m.theme.Subtitle.Render("Restricted to "+allowedNames(m.route.Allowed)+" accounts") + "\n\n")
	}
	if m.flash != "" {
		b.WriteString(m.flash + "\n\n")
	}
	b.WriteString(m.viewMenu())
	return b.String()
}

func (m Model) viewNotFound() string {
	var b strings.Builder
	b.WriteString(m.theme.Denied.Render("404 - Page not found") + "\n")
	b.WriteString(m.theme.Subtitle.Render("There is no screen at "+m.path) + "\n\n")
	b.WriteString(m.viewMenu())
	return b.String()
}

func displayName(u *model.User) string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func allowedNames(roles []model.Role) string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.DisplayName())
	}
	return strings.Join(names, ", ")
}
