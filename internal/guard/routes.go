// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"strings"

	"github.com/jeranaias/hms-tui/internal/model"
)

// Route is one addressable screen.
type Route struct {
	Path    string
	Title   string
	Public  bool
	Allowed []model.Role

	// Role is set for login screens and dashboards.
	Role model.Role
}

// Protected reports whether the route goes through the guard.
func (r Route) Protected() bool {
	return !r.Public
}

// Routes is the route table, in display order.
type Routes []Route

func only(r model.Role) []model.Role { return []model.Role{r} }

// DefaultRoutes returns the application route table.
func DefaultRoutes(d Dashboards) Routes {
	if d == nil {
		d = DefaultDashboards()
	}
	routes := Routes{
		{Path: "/", Title: "Home", Public: true},
		{Path: "/register", Title: "Patient Registration", Public: true, Role: model.RolePatient},
		{Path: "/dashboards", Title: "Dashboards", Public: true},
	}
	for _, r := range model.AllRoles() {
		routes = append(routes, Route{
			Path:   "/login/" + string(r),
			Title:  r.DisplayName() + " Login",
			Public: true,
			Role:   r,
		})
	}
	for _, r := range model.AllRoles() {
		routes = append(routes, Route{
			Path:    d.For(r),
			Title:   r.DisplayName() + " Dashboard",
			Allowed: only(r),
			Role:    r,
		})
	}
	routes = append(routes,
		Route{Path: "/profile", Title: "My Profile", Allowed: only(model.RolePatient)},
		Route{Path: "/medical-records", Title: "Medical Records", Allowed: only(model.RolePatient)},
		Route{Path: "/appointments/history", Title: "Appointment History", Allowed: only(model.RolePatient)},
		Route{Path: "/staff/patients", Title: "Patients", Allowed: only(model.RoleStaff)},
		Route{Path: "/staff/appointments", Title: "Appointments", Allowed: only(model.RoleStaff)},
		Route{Path: "/doctor/schedule", Title: "My Schedule", Allowed: only(model.RoleDoctor)},
		Route{Path: "/doctor/patients", Title: "My Patients", Allowed: only(model.RoleDoctor)},
		Route{Path: "/doctor/prescriptions", Title: "Prescriptions", Allowed: only(model.RoleDoctor)},
		Route{Path: "/admin/users", Title: "User Management", Allowed: only(model.RoleAdmin)},
		Route{Path: "/admin/departments", Title: "Departments", Allowed: only(model.RoleAdmin)},
		Route{Path: "/admin/reports", Title: "Reports", Allowed: only(model.RoleAdmin)},
	)
	return routes
}

// Match finds the route for path. Trailing slashes and case are ignored.
func (rs Routes) Match(path string) (Route, bool) {
	p := normalizePath(path)
	for _, r := range rs {
		if r.Path == p {
			return r, true
		}
	}
	return Route{}, false
}

// Dashboards returns the dashboard routes, one per role.
func (rs Routes) Dashboards() Routes {
	var out Routes
	for _, r := range rs {
		if !r.Public && r.Role != "" {
			out = append(out, r)
		}
	}
	return out
}

// For returns the protected routes a role may open, dashboard first.
func (rs Routes) For(role model.Role) Routes {
	var out Routes
	for _, r := range rs {
		if r.Protected() && model.ContainsRole(r.Allowed, role) {
			out = append(out, r)
		}
	}
	return out
}

func normalizePath(path string) string {
	p := strings.ToLower(strings.TrimSpace(path))
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
