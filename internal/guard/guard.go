// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package guard

import (
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
)

// LandingPath is where unauthenticated users and unknown roles are sent.
const LandingPath = "/"

// =============================================================================
// STATE
// =============================================================================

// State is the outcome of a guard evaluation.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateForbidden
	StateAuthorized
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateForbidden:
		return "Forbidden"
	case StateAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// Decision is what the screen should do. Redirect is empty unless the state
// is Unauthenticated or Forbidden; redirects always replace the current route.
type Decision struct {
	State    State
	Redirect string
}

// Redirects reports whether the decision navigates away.
func (d Decision) Redirects() bool {
	return d.Redirect != ""
}

// =============================================================================
// DASHBOARDS
// =============================================================================

// Dashboards maps a role to its home route.
type Dashboards map[model.Role]string

// DefaultDashboards returns /{role}/dashboard for every role.
func DefaultDashboards() Dashboards {
	d := make(Dashboards, len(model.AllRoles()))
	for _, r := range model.AllRoles() {
		d[r] = "/" + string(r) + "/dashboard"
	}
	return d
}

// For returns the dashboard for role, or LandingPath for an unknown role.
func (d Dashboards) For(role model.Role) string {
	if p, ok := d[role]; ok && p != "" {
		return p
	}
	return LandingPath
}

// =============================================================================
// GUARD
// =============================================================================

// Guard evaluates access for guarded screens.
type Guard struct {
	dashboards Dashboards
}

// New creates a guard. A nil table uses DefaultDashboards.
func New(dashboards Dashboards) *Guard {
	if dashboards == nil {
		dashboards = DefaultDashboards()
	}
	return &Guard{dashboards: dashboards}
}

// Dashboards returns the injected table.
func (g *Guard) Dashboards() Dashboards {
	return g.dashboards
}

// Evaluate decides access for a screen that admits allowed. An empty allowed
// set admits nobody.
func (g *Guard) Evaluate(snap session.Snapshot, allowed []model.Role) Decision {
	if snap.Loading {
		return Decision{State: StateLoading}
	}
	if !snap.Valid || snap.User == nil {
		return Decision{State: StateUnauthenticated, Redirect: LandingPath}
	}
	if !model.ContainsRole(allowed, snap.User.Role) {
		return Decision{State: StateForbidden, Redirect: g.dashboards.For(snap.User.Role)}
	}
	return Decision{State: StateAuthorized}
}

// HomeFor returns where a signed-in user lands after login.
func (g *Guard) HomeFor(user *model.User) string {
	if user == nil {
		return LandingPath
	}
	return g.dashboards.For(user.Role)
}
