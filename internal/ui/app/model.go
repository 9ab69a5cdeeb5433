// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/ui/components"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
	"github.com/jeranaias/hms-tui/internal/util"
)

// Registrar creates patient accounts.
type Registrar interface {
	Register(ctx context.Context, req api.RegisterRequest) (*model.User, error)
}

// Options wires the UI to the session store and backend.
type Options struct {
	Context   context.Context
	Store     *session.Store
	Guard     *guard.Guard
	Routes    guard.Routes
	Registrar Registrar
	Theme     *styles.Theme

	// Changes fires when another process touches the session keyspace
	Changes <-chan struct{}

	StartPath       string
	RefreshInterval time.Duration
	WarnWindow      time.Duration
	RequestTimeout  time.Duration
	ShowStatusBar   bool
}

// screen is what the current route renders.
type screen int

const (
	screenNotFound screen = iota
	screenLanding
	screenDashboards
	screenLogin
	screenRegister
	screenProtected
)

// Register form field order
const (
	regName = iota
	regEmail
	regMobile
	regPassword
	regConfirm
	regAge
	regGender
	regAddress
	regBloodGroup
)

// menuItem is one selectable line on a menu screen.
type menuItem struct {
	label  string
	path   string
	logout bool
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the root Bubble Tea model. Every route is a screen addressed by
// path; protected routes go through the guard on every update.
type Model struct {
	ctx       context.Context
	store     *session.Store
	guard     *guard.Guard
	routes    guard.Routes
	registrar Registrar
	changes   <-chan struct{}

	theme     *styles.Theme
	keys      KeyMap
	help      help.Model
	statusBar *components.StatusBar
	showBar   bool
	access    components.Spinner
	busy      components.Spinner
	expiry    components.ExpiryOverlay
	profile   *profileCard

	observer       *session.ActivityObserver
	warn           *session.WarningTracker
	requestTimeout time.Duration

	// Routing
	path     string
	history  []string
	route    guard.Route
	found    bool
	screen   screen
	decision guard.Decision
	snap     session.Snapshot

	// Screen state, dropped on every navigation
	cursor     int
	login      components.Form
	loginRole  model.Role
	register   components.Form
	submitting bool
	formErr    string
	notice     string
	flash      string

	initialized bool
	accessTick  tea.Cmd
	width       int
	height      int
}

// New creates the model. The store must not have been initialized yet; the
// model does that in Init so the loading screen is visible.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}
	g := opts.Guard
	if g == nil {
		g = guard.New(nil)
	}
	routes := opts.Routes
	if routes == nil {
		routes = guard.DefaultRoutes(g.Dashboards())
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = api.DefaultTimeout
	}

	keys := DefaultKeyMap()
	bar := components.NewStatusBar(theme)
	bar.WarnWindow = opts.WarnWindow
	bar.Shortcuts = []components.Shortcut{
		{Key: keys.Logout.Help().Key, Desc: keys.Logout.Help().Desc},
		{Key: keys.Quit.Help().Key, Desc: keys.Quit.Help().Desc},
	}

	m := Model{
		ctx:            ctx,
		store:          opts.Store,
		guard:          g,
		routes:         routes,
		registrar:      opts.Registrar,
		changes:        opts.Changes,
		theme:          theme,
		keys:           keys,
		help:           help.New(),
		statusBar:      bar,
		showBar:        opts.ShowStatusBar,
		access:         components.NewAccessSpinner(),
		busy:           components.NewRequestSpinner("Please wait"),
		expiry:         components.NewExpiryOverlay(),
		profile:        newProfileCard(theme),
		observer:       session.NewActivityObserver(opts.Store, opts.RefreshInterval),
		warn:           &session.WarningTracker{Window: opts.WarnWindow},
		requestTimeout: timeout,
		width:          theme.Width,
		height:         theme.Height,
	}
	m.accessTick = m.access.Start()

	start := opts.StartPath
	if start == "" {
		start = guard.LandingPath
	}
	m.setPath(start)
	m.evaluate()
	return m
}

// Path returns the current route.
func (m Model) Path() string {
	return m.path
}

// Decision returns the last guard decision for the current route.
func (m Model) Decision() guard.Decision {
	return m.decision
}

// Close detaches the activity observer.
func (m Model) Close() {
	m.observer.Detach()
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts session initialization, the expiry ticker and the storage watch.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		initializeCmd(m.ctx, m.store),
		session.TickCmd(),
		m.accessTick,
		waitForStorage(m.changes),
	)
}

// Update handles messages and re-evaluates the guard.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.observer.Observe(msg) {
		m.flash = ""
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.theme.SetSize(msg.Width, msg.Height)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		m.expiry.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if m.expiry.Visible() && !key.Matches(msg, m.keys.Quit) {
			// Public screens have no observer attached, so dismissing refreshes here
			if err := m.store.RefreshSession(); err != nil {
				log.Printf("session refresh failed: %v", err)
			}
			m.expiry.Hide()
			break
		}
		var cmd tea.Cmd
		m, cmd = m.handleKey(msg)
		cmds = append(cmds, cmd)

	case initializedMsg:
		m.initialized = true
		m.access.Stop()

	case session.ChangedMsg:
		// evaluate below reads the store directly

	case session.TickMsg:
		cmds = append(cmds, m.store.HandleTick(m.warn))

	case session.ExpiryWarningMsg:
		m.flash = "Session expires in " + util.FormatRemaining(msg.Remaining) + ". Press any key to stay signed in."
		m.expiry.Show(msg.Remaining)

	case storageChangedMsg:
		m.store.Reload()
		cmds = append(cmds, waitForStorage(m.changes))

	case NavigateMsg:
		m.resetScreen()
		m.replace(msg.Path)

	case loginResultMsg:
		m = m.handleLoginResult(msg)

	case registerResultMsg:
		m = m.handleRegisterResult(msg)

	case spinner.TickMsg:
		var c1, c2 tea.Cmd
		m.access, c1 = m.access.Update(msg)
		m.busy, c2 = m.busy.Update(msg)
		cmds = append(cmds, c1, c2)

	default:
		var cmd tea.Cmd
		m, cmd = m.updateForm(msg)
		cmds = append(cmds, cmd)
	}

	m.evaluate()
	return m, tea.Batch(cmds...)
}

// =============================================================================
// GUARD EVALUATION
// =============================================================================

// evaluate refreshes the snapshot and applies the guard to the current route.
// Redirects replace the current route; the observer is attached only while a
// protected screen is Authorized.
func (m *Model) evaluate() {
	for i := 0; i < 4; i++ {
		m.snap = m.store.Snapshot()
		if m.screen != screenProtected {
			m.decision = guard.Decision{State: guard.StateAuthorized}
			break
		}
		m.decision = m.guard.Evaluate(m.snap, m.route.Allowed)
		if !m.decision.Redirects() {
			break
		}
		m.replace(m.decision.Redirect)
	}

	if m.screen == screenProtected && m.decision.State == guard.StateAuthorized {
		m.observer.Attach()
	} else if m.observer.Attached() {
		m.observer.Detach()
	}

	m.statusBar.Path = m.path
	m.statusBar.SetSession(m.snap)
	if m.flash != "" && !m.statusBar.Warning() && strings.HasPrefix(m.flash, "Session expires") {
		m.flash = ""
	}
	if m.expiry.Visible() {
		if m.statusBar.Warning() {
			m.expiry.SetRemaining(m.snap.Remaining())
		} else {
			m.expiry.Hide()
		}
	}
	m.statusBar.Message = m.flash
}

// =============================================================================
// NAVIGATION
// =============================================================================

// push navigates forward, keeping the current route for Back.
func (m *Model) push(path string) {
	m.history = append(m.history, m.path)
	m.setPath(path)
}

// replace navigates without adding a history entry.
func (m *Model) replace(path string) {
	m.setPath(path)
}

func (m *Model) back() {
	if len(m.history) == 0 {
		return
	}
	prev := m.history[len(m.history)-1]
	m.history = m.history[:len(m.history)-1]
	m.setPath(prev)
}

// setPath unmounts the current screen and mounts the one for path.
func (m *Model) setPath(path string) {
	if m.observer.Attached() {
		m.observer.Detach()
	}

	m.route, m.found = m.routes.Match(path)
	if m.found {
		m.path = m.route.Path
	} else {
		m.path = path
	}
	m.cursor = 0
	m.formErr = ""
	m.submitting = false
	m.busy.Stop()

	switch {
	case !m.found:
		m.screen = screenNotFound
	case m.route.Protected():
		m.screen = screenProtected
	case m.route.Path == guard.LandingPath:
		m.screen = screenLanding
	case m.route.Path == "/dashboards":
		m.screen = screenDashboards
	case m.route.Path == "/register":
		m.screen = screenRegister
		m.register = newRegisterForm(m.theme)
	case strings.HasPrefix(m.route.Path, "/login/"):
		m.screen = screenLogin
		m.loginRole = m.route.Role
		m.login = newLoginForm(m.theme)
	default:
		m.screen = screenNotFound
	}
}

// resetScreen drops every piece of screen state, as a full reload would.
func (m *Model) resetScreen() {
	m.history = nil
	m.notice = ""
	m.flash = ""
	m.formErr = ""
	m.help.ShowAll = false
}

func newLoginForm(theme *styles.Theme) components.Form {
	return components.NewForm(theme, "Sign In",
		components.FieldSpec{Label: "Email", Placeholder: "you@hospital.org", CharLimit: 254},
		components.FieldSpec{Label: "Password", Password: true, CharLimit: 128},
	)
}

func newRegisterForm(theme *styles.Theme) components.Form {
	return components.NewForm(theme, "Register",
		components.FieldSpec{Label: "Full Name", CharLimit: 120},
		components.FieldSpec{Label: "Email", Placeholder: "you@example.com", CharLimit: 254},
		components.FieldSpec{Label: "Mobile", CharLimit: 20},
		components.FieldSpec{Label: "Password", Password: true, CharLimit: 128},
		components.FieldSpec{Label: "Confirm Password", Password: true, CharLimit: 128},
		components.FieldSpec{Label: "Age", CharLimit: 3},
		components.FieldSpec{Label: "Gender", Placeholder: "male / female / other", CharLimit: 16},
		components.FieldSpec{Label: "Address", CharLimit: 200},
		components.FieldSpec{Label: "Blood Group", Placeholder: "e.g. O+", CharLimit: 4},
	)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.observer.Detach()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Logout):
		if m.snap.User == nil {
			return m, nil
		}
		return m.logout(), nil

	case key.Matches(msg, m.keys.Back):
		if !m.submitting {
			m.back()
		}
		return m, nil
	}

	if m.isForm() {
		return m.updateForm(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if n := len(m.menu()); n > 0 {
			m.cursor = (m.cursor - 1 + n) % n
		}
	case key.Matches(msg, m.keys.Down):
		if n := len(m.menu()); n > 0 {
			m.cursor = (m.cursor + 1) % n
		}
	case key.Matches(msg, m.keys.Select):
		return m.selectItem()
	}
	return m, nil
}

// logout ends the session and lands on "/" with no screen state left.
func (m Model) logout() Model {
	err := m.store.Logout()
	m.resetScreen()
	if err != nil {
		m.flash = styles.RenderError(err.Error())
	}
	m.replace(guard.LandingPath)
	return m
}

func (m Model) isForm() bool {
	return m.screen == screenLogin || m.screen == screenRegister
}

func (m Model) selectItem() (Model, tea.Cmd) {
	items := m.menu()
	if m.cursor < 0 || m.cursor >= len(items) {
		return m, nil
	}
	item := items[m.cursor]
	if item.logout {
		return m.logout(), nil
	}
	m.push(item.path)
	return m, nil
}

// menu returns the selectable items of the current screen.
func (m Model) menu() []menuItem {
	signedIn := m.snap.Valid && m.snap.User != nil
	var items []menuItem

	switch m.screen {
	case screenLanding:
		if signedIn {
			items = append(items, menuItem{label: "Go to my dashboard", path: m.guard.HomeFor(m.snap.User)})
		}
		for _, r := range model.AllRoles() {
			items = append(items, menuItem{label: r.DisplayName() + " Login", path: "/login/" + string(r)})
		}
		items = append(items,
			menuItem{label: "Register as a new patient", path: "/register"},
			menuItem{label: "Browse dashboards", path: "/dashboards"},
		)
		if signedIn {
			items = append(items, menuItem{label: "Sign out", logout: true})
		}

	case screenDashboards:
		for _, r := range m.routes.Dashboards() {
			items = append(items, menuItem{label: r.Title, path: r.Path})
		}

	case screenProtected:
		if m.decision.State != guard.StateAuthorized || m.snap.User == nil {
			return nil
		}
		for _, r := range m.routes.For(m.snap.User.Role) {
			if r.Path != m.path {
				items = append(items, menuItem{label: r.Title, path: r.Path})
			}
		}
		items = append(items, menuItem{label: "Sign out", logout: true})

	case screenNotFound:
		items = append(items, menuItem{label: "Go home", path: guard.LandingPath})
	}
	return items
}

// =============================================================================
// FORMS
// =============================================================================

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	var (
		cmd       tea.Cmd
		submitted bool
	)
	switch m.screen {
	case screenLogin:
		m.login, cmd, submitted = m.login.Update(msg)
		if submitted {
			return m.submitLogin()
		}
	case screenRegister:
		m.register, cmd, submitted = m.register.Update(msg)
		if submitted {
			return m.submitRegister()
		}
	}
	return m, cmd
}

func (m Model) submitLogin() (Model, tea.Cmd) {
	email, password := m.login.Value(0), m.login.Value(1)
	if email == "" || password == "" {
		m.formErr = "Please enter your email and password"
		return m, nil
	}
	m.formErr = ""
	m.notice = ""
	m.submitting = true
	m.login.Disabled = true
	m.busy.SetMessage("Signing in")
	return m, tea.Batch(m.busy.Start(), m.loginCmd(email, password, m.loginRole))
}

func (m Model) handleLoginResult(msg loginResultMsg) Model {
	if m.screen != screenLogin || msg.Role != m.loginRole {
		return m
	}
	m.submitting = false
	m.login.Disabled = false
	m.busy.Stop()

	if msg.Err != nil {
		m.formErr = msg.Err.Error()
		m.login.SetValue(1, "")
		m.login.FocusField(1)
		return m
	}
	m.notice = ""
	m.push(m.guard.HomeFor(m.store.User()))
	return m
}

func (m Model) submitRegister() (Model, tea.Cmd) {
	f := m.register
	if m.registrar == nil {
		m.formErr = "Registration is unavailable"
		return m, nil
	}
	if f.Value(regPassword) != f.Value(regConfirm) {
		m.formErr = "Passwords do not match"
		return m, nil
	}

	age := 0
	if s := f.Value(regAge); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			m.formErr = "Age must be a number"
			return m, nil
		}
		age = n
	}

	req := api.RegisterRequest{
		Name:     f.Value(regName),
		Email:    f.Value(regEmail),
		Password: f.Value(regPassword),
		Role:     model.RolePatient,
		Mobile:   f.Value(regMobile),
		PatientData: &api.PatientData{
			Age:        age,
			Gender:     f.Value(regGender),
			Phone:      f.Value(regMobile),
			Address:    f.Value(regAddress),
			BloodGroup: f.Value(regBloodGroup),
		},
	}
	if err := req.Validate(); err != nil {
		m.formErr = err.Error()
		return m, nil
	}

	m.formErr = ""
	m.submitting = true
	m.register.Disabled = true
	m.busy.SetMessage("Creating account")
	return m, tea.Batch(m.busy.Start(), m.registerCmd(req))
}

func (m Model) handleRegisterResult(msg registerResultMsg) Model {
	if m.screen != screenRegister {
		return m
	}
	m.submitting = false
	m.register.Disabled = false
	m.busy.Stop()

	if msg.Err != nil {
		m.formErr = msg.Err.Error()
		return m
	}
	m.push("/login/" + string(model.RolePatient))
	m.login.SetValue(0, msg.Email)
	m.login.FocusField(1)
	m.notice = "Registration successful! Please sign in with your new account."
	return m
}
