// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/storage"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAuth struct {
	users map[string]*model.User
	err   error
}

func (a *testAuth) Login(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	if a.err != nil {
		return nil, a.err
	}
	u, ok := a.users[req.Email]
	if !ok || req.Password != "secret1" {
		return nil, &api.APIError{Status: 401, Message: "Invalid credentials"}
	}
	return &api.LoginResponse{Token: "tok-" + u.ID, User: u.Clone()}, nil
}

func (a *testAuth) CurrentUser(context.Context, string) (*model.User, error) {
	return nil, errors.New("not used")
}

type testRegistrar struct {
	got *api.RegisterRequest
	err error
}

func (r *testRegistrar) Register(_ context.Context, req api.RegisterRequest) (*model.User, error) {
	r.got = &req
	if r.err != nil {
		return nil, r.err
	}
	return &model.User{ID: "99", Email: req.Email, Role: model.RolePatient}, nil
}

type fixture struct {
	kv    *storage.MemoryStore
	auth  *testAuth
	clock *testClock
	store *session.Store
	reg   *testRegistrar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kv: storage.NewMemoryStore(),
		auth: &testAuth{users: map[string]*model.User{
			"grey@example.com":  {ID: "7", Name: "Meredith Grey", Email: "grey@example.com", Role: model.RoleDoctor},
			"admin@example.com": {ID: "1", Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin},
		}},
		clock: &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		reg:   &testRegistrar{},
	}
	f.store = session.NewStore(f.kv, f.auth,
		session.WithClock(f.clock.Now),
		session.WithDuration(24*time.Hour),
	)
	return f
}

// model builds a model at start; ready runs Initialize first.
func (f *fixture) model(start string, ready bool) Model {
	if ready {
		f.store.Initialize(context.Background())
	}
	m := New(Options{
		Store:           f.store,
		Guard:           guard.New(nil),
		Registrar:       f.reg,
		Theme:           styles.NewTheme(styles.ModeDark),
		StartPath:       start,
		RefreshInterval: time.Millisecond,
		WarnWindow:      10 * time.Minute,
		ShowStatusBar:   true,
	})
	if ready {
		m = send(m, initializedMsg{})
	}
	return m
}

func (f *fixture) signIn(t *testing.T, email string, role model.Role) {
	t.Helper()
	require.NoError(t, f.store.Login(context.Background(), email, "secret1", role))
}

func send(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func sendCmd(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m = send(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func keyPress(m Model, k tea.KeyType) Model {
	return send(m, tea.KeyMsg{Type: k})
}

// collect runs cmd and every command it batches, returning the messages.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func findMsg[T any](msgs []tea.Msg) (T, bool) {
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// ===== GUARD STATE TESTS

func TestModel_LoadingShowsVerifyingAccess(t *testing.T) {
	f := newFixture(t)
	m := f.model("/doctor/dashboard", false)

	assert.Equal(t, guard.StateLoading, m.Decision().State)
	assert.Equal(t, "/doctor/dashboard", m.Path(), "loading never redirects")
	assert.Contains(t, m.View(), "Verifying Access")
	assert.Contains(t, m.View(), "Please wait while we verify your credentials...")
}

func TestModel_UnauthenticatedRedirectsHome(t *testing.T) {
	f := newFixture(t)
	m := f.model("/doctor/dashboard", false)

	f.store.Initialize(context.Background())
	m = send(m, initializedMsg{})

	assert.Equal(t, "/", m.Path())
	assert.False(t, m.observer.Attached())
}

func TestModel_ForbiddenRedirectsToOwnDashboard(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)

	m := f.model("/admin/users", true)

	assert.Equal(t, "/doctor/dashboard", m.Path())
	assert.Equal(t, guard.StateAuthorized, m.Decision().State)
}

func TestModel_AuthorizedRendersDashboard(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)

	m := f.model("/doctor/dashboard", true)

	assert.Equal(t, guard.StateAuthorized, m.Decision().State)
	assert.True(t, m.observer.Attached(), "observer attaches on an authorized mount")
	view := m.View()
	assert.Contains(t, view, "Welcome, Meredith Grey")
	assert.Contains(t, view, "My Schedule")
}

func TestModel_NotFound(t *testing.T) {
	f := newFixture(t)
	m := f.model("/nowhere", true)

	assert.Contains(t, m.View(), "404")
	m = keyPress(m, tea.KeyEnter)
	assert.Equal(t, "/", m.Path())
}

// ===== LOGIN TESTS

func loginThroughForm(t *testing.T, m Model, email, password string) Model {
	t.Helper()
	m = typeText(m, email)
	m = keyPress(m, tea.KeyTab)
	m = typeText(m, password)
	m, cmd := sendCmd(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.submitting)

	res, ok := findMsg[loginResultMsg](collect(cmd))
	require.True(t, ok, "submit should issue a login command")
	return send(m, res)
}

func TestModel_LoginRedirectsToDashboard(t *testing.T) {
	f := newFixture(t)
	m := f.model("/login/doctor", true)

	m = loginThroughForm(t, m, "grey@example.com", "secret1")

	assert.Equal(t, "/doctor/dashboard", m.Path())
	assert.True(t, f.store.IsValid())
	assert.True(t, m.observer.Attached())
}

func TestModel_LoginFailureShowsMessage(t *testing.T) {
	f := newFixture(t)
	m := f.model("/login/doctor", true)

	m = loginThroughForm(t, m, "grey@example.com", "wrong-pass")

	assert.Equal(t, "/login/doctor", m.Path())
	assert.Equal(t, "Invalid credentials", m.formErr)
	assert.Empty(t, m.login.Value(1), "password is cleared after a failure")
	assert.Equal(t, 0, f.kv.Len(), "a failed login leaves storage untouched")
	assert.Contains(t, m.View(), "Invalid credentials")
}

func TestModel_LoginNetworkError(t *testing.T) {
	f := newFixture(t)
	f.auth.err = &api.NetworkError{Op: "POST /auth/login", Err: errors.New("connection refused")}
	m := f.model("/login/doctor", true)

	m = loginThroughForm(t, m, "grey@example.com", "secret1")

	assert.Equal(t, "Network error: Unable to connect to the server", m.formErr)
}

func TestModel_LoginRequiresFields(t *testing.T) {
	f := newFixture(t)
	m := f.model("/login/staff", true)

	m = keyPress(m, tea.KeyTab)
	m = keyPress(m, tea.KeyEnter)

	assert.False(t, m.submitting)
	assert.Equal(t, "Please enter your email and password", m.formErr)
}

// ===== LOGOUT AND EXPIRY TESTS

func TestModel_LogoutKeyClearsEverything(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/doctor/dashboard", true)
	require.True(t, m.observer.Attached())

	m = send(m, tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Equal(t, "/", m.Path())
	assert.False(t, f.store.IsValid())
	assert.False(t, m.observer.Attached())
	assert.Equal(t, 0, f.kv.Len())
	assert.Empty(t, m.history)
}

func TestModel_ExpiryTickEjects(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/doctor/patients", true)
	require.Equal(t, "/doctor/patients", m.Path())

	f.clock.Advance(24*time.Hour + time.Second)
	m = send(m, session.TickMsg{Time: f.clock.Now()})

	assert.Equal(t, "/", m.Path())
	assert.Equal(t, 0, f.kv.Len(), "expired session is discarded from storage")
}

func TestModel_ExpiryWarningFlash(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/doctor/dashboard", true)

	f.clock.Advance(24*time.Hour - 5*time.Minute)
	m = send(m, session.ExpiryWarningMsg{Remaining: 5 * time.Minute})

	assert.Contains(t, m.flash, "Session expires in 5m 00s")
	assert.True(t, m.statusBar.Warning())
	assert.True(t, m.expiry.Visible())
	assert.Contains(t, m.View(), "Press any key to stay signed in")

	// The dismissing key refreshes the session and is not acted on
	m = keyPress(m, tea.KeyDown)
	assert.False(t, m.expiry.Visible())
	assert.Equal(t, 0, m.cursor)
	assert.Empty(t, m.flash)
	want := f.clock.Now().Add(24 * time.Hour).UnixMilli()
	assert.Equal(t, want, f.store.ExpiresAt().UnixMilli())
}

func TestModel_ExpiryWarningDismissedOnPublicScreen(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/", true)
	require.False(t, m.observer.Attached())

	f.clock.Advance(24*time.Hour - 5*time.Minute)
	m = send(m, session.ExpiryWarningMsg{Remaining: 5 * time.Minute})
	require.True(t, m.expiry.Visible())
	assert.Contains(t, m.View(), "Press any key to stay signed in")

	m = keyPress(m, tea.KeyDown)
	assert.False(t, m.expiry.Visible())
	assert.Equal(t, "/", m.Path())
	assert.Equal(t, 0, m.cursor)
	want := f.clock.Now().Add(24 * time.Hour).UnixMilli()
	assert.Equal(t, want, f.store.ExpiresAt().UnixMilli())
	assert.True(t, f.store.IsValid())
}

func TestModel_ActivityRefreshesSession(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/doctor/dashboard", true)

	f.clock.Advance(time.Hour)
	m = typeText(m, "j")

	want := f.clock.Now().Add(24 * time.Hour).UnixMilli()
	assert.Equal(t, want, f.store.ExpiresAt().UnixMilli())
	assert.Equal(t, 1, m.cursor)
}

func TestModel_ExternalLogoutEjects(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "grey@example.com", model.RoleDoctor)
	m := f.model("/doctor/dashboard", true)

	// Another terminal signs out
	require.NoError(t, f.kv.Apply(storage.NewBatch().Delete(storage.SessionKeys...)))
	m = send(m, storageChangedMsg{})

	assert.Equal(t, "/", m.Path())
	assert.False(t, f.store.IsValid())
}

func TestModel_NavigateMsgDropsState(t *testing.T) {
	f := newFixture(t)
	m := f.model("/", true)
	m = keyPress(m, tea.KeyDown)
	m = keyPress(m, tea.KeyEnter)
	require.Equal(t, "/login/doctor", m.Path())
	require.Len(t, m.history, 1)

	m = send(m, NavigateMsg{Path: "/"})

	assert.Equal(t, "/", m.Path())
	assert.Empty(t, m.history)
}

// ===== NAVIGATION TESTS

func TestModel_MenuAndBack(t *testing.T) {
	f := newFixture(t)
	m := f.model("/", true)

	m = keyPress(m, tea.KeyDown)
	m = keyPress(m, tea.KeyEnter)
	assert.Equal(t, "/login/doctor", m.Path())

	m = keyPress(m, tea.KeyEsc)
	assert.Equal(t, "/", m.Path())
}

func TestModel_DashboardsListsEveryPortal(t *testing.T) {
	f := newFixture(t)
	m := f.model("/dashboards", true)

	view := m.View()
	for _, r := range model.AllRoles() {
		assert.Contains(t, view, "/"+string(r)+"/dashboard")
	}
}

// ===== REGISTRATION TESTS

func fillRegister(m Model, values map[int]string) Model {
	for i := 0; i < m.register.Len(); i++ {
		m = typeText(m, values[i])
		if i < m.register.Len()-1 {
			m = keyPress(m, tea.KeyTab)
		}
	}
	return m
}

func TestModel_RegisterSendsToPatientLogin(t *testing.T) {
	f := newFixture(t)
	m := f.model("/register", true)

	m = fillRegister(m, map[int]string{
		regName:       "Pat Doe",
		regEmail:      "pat@example.com",
		regMobile:     "5550100",
		regPassword:   "secret1",
		regConfirm:    "secret1",
		regAge:        "34",
		regBloodGroup: "O+",
	})
	m, cmd := sendCmd(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Empty(t, m.formErr)

	res, ok := findMsg[registerResultMsg](collect(cmd))
	require.True(t, ok)
	m = send(m, res)

	assert.Equal(t, "/login/patient", m.Path())
	assert.Equal(t, "pat@example.com", m.login.Value(0))
	assert.Contains(t, m.notice, "Registration successful")
	require.NotNil(t, f.reg.got)
	assert.Equal(t, model.RolePatient, f.reg.got.Role)
	assert.Equal(t, 34, f.reg.got.PatientData.Age)
	assert.Equal(t, "5550100", f.reg.got.PatientData.Phone)
}

func TestModel_RegisterWithoutUserEchoSucceeds(t *testing.T) {
	f := newFixture(t)
	f.reg.err = api.ErrNoUserEcho
	m := f.model("/register", true)

	res, ok := findMsg[registerResultMsg](collect(m.registerCmd(api.RegisterRequest{Email: "pat@example.com"})))
	require.True(t, ok)
	assert.NoError(t, res.Err)

	m = send(m, res)
	assert.Equal(t, "/login/patient", m.Path())
}

func TestModel_RegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		values  map[int]string
		wantErr string
	}{
		{
			name:    "passwords differ",
			values:  map[int]string{regName: "Pat", regEmail: "pat@example.com", regPassword: "secret1", regConfirm: "secret2"},
			wantErr: "Passwords do not match",
		},
		{
			name:    "age not a number",
			values:  map[int]string{regName: "Pat", regEmail: "pat@example.com", regPassword: "secret1", regConfirm: "secret1", regAge: "old"},
			wantErr: "Age must be a number",
		},
		{
			name:    "short password",
			values:  map[int]string{regName: "Pat", regEmail: "pat@example.com", regPassword: "abc", regConfirm: "abc"},
			wantErr: "password must be at least 6 characters",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m := f.model("/register", true)
			m = fillRegister(m, tt.values)
			m = keyPress(m, tea.KeyEnter)

			assert.Contains(t, m.formErr, tt.wantErr)
			assert.False(t, m.submitting)
			assert.Nil(t, f.reg.got)
		})
	}
}
