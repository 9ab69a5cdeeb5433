// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/storage"
)

// =============================================================================
// TEST DOUBLES
// =============================================================================

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeAuth struct {
	mu sync.Mutex

	loginResp *api.LoginResponse
	loginErr  error
	meUser    *model.User
	meErr     error
	meDelay   time.Duration

	loginCalls int
	meCalls    int
	lastToken  string
}

func (f *fakeAuth) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginResp, nil
}

func (f *fakeAuth) CurrentUser(ctx context.Context, token string) (*model.User, error) {
	f.mu.Lock()
	f.meCalls++
	f.lastToken = token
	delay, user, err := f.meDelay, f.meUser, f.meErr
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &api.NetworkError{Op: "GET /auth/me", Err: ctx.Err()}
		}
	}
	return user, err
}

// countingKV records how many batches were applied.
type countingKV struct {
	*storage.MemoryStore
	mu      sync.Mutex
	applies int
	fail    error
}

func newCountingKV() *countingKV {
	return &countingKV{MemoryStore: storage.NewMemoryStore()}
}

func (k *countingKV) Apply(b *storage.Batch) error {
	k.mu.Lock()
	k.applies++
	fail := k.fail
	k.mu.Unlock()
	if fail != nil {
		return fail
	}
	return k.MemoryStore.Apply(b)
}

func (k *countingKV) Applies() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.applies
}

type recordingAuditor struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingAuditor) LogEvent(eventType string, success bool, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recordingAuditor) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func doctor() *model.User {
	return &model.User{ID: "42", Name: "Dr. Grey", Email: "grey@hospital.org", Role: model.RoleDoctor, RegistrationNumber: "MD-1"}
}

type fixture struct {
	kv    *countingKV
	auth  *fakeAuth
	clock *fakeClock
	audit *recordingAuditor
	store *Store
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		kv:    newCountingKV(),
		auth:  &fakeAuth{loginResp: &api.LoginResponse{Token: "tok-42", User: doctor()}},
		clock: newFakeClock(),
		audit: &recordingAuditor{},
	}
	f.store = f.newStore(opts...)
	return f
}

// newStore builds another store over the same storage, as a second process would.
func (f *fixture) newStore(opts ...Option) *Store {
	base := []Option{WithClock(f.clock.Now), WithAuditor(f.audit)}
	return NewStore(f.kv, f.auth, append(base, opts...)...)
}

func (f *fixture) stored(t *testing.T) map[string]string {
	t.Helper()
	m, err := f.kv.Snapshot(storage.SessionKeys...)
	require.NoError(t, err)
	return m
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	f.store.Initialize(context.Background())
	require.NoError(t, f.store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleDoctor))
}

// =============================================================================
// INITIALIZE TESTS
// =============================================================================

func TestStore_StartsLoading(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.store.IsLoading())
	assert.True(t, f.store.Snapshot().Loading)

	f.store.Initialize(context.Background())
	assert.False(t, f.store.IsLoading())
	assert.False(t, f.store.IsValid())
}

func TestStore_RestoresCompleteRecordWithoutNetwork(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	before := f.stored(t)
	loggedIn := f.store.Snapshot()

	f.clock.Advance(time.Hour)
	restored := f.newStore()
	restored.Initialize(context.Background())

	snap := restored.Snapshot()
	require.True(t, snap.Valid)
	assert.Equal(t, loggedIn.User, snap.User)
	assert.Equal(t, loggedIn.ExpiresAt, snap.ExpiresAt)
	assert.Equal(t, loggedIn.LoginTime, snap.LoginTime)
	assert.Equal(t, before, f.stored(t), "restore must not rewrite storage")
	assert.Equal(t, 0, f.auth.meCalls)

	tok, ok := restored.Token()
	assert.True(t, ok)
	assert.Equal(t, "tok-42", tok)
	assert.Contains(t, f.audit.Events(), EventRestored)
}

func TestStore_ExpiredRecordIsCleared(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.clock.Advance(DefaultDuration)
	restored := f.newStore()
	restored.Initialize(context.Background())

	assert.False(t, restored.IsValid())
	assert.Nil(t, restored.User())
	assert.Empty(t, f.stored(t))
	assert.Equal(t, 0, f.auth.meCalls)
}

func TestStore_CorruptRecordFailsClosed(t *testing.T) {
	future := strconv.FormatInt(newFakeClock().Now().Add(time.Hour).UnixMilli(), 10)
	goodUser := `{"id":"1","email":"a@h.org","role":"admin"}`

	tests := []struct {
		name   string
		user   string
		expiry string
	}{
		{"user not json", `{"id":`, future},
		{"user missing role", `{"id":"1","email":"a@h.org"}`, future},
		{"user unknown role", `{"id":"1","email":"a@h.org","role":"nurse"}`, future},
		{"user is array", `[]`, future},
		{"expiry not a number", goodUser, "tomorrow"},
		{"expiry float", goodUser, "1.5e12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.kv.Apply(storage.NewBatch().
				Set(storage.KeyUser, tt.user).
				Set(storage.KeyExpiry, tt.expiry).
				Set(storage.KeyToken, "tok").
				Set(storage.KeyLoginTime, "1")))

			assert.NotPanics(t, func() { f.store.Initialize(context.Background()) })

			assert.False(t, f.store.IsLoading())
			assert.False(t, f.store.IsValid())
			assert.Empty(t, f.stored(t))
			assert.Contains(t, f.audit.Events(), EventCorrupted)
		})
	}
}

func TestStore_TokenOnlyRestore(t *testing.T) {
	f := newFixture(t)
	f.auth.meUser = doctor()
	require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyToken, "tok-only")))

	f.store.Initialize(context.Background())

	require.True(t, f.store.IsValid())
	assert.Equal(t, "tok-only", f.auth.lastToken)
	assert.Equal(t, f.clock.Now().Add(DefaultDuration).UnixMilli(), f.store.ExpiresAt().UnixMilli())

	stored := f.stored(t)
	assert.Contains(t, stored, storage.KeyUser)
	assert.Equal(t, strconv.FormatInt(f.clock.Now().Add(DefaultDuration).UnixMilli(), 10), stored[storage.KeyExpiry])
	assert.Equal(t, "tok-only", stored[storage.KeyToken])
}

func TestStore_TokenOnlyRestoreFailureClearsToken(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rejected", &api.APIError{Status: 401, Message: "Token expired"}},
		{"unreachable", &api.NetworkError{Op: "GET /auth/me", Err: errors.New("refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.auth.meErr = tt.err
			require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyToken, "tok-only")))

			f.store.Initialize(context.Background())

			assert.False(t, f.store.IsLoading())
			assert.False(t, f.store.IsValid())
			assert.Empty(t, f.stored(t))
			assert.Contains(t, f.audit.Events(), EventRestoreFailed)
		})
	}
}

func TestStore_TokenOnlyRestoreRejectsUnknownRole(t *testing.T) {
	f := newFixture(t)
	f.auth.meUser = &model.User{ID: "7", Email: "n@hospital.org", Role: "nurse"}
	require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyToken, "tok-only")))

	f.store.Initialize(context.Background())

	assert.False(t, f.store.IsValid())
	assert.Nil(t, f.store.User())
	assert.Empty(t, f.stored(t))
	assert.Contains(t, f.audit.Events(), EventRestoreFailed)
}

func TestStore_TokenOnlyRestoreTimesOut(t *testing.T) {
	f := newFixture(t, WithRestoreTimeout(50*time.Millisecond))
	f.auth.meUser = doctor()
	f.auth.meDelay = 5 * time.Second
	require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyToken, "tok-only")))

	start := time.Now()
	f.store.Initialize(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, f.store.IsLoading())
	assert.False(t, f.store.IsValid())
	assert.Empty(t, f.stored(t))
}

func TestStore_OrphanKeysWithoutTokenAreCleared(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyUser, `{"id":"1","email":"a@h.org","role":"admin"}`)))

	f.store.Initialize(context.Background())

	assert.False(t, f.store.IsValid())
	assert.Empty(t, f.stored(t))
	assert.Equal(t, 0, f.auth.meCalls)
}

// snapshotHookKV runs hook once, right after the first snapshot is taken.
type snapshotHookKV struct {
	*countingKV
	once sync.Once
	hook func()
}

func (k *snapshotHookKV) Snapshot(keys ...string) (map[string]string, error) {
	m, err := k.countingKV.Snapshot(keys...)
	k.once.Do(k.hook)
	return m, err
}

func TestStore_InitializeKeepsLoginThatRacedAStaleRecord(t *testing.T) {
	tests := []struct {
		name  string
		seed  func(t *testing.T, f *fixture)
		event string
	}{
		{
			name: "expired",
			seed: func(t *testing.T, f *fixture) {
				f.login(t)
				f.clock.Advance(DefaultDuration)
			},
			event: EventExpired,
		},
		{
			name: "corrupt",
			seed: func(t *testing.T, f *fixture) {
				require.NoError(t, f.kv.Apply(storage.NewBatch().
					Set(storage.KeyUser, `{"id":`).
					Set(storage.KeyExpiry, "1").
					Set(storage.KeyToken, "tok")))
			},
			event: EventCorrupted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.seed(t, f)

			kv := &snapshotHookKV{countingKV: f.kv}
			audit := &recordingAuditor{}
			store := NewStore(kv, f.auth, WithClock(f.clock.Now), WithAuditor(audit))
			kv.hook = func() {
				require.NoError(t, store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleDoctor))
			}

			store.Initialize(context.Background())

			require.True(t, store.IsValid())
			stored := f.stored(t)
			assert.Equal(t, "tok-42", stored[storage.KeyToken])
			assert.Equal(t, strconv.FormatInt(f.clock.Now().Add(DefaultDuration).UnixMilli(), 10), stored[storage.KeyExpiry])
			assert.NotContains(t, audit.Events(), tt.event)
		})
	}
}

func TestStore_InitializeRunsOnce(t *testing.T) {
	f := newFixture(t)
	f.auth.meUser = doctor()
	require.NoError(t, f.kv.Apply(storage.NewBatch().Set(storage.KeyToken, "tok-only")))

	f.store.Initialize(context.Background())
	f.store.Initialize(context.Background())
	assert.Equal(t, 1, f.auth.meCalls)
}

// =============================================================================
// LOGIN TESTS
// =============================================================================

func TestStore_LoginPersistsOneBatch(t *testing.T) {
	f := newFixture(t)
	f.store.Initialize(context.Background())
	applies := f.kv.Applies()

	require.NoError(t, f.store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleDoctor))

	assert.Equal(t, applies+1, f.kv.Applies(), "login must write exactly one batch")
	stored := f.stored(t)
	assert.Len(t, stored, 4)
	assert.Equal(t, "tok-42", stored[storage.KeyToken])
	assert.Equal(t, strconv.FormatInt(f.clock.Now().UnixMilli(), 10), stored[storage.KeyLoginTime])
	assert.Equal(t, strconv.FormatInt(f.clock.Now().Add(DefaultDuration).UnixMilli(), 10), stored[storage.KeyExpiry])

	snap := f.store.Snapshot()
	assert.True(t, snap.Valid)
	assert.Equal(t, model.RoleDoctor, snap.Role())
	assert.Equal(t, DefaultDuration, snap.Remaining())
}

func TestStore_LoginFailureLeavesNoState(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
		wantMsg  string
	}{
		{"rejected", &api.APIError{Status: 401, Message: "Invalid credentials"}, ErrRejected, "Invalid credentials"},
		{"unreachable", &api.NetworkError{Op: "POST /auth/login", Err: errors.New("refused")}, ErrUnreachable, "Network error: Unable to connect to the server"},
		{"deadline", context.DeadlineExceeded, ErrUnreachable, "context deadline exceeded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Initialize(context.Background())
			f.auth.loginErr = tt.err
			applies := f.kv.Applies()

			err := f.store.Login(context.Background(), "grey@hospital.org", "bad", model.RoleDoctor)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantKind), "Login = %v, want kind %v", err, tt.wantKind)
			assert.Equal(t, tt.wantMsg, err.Error())

			assert.Equal(t, applies, f.kv.Applies(), "failed login must not write")
			assert.False(t, f.store.IsValid())
			assert.Nil(t, f.store.User())
		})
	}
}

func TestStore_LoginRoleMismatch(t *testing.T) {
	f := newFixture(t)
	f.store.Initialize(context.Background())

	err := f.store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleAdmin)
	assert.True(t, errors.Is(err, ErrRoleMismatch), "Login = %v, want ErrRoleMismatch", err)
	assert.False(t, f.store.IsValid())
	assert.Empty(t, f.stored(t))
}

func TestStore_LoginRoleMismatchAllowedWhenVerificationOff(t *testing.T) {
	f := newFixture(t, WithRoleVerification(false))
	f.store.Initialize(context.Background())

	require.NoError(t, f.store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleAdmin))
	assert.Equal(t, model.RoleDoctor, f.store.User().Role)
}

func TestStore_LoginUnknownRole(t *testing.T) {
	f := newFixture(t)
	err := f.store.Login(context.Background(), "a@h.org", "pw", model.Role("nurse"))
	assert.True(t, errors.Is(err, ErrInvalidRole))
	assert.Equal(t, 0, f.auth.loginCalls)
}

func TestStore_LoginStorageFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Initialize(context.Background())
	f.kv.fail = errors.New("disk full")

	err := f.store.Login(context.Background(), "grey@hospital.org", "pw", model.RoleDoctor)
	require.Error(t, err)
	assert.False(t, f.store.IsValid())
}

// =============================================================================
// LOGOUT TESTS
// =============================================================================

func TestStore_LogoutClearsStorageBeforeNavigating(t *testing.T) {
	var navigatedTo string
	var keysAtNavigation map[string]string
	f := newFixture(t)
	f.store.SetNavigator(func(path string) {
		navigatedTo = path
		keysAtNavigation, _ = f.kv.Snapshot(storage.SessionKeys...)
	})
	f.login(t)

	cleaned := false
	f.store.AddCleanup(func() { cleaned = true })

	require.NoError(t, f.store.Logout())

	assert.Equal(t, "/", navigatedTo)
	assert.Empty(t, keysAtNavigation)
	assert.Empty(t, f.stored(t))
	assert.True(t, cleaned)
	assert.False(t, f.store.IsValid())
	_, ok := f.store.Token()
	assert.False(t, ok)
	assert.Contains(t, f.audit.Events(), EventLogout)
}

func TestStore_LogoutWithoutSessionIsHarmless(t *testing.T) {
	f := newFixture(t)
	f.store.Initialize(context.Background())
	assert.NoError(t, f.store.Logout())
	assert.NoError(t, f.store.Logout())
}

func TestStore_RemovedCleanupDoesNotRun(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	ran := false
	remove := f.store.AddCleanup(func() { ran = true })
	remove()
	require.NoError(t, f.store.Logout())
	assert.False(t, ran)
}

// =============================================================================
// VALIDITY AND REFRESH TESTS
// =============================================================================

func TestStore_IsValidBoundary(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.clock.Advance(DefaultDuration - time.Millisecond)
	assert.True(t, f.store.IsValid())

	f.clock.Advance(time.Millisecond)
	assert.False(t, f.store.IsValid(), "session must be invalid at exactly expiresAt")
}

func TestStore_RefreshExtendsExpiry(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	f.clock.Advance(3 * time.Hour)
	require.NoError(t, f.store.RefreshSession())

	want := f.clock.Now().Add(DefaultDuration)
	assert.Equal(t, want.UnixMilli(), f.store.ExpiresAt().UnixMilli())
	assert.Equal(t, strconv.FormatInt(want.UnixMilli(), 10), f.stored(t)[storage.KeyExpiry])
}

func TestStore_RefreshIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.clock.Advance(time.Minute)

	require.NoError(t, f.store.RefreshSession())
	applies := f.kv.Applies()
	exp := f.store.ExpiresAt()

	require.NoError(t, f.store.RefreshSession())
	assert.Equal(t, exp, f.store.ExpiresAt())
	assert.Equal(t, applies, f.kv.Applies(), "unchanged expiry must not be rewritten")
}

func TestStore_RefreshNeverMovesBackwards(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	exp := f.store.ExpiresAt()

	f.clock.Advance(-time.Hour)
	require.NoError(t, f.store.RefreshSession())
	assert.Equal(t, exp, f.store.ExpiresAt())
}

func TestStore_RefreshNoOpWhenInvalid(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.clock.Advance(DefaultDuration)
	applies := f.kv.Applies()

	require.NoError(t, f.store.RefreshSession())
	assert.False(t, f.store.IsValid())
	assert.Equal(t, applies, f.kv.Applies())

	empty := newFixture(t)
	empty.store.Initialize(context.Background())
	require.NoError(t, empty.store.RefreshSession())
	assert.True(t, empty.store.ExpiresAt().IsZero())
}

func TestStore_CheckDiscardsExpiredSession(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	assert.False(t, f.store.Check())
	assert.NotEmpty(t, f.stored(t))

	f.clock.Advance(DefaultDuration)
	assert.True(t, f.store.Check())
	assert.Nil(t, f.store.User())
	assert.Empty(t, f.stored(t))
	assert.Contains(t, f.audit.Events(), EventExpired)

	assert.False(t, f.store.Check(), "second check has nothing to discard")
}

// =============================================================================
// RELOAD TESTS
// =============================================================================

func TestStore_ReloadPicksUpLoginFromAnotherProcess(t *testing.T) {
	f := newFixture(t)
	f.store.Initialize(context.Background())

	other := f.newStore()
	other.Initialize(context.Background())
	require.NoError(t, other.Login(context.Background(), "grey@hospital.org", "pw", model.RoleDoctor))

	assert.True(t, f.store.Reload())
	assert.True(t, f.store.IsValid())
	assert.Equal(t, other.ExpiresAt(), f.store.ExpiresAt())
	assert.False(t, f.store.Reload(), "unchanged storage is not a change")
}

func TestStore_ReloadPicksUpLogoutFromAnotherProcess(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	other := f.newStore()
	other.Initialize(context.Background())
	require.NoError(t, other.Logout())

	assert.True(t, f.store.Reload())
	assert.False(t, f.store.IsValid())
}

func TestStore_ReloadIgnoredWhileLoading(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.store.Reload())
}

// =============================================================================
// LISTENER TESTS
// =============================================================================

func TestStore_OnChangeNotifiesLifecycle(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var seen []Snapshot
	remove := f.store.OnChange(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	f.login(t)
	require.NoError(t, f.store.Logout())
	remove()
	f.store.Check()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 3)
	assert.False(t, seen[0].Loading, "initialize settles")
	assert.False(t, seen[0].Valid)
	assert.True(t, seen[1].Valid, "login")
	assert.False(t, seen[2].Valid, "logout")
}

func TestSnapshot_Remaining(t *testing.T) {
	now := time.Now()
	assert.Equal(t, time.Duration(0), Snapshot{}.Remaining())
	assert.Equal(t, time.Minute, Snapshot{Valid: true, Now: now, ExpiresAt: now.Add(time.Minute)}.Remaining())
	assert.Equal(t, model.Role(""), Snapshot{}.Role())
}
