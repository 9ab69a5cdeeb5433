// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the signed-in user, the bearer token and the expiry.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/storage"
)

// Defaults.
const (
	// DefaultDuration is how long a session stays valid after login or refresh.
	DefaultDuration = 24 * time.Hour

	// DefaultRestoreTimeout bounds the /auth/me call made by Initialize.
	DefaultRestoreTimeout = 5 * time.Second
)

// Audit event types.
const (
	EventLogin          = "LOGIN"
	EventLogout         = "LOGOUT"
	EventRestored       = "SESSION_RESTORED"
	EventRestoreFailed  = "SESSION_RESTORE_FAILED"
	EventExpired        = "SESSION_EXPIRED"
	EventCorrupted      = "SESSION_CORRUPTED"
	EventSync           = "SESSION_SYNC"
	EventRefreshFailure = "SESSION_REFRESH_FAILED"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Authenticator is the part of the backend the store needs.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// TokenCodec protects the token at rest. security.Sealer implements it.
type TokenCodec interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// Auditor records session events. security.AuditLogger implements it.
type Auditor interface {
	LogEvent(eventType string, success bool, metadata map[string]string) error
}

// plainCodec stores the token as-is.
type plainCodec struct{}

func (plainCodec) Seal(s string) (string, error) { return s, nil }
func (plainCodec) Open(s string) (string, error) { return s, nil }

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an immutable view of the session at one instant.
type Snapshot struct {
	Loading   bool
	User      *model.User
	ExpiresAt time.Time
	LoginTime time.Time
	Valid     bool
	Now       time.Time
}

// Remaining returns the time until expiry, or 0 when not valid.
func (s Snapshot) Remaining() time.Duration {
	if !s.Valid {
		return 0
	}
	d := s.ExpiresAt.Sub(s.Now)
	if d < 0 {
		return 0
	}
	return d
}

// Role returns the user's role, or "" without a user.
func (s Snapshot) Role() model.Role {
	if s.User == nil {
		return ""
	}
	return s.User.Role
}

// =============================================================================
// STORE
// =============================================================================

// Store is the session state machine. Memory and durable storage change
// together: every mutation commits one storage batch before memory is updated,
// except Logout and expiry which clear memory first so the UI never shows a
// session that is being torn down.
type Store struct {
	mu sync.RWMutex

	kv    storage.KV
	auth  Authenticator
	codec TokenCodec
	audit Auditor
	now   func() time.Time

	duration       time.Duration
	restoreTimeout time.Duration
	verifyRole     bool
	navigate       func(path string)

	loading     bool
	initialized bool
	user        *model.User
	token       string
	expiresAt   int64 // epoch ms, 0 when empty
	loginTime   int64 // epoch ms, 0 when unknown

	// generation increments on every session change so a slow restore can
	// tell that a login or logout happened while it was waiting.
	generation uint64

	listeners    map[int]func(Snapshot)
	cleanups     map[int]func()
	nextHandleID int
}

// Option configures a Store.
type Option func(*Store)

// WithDuration sets the session length.
func WithDuration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.duration = d
		}
	}
}

// WithRestoreTimeout bounds the token-only restore call.
func WithRestoreTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.restoreTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRoleVerification controls whether Login rejects an account whose role
// differs from the portal it signed in through.
func WithRoleVerification(enabled bool) Option {
	return func(s *Store) { s.verifyRole = enabled }
}

// WithTokenCodec seals the token before it is written.
func WithTokenCodec(c TokenCodec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithAuditor records session events.
func WithAuditor(a Auditor) Option {
	return func(s *Store) { s.audit = a }
}

// WithNavigator is called by Logout with the landing path once storage is clear.
func WithNavigator(fn func(path string)) Option {
	return func(s *Store) { s.navigate = fn }
}

// NewStore creates a store over kv. The store starts Loading; call Initialize.
func NewStore(kv storage.KV, auth Authenticator, opts ...Option) *Store {
	s := &Store{
		kv:             kv,
		auth:           auth,
		codec:          plainCodec{},
		now:            time.Now,
		duration:       DefaultDuration,
		restoreTimeout: DefaultRestoreTimeout,
		verifyRole:     true,
		loading:        true,
		listeners:      make(map[int]func(Snapshot)),
		cleanups:       make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNavigator replaces the logout navigator. The TUI installs its own once
// the program exists.
func (s *Store) SetNavigator(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigate = fn
}

// Duration returns the configured session length.
func (s *Store) Duration() time.Duration {
	return s.duration
}

// =============================================================================
// INITIALIZE
// =============================================================================

// persisted is the raw keyspace as read in one snapshot.
type persisted struct {
	user, expiry, token, loginTime string
	hasUser, hasExpiry, hasToken   bool
}

func (s *Store) readPersisted() (persisted, error) {
	m, err := s.kv.Snapshot(storage.SessionKeys...)
	if err != nil {
		return persisted{}, err
	}
	var p persisted
	p.user, p.hasUser = m[storage.KeyUser]
	p.expiry, p.hasExpiry = m[storage.KeyExpiry]
	p.token, p.hasToken = m[storage.KeyToken]
	p.loginTime = m[storage.KeyLoginTime]
	p.hasUser = p.hasUser && p.user != ""
	p.hasExpiry = p.hasExpiry && p.expiry != ""
	p.hasToken = p.hasToken && p.token != ""
	return p, nil
}

// record is a decoded, complete session.
type record struct {
	user      *model.User
	token     string
	expiresAt int64
	loginTime int64
}

// decode parses a complete record. Any failure means the record is corrupt.
func (s *Store) decode(p persisted) (record, error) {
	exp, err := strconv.ParseInt(strings.TrimSpace(p.expiry), 10, 64)
	if err != nil {
		return record{}, fmt.Errorf("expiry: %w", err)
	}
	var u model.User
	if err := json.Unmarshal([]byte(p.user), &u); err != nil {
		return record{}, fmt.Errorf("user: %w", err)
	}
	if err := u.Validate(); err != nil {
		return record{}, fmt.Errorf("user: %w", err)
	}
	if !u.Role.IsKnown() {
		return record{}, fmt.Errorf("user: unknown role %q", u.Role)
	}
	tok, err := s.codec.Open(p.token)
	if err != nil {
		return record{}, fmt.Errorf("token: %w", err)
	}
	lt, _ := strconv.ParseInt(p.loginTime, 10, 64)
	return record{user: &u, token: tok, expiresAt: exp, loginTime: lt}, nil
}

// Initialize restores a session from storage. It runs once; later calls
// return immediately. Loading is cleared when it returns, whatever the outcome.
//
// A complete unexpired record is restored without network access. A bare
// token is exchanged for a profile via /auth/me, bounded by the restore
// timeout. Anything else, including an expired or unreadable record, leaves
// the session empty and the keyspace cleared.
func (s *Store) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	gen := s.generation
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.notify()
	}()

	p, err := s.readPersisted()
	if err != nil {
		if errors.Is(err, storage.ErrCorrupt) {
			s.discardCorrupt(gen, err)
			return
		}
		log.Printf("session: failed to read storage: %v", err)
		s.logEvent(EventRestoreFailed, false, map[string]string{"error": err.Error()})
		return
	}

	switch {
	case p.hasUser && p.hasExpiry && p.hasToken:
		rec, err := s.decode(p)
		if err != nil {
			s.discardCorrupt(gen, err)
			return
		}
		now := s.now().UnixMilli()
		if now >= rec.expiresAt {
			if s.clearIfCurrent(gen) {
				s.logEvent(EventExpired, true, userMeta(rec.user))
			}
			return
		}
		s.mu.Lock()
		if s.generation == gen {
			s.adopt(rec)
		}
		s.mu.Unlock()
		s.logEvent(EventRestored, true, userMeta(rec.user))

	case p.hasToken:
		s.restoreFromToken(ctx, gen, p.token)

	case p.hasUser || p.hasExpiry:
		// A user or expiry without a token cannot authenticate anything
		s.clearIfCurrent(gen)
	}
}

// restoreFromToken exchanges a stored token for a profile. Any failure
// clears the keyspace.
func (s *Store) restoreFromToken(ctx context.Context, gen uint64, stored string) {
	token, err := s.codec.Open(stored)
	if err != nil {
		s.discardCorrupt(gen, fmt.Errorf("token: %w", err))
		return
	}

	rctx, cancel := context.WithTimeout(ctx, s.restoreTimeout)
	defer cancel()

	user, err := s.auth.CurrentUser(rctx, token)
	if err == nil {
		err = user.Validate()
	}
	if err == nil && !user.Role.IsKnown() {
		err = fmt.Errorf("unknown role %q", user.Role)
	}
	if err != nil {
		log.Printf("session: restore from token failed: %v", err)
		s.clearIfCurrent(gen)
		s.logEvent(EventRestoreFailed, false, map[string]string{"error": err.Error()})
		return
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		s.clearIfCurrent(gen)
		return
	}
	now := s.now()
	exp := now.Add(s.duration).UnixMilli()

	s.mu.Lock()
	if s.generation != gen {
		// A login or logout won the race
		s.mu.Unlock()
		return
	}
	b := storage.NewBatch().
		Set(storage.KeyUser, string(userJSON)).
		Set(storage.KeyExpiry, strconv.FormatInt(exp, 10))
	if err := s.kv.Apply(b); err != nil {
		s.mu.Unlock()
		log.Printf("session: failed to persist restored session: %v", err)
		return
	}
	s.adopt(record{user: user, token: token, expiresAt: exp})
	s.mu.Unlock()

	s.logEvent(EventRestored, true, userMeta(user))
}

// adopt installs rec as the in-memory session. Caller holds mu.
func (s *Store) adopt(rec record) {
	s.user = rec.user
	s.token = rec.token
	s.expiresAt = rec.expiresAt
	s.loginTime = rec.loginTime
	s.generation++
}

// discardCorrupt treats an unreadable record as no record.
func (s *Store) discardCorrupt(gen uint64, cause error) {
	if !s.clearIfCurrent(gen) {
		return
	}
	log.Printf("session: discarding unreadable session: %v", cause)
	s.logEvent(EventCorrupted, false, map[string]string{"error": cause.Error()})
}

// clearIfCurrent clears the keyspace unless a login or logout has happened
// since gen was taken. It reports whether it cleared.
func (s *Store) clearIfCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.clearStorage()
	return true
}

// clearStorage deletes every session key in one batch.
func (s *Store) clearStorage() {
	if err := s.kv.Apply(storage.NewBatch().Delete(storage.SessionKeys...)); err != nil {
		log.Printf("session: failed to clear storage: %v", err)
	}
}

// =============================================================================
// LOGIN / LOGOUT
// =============================================================================

// Login authenticates against the backend and, on success, persists the
// user, expiry, token and login time in one batch before returning.
// On failure nothing changes, in memory or on disk.
func (s *Store) Login(ctx context.Context, email, password string, role model.Role) error {
	if !role.IsKnown() {
		return &LoginError{Kind: ErrInvalidRole, Err: fmt.Errorf("unknown role %q", role)}
	}

	resp, err := s.auth.Login(ctx, api.LoginRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Role:     role,
	})
	if err != nil {
		kind := ErrRejected
		if api.IsNetworkError(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = ErrUnreachable
		}
		s.logEvent(EventLogin, false, map[string]string{"role": string(role), "error": err.Error()})
		return &LoginError{Kind: kind, Err: err}
	}

	if s.verifyRole && resp.User.Role != role {
		s.logEvent(EventLogin, false, map[string]string{
			"user_id": resp.User.ID,
			"role":    string(role),
			"error":   fmt.Sprintf("account role %s", resp.User.Role),
		})
		return &LoginError{Kind: ErrRoleMismatch, Err: fmt.Errorf("this account is not a %s account", role.DisplayName())}
	}

	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	storedToken, err := s.codec.Seal(resp.Token)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}

	now := s.now()
	nowMs := now.UnixMilli()
	exp := now.Add(s.duration).UnixMilli()

	s.mu.Lock()
	b := storage.NewBatch().
		Set(storage.KeyUser, string(userJSON)).
		Set(storage.KeyExpiry, strconv.FormatInt(exp, 10)).
		Set(storage.KeyToken, storedToken).
		Set(storage.KeyLoginTime, strconv.FormatInt(nowMs, 10))
	if err := s.kv.Apply(b); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to persist session: %w", err)
	}
	s.adopt(record{user: resp.User, token: resp.Token, expiresAt: exp, loginTime: nowMs})
	s.loading = false
	s.mu.Unlock()

	s.logEvent(EventLogin, true, userMeta(resp.User))
	s.notify()
	return nil
}

// Logout clears the session from memory and storage, runs every registered
// cleanup, then navigates to the landing route. A storage failure is
// returned after navigation; the in-memory session is gone regardless.
func (s *Store) Logout() error {
	s.mu.Lock()
	prev := s.user
	s.user = nil
	s.token = ""
	s.expiresAt = 0
	s.loginTime = 0
	s.generation++
	err := s.kv.Apply(storage.NewBatch().Delete(storage.SessionKeys...))
	cleanups := make([]func(), 0, len(s.cleanups))
	for _, fn := range s.cleanups {
		cleanups = append(cleanups, fn)
	}
	s.cleanups = make(map[int]func())
	navigate := s.navigate
	s.mu.Unlock()

	for _, fn := range cleanups {
		fn()
	}

	meta := userMeta(prev)
	if err != nil {
		log.Printf("session: failed to clear storage on logout: %v", err)
		if meta == nil {
			meta = map[string]string{}
		}
		meta["error"] = err.Error()
	}
	s.logEvent(EventLogout, err == nil, meta)
	s.notify()

	if navigate != nil {
		navigate("/")
	}
	if err != nil {
		return fmt.Errorf("failed to clear session storage: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDITY AND REFRESH
// =============================================================================

// IsValid reports whether a user is signed in and the session has not expired.
func (s *Store) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validLocked(s.now().UnixMilli())
}

func (s *Store) validLocked(nowMs int64) bool {
	return s.user != nil && nowMs < s.expiresAt
}

// IsLoading reports whether Initialize has not yet settled.
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// RefreshSession extends a valid session to now + duration. The expiry never
// moves backwards. It does nothing when the session is not valid or the
// expiry would not change.
func (s *Store) RefreshSession() error {
	s.mu.Lock()
	now := s.now()
	if !s.validLocked(now.UnixMilli()) {
		s.mu.Unlock()
		return nil
	}
	next := now.Add(s.duration).UnixMilli()
	if next <= s.expiresAt {
		s.mu.Unlock()
		return nil
	}
	if err := s.kv.Apply(storage.NewBatch().Set(storage.KeyExpiry, strconv.FormatInt(next, 10))); err != nil {
		s.mu.Unlock()
		s.logEvent(EventRefreshFailure, false, map[string]string{"error": err.Error()})
		return fmt.Errorf("failed to persist expiry: %w", err)
	}
	s.expiresAt = next
	s.mu.Unlock()

	s.notify()
	return nil
}

// Check discards the session once it has expired. It returns true when it
// did so. Called once a second by the UI.
func (s *Store) Check() bool {
	s.mu.Lock()
	if s.user == nil || s.now().UnixMilli() < s.expiresAt {
		s.mu.Unlock()
		return false
	}
	prev := s.user
	s.user = nil
	s.token = ""
	s.expiresAt = 0
	s.loginTime = 0
	s.generation++
	s.mu.Unlock()

	s.clearStorage()
	s.logEvent(EventExpired, true, userMeta(prev))
	s.notify()
	return true
}

// =============================================================================
// EXTERNAL CHANGES
// =============================================================================

// Reload re-reads the keyspace after another process changed it. It never
// calls the backend. A complete unexpired record replaces the in-memory
// session; anything else empties it. It returns true when the session changed.
func (s *Store) Reload() bool {
	s.mu.RLock()
	loading := s.loading
	s.mu.RUnlock()
	if loading {
		return false
	}

	p, err := s.readPersisted()
	if err != nil && !errors.Is(err, storage.ErrCorrupt) {
		log.Printf("session: reload failed: %v", err)
		return false
	}

	var rec *record
	if err == nil && p.hasUser && p.hasExpiry && p.hasToken {
		decoded, derr := s.decode(p)
		if derr == nil && s.now().UnixMilli() < decoded.expiresAt {
			rec = &decoded
		}
	}

	s.mu.Lock()
	changed := false
	switch {
	case rec == nil && s.user != nil:
		s.user = nil
		s.token = ""
		s.expiresAt = 0
		s.loginTime = 0
		s.generation++
		changed = true
	case rec != nil && !sameSession(s.user, s.token, s.expiresAt, *rec):
		s.adopt(*rec)
		changed = true
	}
	var meta map[string]string
	if changed {
		meta = userMeta(s.user)
	}
	s.mu.Unlock()

	if changed {
		s.logEvent(EventSync, true, meta)
		s.notify()
	}
	return changed
}

func sameSession(u *model.User, token string, exp int64, rec record) bool {
	if u == nil {
		return false
	}
	if token != rec.token || exp != rec.expiresAt {
		return false
	}
	a, errA := json.Marshal(u)
	b, errB := json.Marshal(rec.user)
	return errA == nil && errB == nil && string(a) == string(b)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Snapshot returns the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	now := s.now()
	snap := Snapshot{
		Loading: s.loading,
		User:    s.user.Clone(),
		Valid:   s.validLocked(now.UnixMilli()),
		Now:     now,
	}
	if s.expiresAt != 0 {
		snap.ExpiresAt = time.UnixMilli(s.expiresAt)
	}
	if s.loginTime != 0 {
		snap.LoginTime = time.UnixMilli(s.loginTime)
	}
	return snap
}

// User returns a copy of the signed-in user, or nil.
func (s *Store) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// Token returns the bearer token while the session is valid.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.validLocked(s.now().UnixMilli()) {
		return "", false
	}
	return s.token, true
}

// ExpiresAt returns the expiry, or the zero time without a session.
func (s *Store) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiresAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.expiresAt)
}

// =============================================================================
// LISTENERS AND CLEANUPS
// =============================================================================

// OnChange registers fn to run after every session change. Listeners run
// outside the store's lock. The returned function unregisters fn.
func (s *Store) OnChange(fn func(Snapshot)) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHandleID
	s.nextHandleID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// AddCleanup registers session-scoped state to discard on Logout. Each
// cleanup runs at most once. The returned function unregisters fn without
// running it.
func (s *Store) AddCleanup(fn func()) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextHandleID
	s.nextHandleID++
	s.cleanups[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.cleanups, id)
	}
}

func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) logEvent(eventType string, success bool, meta map[string]string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.LogEvent(eventType, success, meta); err != nil {
		log.Printf("session: audit %s: %v", eventType, err)
	}
}

func userMeta(u *model.User) map[string]string {
	if u == nil {
		return nil
	}
	return map[string]string{"user_id": u.ID, "role": string(u.Role)}
}
