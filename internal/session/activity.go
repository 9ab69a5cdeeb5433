// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// DefaultRefreshInterval is the minimum spacing between activity refreshes.
const DefaultRefreshInterval = time.Minute

// Refresher is the part of Store the observer drives.
type Refresher interface {
	RefreshSession() error
	AddCleanup(fn func()) (remove func())
}

// =============================================================================
// ACTIVITY OBSERVER
// =============================================================================

// ActivityObserver turns user input into session refreshes while a guarded
// screen is mounted. Refreshes are rate limited so a burst of keystrokes
// costs at most one storage write per interval.
//
// The owning screen calls Attach on mount and Detach on unmount. Logout
// detaches every attached observer.
type ActivityObserver struct {
	store   Refresher
	limiter *rate.Limiter

	mu       sync.Mutex
	attached bool
	unhook   func()
}

// NewActivityObserver creates a detached observer. interval <= 0 uses
// DefaultRefreshInterval.
func NewActivityObserver(store Refresher, interval time.Duration) *ActivityObserver {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &ActivityObserver{
		store:   store,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Attach starts observing. Attaching twice is a no-op.
func (o *ActivityObserver) Attach() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return
	}
	o.attached = true
	o.unhook = o.store.AddCleanup(o.detachFromLogout)
}

// Detach stops observing. Detaching twice is a no-op.
func (o *ActivityObserver) Detach() {
	o.mu.Lock()
	unhook := o.unhook
	o.attached = false
	o.unhook = nil
	o.mu.Unlock()

	if unhook != nil {
		unhook()
	}
}

// detachFromLogout runs as a store cleanup; the store has already dropped the hook.
func (o *ActivityObserver) detachFromLogout() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attached = false
	o.unhook = nil
}

// Attached reports whether the observer is listening.
func (o *ActivityObserver) Attached() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attached
}

// Observe inspects a Bubble Tea message. Key presses, mouse clicks and
// wheel scrolls count as activity. It returns true when a refresh ran.
func (o *ActivityObserver) Observe(msg tea.Msg) bool {
	switch msg.(type) {
	case tea.KeyMsg, tea.MouseMsg:
	default:
		return false
	}
	if !o.Attached() || !o.limiter.Allow() {
		return false
	}
	if err := o.store.RefreshSession(); err != nil {
		log.Printf("session: activity refresh: %v", err)
	}
	return true
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent once a second to check expiry.
type TickMsg struct {
	Time time.Time
}

// ChangedMsg carries a snapshot after any session change.
type ChangedMsg struct {
	Snapshot Snapshot
}

// ExpiryWarningMsg is sent once when the remaining time drops below the
// warning window.
type ExpiryWarningMsg struct {
	Remaining time.Duration
}

// TickCmd returns a command that ticks once a second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// WarningTracker decides when to raise the expiry warning. It fires once per
// expiry value, so a refresh that pushes the expiry out re-arms it.
type WarningTracker struct {
	Window    time.Duration
	warnedFor time.Time
}

// Check returns a warning message when snap is within the window and no
// warning has been raised for its expiry yet.
func (w *WarningTracker) Check(snap Snapshot) (ExpiryWarningMsg, bool) {
	if w.Window <= 0 || !snap.Valid {
		return ExpiryWarningMsg{}, false
	}
	remaining := snap.Remaining()
	if remaining > w.Window || snap.ExpiresAt.Equal(w.warnedFor) {
		return ExpiryWarningMsg{}, false
	}
	w.warnedFor = snap.ExpiresAt
	return ExpiryWarningMsg{Remaining: remaining}, true
}

// HandleTick checks expiry and returns the follow-up commands: a ChangedMsg
// when the session was just discarded, a warning when it is about to be,
// and the next tick.
func (s *Store) HandleTick(w *WarningTracker) tea.Cmd {
	var cmds []tea.Cmd

	if s.Check() {
		snap := s.Snapshot()
		cmds = append(cmds, func() tea.Msg { return ChangedMsg{Snapshot: snap} })
	} else if w != nil {
		if msg, ok := w.Check(s.Snapshot()); ok {
			cmds = append(cmds, func() tea.Msg { return msg })
		}
	}

	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}
