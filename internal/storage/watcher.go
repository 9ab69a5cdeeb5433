// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value space for the session.
package storage

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultWatchDebounce coalesces the burst of events one commit produces
// (temp file + rename, or db + wal + shm).
const DefaultWatchDebounce = 150 * time.Millisecond

// =============================================================================
// WATCHER
// =============================================================================

// Watcher reports changes to a store's backing file made by any process.
//
// It watches the parent directory rather than the file because both
// backends replace or add sibling files (rename for FileStore, -wal and
// -shm for SQLiteStore). Changes are coalesced: at most one notification is
// pending on Changes() at a time.
type Watcher struct {
	fs       *fsnotify.Watcher
	dir      string
	base     string
	debounce time.Duration
	changes  chan struct{}

	mu      sync.Mutex
	pending bool
	lastHit time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for the file at path. Call Start to begin.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("storage: nothing to watch for an in-memory store")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fs:       fsw,
		dir:      filepath.Dir(path),
		base:     filepath.Base(path),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds the directory to the watch list and starts the event loops.
func (w *Watcher) Start() error {
	if err := w.fs.Add(w.dir); err != nil {
		return err
	}
	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Changes delivers one value per settled burst of writes.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher and waits for its goroutines.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

// relevant reports whether name belongs to the watched store.
func (w *Watcher) relevant(name string) bool {
	b := filepath.Base(name)
	if strings.HasSuffix(b, lockSuffix) {
		return false
	}
	return b == w.base || strings.HasPrefix(b, w.base+"-")
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastHit = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Printf("storage watcher: %v", err)
		}
	}
}

// processPending emits once the directory has been quiet for the debounce window.
func (w *Watcher) processPending() {
	defer w.wg.Done()
	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			fire := w.pending && time.Since(w.lastHit) >= w.debounce
			if fire {
				w.pending = false
			}
			w.mu.Unlock()

			if fire {
				select {
				case w.changes <- struct{}{}:
				default: // one notification already queued
				}
			}
		}
	}
}
