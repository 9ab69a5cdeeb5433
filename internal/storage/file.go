// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value space for the session.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/hms-tui/internal/util"
)

// lockSuffix names the sidecar file used for cross-process locking. The data
// file itself cannot carry the lock because every write replaces its inode.
const lockSuffix = ".lock"

// FileStore is a KV kept as one JSON object on disk.
type FileStore struct {
	mu       sync.Mutex
	path     string
	lockPath string
	closed   bool
}

// OpenFile opens the store at path, creating its directory if needed.
// The file itself is created on first write.
func OpenFile(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("storage: file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{path: path, lockPath: path + lockSuffix}, nil
}

// Get implements KV.
func (s *FileStore) Get(key string) (string, bool, error) {
	m, err := s.Snapshot(key)
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// Snapshot implements KV. A whole-file read is already consistent because
// writers replace the file by rename.
func (s *FileStore) Snapshot(keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	all, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Apply implements KV. The read-modify-write runs under the lock file so
// concurrent hms processes do not lose each other's keys. A corrupt file is
// replaced rather than merged.
func (s *FileStore) Apply(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if b.Empty() {
		return nil
	}

	return s.withFileLock(func() error {
		current, err := s.readLocked()
		if err != nil {
			if !errors.Is(err, ErrCorrupt) {
				return err
			}
			current = make(map[string]string)
		}
		b.applyTo(current)

		data, err := json.MarshalIndent(current, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode store: %w", err)
		}
		// SECURITY: the file holds a bearer token
		if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
			return fmt.Errorf("failed to write store: %w", err)
		}
		return nil
	})
}

// Path implements KV.
func (s *FileStore) Path() string { return s.path }

// Close implements KV.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// readLocked loads the whole object. A missing or empty file is an empty store.
func (s *FileStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]string), nil
	}

	m := make(map[string]string)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return m, nil
}

// withFileLock runs fn while holding an exclusive lock on the sidecar file.
func (s *FileStore) withFileLock(fn func() error) error {
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer unlockFile(f)

	return fn()
}
