// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value space for the session.
package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// KEYSPACE
// =============================================================================

// Session keys. They are written and cleared together.
const (
	KeyUser      = "hms-user"
	KeyExpiry    = "hms-session-timeout"
	KeyToken     = "hms-token"
	KeyLoginTime = "hms-login-time"
)

// SessionKeys lists every key owned by the session.
var SessionKeys = []string{KeyUser, KeyExpiry, KeyToken, KeyLoginTime}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrClosed is returned by any operation on a closed store.
	ErrClosed = errors.New("storage: store is closed")

	// ErrCorrupt is returned when the backing data cannot be decoded.
	ErrCorrupt = errors.New("storage: backing data is corrupt")

	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)

// =============================================================================
// BATCH
// =============================================================================

// Batch is an ordered set of writes applied atomically by KV.Apply.
// A key both set and deleted in the same batch ends up deleted.
type Batch struct {
	sets    map[string]string
	deletes map[string]bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{
		sets:    make(map[string]string),
		deletes: make(map[string]bool),
	}
}

// Set records key=value.
func (b *Batch) Set(key, value string) *Batch {
	delete(b.deletes, key)
	b.sets[key] = value
	return b
}

// Delete records removal of keys.
func (b *Batch) Delete(keys ...string) *Batch {
	for _, k := range keys {
		delete(b.sets, k)
		b.deletes[k] = true
	}
	return b
}

// Empty reports whether the batch holds no writes.
func (b *Batch) Empty() bool {
	return len(b.sets) == 0 && len(b.deletes) == 0
}

// Sets returns the set operations sorted by key.
func (b *Batch) Sets() []KeyValue {
	out := make([]KeyValue, 0, len(b.sets))
	for k, v := range b.sets {
		out = append(out, KeyValue{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Deletes returns the deleted keys sorted.
func (b *Batch) Deletes() []string {
	out := make([]string, 0, len(b.deletes))
	for k := range b.deletes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// applyTo replays the batch onto m.
func (b *Batch) applyTo(m map[string]string) {
	for k, v := range b.sets {
		m[k] = v
	}
	for k := range b.deletes {
		delete(m, k)
	}
}

// KeyValue is a single entry of a batch.
type KeyValue struct {
	Key   string
	Value string
}

// =============================================================================
// KV INTERFACE
// =============================================================================

// KV is a durable string keyspace with atomic multi-key writes.
type KV interface {
	// Get returns the value for key and whether it exists.
	Get(key string) (string, bool, error)

	// Snapshot reads keys in one consistent view. Missing keys are absent
	// from the returned map.
	Snapshot(keys ...string) (map[string]string, error)

	// Apply commits every write in b or none of them.
	Apply(b *Batch) error

	// Path returns the backing file, or "" for in-memory stores.
	Path() string

	// Close releases the store.
	Close() error
}

// =============================================================================
// BACKENDS
// =============================================================================

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Open opens the named backend at path. path is ignored for BackendMemory.
func Open(backend, path string) (KV, error) {
	switch strings.ToLower(backend) {
	case BackendSQLite, "":
		return OpenSQLite(path)
	case BackendFile:
		return OpenFile(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
