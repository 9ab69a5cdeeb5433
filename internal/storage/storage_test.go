// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends returns a fresh store per backend, closed at test end.
func backends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	sq, err := OpenSQLite(filepath.Join(dir, "session.db"))
	require.NoError(t, err)
	fs, err := OpenFile(filepath.Join(dir, "session.json"))
	require.NoError(t, err)

	stores := map[string]KV{
		BackendMemory: NewMemoryStore(),
		BackendSQLite: sq,
		BackendFile:   fs,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

// =============================================================================
// BATCH TESTS
// =============================================================================

func TestBatch_LastOperationWins(t *testing.T) {
	b := NewBatch().Set("a", "1").Delete("a").Set("b", "2").Set("c", "3").Delete("c")

	assert.Equal(t, []KeyValue{{Key: "b", Value: "2"}}, b.Sets())
	assert.Equal(t, []string{"a", "c"}, b.Deletes())
	assert.False(t, b.Empty())
	assert.True(t, NewBatch().Empty())
}

// =============================================================================
// KV CONTRACT TESTS
// =============================================================================

func TestKV_SetGetDelete(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := kv.Get(KeyToken)
			require.NoError(t, err)
			assert.False(t, ok, "fresh store should be empty")

			require.NoError(t, kv.Apply(NewBatch().Set(KeyToken, "tok").Set(KeyExpiry, "123")))

			v, ok, err := kv.Get(KeyToken)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "tok", v)

			require.NoError(t, kv.Apply(NewBatch().Delete(KeyToken)))
			_, ok, err = kv.Get(KeyToken)
			require.NoError(t, err)
			assert.False(t, ok)

			v, ok, _ = kv.Get(KeyExpiry)
			assert.True(t, ok)
			assert.Equal(t, "123", v)
		})
	}
}

func TestKV_SnapshotOmitsMissingKeys(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Apply(NewBatch().Set(KeyUser, `{"id":"1"}`).Set("other", "x")))

			snap, err := kv.Snapshot(SessionKeys...)
			require.NoError(t, err)
			assert.Equal(t, map[string]string{KeyUser: `{"id":"1"}`}, snap)
		})
	}
}

func TestKV_ClearAllSessionKeys(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			b := NewBatch()
			for _, k := range SessionKeys {
				b.Set(k, "v")
			}
			require.NoError(t, kv.Apply(b))
			require.NoError(t, kv.Apply(NewBatch().Delete(SessionKeys...)))

			snap, err := kv.Snapshot(SessionKeys...)
			require.NoError(t, err)
			assert.Empty(t, snap)
		})
	}
}

func TestKV_ClosedStoreFails(t *testing.T) {
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, kv.Close())
			_, _, err := kv.Get(KeyToken)
			assert.True(t, errors.Is(err, ErrClosed), "Get after Close = %v, want ErrClosed", err)
			err = kv.Apply(NewBatch().Set(KeyToken, "x"))
			assert.True(t, errors.Is(err, ErrClosed), "Apply after Close = %v, want ErrClosed", err)
		})
	}
}

// =============================================================================
// PERSISTENCE TESTS
// =============================================================================

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, first.Apply(NewBatch().Set(KeyToken, "persisted")))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.Get(KeyToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "persisted", v)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	fs, err := OpenFile(path)
	require.NoError(t, err)

	_, err = fs.Snapshot(SessionKeys...)
	assert.True(t, errors.Is(err, ErrCorrupt), "Snapshot = %v, want ErrCorrupt", err)

	// A write replaces the corrupt content
	require.NoError(t, fs.Apply(NewBatch().Delete(SessionKeys...)))
	snap, err := fs.Snapshot(SessionKeys...)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestFileStore_ConcurrentWritersKeepAllKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	a, err := OpenFile(path)
	require.NoError(t, err)
	b, err := OpenFile(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, a.Apply(NewBatch().Set("a"+string(rune('a'+i)), "1")))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, b.Apply(NewBatch().Set("b"+string(rune('a'+i)), "1")))
		}(i)
	}
	wg.Wait()

	keys := make([]string, 0, 40)
	for i := 0; i < 20; i++ {
		keys = append(keys, "a"+string(rune('a'+i)), "b"+string(rune('a'+i)))
	}
	snap, err := a.Snapshot(keys...)
	require.NoError(t, err)
	assert.Len(t, snap, 40)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("redis", "")
	assert.True(t, errors.Is(err, ErrUnknownBackend))
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_ReportsWritesFromAnotherStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	writer, err := OpenFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, 50*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Close()

	require.NoError(t, writer.Apply(NewBatch().Set(KeyToken, "x")))

	select {
	case <-w.Changes():
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification within 3s")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.json")

	w, err := NewWatcher(path, 50*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, w.relevant(path))
	assert.True(t, w.relevant(filepath.Join(dir, "session.json-wal")))
	assert.False(t, w.relevant(filepath.Join(dir, "session.json.lock")))
	assert.False(t, w.relevant(filepath.Join(dir, "config.toml")))
	require.NoError(t, w.Close())
}

func TestNewWatcher_MemoryStoreRejected(t *testing.T) {
	_, err := NewWatcher("", 0)
	assert.Error(t, err)
}
