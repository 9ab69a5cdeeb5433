// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the durable key/value space that holds the
// signed-in session between runs.
//
// The keyspace is small and fixed (see SessionKeys). Every write goes through
// a Batch so that setting and clearing several keys is one atomic commit:
// readers in this or any other hms process observe either all of a batch or
// none of it.
//
// # Backends
//
//   - SQLiteStore: default, a single kv table in ~/.hms/session.db (WAL mode)
//   - FileStore: a JSON object in ~/.hms/session.json, rewritten atomically
//     under a cross-process lock file
//   - MemoryStore: process-local, used by tests and --ephemeral runs
//
// # Usage
//
//	kv, err := storage.Open(storage.BackendSQLite, path)
//	if err != nil {
//	    return err
//	}
//	defer kv.Close()
//
//	err = kv.Apply(storage.NewBatch().
//	    Set(storage.KeyToken, token).
//	    Delete(storage.KeyLoginTime))
//
// # Change Notification
//
// Watcher reports writes made by other processes to the same backing file
// so a running UI can re-read the session.
package storage
