// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security protects session material at rest and records session events.
//
// # Token Sealing
//
// The bearer token is the only credential hms keeps on disk. When sealing is
// enabled the session store passes it through a Sealer before writing:
//
//	key, _ := security.LoadOrCreateMasterKey(filepath.Join(dir, "master.key"))
//	sealer, _ := security.NewSealer(key)
//	stored, _ := sealer.Seal(token)     // "ENC1:..."
//	token, err := sealer.Open(stored)   // ErrDecryptionFailed on a wrong key
//
// Values without the ENC1: prefix pass through Open unchanged, so enabling
// sealing does not invalidate an existing session.
//
// # Audit Log
//
// AuditLogger appends one JSON object per line. Bearer tokens, JWTs,
// password assignments and sealed values are redacted before write.
package security
