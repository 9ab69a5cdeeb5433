// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the hms packages.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writing with fsync and rename
//   - TruncateWidth: Display-width aware truncation for status lines
//   - FormatRemaining: Compact "23h 59m" style durations
//
// # Usage
//
//	// Write private files atomically
//	err := util.AtomicWriteFile(path, data, 0600)
//
//	// Fit a label into a fixed column
//	label := util.TruncateWidth(user.Name, 20)
package util
