// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the relay-tui application.
//
// # Key Functions
//
//   - AtomicWriteFile: Crash-safe file writes (temp file + fsync + rename)
//   - TruncateRunes: Rune-aware string truncation safe for UTF-8
//   - TruncateWidth: Display-width-aware truncation for terminal layout
package util
