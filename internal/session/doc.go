// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the authenticated user and bearer token for the
// lifetime of the process, with optional persistence to disk so a restart
// can resume without a fresh login.
//
// The manager is the single source of truth for authentication state. The
// API client and the stream client both borrow the token through a token
// source function rather than holding their own copy, so Clear revokes
// access everywhere at once.
package session
