// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package login provides the sign-in and registration form for the TUI.
//
// The form runs before the chat surface: it exchanges credentials for a
// token through the API client and hands the result to the root model via
// SucceededMsg. Tab toggles between sign-in and registration.
package login
