// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the request/response HTTP client for the chat
// backend.
//
// This is the fallback path: one-shot JSON calls used for authentication,
// conversation CRUD, and non-streaming message sends when the persistent
// connection is unavailable. Every response uses the envelope
// {success, data?, message?, error?}; any non-2xx status is a failure
// regardless of envelope content, carrying the server-provided message.
//
// The client is deliberately thin: no retries and no per-call timeouts.
// Errors propagate directly to the caller, and callers display the message
// verbatim. Cancellation is the caller's job via context.
//
// # Usage
//
//	client := api.NewClient("http://localhost:3001").WithTokenSource(sess.Token)
//	auth, err := client.Login(ctx, "a@b.com", "12345678")
package api
