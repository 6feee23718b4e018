// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jeranaias/relay-tui/internal/model"
)

// Credentials carries a login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration carries a register request body.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResult is the payload returned by register and login.
type AuthResult struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Register creates a new account and returns the user plus a fresh token.
func (c *Client) Register(ctx context.Context, reg Registration) (*AuthResult, error) {
	if reg.Email == "" || reg.Password == "" {
		return nil, errors.New("email and password are required")
	}

	env, err := c.do(ctx, http.MethodPost, "/api/auth/register", reg)
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	if creds.Email == "" || creds.Password == "" {
		return nil, errors.New("email and password are required")
	}

	env, err := c.do(ctx, http.MethodPost, "/api/auth/login", creds)
	if err != nil {
		return nil, err
	}

	var result AuthResult
	if err := decodeData(env, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Me returns the account behind the current token. Useful for validating a
// restored session before trusting it.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/auth/me", nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		User model.User `json:"user"`
	}
	if err := decodeData(env, &payload); err != nil {
		return nil, err
	}
	return &payload.User, nil
}
