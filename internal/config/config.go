// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/relay-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete relay configuration.
type Config struct {
	// Server connection settings
	Server ServerConfig `toml:"server"`

	// Stream (websocket) tuning
	Stream StreamConfig `toml:"stream"`

	// UI configuration
	UI UIConfig `toml:"ui"`
}

// ServerConfig names the backend endpoints.
type ServerConfig struct {
	// BaseURL is the REST base, e.g. http://localhost:3001
	BaseURL string `toml:"base_url"`
	// WSURL is the websocket endpoint. Empty derives it from BaseURL.
	WSURL string `toml:"ws_url"`
	// DefaultModel is the model requested when the user has not picked one.
	DefaultModel string `toml:"default_model"`
}

// StreamConfig tunes the streaming connection.
type StreamConfig struct {
	// HeartbeatSecs is the ping cadence in seconds.
	HeartbeatSecs int `toml:"heartbeat_secs"`
	// ReconnectDelaySecs is the pause before a reconnect attempt.
	ReconnectDelaySecs int `toml:"reconnect_delay_secs"`
	// PongTimeoutIntervals is how many silent heartbeats mark the server
	// dead.
	PongTimeoutIntervals int `toml:"pong_timeout_intervals"`
}

// UIConfig contains display preferences.
type UIConfig struct {
	// Theme is "dark" or "light".
	Theme string `toml:"theme"`
	// CompactMode reduces message padding.
	CompactMode bool `toml:"compact_mode"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:      "http://localhost:3001",
			DefaultModel: "",
		},
		Stream: StreamConfig{
			HeartbeatSecs:        25,
			ReconnectDelaySecs:   3,
			PongTimeoutIntervals: 2,
		},
		UI: UIConfig{
			Theme: "dark",
		},
	}
}

// fillDefaults backfills zero values after a partial file load.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = def.Server.BaseURL
	}
	if cfg.Stream.HeartbeatSecs <= 0 {
		cfg.Stream.HeartbeatSecs = def.Stream.HeartbeatSecs
	}
	if cfg.Stream.ReconnectDelaySecs <= 0 {
		cfg.Stream.ReconnectDelaySecs = def.Stream.ReconnectDelaySecs
	}
	if cfg.Stream.PongTimeoutIntervals <= 0 {
		cfg.Stream.PongTimeoutIntervals = def.Stream.PongTimeoutIntervals
	}
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = def.UI.Theme
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the relay configuration directory (~/.relay).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".relay"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file from the default location, fills defaults,
// and applies environment overrides. A missing file is not an error; the
// defaults are used.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the config from an explicit path. A missing file
// yields the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	fillDefaults(cfg)
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as TOML to the default location.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies RELAY_* environment variables on top of the
// loaded values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RELAY_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("RELAY_WS_URL"); v != "" {
		c.Server.WSURL = v
	}
	if v := os.Getenv("RELAY_DEFAULT_MODEL"); v != "" {
		c.Server.DefaultModel = v
	}
	if v := os.Getenv("RELAY_THEME"); v != "" {
		c.UI.Theme = v
	}
	if v := os.Getenv("RELAY_RECONNECT_DELAY_SECS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Stream.ReconnectDelaySecs = secs
		}
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server.base_url %q", c.Server.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.base_url scheme must be http or https, got %q", u.Scheme)
	}

	if c.Server.WSURL != "" {
		wu, err := url.Parse(c.Server.WSURL)
		if err != nil || wu.Scheme == "" || wu.Host == "" {
			return fmt.Errorf("invalid server.ws_url %q", c.Server.WSURL)
		}
		if wu.Scheme != "ws" && wu.Scheme != "wss" {
			return fmt.Errorf("server.ws_url scheme must be ws or wss, got %q", wu.Scheme)
		}
	}

	if c.Stream.HeartbeatSecs <= 0 {
		return fmt.Errorf("stream.heartbeat_secs must be positive, got %d", c.Stream.HeartbeatSecs)
	}
	if c.Stream.ReconnectDelaySecs <= 0 {
		return fmt.Errorf("stream.reconnect_delay_secs must be positive, got %d", c.Stream.ReconnectDelaySecs)
	}
	if c.Stream.PongTimeoutIntervals <= 0 {
		return fmt.Errorf("stream.pong_timeout_intervals must be positive, got %d", c.Stream.PongTimeoutIntervals)
	}

	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		return fmt.Errorf("ui.theme must be dark or light, got %q", c.UI.Theme)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// WebSocketURL returns the websocket endpoint, deriving it from the REST
// base when no explicit ws_url is set: the scheme flips to ws(s) and the
// path becomes /ws on the same host.
func (c *Config) WebSocketURL() string {
	if c.Server.WSURL != "" {
		return c.Server.WSURL
	}

	u, err := url.Parse(c.Server.BaseURL)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	return u.String()
}
