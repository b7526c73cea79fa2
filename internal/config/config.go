// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dotandev/fwsign/internal/errors"
)

// Config represents the general configuration for fwsign.
type Config struct {
	// LogLevel is the minimum slog level ("debug", "info", "warn",
	// "error"). The --verbose flag overrides it to debug.
	LogLevel string `json:"log_level,omitempty"`

	// RemoteTimeoutSeconds bounds the remote signing round trip.
	RemoteTimeoutSeconds int `json:"remote_timeout_seconds,omitempty"`

	// AuditEnabled records every signing run in the local history
	// database.
	AuditEnabled bool `json:"audit_enabled,omitempty"`

	// TelemetryEnabled exports pipeline traces over OTLP/HTTP to
	// TelemetryEndpoint.
	TelemetryEnabled  bool   `json:"telemetry_enabled,omitempty"`
	TelemetryEndpoint string `json:"telemetry_endpoint,omitempty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:             "warn",
		RemoteTimeoutSeconds: 30,
		AuditEnabled:         true,
		TelemetryEndpoint:    "localhost:4318",
	}
}

// Dir returns the fwsign state directory (~/.fwsign).
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapConfig("failed to resolve home directory", err)
	}
	return filepath.Join(home, ".fwsign"), nil
}

func configPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// LoadConfig loads the configuration from disk, falling back to
// defaults when no file exists, then applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// No file is fine.
	case err != nil:
		return nil, errors.WrapConfig("failed to read config file", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapConfig("failed to parse config file", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FWSIGN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FWSIGN_REMOTE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RemoteTimeoutSeconds = n
		}
	}
	if v := os.Getenv("FWSIGN_TELEMETRY_ENDPOINT"); v != "" {
		cfg.TelemetryEnabled = true
		cfg.TelemetryEndpoint = v
	}
}

// Save persists the configuration as JSON, creating the state
// directory on first use.
func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapConfig("failed to create config dir", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.WrapConfig("failed to encode config", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644); err != nil {
		return errors.WrapConfig("failed to write config file", err)
	}
	return nil
}
