// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package config provides layered configuration loading for Foreground.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment
// variables and config files.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Notice    NoticeConfig    `koanf:"notice"`
	Versions  VersionConfig   `koanf:"versions"`
	Retention RetentionConfig `koanf:"retention"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// AuthConfig holds credential and allow-list settings.
//
// The owner→device map (GroupMapPath) and the owner→credential map
// (CredentialsPath) are externally maintained JSON files. Both are re-read
// through a soft TTL cache (MapTTL), so edits become visible without a
// restart; staleness of up to one TTL window is accepted.
type AuthConfig struct {
	GroupMapPath    string        `koanf:"group_map_path"`
	CredentialsPath string        `koanf:"credentials_path"`
	MapTTL          time.Duration `koanf:"map_ttl"`

	// OpenMode permits credential-less submissions when the credential map
	// is empty. This is a deployment policy switch, not a per-request
	// decision: with OpenMode off, an empty credential map rejects all
	// ingestion.
	OpenMode bool `koanf:"open_mode"`
}

// IngestConfig holds per-device ingestion limits.
type IngestConfig struct {
	// MinInterval is the minimum gap between stored events for one device.
	MinInterval time.Duration `koanf:"min_interval"`

	// TitleMaxLen is the maximum accepted window_title length in runes.
	TitleMaxLen int `koanf:"title_max_len"`
}

// NoticeConfig holds one-time update notice settings.
type NoticeConfig struct {
	Enabled bool `koanf:"enabled"`

	// Store selects the marker store: "memory" (process lifetime) or
	// "badger" (survives restarts).
	Store string `koanf:"store"`
	Path  string `koanf:"path"` // badger directory, ignored for memory

	// Message and Link are returned verbatim in the 426 notice body.
	Message string `koanf:"message"`
	Link    string `koanf:"link"`
}

// VersionConfig holds client version policy settings.
//
// The two strategies are mutually exclusive per deployment:
//   - "local":  per-OS minimum versions from MinVersionsPath
//   - "latest": single latest-version value resolved remotely
//   - "off":    no version gating
type VersionConfig struct {
	Strategy string `koanf:"strategy"`

	// Local-minimum strategy
	MinVersionsPath string `koanf:"min_versions_path"`

	// Latest-version strategy, resolver priority order:
	// manual override → custom single-line source → release-metadata API.
	LatestOverride  string        `koanf:"latest_override"`
	LatestSourceURL string        `koanf:"latest_source_url"`
	ReleaseRepo     string        `koanf:"release_repo"` // "owner/repo" on the releases API
	ResolveTimeout  time.Duration `koanf:"resolve_timeout"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	UpdateLink      string        `koanf:"update_link"`
}

// RetentionConfig holds the scheduled retention job settings.
type RetentionConfig struct {
	Enabled bool `koanf:"enabled"`

	// Mode is "keep-latest" (one newest event per device) or "wipe".
	Mode string `koanf:"mode"`

	// Hour and Minute set the daily wall-clock run time.
	Hour   int `koanf:"hour"`
	Minute int `koanf:"minute"`
}

// APIConfig holds query surface limits.
type APIConfig struct {
	DefaultLimit int `koanf:"default_limit"`
	MaxLimit     int `koanf:"max_limit"`
}

// SecurityConfig holds HTTP abuse protection settings. This per-IP rate
// limit guards the whole surface and is distinct from the per-device
// telemetry interval in IngestConfig.
type SecurityConfig struct {
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks configuration consistency. It returns the first problem
// found; callers should treat any error as fatal at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Ingest.MinInterval < 0 {
		return fmt.Errorf("ingest.min_interval must not be negative")
	}
	if c.Ingest.TitleMaxLen <= 0 {
		return fmt.Errorf("ingest.title_max_len must be positive, got %d", c.Ingest.TitleMaxLen)
	}
	if c.Auth.MapTTL <= 0 {
		return fmt.Errorf("auth.map_ttl must be positive")
	}

	switch c.Versions.Strategy {
	case "off":
	case "local":
		if c.Versions.MinVersionsPath == "" {
			return fmt.Errorf("versions.min_versions_path is required for the local strategy")
		}
	case "latest":
		if c.Versions.LatestOverride == "" && c.Versions.LatestSourceURL == "" && c.Versions.ReleaseRepo == "" {
			return fmt.Errorf("versions strategy latest needs at least one of latest_override, latest_source_url, release_repo")
		}
	default:
		return fmt.Errorf("versions.strategy must be off, local or latest, got %q", c.Versions.Strategy)
	}

	switch c.Notice.Store {
	case "memory":
	case "badger":
		if c.Notice.Path == "" {
			return fmt.Errorf("notice.path is required for the badger store")
		}
	default:
		return fmt.Errorf("notice.store must be memory or badger, got %q", c.Notice.Store)
	}

	switch c.Retention.Mode {
	case "keep-latest", "wipe":
	default:
		return fmt.Errorf("retention.mode must be keep-latest or wipe, got %q", c.Retention.Mode)
	}
	if c.Retention.Hour < 0 || c.Retention.Hour > 23 {
		return fmt.Errorf("retention.hour must be in 0-23, got %d", c.Retention.Hour)
	}
	if c.Retention.Minute < 0 || c.Retention.Minute > 59 {
		return fmt.Errorf("retention.minute must be in 0-59, got %d", c.Retention.Minute)
	}

	if c.API.DefaultLimit <= 0 || c.API.MaxLimit <= 0 || c.API.DefaultLimit > c.API.MaxLimit {
		return fmt.Errorf("api limits invalid: default=%d max=%d", c.API.DefaultLimit, c.API.MaxLimit)
	}

	return nil
}
