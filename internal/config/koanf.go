// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/foreground/config.yaml",
	"/etc/foreground/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    3000,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/foreground.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Auth: AuthConfig{
			GroupMapPath:    "/data/group-map.json",
			CredentialsPath: "/data/credentials.json",
			MapTTL:          5 * time.Second,
			OpenMode:        false,
		},
		Ingest: IngestConfig{
			MinInterval: 4 * time.Second,
			TitleMaxLen: 512,
		},
		Notice: NoticeConfig{
			Enabled: false,
			Store:   "memory",
			Path:    "/data/notices",
			Message: "a newer client is available, please update",
			Link:    "",
		},
		Versions: VersionConfig{
			Strategy:       "off",
			ResolveTimeout: 5 * time.Second,
			CacheTTL:       time.Minute,
		},
		Retention: RetentionConfig{
			Enabled: true,
			Mode:    "keep-latest",
			Hour:    3,
			Minute:  30,
		},
		API: APIConfig{
			DefaultLimit: 50,
			MaxLimit:     500,
		},
		Security: SecurityConfig{
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
// defaults → optional YAML file → environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Transform environment variable names to koanf paths:
	// INGEST_MIN_INTERVAL -> ingest.min_interval
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when supplied through environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for known
// slice fields. Env vars arrive as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped, which keeps unrelated
// environment noise out of the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Auth mappings
		"group_map_path":   "auth.group_map_path",
		"credentials_path": "auth.credentials_path",
		"auth_map_ttl":     "auth.map_ttl",
		"auth_open_mode":   "auth.open_mode",

		// Ingest mappings
		"ingest_min_interval":  "ingest.min_interval",
		"ingest_title_max_len": "ingest.title_max_len",

		// Update notice mappings
		"notice_enabled": "notice.enabled",
		"notice_store":   "notice.store",
		"notice_path":    "notice.path",
		"notice_message": "notice.message",
		"notice_link":    "notice.link",

		// Version policy mappings
		"version_strategy":          "versions.strategy",
		"min_versions_path":         "versions.min_versions_path",
		"version_latest_override":   "versions.latest_override",
		"version_latest_source_url": "versions.latest_source_url",
		"version_release_repo":      "versions.release_repo",
		"version_resolve_timeout":   "versions.resolve_timeout",
		"version_cache_ttl":         "versions.cache_ttl",
		"version_update_link":       "versions.update_link",

		// Retention mappings
		"retention_enabled": "retention.enabled",
		"retention_mode":    "retention.mode",
		"retention_hour":    "retention.hour",
		"retention_minute":  "retention.minute",

		// API mappings
		"api_default_limit": "api.default_limit",
		"api_max_limit":     "api.max_limit",

		// Security mappings
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
