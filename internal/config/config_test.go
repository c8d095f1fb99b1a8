// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
	if cfg.Ingest.MinInterval != 4*time.Second {
		t.Errorf("default min interval = %v, want 4s", cfg.Ingest.MinInterval)
	}
	if cfg.API.DefaultLimit != 50 || cfg.API.MaxLimit != 500 {
		t.Errorf("default API limits = %d/%d, want 50/500", cfg.API.DefaultLimit, cfg.API.MaxLimit)
	}
	if cfg.Retention.Mode != "keep-latest" {
		t.Errorf("default retention mode = %q", cfg.Retention.Mode)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"negative min interval", func(c *Config) { c.Ingest.MinInterval = -time.Second }},
		{"zero title limit", func(c *Config) { c.Ingest.TitleMaxLen = 0 }},
		{"zero map ttl", func(c *Config) { c.Auth.MapTTL = 0 }},
		{"unknown version strategy", func(c *Config) { c.Versions.Strategy = "newest" }},
		{"local strategy without path", func(c *Config) {
			c.Versions.Strategy = "local"
			c.Versions.MinVersionsPath = ""
		}},
		{"latest strategy without sources", func(c *Config) { c.Versions.Strategy = "latest" }},
		{"unknown notice store", func(c *Config) { c.Notice.Store = "redis" }},
		{"badger store without path", func(c *Config) {
			c.Notice.Store = "badger"
			c.Notice.Path = ""
		}},
		{"unknown retention mode", func(c *Config) { c.Retention.Mode = "purge" }},
		{"retention hour out of range", func(c *Config) { c.Retention.Hour = 24 }},
		{"retention minute out of range", func(c *Config) { c.Retention.Minute = 60 }},
		{"default limit above max", func(c *Config) {
			c.API.DefaultLimit = 1000
			c.API.MaxLimit = 500
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateAcceptsStrategies(t *testing.T) {
	cfg := defaultConfig()
	cfg.Versions.Strategy = "local"
	cfg.Versions.MinVersionsPath = "/data/min-versions.json"
	if err := cfg.Validate(); err != nil {
		t.Errorf("local strategy: %v", err)
	}

	cfg = defaultConfig()
	cfg.Versions.Strategy = "latest"
	cfg.Versions.LatestOverride = "1.0.0"
	if err := cfg.Validate(); err != nil {
		t.Errorf("latest strategy with override: %v", err)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"GROUP_MAP_PATH", "auth.group_map_path"},
		{"INGEST_MIN_INTERVAL", "ingest.min_interval"},
		{"NOTICE_ENABLED", "notice.enabled"},
		{"VERSION_STRATEGY", "versions.strategy"},
		{"RETENTION_HOUR", "retention.hour"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("AUTH_OPEN_MODE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if !cfg.Auth.OpenMode {
		t.Error("open mode env override not applied")
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Security.CORSOrigins)
	}
}
