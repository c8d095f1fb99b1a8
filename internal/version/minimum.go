// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package version

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/logging"
)

// OS classes recognized by the local-minimum strategy.
const (
	OSWindows = "windows"
	OSAndroid = "android"
	OSIOS     = "ios"
)

const minVersionsKey = "min-versions"

// MinimumSource serves the per-OS-class minimum version map from a
// hot-reloadable JSON file:
//
//	{"windows": "1.2.3", "android": "2.0.0", "ios": "1.5.0"}
//
// Reads go through a soft TTL cache, the same staleness contract as the
// identity maps.
type MinimumSource struct {
	path  string
	cache *cache.Cache
}

// NewMinimumSource creates a MinimumSource for the given file.
func NewMinimumSource(path string, ttl time.Duration, clock cache.Clock) *MinimumSource {
	return &MinimumSource{
		path:  path,
		cache: cache.NewWithClock(ttl, clock),
	}
}

// Minimum returns the configured minimum version for an OS class, or false
// when the class has no configured minimum. OS class matching is
// case-insensitive.
func (s *MinimumSource) Minimum(osClass string) (string, bool) {
	min, ok := s.load()[strings.ToLower(strings.TrimSpace(osClass))]
	return min, ok && min != ""
}

func (s *MinimumSource) load() map[string]string {
	if cached, ok := s.cache.Get(minVersionsKey); ok {
		return cached.(map[string]string)
	}

	m := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", s.path).Msg("Failed to read minimum versions")
		}
	} else if err := json.Unmarshal(data, &m); err != nil {
		logging.Warn().Err(err).Str("path", s.path).Msg("Failed to parse minimum versions")
		m = make(map[string]string)
	}

	normalized := make(map[string]string, len(m))
	for k, v := range m {
		normalized[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	s.cache.Set(minVersionsKey, normalized)
	return normalized
}
