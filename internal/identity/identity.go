// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package identity resolves presented credentials to owner names and owner
// names to device allow-lists.
//
// Both mappings live in externally maintained JSON files:
//
//	group-map.json:    {"alice": ["dev-1", "dev-2"], "bob": ["dev-3"]}
//	credentials.json:  {"alice": ["tok-a1", "tok-a2"], "bob": "tok-b"}
//
// Files are re-read through a soft TTL cache so edits become visible
// without a restart. The credential map is inverted at load time into a
// credential→owner lookup; a credential claimed by more than one owner is
// treated as invalid and dropped from the index.
package identity

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/logging"
)

const (
	groupMapKey    = "group-map"
	credentialsKey = "credentials"
)

// Resolver loads and caches the owner→device and credential→owner maps.
type Resolver struct {
	groupMapPath    string
	credentialsPath string
	cache           *cache.Cache
}

// NewResolver creates a Resolver reading the given files, cached with the
// given TTL on the provided clock.
func NewResolver(groupMapPath, credentialsPath string, ttl time.Duration, clock cache.Clock) *Resolver {
	return &Resolver{
		groupMapPath:    groupMapPath,
		credentialsPath: credentialsPath,
		cache:           cache.NewWithClock(ttl, clock),
	}
}

// GroupMap returns the owner→device map. A missing or unreadable file is an
// empty map, matching the bootstrap posture where nothing is configured.
func (r *Resolver) GroupMap() map[string][]string {
	if cached, ok := r.cache.Get(groupMapKey); ok {
		return cached.(map[string][]string)
	}

	gm := readGroupMap(r.groupMapPath)
	r.cache.Set(groupMapKey, gm)
	return gm
}

// Machines returns the device allow-list for an owner name, or nil when the
// owner is unknown. Duplicate device entries collapse.
func (r *Resolver) Machines(name string) []string {
	list, ok := r.GroupMap()[name]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, m := range list {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Names returns the sorted owner name list.
func (r *Resolver) Names() []string {
	gm := r.GroupMap()
	names := make([]string, 0, len(gm))
	for name := range gm {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeviceAllowedAnywhere reports whether the device appears in any owner's
// allow-list, and whether any allow-list entries exist at all.
func (r *Resolver) DeviceAllowedAnywhere(device string) (allowed bool, anyConfigured bool) {
	for _, list := range r.GroupMap() {
		for _, m := range list {
			anyConfigured = true
			if m == device {
				return true, true
			}
		}
	}
	return false, anyConfigured
}

// ResolveOwner maps a credential to its owner name. The second return is
// false for absent, unknown, or ambiguous credentials.
func (r *Resolver) ResolveOwner(credential string) (string, bool) {
	if credential == "" {
		return "", false
	}
	owner, ok := r.credentialIndex()[credential]
	return owner, ok
}

// HasCredentials reports whether any credentials are configured. An empty
// credential map combined with open-mode config switches the deployment to
// credential-less ingestion.
func (r *Resolver) HasCredentials() bool {
	return len(r.credentialIndex()) > 0
}

func (r *Resolver) credentialIndex() map[string]string {
	if cached, ok := r.cache.Get(credentialsKey); ok {
		return cached.(map[string]string)
	}

	idx := readCredentialIndex(r.credentialsPath)
	r.cache.Set(credentialsKey, idx)
	return idx
}

// readGroupMap parses the owner→device file. Read or parse failures are
// logged and yield an empty map rather than failing requests.
func readGroupMap(path string) map[string][]string {
	gm := make(map[string][]string)
	if path == "" {
		return gm
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to read group map")
		}
		return gm
	}

	if err := json.Unmarshal(data, &gm); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to parse group map")
		return make(map[string][]string)
	}
	return gm
}

// readCredentialIndex parses the owner→credential file and inverts it.
// Values may be a single string or an array of strings per owner.
func readCredentialIndex(path string) map[string]string {
	idx := make(map[string]string)
	if path == "" {
		return idx
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to read credentials")
		}
		return idx
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Failed to parse credentials")
		return idx
	}

	ambiguous := make(map[string]struct{})
	for owner, val := range raw {
		tokens, err := decodeTokens(val)
		if err != nil {
			logging.Warn().Err(err).Str("owner", owner).Msg("Skipping malformed credential entry")
			continue
		}
		for _, token := range tokens {
			if token == "" {
				continue
			}
			if prev, exists := idx[token]; exists && prev != owner {
				// A credential must resolve to exactly one owner.
				ambiguous[token] = struct{}{}
				continue
			}
			idx[token] = owner
		}
	}
	for token := range ambiguous {
		logging.Warn().Msg("Dropping credential claimed by multiple owners")
		delete(idx, token)
	}
	return idx
}

func decodeTokens(val json.RawMessage) ([]string, error) {
	var single string
	if err := json.Unmarshal(val, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(val, &many); err == nil {
		return many, nil
	}
	return nil, fmt.Errorf("credential value must be a string or string array")
}
