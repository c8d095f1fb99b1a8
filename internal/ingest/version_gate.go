// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package ingest

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/models"
	"github.com/tomtom215/foreground/internal/version"
)

// VersionGate decides whether a client is recent enough to submit. The
// strategy is fixed at startup; a nil result means the submission passes.
type VersionGate interface {
	Check(ctx context.Context, req *models.IngestRequest, userAgent string) *Rejection
}

// NopGate accepts every client. Used when version gating is off.
type NopGate struct{}

// Check always passes.
func (NopGate) Check(context.Context, *models.IngestRequest, string) *Rejection { return nil }

// LocalMinimumGate enforces per-OS-class minimum versions from a local
// file. Submissions that do not declare a recognized OS class, or whose OS
// class has no configured minimum, pass through: the gate exists to push
// known-broken client builds forward, not to block unknown platforms.
type LocalMinimumGate struct {
	source     *version.MinimumSource
	updateLink string
}

// NewLocalMinimumGate creates a gate backed by the given minimum source.
func NewLocalMinimumGate(source *version.MinimumSource, updateLink string) *LocalMinimumGate {
	return &LocalMinimumGate{source: source, updateLink: updateLink}
}

// Check compares the declared client version against the OS class minimum.
// A client that declares no version passes; only declared, comparable
// versions are gated under this strategy.
func (g *LocalMinimumGate) Check(_ context.Context, req *models.IngestRequest, _ string) *Rejection {
	if req.OS == "" || req.AppVersion == "" {
		return nil
	}
	min, ok := g.source.Minimum(req.OS)
	if !ok {
		return nil
	}
	if version.Compare(req.AppVersion, min) >= 0 {
		return nil
	}
	return outdatedClient(map[string]interface{}{
		"os":                   strings.ToLower(strings.TrimSpace(req.OS)),
		"min_required_version": min,
		"current_version":      req.AppVersion,
	}, g.updateLink)
}

// LatestVersionGate enforces "must run the latest release". The check is
// warranted only for clients that either declare a version or present a
// user agent from a platform the project ships builds for; ad-hoc scripts
// and probes are ignored. A warranted client that declares no version at
// all is treated as outdated. Resolution failure fails open.
type LatestVersionGate struct {
	source     *version.LatestSource
	updateLink string
}

// NewLatestVersionGate creates a gate backed by the given latest source.
func NewLatestVersionGate(source *version.LatestSource, updateLink string) *LatestVersionGate {
	return &LatestVersionGate{source: source, updateLink: updateLink}
}

// Check compares the declared client version against the resolved latest.
func (g *LatestVersionGate) Check(ctx context.Context, req *models.IngestRequest, userAgent string) *Rejection {
	if req.AppVersion == "" && !knownClientPlatform(userAgent) {
		return nil
	}
	if req.AppVersion == "" {
		return outdatedClient(map[string]interface{}{
			"current_version": "unknown",
		}, g.updateLink)
	}

	latest, err := g.source.Latest(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("Latest version unresolvable, accepting submission")
		return nil
	}
	if version.Compare(req.AppVersion, latest) >= 0 {
		return nil
	}
	return outdatedClient(map[string]interface{}{
		"latest_version":  latest,
		"current_version": req.AppVersion,
	}, g.updateLink)
}

// knownClientPlatform reports whether the user agent names a platform the
// client ships on.
func knownClientPlatform(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, token := range []string{"windows", "android", "iphone", "ipad", "ios"} {
		if strings.Contains(ua, token) {
			return true
		}
	}
	return false
}

func outdatedClient(details map[string]interface{}, updateLink string) *Rejection {
	if updateLink != "" {
		details["link"] = updateLink
	}
	return &Rejection{
		Status:  http.StatusUpgradeRequired,
		Code:    CodeOutdatedClient,
		Message: "client version is below the required version",
		Details: details,
	}
}
