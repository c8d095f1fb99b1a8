// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package version

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/metrics"
)

const latestKey = "latest-version"

// Resolver produces a candidate "latest version" value or fails.
type Resolver interface {
	// Name identifies the resolver in logs and metrics.
	Name() string

	// Resolve returns the latest version string. An empty result is a
	// failure.
	Resolve(ctx context.Context) (string, error)
}

// LatestSource composes an ordered resolver chain with a short TTL cache.
// Resolution walks the chain in priority order and the first success wins.
// All failures together mean "no newer version is known" — the version gate
// fails open on that.
type LatestSource struct {
	resolvers []Resolver
	cache     *cache.Cache
	timeout   time.Duration
}

// Options configures NewLatestSource.
type Options struct {
	// Override short-circuits resolution with a fixed value when non-empty.
	Override string

	// SourceURL serves the version as the first line of a plain text body.
	SourceURL string

	// ReleaseRepo is an "owner/repo" slug on the GitHub releases API.
	ReleaseRepo string

	// Timeout bounds each individual resolver attempt.
	Timeout time.Duration

	// CacheTTL bounds how long a resolved value is reused.
	CacheTTL time.Duration

	// Client is the HTTP client for remote resolvers. Defaults to a client
	// with the configured timeout.
	Client *http.Client
}

// NewLatestSource builds the resolver chain in priority order:
// manual override → custom text source → release-metadata API.
func NewLatestSource(opts Options, clock cache.Clock) *LatestSource {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	var chain []Resolver
	if opts.Override != "" {
		chain = append(chain, overrideResolver{value: opts.Override})
	}
	if opts.SourceURL != "" {
		chain = append(chain, &textSourceResolver{url: opts.SourceURL, client: client})
	}
	if opts.ReleaseRepo != "" {
		chain = append(chain, newReleaseAPIResolver(opts.ReleaseRepo, client))
	}

	return &LatestSource{
		resolvers: chain,
		cache:     cache.NewWithClock(opts.CacheTTL, clock),
		timeout:   opts.Timeout,
	}
}

// Latest returns the current latest-version value. The error is non-nil
// only when every resolver in the chain failed; callers treat that as
// "nothing newer known" (fail-open).
func (s *LatestSource) Latest(ctx context.Context) (string, error) {
	if cached, ok := s.cache.Get(latestKey); ok {
		metrics.VersionResolutionsTotal.WithLabelValues("cache", "success").Inc()
		return cached.(string), nil
	}

	var lastErr error
	for _, r := range s.resolvers {
		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		v, err := r.Resolve(attemptCtx)
		cancel()

		if err != nil || v == "" {
			if err == nil {
				err = fmt.Errorf("empty result")
			}
			lastErr = err
			metrics.VersionResolutionsTotal.WithLabelValues(r.Name(), "error").Inc()
			logging.Warn().Err(err).Str("resolver", r.Name()).Msg("Latest version resolution failed, trying next source")
			continue
		}

		metrics.VersionResolutionsTotal.WithLabelValues(r.Name(), "success").Inc()
		s.cache.Set(latestKey, v)
		return v, nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no latest-version resolvers configured")
	}
	return "", lastErr
}

// overrideResolver returns a fixed, operator-supplied value.
type overrideResolver struct {
	value string
}

func (overrideResolver) Name() string { return "override" }

func (r overrideResolver) Resolve(context.Context) (string, error) {
	return r.value, nil
}

// textSourceResolver fetches a single-line plain text document whose first
// line is the version.
type textSourceResolver struct {
	url    string
	client *http.Client
}

func (*textSourceResolver) Name() string { return "source_url" }

func (r *textSourceResolver) Resolve(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build version source request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("version source fetch failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version source returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, 4096))
	if !scanner.Scan() {
		return "", fmt.Errorf("version source body is empty")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// releaseAPIResolver queries the release-metadata API for the latest tag.
// The call sits behind a circuit breaker so a flapping upstream stops
// being probed on every cache expiry.
type releaseAPIResolver struct {
	repo   string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[string]
}

func newReleaseAPIResolver(repo string, client *http.Client) *releaseAPIResolver {
	const cbName = "release-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &releaseAPIResolver{repo: repo, client: client, cb: cb}
}

func (*releaseAPIResolver) Name() string { return "release_api" }

func (r *releaseAPIResolver) Resolve(ctx context.Context) (string, error) {
	return r.cb.Execute(func() (string, error) {
		url := fmt.Sprintf("https://api.github.com/repos/%s/releases/latest", r.repo)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("failed to build release request: %w", err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := r.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("release fetch failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("release API returned status %d", resp.StatusCode)
		}

		var release struct {
			TagName string `json:"tag_name"`
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&release); err != nil {
			return "", fmt.Errorf("failed to decode release metadata: %w", err)
		}
		if release.TagName == "" {
			return "", fmt.Errorf("release metadata has no tag name")
		}
		return release.TagName, nil
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
