// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package ingest

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/config"
	"github.com/tomtom215/foreground/internal/database"
	"github.com/tomtom215/foreground/internal/identity"
	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/metrics"
	"github.com/tomtom215/foreground/internal/models"
	"github.com/tomtom215/foreground/internal/notice"
)

// Submission is one decoded ingestion attempt plus its transport context.
type Submission struct {
	// Credential is the presented bearer token, empty when none was sent.
	Credential string

	// UserAgent is the client's User-Agent header.
	UserAgent string

	Request *models.IngestRequest
}

// Pipeline runs every submission through the fixed gate order: access,
// one-time update notice, per-device rate limit, client version, and
// finally the event writer. The first rejection stops the pipeline.
type Pipeline struct {
	identity *identity.Resolver
	notices  notice.Store // nil when the update notice is disabled
	versions VersionGate
	db       *database.DB
	clock    cache.Clock

	openMode    bool
	minInterval time.Duration
	titleMaxLen int

	noticeMessage string
	noticeLink    string
}

// NewPipeline wires the gate chain. A nil notices store disables the
// update-notice gate entirely.
func NewPipeline(
	resolver *identity.Resolver,
	notices notice.Store,
	versions VersionGate,
	db *database.DB,
	clock cache.Clock,
	cfg *config.Config,
) *Pipeline {
	if versions == nil {
		versions = NopGate{}
	}
	if clock == nil {
		clock = cache.SystemClock{}
	}
	return &Pipeline{
		identity:      resolver,
		notices:       notices,
		versions:      versions,
		db:            db,
		clock:         clock,
		openMode:      cfg.Auth.OpenMode,
		minInterval:   cfg.Ingest.MinInterval,
		titleMaxLen:   cfg.Ingest.TitleMaxLen,
		noticeMessage: cfg.Notice.Message,
		noticeLink:    cfg.Notice.Link,
	}
}

// Submit runs one submission through the pipeline. Exactly one of the
// returns is meaningful: the stored event on acceptance, a Rejection when a
// gate said no, or an error for infrastructure failures (the caller maps
// those to 500).
func (p *Pipeline) Submit(ctx context.Context, sub *Submission) (*models.Event, *Rejection, error) {
	start := time.Now()
	event, rej, err := p.run(ctx, sub)

	outcome := "accepted"
	switch {
	case err != nil:
		outcome = CodeInternal
	case rej != nil:
		outcome = rej.Code
	}
	metrics.IngestSubmissionsTotal.WithLabelValues(outcome).Inc()
	metrics.IngestGateDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return event, rej, err
}

func (p *Pipeline) run(ctx context.Context, sub *Submission) (*models.Event, *Rejection, error) {
	req := sub.Request
	device := req.Device

	if rej := p.accessGate(sub.Credential, device); rej != nil {
		return nil, rej, nil
	}

	if p.notices != nil {
		first, err := p.notices.MarkIfFirst(device)
		if err != nil {
			return nil, nil, fmt.Errorf("notice marker check failed: %w", err)
		}
		if first {
			logging.Info().Str("device", device).Msg("Returning one-time update notice")
			return nil, p.updateNotice(), nil
		}
	}

	// The candidate timestamp feeds both the rate limiter and the stored
	// event, so it is resolved before either.
	eventTime, rej := p.resolveEventTime(req.EventTime)
	if rej != nil {
		return nil, rej, nil
	}

	if rej, err := p.rateGate(ctx, device, eventTime); err != nil {
		return nil, nil, err
	} else if rej != nil {
		return nil, rej, nil
	}

	if rej := p.versions.Check(ctx, req, sub.UserAgent); rej != nil {
		return nil, rej, nil
	}

	return p.write(ctx, req, eventTime)
}

// accessGate applies the deployment's identity policy.
//
// With credentials configured, every submission must carry a resolvable
// credential and name a device on the resolved owner's allow-list. With no
// credentials configured, open mode admits devices by allow-list alone
// (or everything, when no allow-lists exist either); closed mode rejects
// all ingestion.
func (p *Pipeline) accessGate(credential, device string) *Rejection {
	if credential != "" {
		owner, ok := p.identity.ResolveOwner(credential)
		if !ok {
			return unauthorized("credential does not resolve to an owner")
		}
		for _, m := range p.identity.Machines(owner) {
			if m == device {
				return nil
			}
		}
		return forbiddenDevice(device)
	}

	if p.identity.HasCredentials() {
		return unauthorized("credential required")
	}
	if !p.openMode {
		return unauthorized("ingestion is closed: no credentials configured")
	}

	allowed, anyConfigured := p.identity.DeviceAllowedAnywhere(device)
	if anyConfigured && !allowed {
		return forbiddenDevice(device)
	}
	return nil
}

func (p *Pipeline) updateNotice() *Rejection {
	message := p.noticeMessage
	if message == "" {
		message = "a client update is available"
	}
	details := map[string]interface{}{}
	if p.noticeLink != "" {
		details["link"] = p.noticeLink
	}
	return &Rejection{
		Status:  http.StatusUpgradeRequired,
		Code:    CodeUpdateNotice,
		Message: message,
		Details: details,
	}
}

// resolveEventTime normalizes the client-supplied timestamp. Absent means
// "now" on the server clock; present but unparseable is a client error, not
// something to silently replace.
func (p *Pipeline) resolveEventTime(raw string) (time.Time, *Rejection) {
	if raw == "" {
		return p.clock.Now().UTC(), nil
	}
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, invalidTime(raw)
}

// rateGate enforces the minimum interval between stored events per device.
// The comparison uses the candidate event time against the newest stored
// time; concurrent submissions for one device may both pass, which is
// acceptable for this telemetry.
func (p *Pipeline) rateGate(ctx context.Context, device string, eventTime time.Time) (*Rejection, error) {
	if p.minInterval <= 0 {
		return nil, nil
	}
	last, ok, err := p.db.LastEventTime(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("rate limit lookup failed: %w", err)
	}
	if !ok {
		return nil, nil
	}
	remaining := p.minInterval - eventTime.Sub(last)
	if remaining <= 0 {
		return nil, nil
	}
	return tooFrequent(int64(math.Ceil(remaining.Seconds()))), nil
}

// write normalizes the accepted submission into an event and appends it.
func (p *Pipeline) write(ctx context.Context, req *models.IngestRequest, eventTime time.Time) (*models.Event, *Rejection, error) {
	if n := utf8.RuneCountInString(req.WindowTitle); n > p.titleMaxLen {
		return nil, titleTooLong(p.titleMaxLen, n), nil
	}

	event := &models.Event{
		Machine:     req.Device,
		WindowTitle: optional(req.WindowTitle),
		App:         optional(req.App),
		AccessTime:  eventTime,
	}
	if req.Raw != nil {
		raw, err := json.Marshal(req.Raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to serialize raw payload: %w", err)
		}
		s := string(raw)
		event.RawJSON = &s
	}

	if err := p.db.InsertEvent(ctx, event); err != nil {
		return nil, nil, err
	}
	metrics.EventsStoredTotal.Inc()
	return event, nil, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
