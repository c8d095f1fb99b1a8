// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package ingest

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/foreground/internal/config"
	"github.com/tomtom215/foreground/internal/database"
	"github.com/tomtom215/foreground/internal/identity"
	"github.com/tomtom215/foreground/internal/models"
	"github.com/tomtom215/foreground/internal/notice"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.duckdb"),
		MaxMemory: "512MB",
		Threads:   1,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestResolver(t *testing.T, groupMap, credentials string) *identity.Resolver {
	t.Helper()
	dir := t.TempDir()
	var gmPath, credPath string
	if groupMap != "" {
		gmPath = filepath.Join(dir, "group-map.json")
		if err := os.WriteFile(gmPath, []byte(groupMap), 0o600); err != nil {
			t.Fatalf("write group map: %v", err)
		}
	}
	if credentials != "" {
		credPath = filepath.Join(dir, "credentials.json")
		if err := os.WriteFile(credPath, []byte(credentials), 0o600); err != nil {
			t.Fatalf("write credentials: %v", err)
		}
	}
	return identity.NewResolver(gmPath, credPath, time.Minute, nil)
}

func testConfig(openMode bool) *config.Config {
	return &config.Config{
		Auth:   config.AuthConfig{OpenMode: openMode},
		Ingest: config.IngestConfig{MinInterval: 4 * time.Second, TitleMaxLen: 64},
		Notice: config.NoticeConfig{Message: "please update", Link: "https://example.com/update"},
	}
}

func submit(t *testing.T, p *Pipeline, credential, device, eventTime string) (*models.Event, *Rejection) {
	t.Helper()
	event, rej, err := p.Submit(context.Background(), &Submission{
		Credential: credential,
		Request: &models.IngestRequest{
			Device:      device,
			WindowTitle: "editor",
			EventTime:   eventTime,
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return event, rej
}

func TestAccessGateWithCredentials(t *testing.T) {
	resolver := newTestResolver(t,
		`{"alice": ["dev-1", "dev-2"]}`,
		`{"alice": "tok-a", "bob": "tok-b"}`)
	p := NewPipeline(resolver, nil, nil, newTestDB(t), nil, testConfig(false))

	tests := []struct {
		name       string
		credential string
		device     string
		wantCode   string
		wantStatus int
	}{
		{"valid credential and device", "tok-a", "dev-1", "", 0},
		{"valid credential wrong device", "tok-a", "dev-9", CodeForbiddenDevice, http.StatusForbidden},
		{"owner without allow-list", "tok-b", "dev-1", CodeForbiddenDevice, http.StatusForbidden},
		{"unknown credential", "tok-x", "dev-1", CodeUnauthorized, http.StatusUnauthorized},
		{"missing credential", "", "dev-1", CodeUnauthorized, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, rej := submit(t, p, tt.credential, tt.device, "")
			if tt.wantCode == "" {
				if rej != nil {
					t.Fatalf("unexpected rejection %+v", rej)
				}
				if event == nil || event.ID == 0 {
					t.Fatal("accepted submission must be stored")
				}
				return
			}
			if rej == nil {
				t.Fatal("expected rejection")
			}
			if rej.Code != tt.wantCode || rej.Status != tt.wantStatus {
				t.Errorf("rejection = %s/%d, want %s/%d", rej.Code, rej.Status, tt.wantCode, tt.wantStatus)
			}
			if event != nil {
				t.Error("rejected submission must not be stored")
			}
		})
	}
}

func TestAccessGateOpenMode(t *testing.T) {
	// Open mode, no credentials, no allow-lists: everything is admitted.
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(true))
	if _, rej := submit(t, p, "", "any-device", ""); rej != nil {
		t.Errorf("open mode without allow-lists rejected: %+v", rej)
	}

	// Open mode with allow-lists: unlisted devices are refused.
	p = NewPipeline(newTestResolver(t, `{"alice": ["dev-1"]}`, ""), nil, nil, newTestDB(t), nil, testConfig(true))
	if _, rej := submit(t, p, "", "dev-1", ""); rej != nil {
		t.Errorf("listed device rejected in open mode: %+v", rej)
	}
	_, rej := submit(t, p, "", "dev-9", "")
	if rej == nil || rej.Code != CodeForbiddenDevice {
		t.Errorf("unlisted device got %+v, want forbidden-device", rej)
	}
}

func TestAccessGateClosedModeWithoutCredentials(t *testing.T) {
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(false))
	_, rej := submit(t, p, "", "dev-1", "")
	if rej == nil || rej.Code != CodeUnauthorized {
		t.Errorf("closed mode without credentials got %+v, want unauthorized", rej)
	}
}

func TestNoticeGateFiresOnce(t *testing.T) {
	db := newTestDB(t)
	store := notice.NewMemoryStore()
	p := NewPipeline(newTestResolver(t, "", ""), store, nil, db, nil, testConfig(true))

	event, rej := submit(t, p, "", "dev-1", "")
	if rej == nil || rej.Code != CodeUpdateNotice || rej.Status != http.StatusUpgradeRequired {
		t.Fatalf("first submission got %+v, want update-notice 426", rej)
	}
	if rej.Message != "please update" {
		t.Errorf("notice message = %q", rej.Message)
	}
	if rej.Details["link"] != "https://example.com/update" {
		t.Errorf("notice details = %v", rej.Details)
	}
	if event != nil {
		t.Error("noticed submission must not be stored")
	}

	// The marker landed before the response, so the retry goes through.
	event, rej = submit(t, p, "", "dev-1", "")
	if rej != nil {
		t.Fatalf("second submission rejected: %+v", rej)
	}
	if event == nil {
		t.Fatal("second submission must be stored")
	}
}

func TestRateGateBoundary(t *testing.T) {
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(true))

	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if _, rej := submit(t, p, "", "dev-1", t0.Format(time.RFC3339Nano)); rej != nil {
		t.Fatalf("first submission rejected: %+v", rej)
	}

	// 3999ms after the stored event: under the 4s minimum.
	_, rej := submit(t, p, "", "dev-1", t0.Add(3999*time.Millisecond).Format(time.RFC3339Nano))
	if rej == nil || rej.Code != CodeTooFrequent || rej.Status != http.StatusTooManyRequests {
		t.Fatalf("got %+v, want too-frequent 429", rej)
	}
	if retry := rej.Details["retry_after_seconds"].(int64); retry != 1 {
		t.Errorf("retry_after_seconds = %d, want 1 (rounded up)", retry)
	}

	// Exactly 4s: the interval is satisfied.
	if _, rej := submit(t, p, "", "dev-1", t0.Add(4*time.Second).Format(time.RFC3339Nano)); rej != nil {
		t.Errorf("submission at exactly the minimum interval rejected: %+v", rej)
	}

	// Other devices are unaffected.
	if _, rej := submit(t, p, "", "dev-2", t0.Format(time.RFC3339Nano)); rej != nil {
		t.Errorf("independent device rejected: %+v", rej)
	}
}

func TestInvalidEventTime(t *testing.T) {
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(true))
	_, rej := submit(t, p, "", "dev-1", "yesterday at noon")
	if rej == nil || rej.Code != CodeInvalidTime || rej.Status != http.StatusBadRequest {
		t.Errorf("got %+v, want invalid-time 400", rej)
	}
}

func TestMissingEventTimeUsesServerClock(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), clock, testConfig(true))

	event, rej := submit(t, p, "", "dev-1", "")
	if rej != nil {
		t.Fatalf("rejected: %+v", rej)
	}
	if !event.AccessTime.Equal(clock.now) {
		t.Errorf("AccessTime = %v, want server clock %v", event.AccessTime, clock.now)
	}
}

func TestTitleTooLong(t *testing.T) {
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(true))

	_, rej, err := p.Submit(context.Background(), &Submission{
		Request: &models.IngestRequest{
			Device:      "dev-1",
			WindowTitle: strings.Repeat("x", 65),
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rej == nil || rej.Code != CodeTitleTooLong || rej.Status != http.StatusBadRequest {
		t.Fatalf("got %+v, want title-too-long 400", rej)
	}
	if rej.Details["limit"] != 64 || rej.Details["length"] != 65 {
		t.Errorf("details = %v, want limit 64 length 65", rej.Details)
	}
}

func TestRawPayloadStoredVerbatim(t *testing.T) {
	p := NewPipeline(newTestResolver(t, "", ""), nil, nil, newTestDB(t), nil, testConfig(true))

	event, rej, err := p.Submit(context.Background(), &Submission{
		Request: &models.IngestRequest{
			Device: "dev-1",
			Raw:    map[string]interface{}{"idle": false},
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if rej != nil {
		t.Fatalf("rejected: %+v", rej)
	}
	if event.RawJSON == nil || *event.RawJSON != `{"idle":false}` {
		t.Errorf("RawJSON = %v", event.RawJSON)
	}
}
