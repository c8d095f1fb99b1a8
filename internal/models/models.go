// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package models defines the shared data structures for Foreground:
// telemetry events, the ingestion request body, and the API response
// envelope.
package models

import "time"

// Event is one stored active-window report. Events are append-only until
// pruned by retention; they are never updated in place.
type Event struct {
	// ID is assigned by the store in insertion order and breaks timestamp
	// ties during retention.
	ID int64 `json:"id,omitempty"`

	// Machine identifies the reporting device. Never empty once stored.
	Machine string `json:"machine"`

	// WindowTitle is the foreground window title, bounded in length.
	WindowTitle *string `json:"window_title"`

	// App is the foreground application name.
	App *string `json:"app"`

	// AccessTime is server-assigned unless a valid client time was accepted.
	AccessTime time.Time `json:"access_time"`

	// RawJSON is the opaque client payload, stored verbatim.
	RawJSON *string `json:"raw_json,omitempty"`
}

// IngestRequest is the POST /api/ingest body. Legacy field names from older
// clients (machine_id, app_name, access_time) are folded into the canonical
// fields during decoding, not here.
type IngestRequest struct {
	Device      string      `json:"device" validate:"required,max=256"`
	WindowTitle string      `json:"window_title"`
	App         string      `json:"app"`
	EventTime   string      `json:"event_time"`
	OS          string      `json:"os" validate:"omitempty,max=32"`
	AppVersion  string      `json:"app_version" validate:"omitempty,max=64"`
	Raw         interface{} `json:"raw"`
}

// APIResponse is the envelope for every JSON response.
//
// Example success:
//
//	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}
//
// Example error:
//
//	{"status": "error", "data": null, "metadata": {...},
//	 "error": {"code": "too-frequent", "message": "...", "details": {...}}}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries a machine-readable error code plus optional detail
// fields (retry hints, version requirements).
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
