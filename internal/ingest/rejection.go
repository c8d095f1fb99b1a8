// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package ingest implements the ordered validation pipeline applied to
// every telemetry submission: access gate, one-time update notice, per
// device rate limit, client version gate, and the event writer. The
// pipeline short-circuits on the first rejection; nothing is written for a
// rejected submission.
package ingest

import "net/http"

// Rejection codes. These are the machine-readable error codes on the wire.
const (
	CodeMissingDevice   = "missing-device"
	CodeInvalidTime     = "invalid-time"
	CodeTitleTooLong    = "title-too-long"
	CodeUnauthorized    = "unauthorized"
	CodeForbiddenDevice = "forbidden-device"
	CodeUpdateNotice    = "update-notice"
	CodeOutdatedClient  = "outdated-client"
	CodeTooFrequent     = "too-frequent"
	CodeInternal        = "internal"
)

// Rejection is a pipeline stop: which gate said no, the HTTP status it
// maps to, and machine-readable detail fields (retry hints, version
// requirements). A nil *Rejection means the stage passed.
type Rejection struct {
	Status  int
	Code    string
	Message string
	Details map[string]interface{}
}

func unauthorized(message string) *Rejection {
	return &Rejection{Status: http.StatusUnauthorized, Code: CodeUnauthorized, Message: message}
}

func forbiddenDevice(device string) *Rejection {
	return &Rejection{
		Status:  http.StatusForbidden,
		Code:    CodeForbiddenDevice,
		Message: "device is not allow-listed",
		Details: map[string]interface{}{"device": device},
	}
}

func invalidTime(raw string) *Rejection {
	return &Rejection{
		Status:  http.StatusBadRequest,
		Code:    CodeInvalidTime,
		Message: "event_time could not be parsed",
		Details: map[string]interface{}{"event_time": raw},
	}
}

func titleTooLong(limit, actual int) *Rejection {
	return &Rejection{
		Status:  http.StatusBadRequest,
		Code:    CodeTitleTooLong,
		Message: "window_title exceeds the configured limit",
		Details: map[string]interface{}{"limit": limit, "length": actual},
	}
}

func tooFrequent(retryAfterSeconds int64) *Rejection {
	return &Rejection{
		Status:  http.StatusTooManyRequests,
		Code:    CodeTooFrequent,
		Message: "submission interval below the configured minimum",
		Details: map[string]interface{}{"retry_after_seconds": retryAfterSeconds},
	}
}
