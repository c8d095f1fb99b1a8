// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/foreground/internal/config"
	"github.com/tomtom215/foreground/internal/database"
	"github.com/tomtom215/foreground/internal/identity"
	"github.com/tomtom215/foreground/internal/ingest"
	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/models"
	"github.com/tomtom215/foreground/internal/validation"
)

// maxIngestBody bounds the accepted request body size.
const maxIngestBody = 1 << 20

// Handler holds the HTTP handler dependencies.
type Handler struct {
	db        *database.DB
	pipeline  *ingest.Pipeline
	identity  *identity.Resolver
	config    *config.Config
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(db *database.DB, pipeline *ingest.Pipeline, resolver *identity.Resolver, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		pipeline:  pipeline,
		identity:  resolver,
		config:    cfg,
		startTime: time.Now(),
	}
}

// ingestBody is the raw request body. Older clients use machine_id,
// app_name and access_time; those fold into the canonical fields before
// the pipeline sees the request.
type ingestBody struct {
	Device      string      `json:"device"`
	Machine     string      `json:"machine"`
	MachineID   string      `json:"machine_id"`
	WindowTitle string      `json:"window_title"`
	App         string      `json:"app"`
	AppName     string      `json:"app_name"`
	EventTime   string      `json:"event_time"`
	AccessTime  string      `json:"access_time"`
	OS          string      `json:"os"`
	AppVersion  string      `json:"app_version"`
	Raw         interface{} `json:"raw"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ingest handles POST /api/ingest and its aliases: decode, fold legacy
// fields, validate, then hand the submission to the gate pipeline.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var body ingestBody
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid-body", "request body is not valid JSON", nil)
		return
	}

	req := &models.IngestRequest{
		Device:      firstNonEmpty(body.Device, body.MachineID, body.Machine),
		WindowTitle: body.WindowTitle,
		App:         firstNonEmpty(body.App, body.AppName),
		EventTime:   firstNonEmpty(body.EventTime, body.AccessTime),
		OS:          body.OS,
		AppVersion:  body.AppVersion,
		Raw:         body.Raw,
	}

	if req.Device == "" {
		respondError(w, http.StatusBadRequest, ingest.CodeMissingDevice, "device is required", nil)
		return
	}
	if verr := validation.ValidateStruct(req); verr != nil {
		respondError(w, http.StatusBadRequest, "validation-error", verr.Error(), verr.Details())
		return
	}

	event, rej, err := h.pipeline.Submit(r.Context(), &ingest.Submission{
		Credential: bearerToken(r),
		UserAgent:  r.UserAgent(),
		Request:    req,
	})
	if err != nil {
		logging.Error().Err(err).Str("device", sanitizeLogValue(req.Device)).Msg("Ingestion failed")
		respondError(w, http.StatusInternalServerError, ingest.CodeInternal, "submission could not be processed", nil)
		return
	}
	if rej != nil {
		respondError(w, rej.Status, rej.Code, rej.Message, rej.Details)
		return
	}

	// Submission results are per-request, never cacheable.
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     event,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// CurrentStatus handles GET /api/current-status. Events come back newest
// first, filtered by an explicit device, by an owner name's allow-list, or
// by their intersection when both are given. An unknown owner name yields
// an empty result, never the global feed.
func (h *Handler) CurrentStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	limit := getIntParam(r, "limit", h.config.API.DefaultLimit)
	if limit < 1 {
		limit = h.config.API.DefaultLimit
	}
	if limit > h.config.API.MaxLimit {
		limit = h.config.API.MaxLimit
	}

	name := r.URL.Query().Get("name")
	machine := r.URL.Query().Get("machine")

	var machines []string
	switch {
	case name != "":
		machines = h.identity.Machines(name)
		if machines == nil {
			machines = []string{}
		}
		if machine != "" {
			// Both filters: the device must be in the owner's allow-list,
			// otherwise the intersection is empty.
			intersected := []string{}
			for _, m := range machines {
				if m == machine {
					intersected = append(intersected, m)
					break
				}
			}
			machines = intersected
		}
	case machine != "":
		machines = []string{machine}
	}

	events, err := h.db.QueryEvents(r.Context(), machines, limit)
	if err != nil {
		logging.Error().Err(err).Msg("Event query failed")
		respondError(w, http.StatusInternalServerError, ingest.CodeInternal, "query failed", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   events,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// CurrentLatest handles GET /api/current-latest: the newest event per
// device, ordered by device.
func (h *Handler) CurrentLatest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	events, err := h.db.LatestPerDevice(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("Latest-per-device query failed")
		respondError(w, http.StatusInternalServerError, ingest.CodeInternal, "query failed", nil)
		return
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data:   events,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

// GroupMap handles GET /api/group-map. The map names real devices, so it is
// marked no-store.
func (h *Handler) GroupMap(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     h.identity.GroupMap(),
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Names handles GET /api/names: the sorted owner name list.
func (h *Handler) Names(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     h.identity.Names(),
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// Health handles GET /api/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Conn().PingContext(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"status":             status,
			"database_connected": dbConnected,
			"uptime_seconds":     time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
