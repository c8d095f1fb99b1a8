// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package metrics provides Prometheus instrumentation for the ingestion
// pipeline, the retention engine, version resolution, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion pipeline metrics
	IngestSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_submissions_total",
			Help: "Total ingestion submissions by outcome (accepted, or the rejecting gate's code)",
		},
		[]string{"outcome"},
	)

	IngestGateDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_pipeline_duration_seconds",
			Help:    "Time spent running the full gate pipeline per submission",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"outcome"},
	)

	EventsStoredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_stored_total",
			Help: "Total telemetry events written to the store",
		},
	)

	// Retention metrics
	RetentionRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_runs_total",
			Help: "Total retention passes by result",
		},
		[]string{"mode", "result"}, // result: "success" or "error"
	)

	RetentionDeletedRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_deleted_rows_total",
			Help: "Total rows deleted by retention passes",
		},
	)

	RetentionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retention_duration_seconds",
			Help:    "Duration of retention passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Latest-version resolution metrics
	VersionResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "version_resolutions_total",
			Help: "Latest-version resolution attempts by source and result",
		},
		[]string{"source", "result"}, // source: override, source_url, release_api, cache
	)

	// Circuit breaker metrics (release-metadata API)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
