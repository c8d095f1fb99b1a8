// Foreground - Active Window Telemetry Collection and Retention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/foreground

// Package main is the entry point for the Foreground server.
//
// Foreground collects active-window telemetry from desktop and mobile
// clients, stores it in DuckDB, and serves a small query API over the
// collected events. Every submission passes an ordered gate pipeline
// (identity, one-time update notice, per-device rate limit, client version)
// before being written; a daily retention pass prunes stored events.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered sources (defaults, YAML, environment)
//  2. Database: DuckDB event store with a one-time capability probe
//  3. Identity: owner/device and credential maps with soft TTL caching
//  4. Notice store: in-memory or BadgerDB one-time update markers
//  5. Version gate: local minimums or remotely resolved latest version
//  6. Supervisor tree: retention engine and HTTP server under suture
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests (10s timeout), then
// checkpoints and closes the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/foreground/internal/api"
	"github.com/tomtom215/foreground/internal/cache"
	"github.com/tomtom215/foreground/internal/config"
	"github.com/tomtom215/foreground/internal/database"
	"github.com/tomtom215/foreground/internal/identity"
	"github.com/tomtom215/foreground/internal/ingest"
	"github.com/tomtom215/foreground/internal/logging"
	"github.com/tomtom215/foreground/internal/notice"
	"github.com/tomtom215/foreground/internal/retention"
	"github.com/tomtom215/foreground/internal/supervisor"
	"github.com/tomtom215/foreground/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("open_mode", cfg.Auth.OpenMode).
		Str("version_strategy", cfg.Versions.Strategy).
		Msg("Starting Foreground")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	clock := cache.SystemClock{}
	resolver := identity.NewResolver(cfg.Auth.GroupMapPath, cfg.Auth.CredentialsPath, cfg.Auth.MapTTL, clock)

	noticeStore, err := buildNoticeStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize notice store")
	}
	if noticeStore != nil {
		defer func() {
			if err := noticeStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing notice store")
			}
		}()
	}

	versionGate := buildVersionGate(cfg, clock)

	pipeline := ingest.NewPipeline(resolver, noticeStore, versionGate, db, clock, cfg)

	handler := api.NewHandler(db, pipeline, resolver, cfg)
	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		RateLimitRequests:  cfg.Security.RateLimitReqs,
		RateLimitWindow:    cfg.Security.RateLimitWindow,
		RateLimitDisabled:  cfg.Security.RateLimitDisabled,
	})
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))
	if cfg.Retention.Enabled {
		tree.AddDataService(retention.NewEngine(db, &cfg.Retention, clock))
	} else {
		logging.Info().Msg("Retention disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Serving")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", fmt.Sprintf("%v", svc.Service)).Msg("Service did not stop in time")
		}
	}
	logging.Info().Msg("Shutdown complete")
}

// buildNoticeStore selects the update-notice marker store, or nil when the
// notice is disabled.
func buildNoticeStore(cfg *config.Config) (notice.Store, error) {
	if !cfg.Notice.Enabled {
		return nil, nil
	}
	switch cfg.Notice.Store {
	case "badger":
		return notice.NewBadgerStore(cfg.Notice.Path)
	default:
		return notice.NewMemoryStore(), nil
	}
}

// buildVersionGate selects the version gating strategy once at startup.
func buildVersionGate(cfg *config.Config, clock cache.Clock) ingest.VersionGate {
	switch cfg.Versions.Strategy {
	case "local":
		source := version.NewMinimumSource(cfg.Versions.MinVersionsPath, cfg.Auth.MapTTL, clock)
		return ingest.NewLocalMinimumGate(source, cfg.Versions.UpdateLink)
	case "latest":
		source := version.NewLatestSource(version.Options{
			Override:    cfg.Versions.LatestOverride,
			SourceURL:   cfg.Versions.LatestSourceURL,
			ReleaseRepo: cfg.Versions.ReleaseRepo,
			Timeout:     cfg.Versions.ResolveTimeout,
			CacheTTL:    cfg.Versions.CacheTTL,
		}, clock)
		return ingest.NewLatestVersionGate(source, cfg.Versions.UpdateLink)
	default:
		return ingest.NopGate{}
	}
}
