// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/app"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/observability"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/server"
)

// telemetryShutdownTimeout bounds the final exporter flush.
const telemetryShutdownTimeout = 5 * time.Second

// runServe starts the HTTP service: trigger and query endpoints, the
// websocket live feed, and prometheus metrics. Runs until SIGINT or
// SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log := newLogger(logging.LevelInfo)
	defer log.Close()
	logger := log.Slog()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.Init(ctx, observability.DefaultTelemetryConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()
	metrics := observability.InitMetrics()

	hub := server.NewHub(logger)
	listeners := []assess.PhaseListener{hub.Publish}

	a, err := app.Build(ctx, cfg, app.Options{Metrics: metrics, Listeners: listeners}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// The watcher validates edits as operators make them. Collection
	// and engine wiring is fixed at startup, so a changed file only
	// takes effect on restart.
	watcher := config.NewWatcher(path, cfg, logger)
	watcher.OnReload(func(*config.Config) {
		logger.Info("configuration file changed; restart to apply", "path", path)
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	svc, err := server.New(server.Config{Port: cfg.Server.Port}, a.Assessor, a.Store, hub, logger)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		return nil
	case err := <-errCh:
		return err
	}
}
