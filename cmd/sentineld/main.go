// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sentineld starts the Aleutian Sentinel HTTP service.
//
// This is the main entry point for the containerized service. It reads
// configuration from the config file plus a small set of environment
// overrides and serves until killed.
//
// # Environment Variables
//
//   - SENTINEL_CONFIG: config file path (default: ~/.sentinel/sentinel.yaml)
//   - SENTINEL_PORT: HTTP server port (overrides the config file)
//   - GIN_MODE: gin framework mode (default: release)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// # Usage
//
//	# Build
//	go build -o sentineld ./cmd/sentineld
//
//	# Run
//	./sentineld
//
//	# Or via container
//	podman-compose up sentineld
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/app"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/observability"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/server"
)

func main() {
	// Setup structured logging
	svcLog := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		Service: "sentineld",
		JSON:    true,
	})
	defer svcLog.Close()
	logger := svcLog.Slog()
	slog.SetDefault(logger)

	path, err := config.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to resolve config path: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	port := getEnvInt("SENTINEL_PORT", cfg.Server.Port)

	slog.Info("Starting sentineld",
		"port", port,
		"config", path,
		"sources", len(cfg.Sources),
	)

	ctx := context.Background()
	shutdown, err := observability.Init(ctx, observability.DefaultTelemetryConfig())
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(flushCtx)
	}()
	metrics := observability.InitMetrics()

	hub := server.NewHub(logger)
	a, err := app.Build(ctx, cfg, app.Options{
		Metrics:   metrics,
		Listeners: []assess.PhaseListener{hub.Publish},
	}, logger)
	if err != nil {
		log.Fatalf("Failed to build assessment pipeline: %v", err)
	}
	defer a.Close()

	svc, err := server.New(server.Config{
		Port:    port,
		GinMode: getEnvString("GIN_MODE", "release"),
	}, a.Assessor, a.Store, hub, logger)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Sentinel server error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
