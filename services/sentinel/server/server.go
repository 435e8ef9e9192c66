// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes the assessment pipeline over HTTP.
//
// The service wraps a Gin engine with OpenTelemetry middleware and
// structured request logging. It triggers assessment runs, serves
// stored records and history ranges, streams phase events to websocket
// subscribers, and publishes health and Prometheus metrics endpoints.
//
// # Usage
//
//	hub := server.NewHub(logger)
//	svc, err := server.New(server.Config{Port: 8090}, assessor, st, hub, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
//
// The hub is created by the caller so it can be registered as a phase
// listener on the assessor before the service starts.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/observability"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the sentinel HTTP service.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds server configuration options.
//
// # Description
//
// All fields are optional; New applies defaults for zero values.
// Values can be populated from environment variables, config files,
// or programmatically for testing.
type Config struct {
	// Port is the HTTP server port. Default: 8090
	Port int

	// GinMode sets the Gin framework mode.
	// Valid values: "debug", "release", "test"
	// Default: uses the GIN_MODE env var or "debug"
	GinMode string

	// ServiceName labels otelgin spans. Default: "sentinel"
	ServiceName string
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
//
// # Thread Safety
//
// Thread-safe after construction. Route wiring is fixed once New
// returns; inFlight serializes run triggers.
type service struct {
	config   Config
	router   *gin.Engine
	runner   Runner
	store    AssessmentStore
	hub      *Hub
	logger   *slog.Logger
	inFlight atomic.Bool
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a sentinel HTTP service with the given configuration.
//
// # Inputs
//
//	cfg - Server configuration. Zero values use defaults.
//	runner - Executes assessment runs. Required.
//	store - Serves stored assessments. Required.
//	hub - Websocket broadcast hub. May be nil; a hub that receives no
//	      phase events is created so /v1/live still accepts clients.
//	logger - May be nil; slog.Default() is used.
//
// # Outputs
//
//	Service - Ready-to-run HTTP service.
//	error - Non-nil if a required dependency is missing.
func New(cfg Config, runner Runner, store AssessmentStore, hub *Hub, logger *slog.Logger) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("server requires a runner")
	}
	if store == nil {
		return nil, fmt.Errorf("server requires an assessment store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub(logger)
	}

	s := &service{
		config: applyConfigDefaults(cfg),
		runner: runner,
		store:  store,
		hub:    hub,
		logger: logger,
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.initRouter()

	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting sentinel server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8090
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sentinel"
	}
	return cfg
}

// initRouter sets up the Gin router with middleware and all routes.
func (s *service) initRouter() {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(s.config.ServiceName))
	router.Use(requestLogger(s.logger))

	router.GET("/healthz", HealthCheck)
	router.GET("/metrics", metricsHandler())

	v1 := router.Group("/v1")
	{
		v1.POST("/assessments", HandleTriggerAssessment(s.runner, &s.inFlight))
		// ":id" also accepts the literal "latest"; a static sibling
		// route would conflict with the wildcard in Gin's tree.
		v1.GET("/assessments/:id", HandleGetAssessment(s.store))
		v1.GET("/history", HandleHistory(s.store))
		v1.GET("/live", s.hub.HandleLive())
	}

	s.router = router
}

// metricsHandler serves the Prometheus registry. When telemetry Init
// has not run (tests, CLI one-shots) it falls back to the default
// promhttp handler.
func metricsHandler() gin.HandlerFunc {
	h := observability.MetricsHandler()
	if h == nil {
		h = promhttp.Handler()
	}
	return gin.WrapH(h)
}

// requestLogger emits one structured log line per request. Health
// probes are skipped to keep the log readable.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if path == "/healthz" || path == "/metrics" {
			return
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("http request", attrs...)
			return
		}
		logger.Info("http request", attrs...)
	}
}

// cleanup releases resources when Run exits.
func (s *service) cleanup() {
	s.hub.Close()
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
