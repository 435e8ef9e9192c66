// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package app composes the assessment pipeline from configuration:
// stores, collectors, orchestrator, analyzers, engine, and sinks wired
// into a ready Assessor. Both the CLI and the daemon build through it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/ai"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/analyze"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/archive"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/baseline"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/collect"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/collectors"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/engine"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/history"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/observability"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/storage/badger"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/store"
)

// baselineMinAlpha floors the decayed-Welford update step so old
// observations are eventually forgotten.
const baselineMinAlpha = 0.05

// defaultRSSFeeds are polled when the rss source enables no feeds of
// its own.
var defaultRSSFeeds = []string{
	"https://www.armscontrol.org/rss.xml",
	"https://www.iaea.org/feeds/topnews",
}

// Options carries the optional wiring a caller may attach.
type Options struct {
	// Metrics may be nil for one-shot CLI runs.
	Metrics *observability.Metrics

	// Listeners observe phase transitions on every run.
	Listeners []assess.PhaseListener
}

// App bundles the wired assessment stack and its owned resources.
//
// # Thread Safety
//
// Safe for concurrent use after Build. Close must be the last call.
type App struct {
	Assessor  *assess.Assessor
	Store     *store.Store
	Baselines *baseline.Store

	closers []func() error
}

// Close releases owned resources in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// Build wires collectors, orchestrator, analyzer, engine, stores, and
// sinks into a ready Assessor.
//
// # Description
//
// The AI collaborator is optional wiring: a missing API key logs a
// warning and the analyzers run on quantitative indicators alone.
// History and archive sinks attach only when enabled; a sink that
// fails to construct fails the build, since an operator who enabled it
// expects it to record.
//
// # Inputs
//
//	ctx - Used for client construction (GCS); not retained.
//	cfg - Validated configuration.
//	opts - Optional metrics and phase listeners.
//	logger - May not be nil.
//
// # Outputs
//
//	*App - Ready pipeline; caller owns Close.
//	error - Non-nil if any required component fails to construct.
func Build(ctx context.Context, cfg *config.Config, opts Options, logger *slog.Logger) (*App, error) {
	st, bl, err := OpenStores(cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{
		Store:     st,
		Baselines: bl,
		closers:   []func() error{st.Close, bl.Close},
	}

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	orchestrator := collect.NewOrchestrator(registry, collect.FromCollectionConfig(cfg.Collection), logger)

	var provider analyze.InsightProvider
	if cfg.AI.Enabled {
		collab, err := ai.NewFromConfig(cfg.AI, logger)
		if err != nil {
			logger.Warn("ai collaborator unavailable, analyses will degrade",
				"error", err)
		} else {
			provider = collab
		}
	}
	analyzer := analyze.NewAnalyzer(cfg.Analysis, provider, logger)

	eng := engine.New(cfg.Engine, logger)

	sinks := []assess.Sink{st}
	if cfg.History.Enabled {
		rec, err := history.New(history.Config{
			URL:    cfg.History.URL,
			Org:    cfg.History.Org,
			Bucket: cfg.History.Bucket,
			Token:  os.Getenv(cfg.History.TokenEnv),
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to build history recorder: %w", err)
		}
		a.closers = append(a.closers, func() error { rec.Close(); return nil })
		sinks = append(sinks, rec)
	}
	if cfg.Archive.Enabled {
		arch, err := archive.New(ctx, archive.Config{
			Bucket:          cfg.Archive.Bucket,
			Prefix:          cfg.Archive.Prefix,
			CredentialsFile: cfg.Archive.CredentialsFile,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to build archive uploader: %w", err)
		}
		a.closers = append(a.closers, arch.Close)
		sinks = append(sinks, arch)
	}

	a.Assessor = assess.NewAssessor(orchestrator, analyzer, eng, assess.AssessorOptions{
		Weights:     cfg.Weights,
		Baselines:   bl,
		Trends:      st,
		Sinks:       sinks,
		Listeners:   opts.Listeners,
		TrendWindow: cfg.Engine.TrendWindow(),
		Metrics:     opts.Metrics,
	}, logger)
	return a, nil
}

// OpenStores opens the badger-backed assessment and baseline stores
// under the configured storage directory. Callers that only need to
// read stored records use this directly instead of Build.
func OpenStores(cfg *config.Config, logger *slog.Logger) (*store.Store, *baseline.Store, error) {
	st, err := store.Open(storeConfig(cfg, "assessments", logger), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open assessment store: %w", err)
	}
	bl, err := baseline.Open(storeConfig(cfg, "baselines", logger), baselineMinAlpha, logger)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("failed to open baseline store: %w", err)
	}
	return st, bl, nil
}

func storeConfig(cfg *config.Config, name string, logger *slog.Logger) badger.Config {
	if cfg.Storage.InMemory {
		return badger.InMemoryConfig()
	}
	bc := badger.DefaultConfig()
	bc.Path = filepath.Join(cfg.Storage.Dir, name)
	bc.Logger = logger
	return bc
}

// buildRegistry registers one collector per enabled source. Sources
// with unusable wiring (newsapi without a key) are skipped with a
// warning rather than failing startup; the quorum check catches a
// registry left empty.
func buildRegistry(cfg *config.Config, logger *slog.Logger) (*collect.Registry, error) {
	registry := collect.NewRegistry()
	client := &http.Client{Timeout: cfg.Collection.CallTimeout()}

	if src, ok := cfg.Sources["newsapi"]; ok && src.Enabled {
		key := os.Getenv(src.APIKeyEnv)
		if key == "" {
			logger.Warn("newsapi source skipped: api key not set", "env", src.APIKeyEnv)
		} else {
			query, err := analyze.QueryForCategory(model.CategoryNuclearArsenal)
			if err != nil {
				return nil, err
			}
			if err := registry.Register(collectors.NewNewsAPI(collectors.NewsAPIConfig{
				APIKey:          key,
				Query:           query,
				Category:        model.CategoryNuclearArsenal,
				Endpoint:        src.Endpoint,
				Reliability:     src.Reliability,
				RequestsPerHour: src.RequestsPerHour,
				Timeout:         src.Timeout(),
				CacheTTL:        src.CacheTTL(),
			}, client)); err != nil {
				return nil, err
			}
		}
	}

	if src, ok := cfg.Sources["gdelt"]; ok && src.Enabled {
		query, err := analyze.QueryForCategory(model.CategoryRegionalConflicts)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(collectors.NewGDELT(collectors.GDELTConfig{
			Query:           query,
			Category:        model.CategoryRegionalConflicts,
			Endpoint:        src.Endpoint,
			Reliability:     src.Reliability,
			RequestsPerHour: src.RequestsPerHour,
			Timeout:         src.Timeout(),
			CacheTTL:        src.CacheTTL(),
		}, client)); err != nil {
			return nil, err
		}
	}

	if src, ok := cfg.Sources["rss"]; ok && src.Enabled {
		feeds := src.Feeds
		if len(feeds) == 0 {
			feeds = defaultRSSFeeds
		}
		if err := registry.Register(collectors.NewRSS(collectors.RSSConfig{
			Name:            "rss",
			Feeds:           feeds,
			Category:        model.CategoryArmsControl,
			Reliability:     src.Reliability,
			RequestsPerHour: src.RequestsPerHour,
			Timeout:         src.Timeout(),
			CacheTTL:        src.CacheTTL(),
		}, client)); err != nil {
			return nil, err
		}
	}

	if registry.Len() == 0 {
		logger.Warn("no collectors registered; assessment runs will fail quorum")
	}
	return registry, nil
}
