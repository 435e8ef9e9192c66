// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collect implements the resilient collection orchestrator:
// bounded parallel fan-out over registered collectors with per-source
// rate limiting, bounded retry, caching, deduplication, quality
// filtering, and quorum enforcement. The output of a run is one
// immutable AggregatedData snapshot.
package collect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Collector is the capability each external source implements once.
//
// # Description
//
// A Collector turns one external origin (news API, event database, RSS
// feed) into normalized DataPoints. Implementations must be safe for
// concurrent use and must respect ctx cancellation: the orchestrator
// cancels outstanding collectors at the global collection deadline.
//
// # Thread Safety
//
// Collect may be invoked concurrently for different query windows;
// implementations must not share mutable state across calls without
// synchronization.
type Collector interface {
	// SourceName uniquely identifies the source; it keys rate limits,
	// cache entries, and failure records.
	SourceName() string

	// Category is the risk category this source primarily feeds.
	Category() model.RiskCategory

	// Reliability is the source's trust score in [0,1]; it becomes the
	// Reliability of every DataPoint the source emits and breaks
	// deduplication ties.
	Reliability() float64

	// Collect fetches and normalizes the source's current data.
	Collect(ctx context.Context) ([]model.DataPoint, error)
}

// RateLimited is implemented by collectors with a source-imposed
// request budget. Capacity is expressed per hour to match upstream
// quota documentation.
type RateLimited interface {
	RequestsPerHour() int
}

// TimeoutConfigured is implemented by collectors needing a per-call
// timeout different from the orchestrator default.
type TimeoutConfigured interface {
	Timeout() time.Duration
}

// Cacheable is implemented by collectors whose results may be served
// from the shared snapshot cache. CacheKey must capture the query
// parameters so distinct queries never collide.
type Cacheable interface {
	CacheKey() string
	CacheTTL() time.Duration
}

// Registry holds the collectors registered at startup. Lookup is by
// source name; iteration order is stable (sorted by name) so runs are
// reproducible.
//
// # Thread Safety
//
// Safe for concurrent use. Registration typically happens once during
// startup, reads happen on every orchestration run.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]Collector
}

// NewRegistry creates an empty collector registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]Collector)}
}

// Register adds a collector. Registering a duplicate source name is an
// error: two collectors fighting over one rate-limit key would starve
// each other.
func (r *Registry) Register(c Collector) error {
	if c == nil {
		return fmt.Errorf("cannot register nil collector")
	}
	name := c.SourceName()
	if name == "" {
		return fmt.Errorf("collector has empty source name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collectors[name]; exists {
		return fmt.Errorf("collector %q already registered", name)
	}
	r.collectors[name] = c
	return nil
}

// Get returns the collector for a source name.
func (r *Registry) Get(name string) (Collector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collectors[name]
	return c, ok
}

// All returns the registered collectors sorted by source name.
func (r *Registry) All() []Collector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Collector, 0, len(names))
	for _, name := range names {
		out = append(out, r.collectors[name])
	}
	return out
}

// Len returns the number of registered collectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collectors)
}
