// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// OrchestratorOptions bounds a collection run.
type OrchestratorOptions struct {
	// MaxParallel sizes the admission gate.
	MaxParallel int

	// Timeout is the global deadline for the whole collection phase.
	Timeout time.Duration

	// CallTimeout is the per-attempt deadline for one collector call,
	// overridable by collectors implementing TimeoutConfigured.
	CallTimeout time.Duration

	// Quorum is the minimum number of successful sources; fewer is a
	// fatal QuorumError.
	Quorum int

	// SimilarityThreshold marks near-duplicate pairs for collapse.
	SimilarityThreshold float64

	// MinReliabilityScore drops points scoring below it after dedup.
	MinReliabilityScore float64

	// Retry governs transient-failure retries per collector call.
	Retry RetryPolicy

	// CacheMaxEntries bounds the shared snapshot cache.
	CacheMaxEntries int
}

// DefaultOrchestratorOptions returns the documented collection defaults.
func DefaultOrchestratorOptions() OrchestratorOptions {
	return OrchestratorOptions{
		MaxParallel:         10,
		Timeout:             30 * time.Second,
		CallTimeout:         10 * time.Second,
		Quorum:              1,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinReliabilityScore: 0.3,
		Retry:               DefaultRetryPolicy(),
		CacheMaxEntries:     256,
	}
}

// FromCollectionConfig maps the YAML collection section onto options.
func FromCollectionConfig(c config.CollectionConfig) OrchestratorOptions {
	return OrchestratorOptions{
		MaxParallel:         c.MaxParallelCollectors,
		Timeout:             c.Timeout(),
		CallTimeout:         c.CallTimeout(),
		Quorum:              c.Quorum,
		SimilarityThreshold: c.SimilarityThreshold,
		MinReliabilityScore: c.MinReliabilityScore,
		Retry: RetryPolicy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   c.RetryBaseDelay(),
			Multiplier:  c.RetryMultiplier,
		},
		CacheMaxEntries: c.CacheMaxEntries,
	}
}

// Orchestrator runs all registered collectors concurrently and produces
// one immutable aggregated snapshot per run.
//
// # Description
//
// Each collector call passes through, in order: the admission gate, the
// shared snapshot cache (a live entry returns without touching the
// source), the per-source token bucket, and the per-attempt timeout with
// bounded retry. Results merge append-only through a channel; after all
// collectors settle the merged batch is deduplicated, quality-filtered,
// and frozen into a model.AggregatedData.
//
// A source that fails after retries lands in FailedSources and degrades
// downstream confidence; only falling below the quorum aborts the run.
//
// # Thread Safety
//
// Safe for concurrent use; concurrent CollectAll runs share the gate,
// the rate limiters, and the snapshot cache.
type Orchestrator struct {
	registry *Registry
	gate     *Gate
	limiters *LimiterRegistry
	cache    *SnapshotCache
	deduper  *Deduper
	opts     OrchestratorOptions
	logger   *slog.Logger

	now func() time.Time
}

// NewOrchestrator creates an Orchestrator over the given registry.
// Zero-valued options fall back to DefaultOrchestratorOptions.
func NewOrchestrator(registry *Registry, opts OrchestratorOptions, logger *slog.Logger) *Orchestrator {
	def := DefaultOrchestratorOptions()
	if opts.MaxParallel < 1 {
		opts.MaxParallel = def.MaxParallel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = def.CallTimeout
	}
	if opts.Quorum < 1 {
		opts.Quorum = def.Quorum
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = def.Retry
	}
	if opts.CacheMaxEntries < 1 {
		opts.CacheMaxEntries = def.CacheMaxEntries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		registry: registry,
		gate:     NewGate(opts.MaxParallel),
		limiters: NewLimiterRegistry(),
		cache:    NewSnapshotCache(WithMaxEntries(opts.CacheMaxEntries)),
		deduper:  NewDeduper(opts.SimilarityThreshold),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// sourceResult carries one collector's outcome through the merge channel.
type sourceResult struct {
	source string
	points []model.DataPoint
	err    error
}

// CollectAll runs every registered collector and returns the aggregated
// snapshot.
//
// # Description
//
// The run is bounded by the global collection timeout; collectors still
// in flight at the deadline are cancelled and recorded as failed
// sources. The snapshot is assembled only from sources that settled
// successfully. Fewer successes than the quorum returns a
// *model.QuorumError and no snapshot.
//
// # Inputs
//
//   - ctx: Context for cancellation; the global timeout layers onto it.
//
// # Outputs
//
//   - *model.AggregatedData: The immutable snapshot for this run.
//   - error: *model.QuorumError when too few sources succeeded.
func (o *Orchestrator) CollectAll(ctx context.Context) (*model.AggregatedData, error) {
	start := o.now()
	collectors := o.registry.All()

	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	results := make(chan sourceResult, len(collectors))
	var wg sync.WaitGroup
	for _, c := range collectors {
		wg.Add(1)
		go func(c Collector) {
			defer wg.Done()
			points, err := o.collectOne(ctx, c)
			results <- sourceResult{source: c.SourceName(), points: points, err: err}
		}(c)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		merged     []model.DataPoint
		failed     []model.SourceFailure
		successful int
	)
	for r := range results {
		if r.err != nil {
			o.logger.Warn("source failed",
				"source", r.source,
				"error", r.err)
			failed = append(failed, model.SourceFailure{Source: r.source, Reason: r.err.Error()})
			continue
		}
		successful++
		merged = append(merged, r.points...)
		o.logger.Debug("source collected",
			"source", r.source,
			"points", len(r.points))
	}

	if successful < o.opts.Quorum {
		return nil, &model.QuorumError{Successful: successful, Required: o.opts.Quorum}
	}

	// Completion order is nondeterministic; fix it before dedup so a
	// given set of source results always yields the same snapshot.
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].CollectedAt.Equal(merged[j].CollectedAt) {
			return merged[i].CollectedAt.Before(merged[j].CollectedAt)
		}
		if merged[i].Source != merged[j].Source {
			return merged[i].Source < merged[j].Source
		}
		return merged[i].ID < merged[j].ID
	})
	sort.Slice(failed, func(i, j int) bool { return failed[i].Source < failed[j].Source })

	points := o.deduper.Deduplicate(merged)
	points = o.filterQuality(points)

	finished := o.now()
	o.logger.Info("collection settled",
		"successful_sources", successful,
		"failed_sources", len(failed),
		"points", len(points),
		"duration", finished.Sub(start))

	return &model.AggregatedData{
		Points:            points,
		CollectedAt:       finished,
		SuccessfulSources: successful,
		FailedSources:     failed,
		Duration:          finished.Sub(start),
	}, nil
}

// collectOne wraps a single collector call in the admission gate, the
// snapshot cache, the source's token bucket, and the retry policy.
func (o *Orchestrator) collectOne(ctx context.Context, c Collector) ([]model.DataPoint, error) {
	if err := o.gate.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("admission wait: %w", err)
	}
	defer o.gate.Release()

	fetch := func(ctx context.Context) ([]model.DataPoint, error) {
		if rl, ok := c.(RateLimited); ok {
			if err := o.limiters.Wait(ctx, c.SourceName(), rl.RequestsPerHour()); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}
		return o.fetchWithRetry(ctx, c)
	}

	if cc, ok := c.(Cacheable); ok {
		return o.cache.GetOrFetch(ctx, c.SourceName(), cc.CacheKey(), cc.CacheTTL(), fetch)
	}
	return fetch(ctx)
}

// fetchWithRetry runs one collector under the per-attempt timeout and
// the transient-only retry policy, then stamps and dedups the batch so
// a cached snapshot is already clean.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, c Collector) ([]model.DataPoint, error) {
	timeout := o.opts.CallTimeout
	if tc, ok := c.(TimeoutConfigured); ok && tc.Timeout() > 0 {
		timeout = tc.Timeout()
	}

	var points []model.DataPoint
	err := o.opts.Retry.Do(ctx, o.logger, c.SourceName(), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		got, err := c.Collect(callCtx)
		if err != nil {
			return err
		}
		points = got
		return nil
	})
	if err != nil {
		return nil, err
	}

	stampPoints(points, c, o.now())
	return o.deduper.Deduplicate(points), nil
}

// stampPoints fills identity fields an adapter left unset.
func stampPoints(points []model.DataPoint, c Collector, now time.Time) {
	for i := range points {
		if points[i].Source == "" {
			points[i].Source = c.SourceName()
		}
		if points[i].Reliability == 0 {
			points[i].Reliability = model.Clamp01(c.Reliability())
		}
		if points[i].CollectedAt.IsZero() {
			points[i].CollectedAt = now
		}
	}
}

// filterQuality drops points scoring below the reliability floor.
func (o *Orchestrator) filterQuality(points []model.DataPoint) []model.DataPoint {
	if o.opts.MinReliabilityScore <= 0 {
		return points
	}

	now := o.now()
	kept := make([]model.DataPoint, 0, len(points))
	for _, p := range points {
		if model.QualityScore(p, now) >= o.opts.MinReliabilityScore {
			kept = append(kept, p)
		}
	}
	if dropped := len(points) - len(kept); dropped > 0 {
		o.logger.Debug("quality filter dropped points",
			"dropped", dropped,
			"kept", len(kept))
	}
	return kept
}

// CacheStats reports snapshot cache statistics for this orchestrator.
func (o *Orchestrator) CacheStats() CacheStats {
	return o.cache.Stats()
}

// InvalidateCache clears the snapshot cache, forcing fresh fetches on
// the next run.
func (o *Orchestrator) InvalidateCache() {
	o.cache.Clear()
}
