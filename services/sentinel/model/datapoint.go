// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"time"

	"github.com/google/uuid"
)

// DataPoint is one normalized unit of collected information with
// provenance and reliability metadata.
//
// # Description
//
// Collectors emit DataPoints; the orchestrator deduplicates, filters,
// and aggregates them; analyzers consume them. A DataPoint is immutable
// after construction: downstream stages copy rather than mutate, so a
// point can be shared across snapshot, cache, and analyzer goroutines
// without synchronization.
//
// # Fields
//
//   - ID: unique identifier assigned at construction (UUID v4).
//   - Source: name of the collector that produced the point.
//   - SourceURL: optional canonical URL of the underlying article.
//   - Title: optional headline or item title.
//   - Content: the normalized textual payload; never empty.
//   - PublishedAt: optional publication time reported by the source.
//   - CollectedAt: when the collector fetched the point (UTC).
//   - Category: the risk category the point was collected for.
//   - Reliability: source reliability in [0,1], clamped at construction.
//   - Metadata: free-form provenance annotations (query, feed, region).
//
// # Thread Safety
//
// Immutable after NewDataPoint; safe for concurrent reads.
type DataPoint struct {
	ID          string            `json:"id"`
	Source      string            `json:"source"`
	SourceURL   string            `json:"source_url,omitempty"`
	Title       string            `json:"title,omitempty"`
	Content     string            `json:"content"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
	Category    RiskCategory      `json:"category"`
	Reliability float64           `json:"reliability"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewDataPoint constructs an immutable DataPoint with a fresh ID and
// the collection timestamp set to now. Reliability is clamped to [0,1].
func NewDataPoint(source, content string, category RiskCategory, reliability float64) DataPoint {
	return DataPoint{
		ID:          uuid.New().String(),
		Source:      source,
		Content:     content,
		CollectedAt: time.Now().UTC(),
		Category:    category,
		Reliability: Clamp01(reliability),
	}
}

// Age returns how long ago the point was collected.
func (d DataPoint) Age(now time.Time) time.Duration {
	return now.Sub(d.CollectedAt)
}

// SourceFailure records one collector that did not contribute to a
// snapshot, with the reason preserved for assessment metadata.
type SourceFailure struct {
	Source string `json:"source"`
	Reason string `json:"reason"`
}

// AggregatedData is the immutable snapshot produced by one
// orchestration run: the surviving DataPoints after deduplication and
// quality filtering, plus collection bookkeeping.
//
// Ordering of Points is not significant. Created once per run and
// never mutated; analyzers across categories read it concurrently.
type AggregatedData struct {
	Points            []DataPoint     `json:"points"`
	CollectedAt       time.Time       `json:"collected_at"`
	SuccessfulSources int             `json:"successful_sources"`
	FailedSources     []SourceFailure `json:"failed_sources,omitempty"`
	Duration          time.Duration   `json:"duration"`
}

// ByCategory returns the points tagged with the given category. The
// returned slice is freshly allocated; the snapshot is not exposed for
// mutation.
func (a *AggregatedData) ByCategory(cat RiskCategory) []DataPoint {
	var out []DataPoint
	for _, p := range a.Points {
		if p.Category == cat {
			out = append(out, p)
		}
	}
	return out
}

// Sources returns the distinct source names present in the snapshot.
func (a *AggregatedData) Sources() []string {
	seen := make(map[string]struct{}, len(a.Points))
	var out []string
	for _, p := range a.Points {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		out = append(out, p.Source)
	}
	return out
}

// IsEmpty reports whether the snapshot carries no data points.
func (a *AggregatedData) IsEmpty() bool {
	return len(a.Points) == 0
}

// HistoricalBaseline carries the rolling statistics for one category,
// used as the Bayesian prior during calculation. Baselines are updated
// by an external scheduled job; within a single assessment they are
// read-only.
type HistoricalBaseline struct {
	Category    RiskCategory `json:"category"`
	Mean        float64      `json:"mean"`
	Variance    float64      `json:"variance"`
	SampleCount int          `json:"sample_count"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// VolumeMean and VolumeVariance track the typical per-assessment
	// data-point count for the category, used for volume anomaly
	// scoring during analysis.
	VolumeMean     float64 `json:"volume_mean"`
	VolumeVariance float64 `json:"volume_variance"`
}
