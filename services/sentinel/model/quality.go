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

import "time"

// Quality scoring blends four signals into one [0,1] score used by the
// orchestrator's quality filter. Weights: source reliability 0.30,
// timeliness 0.20, completeness 0.10, relevance 0.40. Relevance falls
// back to source reliability until a dedicated relevance model exists.
const (
	qualityWeightSource       = 0.30
	qualityWeightTimeliness   = 0.20
	qualityWeightCompleteness = 0.10
	qualityWeightRelevance    = 0.40
)

// QualityScore computes the overall quality of a data point at the
// given reference time.
func QualityScore(p DataPoint, now time.Time) float64 {
	return qualityWeightSource*p.Reliability +
		qualityWeightTimeliness*timelinessScore(p, now) +
		qualityWeightCompleteness*completenessScore(p) +
		qualityWeightRelevance*p.Reliability
}

// timelinessScore decays with collection age: under a day is fully
// fresh, beyond ninety days nearly stale.
func timelinessScore(p DataPoint, now time.Time) float64 {
	age := now.Sub(p.CollectedAt)
	switch {
	case age < 24*time.Hour:
		return 1.0
	case age < 7*24*time.Hour:
		return 0.9
	case age < 30*24*time.Hour:
		return 0.7
	case age < 90*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

// completenessScore rewards points that carry optional provenance:
// base 0.5, +0.15 title, +0.15 URL, +0.10 published time, +0.10 any
// metadata, capped at 1.0.
func completenessScore(p DataPoint) float64 {
	score := 0.5
	if p.Title != "" {
		score += 0.15
	}
	if p.SourceURL != "" {
		score += 0.15
	}
	if p.PublishedAt != nil {
		score += 0.10
	}
	if len(p.Metadata) > 0 {
		score += 0.10
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
