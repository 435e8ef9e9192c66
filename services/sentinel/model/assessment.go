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
	"sort"
	"time"
)

// RiskFactor is one scored, attributed contributor to overall risk
// within a category. Created by a Risk Analyzer; immutable.
type RiskFactor struct {
	Category   RiskCategory    `json:"category"`
	Name       string          `json:"name"`
	Value      float64         `json:"value"`
	Confidence ConfidenceLevel `json:"confidence"`
	Sources    []string        `json:"sources,omitempty"`
	Evidence   string          `json:"evidence,omitempty"`
	Trend      TrendDirection  `json:"trend"`
}

// Contribution returns the factor's weighted contribution to the
// overall score under the given category weight map. Unknown categories
// contribute zero.
func (f RiskFactor) Contribution(weights map[RiskCategory]float64) float64 {
	return Clamp01(f.Value) * weights[f.Category]
}

// RiskAnalysis is the category-level output of one Risk Analyzer run.
//
// Score and ConfidenceValue are continuous in [0,1]; Confidence is the
// banded form of ConfidenceValue. Summary and Recommendations originate
// from the AI collaborator and are carried as opaque text.
type RiskAnalysis struct {
	Category        RiskCategory    `json:"category"`
	Score           float64         `json:"score"`
	Confidence      ConfidenceLevel `json:"confidence"`
	ConfidenceValue float64         `json:"confidence_value"`
	Factors         []RiskFactor    `json:"factors"`
	Summary         string          `json:"summary,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	DataPoints      int             `json:"data_points"`

	// Degraded lists the optional dependencies this analysis had to
	// proceed without; the assembler folds them into run metadata.
	Degraded []string `json:"degraded,omitempty"`
}

// ConfidenceInterval bounds the simulated score distribution at a
// configured level (80, 90, 95, or 99 percent).
type ConfidenceInterval struct {
	Level float64 `json:"level"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Contains reports whether v falls inside the interval (inclusive).
func (ci ConfidenceInterval) Contains(v float64) bool {
	return v >= ci.Lower && v <= ci.Upper
}

// Width returns the interval width.
func (ci ConfidenceInterval) Width() float64 {
	return ci.Upper - ci.Lower
}

// SimulationResult is the empirical summary of the Monte Carlo score
// distribution.
type SimulationResult struct {
	Iterations  int                `json:"iterations"`
	Seed        int64              `json:"seed"`
	Mean        float64            `json:"mean"`
	Median      float64            `json:"median"`
	Mode        float64            `json:"mode"`
	StdDev      float64            `json:"std_dev"`
	Skewness    float64            `json:"skewness"`
	Kurtosis    float64            `json:"kurtosis"`
	Percentiles map[int]float64    `json:"percentiles"`
	Interval    ConfidenceInterval `json:"interval"`
}

// AssessmentMetadata records run provenance: how collection went, how
// the simulation was configured, and whether confidence was degraded by
// partial failure. Partial collection failure is always visible here
// even when the run succeeds.
type AssessmentMetadata struct {
	RunID               string          `json:"run_id"`
	SuccessfulSources   int             `json:"successful_sources"`
	FailedSources       []SourceFailure `json:"failed_sources,omitempty"`
	CollectionDuration  time.Duration   `json:"collection_duration"`
	DataPointCount      int             `json:"data_point_count"`
	DegradedConfidence  bool            `json:"degraded_confidence"`
	DegradedReasons     []string        `json:"degraded_reasons,omitempty"`
	SimulationIteration int             `json:"simulation_iterations"`
	SimulationSeed      int64           `json:"simulation_seed"`
}

// RiskAssessment is the immutable final record of one assessment run.
//
// # Description
//
// Combines the calculation result with every category analysis. The
// Factors slice contains every RiskFactor from every RiskAnalysis
// exactly once, sorted by weighted contribution descending, ties broken
// by confidence descending, then by name ascending. Score is clamped to
// [0,1] and SecondsToMidnight to [0,1440] before the record is built.
// Persistence is the only permitted side effect after creation.
//
// # Thread Safety
//
// Immutable once assembled; safe for concurrent reads.
type RiskAssessment struct {
	ID                string             `json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	Score             float64            `json:"score"`
	SecondsToMidnight int                `json:"seconds_to_midnight"`
	AlertLevel        AlertLevel         `json:"alert_level"`
	Confidence        ConfidenceLevel    `json:"confidence"`
	ConfidenceValue   float64            `json:"confidence_value"`
	Trend             TrendDirection     `json:"trend"`
	Factors           []RiskFactor       `json:"factors"`
	Analyses          []RiskAnalysis     `json:"analyses"`
	Simulation        SimulationResult   `json:"simulation"`
	Metadata          AssessmentMetadata `json:"metadata"`
}

// SortFactorsByContribution orders factors in place per the assessment
// invariant: weighted contribution descending, ties by confidence
// descending, remaining ties by name ascending. The sort is
// deterministic for any input permutation.
func SortFactorsByContribution(factors []RiskFactor, weights map[RiskCategory]float64) {
	sort.SliceStable(factors, func(i, j int) bool {
		ci := factors[i].Contribution(weights)
		cj := factors[j].Contribution(weights)
		if ci != cj {
			return ci > cj
		}
		si := factors[i].Confidence.Score()
		sj := factors[j].Confidence.Score()
		if si != sj {
			return si > sj
		}
		return factors[i].Name < factors[j].Name
	})
}
