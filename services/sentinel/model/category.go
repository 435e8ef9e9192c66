// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the core data model for the Sentinel risk
// assessment pipeline: data points, categories, analyses, assessments,
// the assessment phase machine, and the error taxonomy shared by every
// service package.
package model

import (
	"fmt"
	"strings"
)

// RiskCategory identifies one monitored risk domain. Values use
// snake_case wire names so they round-trip through JSON, YAML config,
// and the AI collaborator schema unchanged.
type RiskCategory string

const (
	CategoryNuclearArsenal    RiskCategory = "nuclear_arsenal_changes"
	CategoryRegionalConflicts RiskCategory = "regional_conflicts"
	CategoryLeadership        RiskCategory = "leadership_instability"
	CategoryArmsControl       RiskCategory = "arms_control_breakdown"
	CategoryTechnicalIncident RiskCategory = "technical_incidents"
	CategoryCommunications    RiskCategory = "communication_failures"
	CategoryEconomicPressure  RiskCategory = "economic_pressure"
	CategoryEmergingTech      RiskCategory = "emerging_tech_risks"
)

// AllCategories returns the canonical category set in stable order.
//
// The order matters for deterministic iteration (weighted sums, Monte
// Carlo category draws, report rendering). Callers must not mutate the
// returned slice.
func AllCategories() []RiskCategory {
	return []RiskCategory{
		CategoryNuclearArsenal,
		CategoryRegionalConflicts,
		CategoryLeadership,
		CategoryArmsControl,
		CategoryTechnicalIncident,
		CategoryCommunications,
		CategoryEconomicPressure,
		CategoryEmergingTech,
	}
}

// DefaultWeights returns the shipped category weight map.
//
// The weights encode the relative contribution of each category to the
// overall risk score and sum to exactly 1.0. Deployments may override
// them in configuration, but overrides must still satisfy the sum
// invariant checked by ValidateWeights.
func DefaultWeights() map[RiskCategory]float64 {
	return map[RiskCategory]float64{
		CategoryRegionalConflicts: 0.20,
		CategoryNuclearArsenal:    0.15,
		CategoryArmsControl:       0.15,
		CategoryTechnicalIncident: 0.15,
		CategoryLeadership:        0.10,
		CategoryCommunications:    0.10,
		CategoryEmergingTech:      0.10,
		CategoryEconomicPressure:  0.05,
	}
}

// WeightSumTolerance is the permitted deviation of a weight map sum
// from 1.0. Sums outside 1.0±WeightSumTolerance are a fatal
// ValidationError, never silently renormalized.
const WeightSumTolerance = 0.001

// ValidateWeights checks a category weight map against the sum
// invariant and value ranges.
//
// # Description
//
// Every weight must be finite and in [0,1], and the sum of all weights
// must be within WeightSumTolerance of 1.0. A failing map is reported
// with a *ValidationError carrying the offending field; the caller must
// abort the run rather than repair the map.
//
// # Inputs
//
//   - weights: category to weight map; must be non-empty
//
// # Outputs
//
//   - error: nil when valid, otherwise a *ValidationError
func ValidateWeights(weights map[RiskCategory]float64) error {
	if len(weights) == 0 {
		return &ValidationError{Field: "weights", Reason: "weight map is empty"}
	}
	sum := 0.0
	for cat, w := range weights {
		if !isFinite(w) {
			return &ValidationError{
				Field:  fmt.Sprintf("weights[%s]", cat),
				Reason: fmt.Sprintf("weight %v is not finite", w),
			}
		}
		if w < 0 || w > 1 {
			return &ValidationError{
				Field:  fmt.Sprintf("weights[%s]", cat),
				Reason: fmt.Sprintf("weight %.4f outside [0,1]", w),
			}
		}
		sum += w
	}
	if diff := sum - 1.0; diff > WeightSumTolerance || diff < -WeightSumTolerance {
		return &ValidationError{
			Field:  "weights",
			Reason: fmt.Sprintf("weights sum to %.4f, expected 1.0±%.3f", sum, WeightSumTolerance),
		}
	}
	return nil
}

// ParseCategory converts a wire or human-entered name into a
// RiskCategory. Matching is case-insensitive and tolerates spaces or
// hyphens in place of underscores. Unknown names return an error.
func ParseCategory(name string) (RiskCategory, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	for _, cat := range AllCategories() {
		if normalized == string(cat) {
			return cat, nil
		}
	}
	return "", fmt.Errorf("unknown risk category %q", name)
}

// Display returns a human-readable label for reports and CLI output.
func (c RiskCategory) Display() string {
	words := strings.Split(string(c), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Valid reports whether c is one of the canonical categories.
func (c RiskCategory) Valid() bool {
	for _, cat := range AllCategories() {
		if c == cat {
			return true
		}
	}
	return false
}
