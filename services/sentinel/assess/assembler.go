// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assess

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/engine"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Assemble builds the immutable assessment record from the calculation
// result and the per-category analyses.
//
// # Description
//
// Every factor from every analysis lands in the merged factor list
// exactly once, stamped with the overall trend, then sorted by weighted
// contribution descending (ties by confidence descending, then name
// ascending). Score and seconds are re-clamped before the record is
// built so downstream consumers never see out-of-range values
// regardless of where the inputs came from.
//
// # Inputs
//
//	runID    - Identifier of the producing run, embedded in metadata.
//	res      - Engine calculation result.
//	analyses - Per-category analyses in canonical category order.
//	data     - The collection snapshot the analyses were computed from.
//	weights  - The validated weight table used for the calculation.
//
// # Outputs
//
//	*model.RiskAssessment - The finished record. Never nil.
//
// # Thread Safety
//
// Pure function over its inputs; safe for concurrent use.
func Assemble(runID string, res *engine.Result, analyses []model.RiskAnalysis, data *model.AggregatedData, weights map[model.RiskCategory]float64) *model.RiskAssessment {
	factors := mergeFactors(res.Trend, analyses)
	model.SortFactorsByContribution(factors, weights)

	degradedReasons := collectDegradedReasons(analyses, data.FailedSources)
	seconds := model.ClampSeconds(res.SecondsToMidnight)

	return &model.RiskAssessment{
		ID:                uuid.NewString(),
		CreatedAt:         time.Now().UTC(),
		Score:             model.Clamp01(res.AdjustedScore),
		SecondsToMidnight: seconds,
		AlertLevel:        model.AlertFromSeconds(seconds),
		Confidence:        res.Confidence,
		ConfidenceValue:   res.ConfidenceValue,
		Trend:             res.Trend,
		Factors:           factors,
		Analyses:          analyses,
		Simulation:        res.Simulation,
		Metadata: model.AssessmentMetadata{
			RunID:               runID,
			SuccessfulSources:   data.SuccessfulSources,
			FailedSources:       data.FailedSources,
			CollectionDuration:  data.Duration,
			DataPointCount:      len(data.Points),
			DegradedConfidence:  len(degradedReasons) > 0,
			DegradedReasons:     degradedReasons,
			SimulationIteration: res.Simulation.Iterations,
			SimulationSeed:      res.Simulation.Seed,
		},
	}
}

// mergeFactors flattens the analyses' factor lists and stamps each
// factor with the overall trend so a factor read in isolation still
// carries the direction of travel.
func mergeFactors(trend model.TrendDirection, analyses []model.RiskAnalysis) []model.RiskFactor {
	var total int
	for _, an := range analyses {
		total += len(an.Factors)
	}
	factors := make([]model.RiskFactor, 0, total)
	for _, an := range analyses {
		for _, f := range an.Factors {
			f.Trend = trend
			factors = append(factors, f)
		}
	}
	return factors
}

// collectDegradedReasons merges analyzer degradations and collection
// failures into the human-readable reason list recorded in metadata.
func collectDegradedReasons(analyses []model.RiskAnalysis, failures []model.SourceFailure) []string {
	var reasons []string
	for _, an := range analyses {
		for _, dep := range an.Degraded {
			reasons = append(reasons, fmt.Sprintf("category %s: %s unavailable", an.Category, dep))
		}
	}
	for _, f := range failures {
		reasons = append(reasons, fmt.Sprintf("source %s: %s", f.Source, f.Reason))
	}
	return reasons
}
