// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine turns per-category risk analyses into the overall
// risk picture: weighted score, Bayesian blend against historical
// priors, Monte Carlo uncertainty quantification, the
// seconds-to-midnight projection, and the trend call against recent
// history.
//
// The calculation order is fixed. Weight validation runs before
// anything else and a failing weight map aborts the run; weights are
// never silently normalized.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	defaultIterations      = 10000
	defaultConfidenceLevel = 95
	defaultPriorWeight     = 0.3
)

// Result is the calculation output consumed by the assembler. It
// carries scores and distribution only; record assembly (id,
// timestamps, factor merging) happens downstream.
type Result struct {
	// WeightedScore is the raw weight-combined category score.
	WeightedScore float64

	// AdjustedScore is the Bayesian-blended score the projection and
	// simulation are anchored to.
	AdjustedScore float64

	// SecondsToMidnight is the clock projection of AdjustedScore.
	SecondsToMidnight int

	Trend           model.TrendDirection
	Confidence      model.ConfidenceLevel
	ConfidenceValue float64

	// Posteriors records each category's blended score.
	Posteriors map[model.RiskCategory]float64

	Simulation model.SimulationResult
}

// Engine runs the risk calculation.
//
// # Thread Safety
//
// Safe for concurrent use; Calculate shares no mutable state between
// calls.
type Engine struct {
	cfg    config.EngineConfig
	logger *slog.Logger
}

// New creates an Engine. Zero-valued tuning fields fall back to
// defaults.
func New(cfg config.EngineConfig, logger *slog.Logger) *Engine {
	if cfg.MonteCarloIterations < 1 {
		cfg.MonteCarloIterations = defaultIterations
	}
	switch cfg.ConfidenceInterval {
	case 80, 90, 95, 99:
	default:
		cfg.ConfidenceInterval = defaultConfidenceLevel
	}
	if cfg.PriorWeight < 0 || cfg.PriorWeight > 1 {
		cfg.PriorWeight = defaultPriorWeight
	}
	def := DefaultTrendOptions()
	if cfg.TrendDeadbandSeconds <= 0 {
		cfg.TrendDeadbandSeconds = int(def.DeadbandSeconds)
	}
	if cfg.TrendVolatilitySeconds <= 0 {
		cfg.TrendVolatilitySeconds = def.VolatilityStdDev
	}
	if cfg.TrendMinPoints < 1 {
		cfg.TrendMinPoints = def.MinPoints
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Calculate produces the overall risk Result from the category
// analyses.
//
// # Inputs
//
//   - analyses: exactly one analysis per weighted category.
//   - weights: category weight map; must sum to 1.0 within tolerance.
//   - baselines: historical priors; categories without recorded
//     samples skip the Bayesian blend.
//   - window: recent seconds-to-midnight readings for the trend call,
//     supplied by the caller from persisted history.
//
// # Outputs
//
// The Result, or a *model.ValidationError for bad inputs, a
// *model.SimulationError for a degenerate simulation, both fatal for
// the run.
func (e *Engine) Calculate(ctx context.Context, analyses []model.RiskAnalysis, weights map[model.RiskCategory]float64, baselines map[model.RiskCategory]model.HistoricalBaseline, window []float64) (*Result, error) {
	if err := validateInputs(analyses, weights); err != nil {
		return nil, err
	}

	var weighted, adjusted float64
	posteriors := make(map[model.RiskCategory]float64, len(analyses))
	confidences := make(map[model.RiskCategory]float64, len(analyses))
	for _, a := range analyses {
		w := weights[a.Category]
		weighted += w * a.Score

		posterior := a.Score
		if b, ok := baselines[a.Category]; ok && b.SampleCount > 0 {
			prior := model.Clamp01(b.Mean)
			posterior = e.cfg.PriorWeight*prior + (1-e.cfg.PriorWeight)*a.Score
		}
		posteriors[a.Category] = posterior
		confidences[a.Category] = a.ConfidenceValue
		adjusted += w * posterior
	}
	weighted = model.Clamp01(weighted)
	adjusted = model.Clamp01(adjusted)

	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	streams := newCategoryStreams(posteriors, confidences, weights)
	sim, err := runSimulation(ctx, streams, e.cfg.MonteCarloIterations, seed, e.cfg.ConfidenceInterval)
	if err != nil {
		return nil, err
	}

	seconds := ProjectSeconds(adjusted)
	trend := ClassifyTrend(seconds, window, TrendOptions{
		DeadbandSeconds:  float64(e.cfg.TrendDeadbandSeconds),
		VolatilityStdDev: e.cfg.TrendVolatilitySeconds,
		MinPoints:        e.cfg.TrendMinPoints,
	})

	confValue := overallConfidence(analyses, weights)
	result := &Result{
		WeightedScore:     weighted,
		AdjustedScore:     adjusted,
		SecondsToMidnight: seconds,
		Trend:             trend,
		Confidence:        model.ConfidenceFromScore(confValue),
		ConfidenceValue:   confValue,
		Posteriors:        posteriors,
		Simulation:        sim,
	}

	e.logger.Debug("risk calculated",
		"weighted_score", weighted,
		"adjusted_score", adjusted,
		"seconds_to_midnight", seconds,
		"trend", string(trend),
		"confidence", confValue,
		"simulation_seed", seed,
	)
	return result, nil
}

// validateInputs rejects bad weights, category mismatches, and
// non-finite or out-of-range analysis values before any math runs.
func validateInputs(analyses []model.RiskAnalysis, weights map[model.RiskCategory]float64) error {
	if err := model.ValidateWeights(weights); err != nil {
		return err
	}

	seen := make(map[model.RiskCategory]bool, len(analyses))
	for _, a := range analyses {
		if !a.Category.Valid() {
			return &model.ValidationError{
				Field:  "analyses",
				Reason: fmt.Sprintf("unknown category %q", a.Category),
			}
		}
		if seen[a.Category] {
			return &model.ValidationError{
				Field:  "analyses",
				Reason: fmt.Sprintf("duplicate analysis for category %s", a.Category),
			}
		}
		seen[a.Category] = true

		if _, ok := weights[a.Category]; !ok {
			return &model.ValidationError{
				Field:  "weights",
				Reason: fmt.Sprintf("no weight for category %s", a.Category),
			}
		}
		if !finite(a.Score) || a.Score < 0 || a.Score > 1 {
			return &model.ValidationError{
				Field:  fmt.Sprintf("analyses[%s].score", a.Category),
				Reason: fmt.Sprintf("score %v outside [0,1]", a.Score),
			}
		}
		if !finite(a.ConfidenceValue) || a.ConfidenceValue < 0 || a.ConfidenceValue > 1 {
			return &model.ValidationError{
				Field:  fmt.Sprintf("analyses[%s].confidence", a.Category),
				Reason: fmt.Sprintf("confidence %v outside [0,1]", a.ConfidenceValue),
			}
		}
	}

	for cat := range weights {
		if !seen[cat] {
			return &model.ValidationError{
				Field:  "analyses",
				Reason: fmt.Sprintf("no analysis for weighted category %s", cat),
			}
		}
	}
	return nil
}

// overallConfidence is the weight-and-volume-weighted mean of category
// confidences. Volume uses add-one smoothing so an empty category
// still weighs in, just less than a data-rich one.
func overallConfidence(analyses []model.RiskAnalysis, weights map[model.RiskCategory]float64) float64 {
	var sum, norm float64
	for _, a := range analyses {
		u := weights[a.Category] * float64(1+a.DataPoints)
		sum += u * a.ConfidenceValue
		norm += u
	}
	if norm == 0 {
		return 0
	}
	return model.Clamp01(sum / norm)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
