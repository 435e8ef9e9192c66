// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analyze turns an aggregated data snapshot into per-category
// risk analyses. Each category runs three statistical indicators
// (article volume against the historical baseline, escalation keyword
// density, recency concentration) and optionally folds in indicators
// from the AI collaborator. Collaborator failures degrade the
// analysis instead of aborting it.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/ai"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	// sparseDataConfidenceCap caps category confidence when the
	// category has fewer points than the configured minimum. The cap
	// sits below the Moderate floor so sparse categories report Low
	// confidence at best.
	sparseDataConfidenceCap = 0.55

	// aiDegradedPenalty is subtracted from category confidence when
	// the collaborator was configured but failed.
	aiDegradedPenalty = 0.1

	// sourceDiversityTarget is the distinct-source count at which the
	// diversity scaling stops discounting confidence.
	sourceDiversityTarget = 4
)

// InsightProvider supplies AI-assisted indicators for one category
// window. *ai.Collaborator satisfies it; tests substitute fakes. A nil
// provider means AI assistance is deliberately disabled and carries no
// confidence penalty.
type InsightProvider interface {
	Assess(ctx context.Context, category model.RiskCategory, points []model.DataPoint) (*ai.Insight, error)
}

// Analyzer scores risk categories from collected data.
//
// # Description
//
// Analyze handles a single category; AnalyzeAll fans out across every
// known category with bounded parallelism. Both consume the snapshot
// read-only, so one Analyzer may serve concurrent runs.
//
// # Thread Safety
//
// Safe for concurrent use. The snapshot and baselines are never
// mutated.
type Analyzer struct {
	cfg      config.AnalysisConfig
	filter   *ContentFilter
	provider InsightProvider
	logger   *slog.Logger
	now      func() time.Time
}

// NewAnalyzer creates an Analyzer. provider may be nil to run without
// AI assistance.
func NewAnalyzer(cfg config.AnalysisConfig, provider InsightProvider, logger *slog.Logger) *Analyzer {
	if cfg.MinDataPoints < 1 {
		cfg.MinDataPoints = 1
	}
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = len(model.AllCategories())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		cfg:      cfg,
		filter:   NewContentFilter(),
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// Analyze scores one category against the snapshot and its historical
// baseline.
//
// # Inputs
//
//   - cat: the category to score.
//   - data: the aggregated snapshot; points tagged with cat are used
//     directly, untagged points are included when their text matches
//     the category's signature terms.
//   - baseline: historical moments for the category; a zero-sample
//     baseline neutralizes the volume indicator.
//
// # Outputs
//
// A RiskAnalysis whose score is the confidence-weighted mean of its
// indicator values and whose confidence reflects data volume, source
// diversity, and collaborator availability. Returns an error only on
// context cancellation or a fatal dependency failure.
func (a *Analyzer) Analyze(ctx context.Context, cat model.RiskCategory, data *model.AggregatedData, baseline model.HistoricalBaseline) (*model.RiskAnalysis, error) {
	points := a.categoryPoints(data, cat)
	now := a.now().UTC()

	indicators := []indicator{
		volumeIndicator(points, baseline, a.cfg.MinDataPoints),
		keywordIndicator(points, a.filter, a.cfg.MinDataPoints),
		recencyIndicator(points, now, a.cfg.MinDataPoints),
	}

	analysis := &model.RiskAnalysis{
		Category:   cat,
		DataPoints: len(points),
	}

	if a.provider != nil && len(points) > 0 {
		insight, err := a.provider.Assess(ctx, cat, points)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if model.Fatal(err) {
				return nil, err
			}
			a.logger.Warn("analysis proceeding without collaborator",
				"category", string(cat),
				"error", err,
			)
			analysis.Degraded = append(analysis.Degraded, ai.DependencyName)
		} else if insight != nil {
			indicators = append(indicators, aiIndicators(insight, points)...)
			analysis.Summary = insight.Summary
			analysis.Recommendations = insight.Recommendations
		}
	}

	analysis.Score = weightedScore(indicators)
	analysis.ConfidenceValue = a.categoryConfidence(indicators, points, len(analysis.Degraded) > 0)
	analysis.Confidence = model.ConfidenceFromScore(analysis.ConfidenceValue)
	analysis.Factors = make([]model.RiskFactor, 0, len(indicators))
	for _, in := range indicators {
		analysis.Factors = append(analysis.Factors, in.factor(cat))
	}

	a.logger.Debug("category analyzed",
		"category", string(cat),
		"score", analysis.Score,
		"confidence", analysis.ConfidenceValue,
		"points", len(points),
		"factors", len(analysis.Factors),
	)
	return analysis, nil
}

// AnalyzeAll scores every known category concurrently and returns the
// analyses in the canonical category order.
func (a *Analyzer) AnalyzeAll(ctx context.Context, data *model.AggregatedData, baselines map[model.RiskCategory]model.HistoricalBaseline) ([]model.RiskAnalysis, error) {
	cats := model.AllCategories()
	results := make([]model.RiskAnalysis, len(cats))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.MaxParallel)

	for i, cat := range cats {
		i, cat := i, cat // Capture loop variables

		g.Go(func() error {
			analysis, err := a.Analyze(gCtx, cat, data, baselines[cat])
			if err != nil {
				return fmt.Errorf("failed to analyze category %s: %w", cat, err)
			}
			results[i] = *analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// categoryPoints selects the snapshot points belonging to the
// category: tagged points directly, untagged points by text match.
func (a *Analyzer) categoryPoints(data *model.AggregatedData, cat model.RiskCategory) []model.DataPoint {
	if data == nil {
		return nil
	}
	var out []model.DataPoint
	for _, p := range data.Points {
		switch {
		case p.Category == cat:
			out = append(out, p)
		case !p.Category.Valid() && matchesCategory(cat, p.Title+" "+p.Content):
			out = append(out, p)
		}
	}
	return out
}

// weightedScore is the confidence-weighted mean of the indicator
// values, falling back to the plain mean when every confidence is
// zero.
func weightedScore(indicators []indicator) float64 {
	if len(indicators) == 0 {
		return 0
	}
	var weighted, weights, plain float64
	for _, in := range indicators {
		v := model.Clamp01(in.value)
		weighted += v * in.confidence
		weights += in.confidence
		plain += v
	}
	if weights > 0 {
		return model.Clamp01(weighted / weights)
	}
	return model.Clamp01(plain / float64(len(indicators)))
}

// categoryConfidence folds indicator confidence, source diversity,
// collaborator degradation, and the sparse-data cap into the final
// category confidence.
func (a *Analyzer) categoryConfidence(indicators []indicator, points []model.DataPoint, degraded bool) float64 {
	if len(indicators) == 0 {
		return 0
	}
	var sum float64
	for _, in := range indicators {
		sum += in.confidence
	}
	conf := sum / float64(len(indicators))

	diversity := math.Min(1, float64(len(distinctSources(points)))/sourceDiversityTarget)
	conf *= 0.6 + 0.4*diversity

	if degraded {
		conf -= aiDegradedPenalty
	}
	if len(points) < a.cfg.MinDataPoints && conf > sparseDataConfidenceCap {
		conf = sparseDataConfidenceCap
	}
	return model.Clamp01(conf)
}
