// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/ai"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/config"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

type fakeProvider struct {
	insight *ai.Insight
	err     error
	fn      func(ctx context.Context, cat model.RiskCategory, points []model.DataPoint) (*ai.Insight, error)
	calls   atomic.Int32
}

func (f *fakeProvider) Assess(ctx context.Context, cat model.RiskCategory, points []model.DataPoint) (*ai.Insight, error) {
	f.calls.Add(1)
	if f.fn != nil {
		return f.fn(ctx, cat, points)
	}
	return f.insight, f.err
}

func testAnalyzer(t *testing.T, cfg config.AnalysisConfig, provider InsightProvider) *Analyzer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnalyzer(cfg, provider, logger)
}

func testSnapshot(points ...model.DataPoint) *model.AggregatedData {
	return &model.AggregatedData{
		Points:            points,
		CollectedAt:       time.Now().UTC(),
		SuccessfulSources: 1,
	}
}

func armsControlPoint(source string, reliability float64, age time.Duration) model.DataPoint {
	return model.DataPoint{
		Source:      source,
		Title:       "arms control talks stall",
		Content:     "negotiators left without extending the START treaty",
		CollectedAt: time.Now().UTC().Add(-age),
		Category:    model.CategoryArmsControl,
		Reliability: reliability,
	}
}

func TestAnalyzer_Analyze_StatisticalOnly(t *testing.T) {
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, nil)
	data := testSnapshot(
		armsControlPoint("rss", 0.8, time.Hour),
		armsControlPoint("newsapi", 0.8, 2*time.Hour),
		armsControlPoint("gdelt", 0.8, 3*time.Hour),
	)

	analysis, err := a.Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if analysis.DataPoints != 3 {
		t.Fatalf("DataPoints = %d, want 3", analysis.DataPoints)
	}
	if len(analysis.Factors) != 3 {
		t.Fatalf("expected 3 statistical factors, got %d", len(analysis.Factors))
	}
	wantNames := []string{"article volume", "escalation keywords", "recency concentration"}
	for i, f := range analysis.Factors {
		if f.Name != wantNames[i] {
			t.Errorf("factor[%d] = %q, want %q", i, f.Name, wantNames[i])
		}
		if f.Category != model.CategoryArmsControl {
			t.Errorf("factor[%d] category = %s", i, f.Category)
		}
	}
	if analysis.Score < 0 || analysis.Score > 1 {
		t.Fatalf("score out of range: %v", analysis.Score)
	}
	if len(analysis.Degraded) != 0 {
		t.Fatalf("nil provider must not degrade, got %v", analysis.Degraded)
	}
}

func TestAnalyzer_Analyze_WithInsight(t *testing.T) {
	provider := &fakeProvider{
		insight: &ai.Insight{
			Indicators: []ai.Indicator{
				{Name: "treaty collapse", Severity: 0.9, Evidence: "withdrawal announced", Confidence: 0.7},
			},
			Summary:         "verification regime unraveling",
			Recommendations: []string{"watch inspection access"},
		},
	}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, provider)
	data := testSnapshot(
		armsControlPoint("rss", 0.8, time.Hour),
		armsControlPoint("newsapi", 0.8, 2*time.Hour),
		armsControlPoint("gdelt", 0.8, 3*time.Hour),
	)

	analysis, err := a.Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if provider.calls.Load() != 1 {
		t.Fatalf("provider called %d times, want 1", provider.calls.Load())
	}
	if len(analysis.Factors) != 4 {
		t.Fatalf("expected 3 statistical + 1 AI factor, got %d", len(analysis.Factors))
	}
	last := analysis.Factors[3]
	if last.Name != "treaty collapse" || last.Evidence != "withdrawal announced" {
		t.Fatalf("AI factor not carried: %+v", last)
	}
	if analysis.Summary != "verification regime unraveling" {
		t.Fatalf("Summary = %q", analysis.Summary)
	}
	if len(analysis.Recommendations) != 1 {
		t.Fatalf("Recommendations = %v", analysis.Recommendations)
	}
	if len(analysis.Degraded) != 0 {
		t.Fatalf("successful provider must not degrade, got %v", analysis.Degraded)
	}
}

func TestAnalyzer_Analyze_ProviderFailureDegrades(t *testing.T) {
	failing := &fakeProvider{
		err: &model.DependencyError{
			Dependency: ai.DependencyName,
			Optional:   true,
			Err:        errors.New("all models failed"),
		},
	}
	cfg := config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}
	data := testSnapshot(
		armsControlPoint("rss", 0.8, time.Hour),
		armsControlPoint("rss", 0.8, 2*time.Hour),
		armsControlPoint("rss", 0.8, 3*time.Hour),
	)

	degraded, err := testAnalyzer(t, cfg, failing).Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("optional dependency failure must not abort: %v", err)
	}
	plain, err := testAnalyzer(t, cfg, nil).Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if len(degraded.Degraded) != 1 || degraded.Degraded[0] != ai.DependencyName {
		t.Fatalf("Degraded = %v, want [%s]", degraded.Degraded, ai.DependencyName)
	}
	diff := plain.ConfidenceValue - degraded.ConfidenceValue
	if math.Abs(diff-aiDegradedPenalty) > 1e-9 {
		t.Fatalf("confidence penalty = %v, want %v", diff, aiDegradedPenalty)
	}
}

func TestAnalyzer_Analyze_SparseDataCapsConfidence(t *testing.T) {
	provider := &fakeProvider{
		insight: &ai.Insight{
			Indicators: []ai.Indicator{
				{Name: "a", Severity: 0.5, Confidence: 0.98},
				{Name: "b", Severity: 0.5, Confidence: 0.98},
				{Name: "c", Severity: 0.5, Confidence: 0.98},
				{Name: "d", Severity: 0.5, Confidence: 0.98},
			},
			Summary: "confident but thin",
		},
	}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 10, MaxParallel: 2}, provider)
	data := testSnapshot(
		armsControlPoint("rss", 0.8, time.Hour),
		armsControlPoint("newsapi", 0.8, time.Hour),
		armsControlPoint("gdelt", 0.8, time.Hour),
		armsControlPoint("static", 0.8, time.Hour),
	)

	analysis, err := a.Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.ConfidenceValue != sparseDataConfidenceCap {
		t.Fatalf("ConfidenceValue = %v, want capped %v", analysis.ConfidenceValue, sparseDataConfidenceCap)
	}
	if analysis.Confidence != model.ConfidenceLow {
		t.Fatalf("Confidence = %s, want %s", analysis.Confidence, model.ConfidenceLow)
	}
}

func TestAnalyzer_Analyze_UntaggedPointsInferred(t *testing.T) {
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, nil)
	untagged := model.DataPoint{
		Source:      "rss",
		Title:       "inspectors barred",
		Content:     "the START treaty verification visit was cancelled",
		CollectedAt: time.Now().UTC(),
		Reliability: 0.7,
	}
	offTopic := model.DataPoint{
		Source:      "rss",
		Title:       "sports roundup",
		Content:     "the season opener drew a record crowd",
		CollectedAt: time.Now().UTC(),
		Reliability: 0.7,
	}

	analysis, err := a.Analyze(context.Background(), model.CategoryArmsControl, testSnapshot(untagged, offTopic), model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.DataPoints != 1 {
		t.Fatalf("DataPoints = %d, want 1 inferred point", analysis.DataPoints)
	}
}

func TestAnalyzer_Analyze_NoPointsSkipsProvider(t *testing.T) {
	provider := &fakeProvider{insight: &ai.Insight{Summary: "unused"}}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, provider)

	analysis, err := a.Analyze(context.Background(), model.CategoryEmergingTech, testSnapshot(), model.HistoricalBaseline{})
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if provider.calls.Load() != 0 {
		t.Fatalf("provider called %d times for an empty window", provider.calls.Load())
	}
	if analysis.DataPoints != 0 {
		t.Fatalf("DataPoints = %d, want 0", analysis.DataPoints)
	}
	if analysis.Confidence != model.ConfidenceVeryLow {
		t.Fatalf("Confidence = %s, want %s", analysis.Confidence, model.ConfidenceVeryLow)
	}
}

func TestAnalyzer_Analyze_FatalProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, provider)
	data := testSnapshot(armsControlPoint("rss", 0.8, time.Hour))

	if _, err := a.Analyze(context.Background(), model.CategoryArmsControl, data, model.HistoricalBaseline{}); err == nil {
		t.Fatal("unclassified provider error must abort the analysis")
	}
}

func TestAnalyzer_Analyze_ContextCanceled(t *testing.T) {
	provider := &fakeProvider{
		fn: func(ctx context.Context, _ model.RiskCategory, _ []model.DataPoint) (*ai.Insight, error) {
			return nil, ctx.Err()
		},
	}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, provider)
	data := testSnapshot(armsControlPoint("rss", 0.8, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Analyze(ctx, model.CategoryArmsControl, data, model.HistoricalBaseline{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAnalyzer_AnalyzeAll_CanonicalOrder(t *testing.T) {
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 3}, nil)
	data := testSnapshot(
		armsControlPoint("rss", 0.8, time.Hour),
		model.DataPoint{
			Source:      "newsapi",
			Title:       "warhead count revised",
			Content:     "new estimate of deployed warhead totals",
			CollectedAt: time.Now().UTC(),
			Category:    model.CategoryNuclearArsenal,
			Reliability: 0.9,
		},
	)
	baselines := map[model.RiskCategory]model.HistoricalBaseline{
		model.CategoryArmsControl: {SampleCount: 10, VolumeMean: 1, VolumeVariance: 1},
	}

	analyses, err := a.AnalyzeAll(context.Background(), data, baselines)
	if err != nil {
		t.Fatalf("AnalyzeAll returned error: %v", err)
	}

	cats := model.AllCategories()
	if len(analyses) != len(cats) {
		t.Fatalf("got %d analyses, want %d", len(analyses), len(cats))
	}
	for i, cat := range cats {
		if analyses[i].Category != cat {
			t.Fatalf("analyses[%d] = %s, want %s", i, analyses[i].Category, cat)
		}
	}
}

func TestAnalyzer_AnalyzeAll_FatalErrorAborts(t *testing.T) {
	provider := &fakeProvider{err: errors.New("boom")}
	a := testAnalyzer(t, config.AnalysisConfig{MinDataPoints: 3, MaxParallel: 2}, provider)
	data := testSnapshot(armsControlPoint("rss", 0.8, time.Hour))

	_, err := a.AnalyzeAll(context.Background(), data, nil)
	if err == nil {
		t.Fatal("expected fatal provider error to abort the run")
	}
	if !strings.Contains(err.Error(), "failed to analyze category") {
		t.Fatalf("err = %v, want wrapped category context", err)
	}
}
