// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package assess runs the end-to-end assessment pipeline.
//
// # Description
//
// An Assessor drives one run through the fixed stage order: collect
// data from every registered source, analyze each risk category in
// parallel, calculate the overall risk picture, assemble the immutable
// assessment record, then hand it to the configured sinks. Phase
// transitions are broadcast to listeners so progress can be observed
// live (websocket feed, CLI progress).
//
// Failure semantics follow the error taxonomy: quorum, validation,
// simulation, and required-dependency errors abort the run and move it
// to the Failed phase. Partial collection failures and optional
// dependency failures degrade confidence instead; they are recorded in
// assessment metadata, never escalated. Sink failures after assembly
// are logged and counted but cannot fail a run that already produced
// its record.
package assess

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/engine"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/observability"
)

var tracer = otel.Tracer("sentinel.assess")

// Stage names used in spans and metrics.
const (
	stageCollect   = "collect"
	stageAnalyze   = "analyze"
	stageCalculate = "calculate"
	stageAssemble  = "assemble"
	stagePersist   = "persist"
)

// Default history parameters for the trend window.
const (
	defaultTrendWindow = 30 * 24 * time.Hour
	defaultTrendLimit  = 100
)

// DataCollector produces the aggregated snapshot an assessment runs
// on. Implemented by collect.Orchestrator.
type DataCollector interface {
	CollectAll(ctx context.Context) (*model.AggregatedData, error)
}

// Analyzer turns a snapshot into per-category analyses. Implemented by
// analyze.Analyzer.
type Analyzer interface {
	AnalyzeAll(ctx context.Context, data *model.AggregatedData, baselines map[model.RiskCategory]model.HistoricalBaseline) ([]model.RiskAnalysis, error)
}

// Calculator produces the overall risk picture. Implemented by
// engine.Engine.
type Calculator interface {
	Calculate(ctx context.Context, analyses []model.RiskAnalysis, weights map[model.RiskCategory]float64, baselines map[model.RiskCategory]model.HistoricalBaseline, window []float64) (*engine.Result, error)
}

// BaselineSource supplies historical baselines for Bayesian blending.
//
// Implementations return a zero-valued baseline and a nil error for
// categories with no recorded history; an error means the store itself
// is unavailable, which aborts the run.
type BaselineSource interface {
	Baseline(ctx context.Context, category model.RiskCategory) (model.HistoricalBaseline, error)
}

// TrendSource supplies the seconds-to-midnight values of recent
// assessments, newest first, for trend classification.
type TrendSource interface {
	SecondsWindow(ctx context.Context, since time.Time, limit int) ([]float64, error)
}

// Sink receives the finished assessment. Sink errors are logged and
// counted; they never fail the run.
type Sink interface {
	Name() string
	Record(ctx context.Context, a *model.RiskAssessment) error
}

// AssessorOptions carries the optional collaborators and tuning for an
// Assessor. The zero value is usable.
type AssessorOptions struct {
	// Weights is the category weight table. Nil means
	// model.DefaultWeights(). The table is validated at the start of
	// every run; an invalid table is fatal, never normalized.
	Weights map[model.RiskCategory]float64

	// Baselines supplies historical priors. Nil disables Bayesian
	// blending (every category gets a zero baseline).
	Baselines BaselineSource

	// Trends supplies recent projections for trend classification. Nil
	// leaves the trend Uncertain.
	Trends TrendSource

	// Sinks receive the finished assessment in order.
	Sinks []Sink

	// Listeners observe phase transitions.
	Listeners []PhaseListener

	// TrendWindow bounds how far back Trends is queried. Zero means 30
	// days.
	TrendWindow time.Duration

	// TrendLimit caps how many historical points are fetched. Zero
	// means 100.
	TrendLimit int

	// Metrics receives pipeline instrumentation. Nil means a private
	// unexported registry (recorded but never scraped).
	Metrics *observability.Metrics
}

// Assessor wires the pipeline stages together.
//
// # Thread Safety
//
// Safe for concurrent use. Each Run creates its own Run object; the
// collaborators are required to be concurrency-safe themselves.
type Assessor struct {
	collector   DataCollector
	analyzer    Analyzer
	calculator  Calculator
	baselines   BaselineSource
	trends      TrendSource
	sinks       []Sink
	listeners   []PhaseListener
	weights     map[model.RiskCategory]float64
	trendWindow time.Duration
	trendLimit  int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewAssessor creates an Assessor.
//
// # Inputs
//
//	collector  - Data collection orchestrator
//	analyzer   - Category analyzer
//	calculator - Risk calculation engine
//	opts       - Optional collaborators and tuning
//	logger     - Logger for structured logging
//
// # Outputs
//
//	*Assessor - Configured assessor
func NewAssessor(collector DataCollector, analyzer Analyzer, calculator Calculator, opts AssessorOptions, logger *slog.Logger) *Assessor {
	if opts.Weights == nil {
		opts.Weights = model.DefaultWeights()
	}
	if opts.TrendWindow <= 0 {
		opts.TrendWindow = defaultTrendWindow
	}
	if opts.TrendLimit < 1 {
		opts.TrendLimit = defaultTrendLimit
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		collector:   collector,
		analyzer:    analyzer,
		calculator:  calculator,
		baselines:   opts.Baselines,
		trends:      opts.Trends,
		sinks:       opts.Sinks,
		listeners:   opts.Listeners,
		weights:     opts.Weights,
		trendWindow: opts.TrendWindow,
		trendLimit:  opts.TrendLimit,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Run executes one full assessment.
//
// # Description
//
// Walks the phase machine through collect, analyze, calculate, and
// assemble, then records the result with every configured sink. On a
// fatal error the run moves to Failed and the error is returned; the
// caller decides whether to retry.
//
// # Inputs
//
//	ctx - Context for cancellation. Cancellation aborts the run.
//
// # Outputs
//
//	*model.RiskAssessment - The finished record, nil on failure.
//	error - The fatal error that stopped the run, nil on success.
func (s *Assessor) Run(ctx context.Context) (*model.RiskAssessment, error) {
	return s.runWith(ctx, NewRun(s.listeners...))
}

// Start launches a run in the background.
//
// # Description
//
// Creates the run up front so its ID can be returned immediately, then
// executes it on a new goroutine. Callers correlate progress through
// the phase listeners using the returned ID.
//
// # Inputs
//
//	ctx - Context for the whole background run, not the caller's
//	      request. Cancellation aborts the run.
//
// # Outputs
//
//	string - The run ID phase events will carry.
//	<-chan error - Receives the terminal error (nil on success), then
//	      closes.
func (s *Assessor) Start(ctx context.Context) (string, <-chan error) {
	run := NewRun(s.listeners...)
	done := make(chan error, 1)
	go func() {
		_, err := s.runWith(ctx, run)
		done <- err
		close(done)
	}()
	return run.ID(), done
}

func (s *Assessor) runWith(ctx context.Context, run *Run) (*model.RiskAssessment, error) {
	start := time.Now()

	s.metrics.ActiveRuns.Inc()
	defer s.metrics.ActiveRuns.Dec()

	s.logger.Info("assessment run starting", "run_id", run.ID())

	assessment, err := s.execute(ctx, run)
	elapsed := time.Since(start)
	if err != nil {
		run.fail(err)
		s.metrics.RecordRun(false, elapsed.Seconds())
		s.metrics.RecordRunError(err)
		s.logger.Error("assessment run failed",
			"run_id", run.ID(),
			"phase", run.Phase(),
			"duration", elapsed,
			"error", err)
		return nil, err
	}

	s.metrics.RecordRun(true, elapsed.Seconds())
	s.metrics.ObserveAssessment(assessment)
	s.logger.Info("assessment run complete",
		"run_id", run.ID(),
		"assessment_id", assessment.ID,
		"score", assessment.Score,
		"seconds_to_midnight", assessment.SecondsToMidnight,
		"alert_level", assessment.AlertLevel,
		"trend", assessment.Trend,
		"duration", elapsed)
	return assessment, nil
}

// execute walks the stages in order. Any returned error is fatal for
// the run.
func (s *Assessor) execute(ctx context.Context, run *Run) (*model.RiskAssessment, error) {
	ctx, span := tracer.Start(ctx, "assess.Run",
		trace.WithAttributes(attribute.String("run.id", run.ID())),
	)
	defer span.End()

	if err := model.ValidateWeights(s.weights); err != nil {
		return nil, s.spanError(span, err)
	}

	if err := run.transition(model.PhaseCollecting); err != nil {
		return nil, s.spanError(span, err)
	}
	data, err := s.collect(ctx)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	if err := run.transition(model.PhaseAnalyzing); err != nil {
		return nil, s.spanError(span, err)
	}
	baselines, err := s.fetchBaselines(ctx)
	if err != nil {
		return nil, s.spanError(span, err)
	}
	analyses, err := s.analyze(ctx, data, baselines)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	if err := run.transition(model.PhaseCalculating); err != nil {
		return nil, s.spanError(span, err)
	}
	result, err := s.calculate(ctx, analyses, baselines)
	if err != nil {
		return nil, s.spanError(span, err)
	}

	assembleStart := time.Now()
	assessment := Assemble(run.ID(), result, analyses, data, s.weights)
	s.metrics.RecordStage(stageAssemble, time.Since(assembleStart).Seconds())
	if err := run.transition(model.PhaseAssembled); err != nil {
		return nil, s.spanError(span, err)
	}

	// The record exists; persistence failures are survivable from here.
	s.persist(ctx, assessment)

	span.SetAttributes(
		attribute.String("assessment.id", assessment.ID),
		attribute.Float64("assessment.score", assessment.Score),
		attribute.Int("assessment.seconds_to_midnight", assessment.SecondsToMidnight),
	)
	return assessment, nil
}

func (s *Assessor) collect(ctx context.Context) (*model.AggregatedData, error) {
	ctx, span := tracer.Start(ctx, "assess.collect")
	defer span.End()

	start := time.Now()
	data, err := s.collector.CollectAll(ctx)
	s.metrics.RecordStage(stageCollect, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("collect.points", len(data.Points)),
		attribute.Int("collect.sources_failed", len(data.FailedSources)),
	)
	return data, nil
}

// fetchBaselines loads every category's baseline. A store error is a
// required-dependency failure; a category with no history comes back
// zero-valued from the source and simply skips Bayesian blending.
func (s *Assessor) fetchBaselines(ctx context.Context) (map[model.RiskCategory]model.HistoricalBaseline, error) {
	baselines := make(map[model.RiskCategory]model.HistoricalBaseline, len(model.AllCategories()))
	if s.baselines == nil {
		return baselines, nil
	}
	for _, cat := range model.AllCategories() {
		b, err := s.baselines.Baseline(ctx, cat)
		if err != nil {
			return nil, &model.DependencyError{Dependency: "baseline store", Err: err}
		}
		baselines[cat] = b
	}
	return baselines, nil
}

func (s *Assessor) analyze(ctx context.Context, data *model.AggregatedData, baselines map[model.RiskCategory]model.HistoricalBaseline) ([]model.RiskAnalysis, error) {
	ctx, span := tracer.Start(ctx, "assess.analyze")
	defer span.End()

	start := time.Now()
	analyses, err := s.analyzer.AnalyzeAll(ctx, data, baselines)
	s.metrics.RecordStage(stageAnalyze, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("analyze.categories", len(analyses)))
	return analyses, nil
}

func (s *Assessor) calculate(ctx context.Context, analyses []model.RiskAnalysis, baselines map[model.RiskCategory]model.HistoricalBaseline) (*engine.Result, error) {
	ctx, span := tracer.Start(ctx, "assess.calculate")
	defer span.End()

	window := s.trendSeconds(ctx)

	start := time.Now()
	result, err := s.calculator.Calculate(ctx, analyses, s.weights, baselines, window)
	s.metrics.RecordStage(stageCalculate, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("calculate.adjusted_score", result.AdjustedScore),
		attribute.String("calculate.trend", string(result.Trend)),
	)
	return result, nil
}

// trendSeconds fetches the historical window for trend classification.
// History is best effort: an unavailable source logs a warning and the
// trend falls back to Uncertain via the minimum-points rule.
func (s *Assessor) trendSeconds(ctx context.Context) []float64 {
	if s.trends == nil {
		return nil
	}
	since := time.Now().Add(-s.trendWindow)
	window, err := s.trends.SecondsWindow(ctx, since, s.trendLimit)
	if err != nil {
		s.logger.Warn("trend window unavailable, trend will be uncertain", "error", err)
		return nil
	}
	return window
}

func (s *Assessor) persist(ctx context.Context, a *model.RiskAssessment) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, span := tracer.Start(ctx, "assess.persist")
	defer span.End()

	start := time.Now()
	for _, sink := range s.sinks {
		if err := sink.Record(ctx, a); err != nil {
			s.metrics.SinkErrorsTotal.WithLabelValues(sink.Name()).Inc()
			span.RecordError(err)
			s.logger.Error("assessment sink failed",
				"sink", sink.Name(),
				"assessment_id", a.ID,
				"error", err)
		}
	}
	s.metrics.RecordStage(stagePersist, time.Since(start).Seconds())
}

// spanError stamps the error on the run span and passes it through.
func (s *Assessor) spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
