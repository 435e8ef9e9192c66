// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the
// sentinel assessment pipeline.
//
// # Description
//
// This package implements Prometheus metrics for monitoring assessment
// runs. Metrics include:
//   - Run counters (by status, error kind)
//   - Stage latency histograms (collect, analyze, calculate, assemble)
//   - Collection quality (data points, source failures)
//   - The current risk picture (score, seconds to midnight, per-category
//     gauges)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "sentinel"

// Subsystem for assessment pipeline metrics
const assessSubsystem = "assess"

// Metrics holds all Prometheus metrics for the assessment pipeline.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring assessment
// runs and the current risk picture. Initialize once at startup via
// InitMetrics(), or with NewMetrics(registry) in tests.
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// RunsTotal counts assessment runs by outcome.
	// Labels: status (success, error)
	RunsTotal *prometheus.CounterVec

	// RunErrorsTotal counts failed runs by error kind.
	// Labels: kind (quorum, validation, simulation, dependency, internal)
	RunErrorsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (collect, analyze, calculate, assemble, persist)
	StageDurationSeconds *prometheus.HistogramVec

	// RunDurationSeconds measures end-to-end run latency.
	RunDurationSeconds prometheus.Histogram

	// DataPointsPerRun is the distribution of surviving data points.
	DataPointsPerRun prometheus.Histogram

	// SourceFailuresTotal counts collector failures recorded in run
	// metadata. Labels: source
	SourceFailuresTotal *prometheus.CounterVec

	// DegradedRunsTotal counts runs that completed with degraded
	// confidence.
	DegradedRunsTotal prometheus.Counter

	// SinkErrorsTotal counts persistence failures after assembly.
	// Labels: sink
	SinkErrorsTotal *prometheus.CounterVec

	// ActiveRuns tracks assessment runs currently in flight.
	ActiveRuns prometheus.Gauge

	// RiskScore is the overall score of the latest assessment.
	RiskScore prometheus.Gauge

	// SecondsToMidnight is the clock projection of the latest
	// assessment.
	SecondsToMidnight prometheus.Gauge

	// CategoryScore is the latest per-category risk score.
	// Labels: category
	CategoryScore *prometheus.GaugeVec

	// ConfidenceValue is the latest overall confidence.
	ConfidenceValue prometheus.Gauge
}

// DefaultMetrics is the singleton instance of Metrics. Initialized by
// InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance on the default
// Prometheus registry. Call once at application startup; a second call
// panics on duplicate registration.
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers the metric set on the given
// registerer. Tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "runs_total",
				Help:      "Total assessment runs by outcome",
			},
			[]string{"status"},
		),

		RunErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "run_errors_total",
				Help:      "Failed assessment runs by error kind",
			},
			[]string{"kind"},
		),

		StageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage latency of the assessment pipeline",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		RunDurationSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "run_duration_seconds",
				Help:      "End-to-end assessment run latency",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		DataPointsPerRun: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "data_points_per_run",
				Help:      "Surviving data points per assessment run",
				Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		SourceFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "source_failures_total",
				Help:      "Collector failures recorded in run metadata",
			},
			[]string{"source"},
		),

		DegradedRunsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "degraded_runs_total",
				Help:      "Runs that completed with degraded confidence",
			},
		),

		SinkErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "sink_errors_total",
				Help:      "Persistence failures after assembly",
			},
			[]string{"sink"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: assessSubsystem,
				Name:      "active_runs",
				Help:      "Assessment runs currently in flight",
			},
		),

		RiskScore: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "risk_score",
				Help:      "Overall risk score of the latest assessment",
			},
		),

		SecondsToMidnight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "seconds_to_midnight",
				Help:      "Clock projection of the latest assessment",
			},
		),

		CategoryScore: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "category_risk_score",
				Help:      "Latest per-category risk score",
			},
			[]string{"category"},
		),

		ConfidenceValue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "confidence_value",
				Help:      "Overall confidence of the latest assessment",
			},
		),
	}
}

// =============================================================================
// Error Kinds
// =============================================================================

// ErrorKind buckets a run failure for the run_errors_total label.
func ErrorKind(err error) string {
	var qe *model.QuorumError
	var ve *model.ValidationError
	var se *model.SimulationError
	var de *model.DependencyError
	switch {
	case errors.As(err, &qe):
		return "quorum"
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &se):
		return "simulation"
	case errors.As(err, &de):
		return "dependency"
	default:
		return "internal"
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRun records a completed run and its end-to-end latency.
func (m *Metrics) RecordRun(success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDurationSeconds.Observe(seconds)
}

// RecordStage records one pipeline stage's latency.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordRunError buckets a failed run by error kind.
func (m *Metrics) RecordRunError(err error) {
	m.RunErrorsTotal.WithLabelValues(ErrorKind(err)).Inc()
}

// ObserveAssessment publishes the risk picture of a finished
// assessment to the gauges and collection histograms.
func (m *Metrics) ObserveAssessment(a *model.RiskAssessment) {
	if a == nil {
		return
	}
	m.RiskScore.Set(a.Score)
	m.SecondsToMidnight.Set(float64(a.SecondsToMidnight))
	m.ConfidenceValue.Set(a.ConfidenceValue)
	for _, an := range a.Analyses {
		m.CategoryScore.WithLabelValues(string(an.Category)).Set(an.Score)
	}

	m.DataPointsPerRun.Observe(float64(a.Metadata.DataPointCount))
	for _, f := range a.Metadata.FailedSources {
		m.SourceFailuresTotal.WithLabelValues(f.Source).Inc()
	}
	if a.Metadata.DegradedConfidence {
		m.DegradedRunsTotal.Inc()
	}
}
