// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history mirrors completed assessments into InfluxDB as a
// time-series feed for dashboards and long-range trend queries.
//
// The recorder is an optional sink: the badger store remains the source
// of truth, and a failed write here is logged by the caller, never
// treated as a run failure. One point is written per assessment under
// the risk_assessment measurement, tagged by trend and alert level,
// with the overall score, seconds to midnight, confidence, and one
// field per category score.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Measurement is the InfluxDB measurement assessments are written under.
const Measurement = "risk_assessment"

// Config carries the InfluxDB connection settings. All fields are
// required; the daemon populates them from SENTINEL_INFLUX_* variables.
type Config struct {
	URL    string `json:"url"`
	Token  string `json:"-"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// Recorder writes assessment points through the blocking write API.
//
// # Thread Safety
//
// Safe for concurrent use. The underlying client serializes writes.
type Recorder struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger *slog.Logger
}

// New connects to InfluxDB and returns a ready Recorder.
//
// New does not probe the server; call Ping to verify reachability
// before depending on it.
func New(cfg Config, logger *slog.Logger) (*Recorder, error) {
	if cfg.URL == "" {
		return nil, errors.New("influx url is required")
	}
	if cfg.Token == "" {
		return nil, errors.New("influx token is required")
	}
	if cfg.Org == "" || cfg.Bucket == "" {
		return nil, errors.New("influx org and bucket are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Recorder{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
	}, nil
}

// Ping checks server health and returns an error unless it reports pass.
func (r *Recorder) Ping(ctx context.Context) error {
	health, err := r.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("influx health check: %w", err)
	}
	if health.Status != "pass" {
		msg := "unknown"
		if health.Message != nil {
			msg = *health.Message
		}
		return fmt.Errorf("influx unhealthy: %s", msg)
	}
	return nil
}

// Name identifies the recorder in sink error metrics and logs.
func (r *Recorder) Name() string { return "history" }

// Record writes one point for the assessment, timestamped at its
// creation time so replayed backfills land in the right place.
func (r *Recorder) Record(ctx context.Context, a *model.RiskAssessment) error {
	if a == nil {
		return errors.New("cannot record a nil assessment")
	}

	tags := map[string]string{
		"trend":       string(a.Trend),
		"alert_level": string(a.AlertLevel),
	}
	fields := map[string]interface{}{
		"score":               a.Score,
		"seconds_to_midnight": a.SecondsToMidnight,
		"confidence":          a.ConfidenceValue,
		"data_points":         a.Metadata.DataPointCount,
	}
	for _, analysis := range a.Analyses {
		fields[string(analysis.Category)] = analysis.Score
	}

	p := influxdb2.NewPoint(Measurement, tags, fields, a.CreatedAt)
	if err := r.write.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("write assessment point: %w", err)
	}

	r.logger.Debug("assessment recorded to influx",
		"assessment_id", a.ID,
		"measurement", Measurement)
	return nil
}

// Close releases the client's idle connections.
func (r *Recorder) Close() {
	r.client.Close()
}
