// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// --- Mock InfluxDB WriteAPI ---

type MockWriteAPI struct {
	WritePointFunc func(ctx context.Context, point ...*write.Point) error
	WrittenPoints  []*write.Point
}

func (m *MockWriteAPI) WritePoint(ctx context.Context, point ...*write.Point) error {
	m.WrittenPoints = append(m.WrittenPoints, point...)
	if m.WritePointFunc != nil {
		return m.WritePointFunc(ctx, point...)
	}
	return nil
}

func (m *MockWriteAPI) WriteRecord(ctx context.Context, line ...string) error {
	return nil
}

func (m *MockWriteAPI) EnableBatching()                 {}
func (m *MockWriteAPI) Flush(ctx context.Context) error { return nil }

// --- Test Fixtures ---

func testRecorder() (*Recorder, *MockWriteAPI) {
	mock := &MockWriteAPI{}
	r := &Recorder{
		write:  mock,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return r, mock
}

func testAssessment() *model.RiskAssessment {
	created := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	return &model.RiskAssessment{
		ID:                "asmt-1",
		CreatedAt:         created,
		Score:             0.47,
		SecondsToMidnight: 727,
		AlertLevel:        model.AlertLow,
		Confidence:        model.ConfidenceModerate,
		ConfidenceValue:   0.7,
		Trend:             model.TrendIncreasing,
		Analyses: []model.RiskAnalysis{
			{Category: model.CategoryArmsControl, Score: 0.8},
			{Category: model.CategoryNuclearArsenal, Score: 0.5},
		},
		Metadata: model.AssessmentMetadata{DataPointCount: 3},
	}
}

// --- Tests ---

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{Token: "t", Org: "o", Bucket: "b"}},
		{"missing token", Config{URL: "http://localhost:8086", Org: "o", Bucket: "b"}},
		{"missing org", Config{URL: "http://localhost:8086", Token: "t", Bucket: "b"}},
		{"missing bucket", Config{URL: "http://localhost:8086", Token: "t", Org: "o"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg, nil); err == nil {
				t.Error("expected config error, got nil")
			}
		})
	}

	r, err := New(Config{URL: "http://localhost:8086", Token: "t", Org: "o", Bucket: "b"}, nil)
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	r.Close()
}

func TestRecord_WritesOnePoint(t *testing.T) {
	r, mock := testRecorder()
	a := testAssessment()

	if err := r.Record(context.Background(), a); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if len(mock.WrittenPoints) != 1 {
		t.Fatalf("expected 1 point, got %d", len(mock.WrittenPoints))
	}

	p := mock.WrittenPoints[0]
	if p.Name() != Measurement {
		t.Errorf("measurement = %q, want %q", p.Name(), Measurement)
	}
	if !p.Time().Equal(a.CreatedAt) {
		t.Errorf("point time = %v, want %v", p.Time(), a.CreatedAt)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["trend"] != "increasing" {
		t.Errorf("trend tag = %q, want increasing", tags["trend"])
	}
	if tags["alert_level"] != "low" {
		t.Errorf("alert_level tag = %q, want low", tags["alert_level"])
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	if fields["score"] != 0.47 {
		t.Errorf("score field = %v, want 0.47", fields["score"])
	}
	if fields["seconds_to_midnight"] != int64(727) {
		t.Errorf("seconds field = %v, want 727", fields["seconds_to_midnight"])
	}
	if fields["confidence"] != 0.7 {
		t.Errorf("confidence field = %v, want 0.7", fields["confidence"])
	}
	if fields["data_points"] != int64(3) {
		t.Errorf("data_points field = %v, want 3", fields["data_points"])
	}
	if fields["arms_control_breakdown"] != 0.8 {
		t.Errorf("category field = %v, want 0.8", fields["arms_control_breakdown"])
	}
	if fields["nuclear_arsenal_changes"] != 0.5 {
		t.Errorf("category field = %v, want 0.5", fields["nuclear_arsenal_changes"])
	}
}

func TestRecord_NilAssessment(t *testing.T) {
	r, mock := testRecorder()

	if err := r.Record(context.Background(), nil); err == nil {
		t.Error("expected error for nil assessment")
	}
	if len(mock.WrittenPoints) != 0 {
		t.Errorf("expected no points written, got %d", len(mock.WrittenPoints))
	}
}

func TestRecord_WriteFailure(t *testing.T) {
	r, mock := testRecorder()
	mock.WritePointFunc = func(ctx context.Context, point ...*write.Point) error {
		return errors.New("connection refused")
	}

	err := r.Record(context.Background(), testAssessment())
	if err == nil {
		t.Fatal("expected write error")
	}
	if !strings.Contains(err.Error(), "write assessment point") {
		t.Errorf("error %q missing write context", err.Error())
	}
}

func TestRecorder_Name(t *testing.T) {
	r, _ := testRecorder()
	if r.Name() != "history" {
		t.Errorf("Name() = %q, want history", r.Name())
	}
}
