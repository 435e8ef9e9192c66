// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collectors

import (
	"context"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Static serves fixture data points. It backs offline demo runs and
// tests that need a source with scripted output.
type Static struct {
	name        string
	category    model.RiskCategory
	reliability float64
	points      []model.DataPoint
	err         error
}

// StaticOption configures a Static collector.
type StaticOption func(*Static)

// WithStaticError makes every Collect call fail with err.
func WithStaticError(err error) StaticOption {
	return func(s *Static) { s.err = err }
}

// WithStaticCategory sets the category affinity.
func WithStaticCategory(c model.RiskCategory) StaticOption {
	return func(s *Static) { s.category = c }
}

// WithStaticReliability sets the source trust score.
func WithStaticReliability(r float64) StaticOption {
	return func(s *Static) { s.reliability = model.Clamp01(r) }
}

// NewStatic creates a fixture collector serving the given contents.
func NewStatic(name string, contents []string, opts ...StaticOption) *Static {
	s := &Static{
		name:        name,
		category:    model.CategoryRegionalConflicts,
		reliability: 0.9,
	}
	for _, opt := range opts {
		opt(s)
	}

	now := time.Now().UTC()
	s.points = make([]model.DataPoint, 0, len(contents))
	for _, c := range contents {
		p := model.NewDataPoint(name, c, s.category, s.reliability)
		p.CollectedAt = now
		s.points = append(s.points, p)
	}
	return s
}

// SourceName identifies this collector in logs and failure records.
func (s *Static) SourceName() string { return s.name }

// Category returns the risk category this instance feeds.
func (s *Static) Category() model.RiskCategory { return s.category }

// Reliability returns the source trust score.
func (s *Static) Reliability() float64 { return s.reliability }

// Collect returns the fixture points, or the scripted error.
func (s *Static) Collect(ctx context.Context) ([]model.DataPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.DataPoint, len(s.points))
	copy(out, s.points)
	return out, nil
}
