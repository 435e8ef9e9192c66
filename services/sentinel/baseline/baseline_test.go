// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package baseline

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/storage/badger"
)

func testBaselines(t *testing.T, minAlpha float64) *Store {
	t.Helper()
	s, err := Open(badger.InMemoryConfig(), minAlpha, nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBaseline_MissingCategoryIsZero(t *testing.T) {
	s := testBaselines(t, 0)

	b, err := s.Baseline(context.Background(), model.CategoryArmsControl)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryArmsControl, b.Category)
	assert.Zero(t, b.SampleCount)
	assert.Zero(t, b.Mean)
}

func TestBaseline_UnknownCategory(t *testing.T) {
	s := testBaselines(t, 0)

	_, err := s.Baseline(context.Background(), model.RiskCategory("volcanism"))
	var ve *model.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestUpdate_FirstObservation(t *testing.T) {
	s := testBaselines(t, 0)

	b, err := s.Update(context.Background(), model.CategoryArmsControl, 0.6, 20)
	require.NoError(t, err)

	assert.Equal(t, 1, b.SampleCount)
	assert.InDelta(t, 0.6, b.Mean, 1e-12)
	assert.InDelta(t, 0.0, b.Variance, 1e-12)
	assert.InDelta(t, 20.0, b.VolumeMean, 1e-12)
	assert.InDelta(t, 0.0, b.VolumeVariance, 1e-12)
	assert.False(t, b.UpdatedAt.IsZero())
}

func TestUpdate_ExactMomentsWhileYoung(t *testing.T) {
	// A tiny decay floor keeps the 1/n regime for the whole test, so
	// the recurrence must reproduce exact population moments.
	s := testBaselines(t, 0.0001)
	ctx := context.Background()
	cat := model.CategoryRegionalConflicts

	_, err := s.Update(ctx, cat, 0.2, 10)
	require.NoError(t, err)
	_, err = s.Update(ctx, cat, 0.4, 12)
	require.NoError(t, err)
	b, err := s.Update(ctx, cat, 0.6, 14)
	require.NoError(t, err)

	assert.Equal(t, 3, b.SampleCount)
	assert.InDelta(t, 0.4, b.Mean, 1e-9)
	assert.InDelta(t, 0.04/1.5, b.Variance, 1e-9) // population variance of {0.2,0.4,0.6}
	assert.InDelta(t, 12.0, b.VolumeMean, 1e-9)
	assert.InDelta(t, 8.0/3.0, b.VolumeVariance, 1e-9)

	stored, err := s.Baseline(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, b.SampleCount, stored.SampleCount)
	assert.InDelta(t, b.Mean, stored.Mean, 1e-12)
	assert.InDelta(t, b.Variance, stored.Variance, 1e-12)
	assert.True(t, stored.UpdatedAt.Equal(b.UpdatedAt))
}

func TestUpdate_DecayFloorForgetsOldRegime(t *testing.T) {
	s := testBaselines(t, 0.5)
	ctx := context.Background()
	cat := model.CategoryLeadership

	_, err := s.Update(ctx, cat, 0, 0)
	require.NoError(t, err)

	// With alpha floored at 0.5, each 1.0 observation halves the
	// distance: 0.5, 0.75, 0.875.
	var b model.HistoricalBaseline
	for i := 0; i < 3; i++ {
		b, err = s.Update(ctx, cat, 1, 0)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.875, b.Mean, 1e-9)
	assert.Equal(t, 4, b.SampleCount)
}

func TestUpdate_NegativeVolumeSkipsVolumeMoments(t *testing.T) {
	s := testBaselines(t, 0)
	ctx := context.Background()
	cat := model.CategoryCommunications

	_, err := s.Update(ctx, cat, 0.5, 30)
	require.NoError(t, err)
	b, err := s.Update(ctx, cat, 0.7, -1)
	require.NoError(t, err)

	assert.Equal(t, 2, b.SampleCount)
	assert.InDelta(t, 0.6, b.Mean, 1e-9)
	assert.InDelta(t, 30.0, b.VolumeMean, 1e-9) // untouched by the second update
}

func TestUpdate_Validation(t *testing.T) {
	s := testBaselines(t, 0)
	ctx := context.Background()

	var ve *model.ValidationError

	_, err := s.Update(ctx, model.RiskCategory("volcanism"), 0.5, 1)
	assert.True(t, errors.As(err, &ve))

	_, err = s.Update(ctx, model.CategoryArmsControl, 1.5, 1)
	assert.True(t, errors.As(err, &ve))

	_, err = s.Update(ctx, model.CategoryArmsControl, math.NaN(), 1)
	assert.True(t, errors.As(err, &ve))
}

func TestSnapshot_CoversAllCategories(t *testing.T) {
	s := testBaselines(t, 0)
	ctx := context.Background()

	_, err := s.Update(ctx, model.CategoryNuclearArsenal, 0.4, 15)
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap, len(model.AllCategories()))
	assert.Equal(t, 1, snap[model.CategoryNuclearArsenal].SampleCount)
	assert.Zero(t, snap[model.CategoryEmergingTech].SampleCount)
}

func TestBaseline_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := badger.DefaultConfig()
	cfg.Path = dir
	cfg.GCInterval = 0

	s, err := Open(cfg, 0, nil)
	require.NoError(t, err)
	_, err = s.Update(context.Background(), model.CategoryArmsControl, 0.3, 9)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(cfg, 0, nil)
	require.NoError(t, err)
	defer s2.Close()

	b, err := s2.Baseline(context.Background(), model.CategoryArmsControl)
	require.NoError(t, err)
	assert.Equal(t, 1, b.SampleCount)
	assert.InDelta(t, 0.3, b.Mean, 1e-12)
	assert.InDelta(t, 9.0, b.VolumeMean, 1e-12)
}
