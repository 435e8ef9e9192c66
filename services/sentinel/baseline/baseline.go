// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package baseline maintains per-category historical baselines in
// BadgerDB.
//
// # Description
//
// A baseline carries the running mean and variance of a category's
// risk score plus the moments of its article volume. The calculation
// engine blends the score mean into its Bayesian posterior; the
// analyzer compares the current article count against the volume
// moments.
//
// Baselines are updated by a scheduled job (the `sentinel baseline
// update` command), never inside an assessment run: a run reads a
// frozen snapshot and stays reproducible for its inputs.
//
// The updater is a Welford-style incremental moment update with an
// exponential-decay floor: with alpha = max(1/n, minAlpha) the
// recurrence reproduces exact population moments while n is small and
// switches to exponential forgetting once 1/n drops below the floor,
// so a years-old crisis stops dominating the prior.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/storage/badger"
)

const keyPrefix = "baseline/"

// defaultMinAlpha is the decay floor. 0.05 gives an effective memory
// of roughly the last twenty observations once the store is warm.
const defaultMinAlpha = 0.05

// Store reads and updates category baselines.
type Store struct {
	db       *badger.DB
	minAlpha float64
	logger   *slog.Logger
	now      func() time.Time
}

// Open opens the baseline store with the given database configuration.
// A minAlpha outside (0, 1] falls back to the default decay floor.
func Open(cfg badger.Config, minAlpha float64, logger *slog.Logger) (*Store, error) {
	if minAlpha <= 0 || minAlpha > 1 {
		minAlpha = defaultMinAlpha
	}
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("open baseline store: %w", err)
	}
	return &Store{db: db, minAlpha: minAlpha, logger: logger, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Baseline returns the stored baseline for the category. A category
// with no recorded history returns a zero-valued baseline and a nil
// error; the caller treats SampleCount == 0 as "no prior".
func (s *Store) Baseline(ctx context.Context, cat model.RiskCategory) (model.HistoricalBaseline, error) {
	if !cat.Valid() {
		return model.HistoricalBaseline{}, &model.ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("unknown category %q", cat),
		}
	}

	var b model.HistoricalBaseline
	err := s.db.WithReadTxn(ctx, func(txn *dgbadger.Txn) error {
		item, err := txn.Get(key(cat))
		if errors.Is(err, dgbadger.ErrKeyNotFound) {
			b = model.HistoricalBaseline{Category: cat}
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		})
	})
	if err != nil {
		return model.HistoricalBaseline{}, fmt.Errorf("read baseline %s: %w", cat, err)
	}
	return b, nil
}

// Snapshot returns every category's baseline in one map. Categories
// with no history appear zero-valued.
func (s *Store) Snapshot(ctx context.Context) (map[model.RiskCategory]model.HistoricalBaseline, error) {
	out := make(map[model.RiskCategory]model.HistoricalBaseline, len(model.AllCategories()))
	for _, cat := range model.AllCategories() {
		b, err := s.Baseline(ctx, cat)
		if err != nil {
			return nil, err
		}
		out[cat] = b
	}
	return out, nil
}

// Update folds one observation into the category's baseline.
//
// # Description
//
// Applies the decayed Welford recurrence to the score moments and,
// when volume >= 0, to the article-volume moments:
//
//	alpha = max(1/n, minAlpha)
//	mean += alpha * (x - mean)
//	variance = (1 - alpha) * (variance + alpha * (x - mean_old)^2)
//
// With alpha = 1/n this reproduces exact population moments, so young
// baselines are unbiased; once n > 1/minAlpha the floor takes over and
// old observations decay exponentially.
//
// # Inputs
//
//	ctx - Context for cancellation.
//	cat - Category to update.
//	score - Observed category risk score in [0,1].
//	volume - Observed article count for the category. Negative skips
//	  the volume moments (callers without volume data).
//
// # Outputs
//
//	model.HistoricalBaseline - The updated baseline.
//	error - Non-nil on validation or storage failure.
func (s *Store) Update(ctx context.Context, cat model.RiskCategory, score float64, volume int) (model.HistoricalBaseline, error) {
	if !cat.Valid() {
		return model.HistoricalBaseline{}, &model.ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("unknown category %q", cat),
		}
	}
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return model.HistoricalBaseline{}, &model.ValidationError{
			Field:  "score",
			Reason: fmt.Sprintf("observed score %v outside [0,1]", score),
		}
	}

	var updated model.HistoricalBaseline
	err := s.db.WithTxn(ctx, func(txn *dgbadger.Txn) error {
		b := model.HistoricalBaseline{Category: cat}
		item, err := txn.Get(key(cat))
		if err == nil {
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return err
			}
		} else if !errors.Is(err, dgbadger.ErrKeyNotFound) {
			return err
		}

		n := b.SampleCount + 1
		alpha := math.Max(1/float64(n), s.minAlpha)

		b.Mean, b.Variance = decayedMoments(b.Mean, b.Variance, score, alpha)
		if volume >= 0 {
			b.VolumeMean, b.VolumeVariance = decayedMoments(b.VolumeMean, b.VolumeVariance, float64(volume), alpha)
		}
		b.SampleCount = n
		b.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		if err := txn.Set(key(cat), data); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return model.HistoricalBaseline{}, fmt.Errorf("update baseline %s: %w", cat, err)
	}

	s.logger.Debug("baseline updated",
		"category", cat,
		"mean", updated.Mean,
		"samples", updated.SampleCount)
	return updated, nil
}

// decayedMoments applies one step of the decayed Welford recurrence.
func decayedMoments(mean, variance, x, alpha float64) (float64, float64) {
	delta := x - mean
	newMean := mean + alpha*delta
	newVariance := (1 - alpha) * (variance + alpha*delta*delta)
	return newMean, newVariance
}

func key(cat model.RiskCategory) []byte {
	return []byte(keyPrefix + string(cat))
}
