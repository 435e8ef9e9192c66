// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

func testStreams() []categoryStream {
	posteriors := map[model.RiskCategory]float64{
		model.CategoryArmsControl:       0.62,
		model.CategoryNuclearArsenal:    0.40,
		model.CategoryRegionalConflicts: 0.20,
	}
	confidences := map[model.RiskCategory]float64{
		model.CategoryArmsControl:       0.8,
		model.CategoryNuclearArsenal:    0.6,
		model.CategoryRegionalConflicts: 0.4,
	}
	weights := map[model.RiskCategory]float64{
		model.CategoryArmsControl:       0.5,
		model.CategoryNuclearArsenal:    0.3,
		model.CategoryRegionalConflicts: 0.2,
	}
	return newCategoryStreams(posteriors, confidences, weights)
}

func TestNewCategoryStreams_ShapesFromConfidence(t *testing.T) {
	streams := testStreams()
	if len(streams) != 3 {
		t.Fatalf("expected 3 streams, got %d", len(streams))
	}

	// Canonical category order puts nuclear_arsenal first.
	first := streams[0]
	kappa := first.alpha + first.beta
	if math.Abs(kappa-(kappaMin+0.6*kappaSpan)) > 1e-9 {
		t.Errorf("concentration = %v, expected %v", kappa, kappaMin+0.6*kappaSpan)
	}
	if mean := first.alpha / kappa; math.Abs(mean-0.40) > 1e-9 {
		t.Errorf("stream mean = %v, expected 0.40", mean)
	}
}

func TestNewCategoryStreams_SkipsZeroWeight(t *testing.T) {
	posteriors := map[model.RiskCategory]float64{model.CategoryArmsControl: 0.5}
	confidences := map[model.RiskCategory]float64{model.CategoryArmsControl: 0.5}
	weights := map[model.RiskCategory]float64{
		model.CategoryArmsControl:    1.0,
		model.CategoryNuclearArsenal: 0,
	}
	if streams := newCategoryStreams(posteriors, confidences, weights); len(streams) != 1 {
		t.Fatalf("expected zero-weight category dropped, got %d streams", len(streams))
	}
}

func TestNewCategoryStreams_EdgePosteriorsStayPositive(t *testing.T) {
	posteriors := map[model.RiskCategory]float64{
		model.CategoryArmsControl:    0,
		model.CategoryNuclearArsenal: 1,
	}
	confidences := map[model.RiskCategory]float64{}
	weights := map[model.RiskCategory]float64{
		model.CategoryArmsControl:    0.5,
		model.CategoryNuclearArsenal: 0.5,
	}
	for _, s := range newCategoryStreams(posteriors, confidences, weights) {
		if s.alpha <= 0 || s.beta <= 0 {
			t.Fatalf("degenerate Beta parameters: alpha=%v beta=%v", s.alpha, s.beta)
		}
	}
}

func TestRunSimulation_SeedReproducible(t *testing.T) {
	ctx := context.Background()
	a, err := runSimulation(ctx, testStreams(), 5000, 42, 90)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}
	b, err := runSimulation(ctx, testStreams(), 5000, 42, 90)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}

	if a.Mean != b.Mean || a.StdDev != b.StdDev || a.Median != b.Median {
		t.Fatalf("same seed produced different distributions: %+v vs %+v", a, b)
	}
	for p, v := range a.Percentiles {
		if b.Percentiles[p] != v {
			t.Fatalf("percentile %d differs: %v vs %v", p, v, b.Percentiles[p])
		}
	}
}

func TestRunSimulation_WorkerCountInvariant(t *testing.T) {
	ctx := context.Background()

	old := runtime.GOMAXPROCS(1)
	single, err := runSimulation(ctx, testStreams(), 4096, 7, 95)
	runtime.GOMAXPROCS(4)
	multi, err2 := runSimulation(ctx, testStreams(), 4096, 7, 95)
	runtime.GOMAXPROCS(old)

	if err != nil || err2 != nil {
		t.Fatalf("runSimulation returned errors: %v, %v", err, err2)
	}
	if single.Mean != multi.Mean || single.Percentiles[99] != multi.Percentiles[99] {
		t.Fatalf("worker count changed the distribution: %v vs %v", single.Mean, multi.Mean)
	}
}

func TestRunSimulation_DifferentSeedsDiffer(t *testing.T) {
	ctx := context.Background()
	a, _ := runSimulation(ctx, testStreams(), 2000, 1, 90)
	b, _ := runSimulation(ctx, testStreams(), 2000, 2, 90)
	if a.Mean == b.Mean {
		t.Fatal("different seeds produced an identical mean")
	}
}

func TestRunSimulation_MeanNearWeightedPosterior(t *testing.T) {
	// E[score] = sum w_c * posterior_c = 0.5*0.62 + 0.3*0.40 + 0.2*0.20.
	want := 0.47
	sim, err := runSimulation(context.Background(), testStreams(), 20000, 42, 95)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}
	if math.Abs(sim.Mean-want) > 0.01 {
		t.Errorf("mean = %v, expected near %v", sim.Mean, want)
	}
	if sim.StdDev <= 0 {
		t.Errorf("stddev = %v, expected positive spread", sim.StdDev)
	}
}

func TestRunSimulation_ConfidenceNarrowsSpread(t *testing.T) {
	posteriors := map[model.RiskCategory]float64{model.CategoryArmsControl: 0.5}
	weights := map[model.RiskCategory]float64{model.CategoryArmsControl: 1.0}

	low := newCategoryStreams(posteriors, map[model.RiskCategory]float64{model.CategoryArmsControl: 0.1}, weights)
	high := newCategoryStreams(posteriors, map[model.RiskCategory]float64{model.CategoryArmsControl: 0.9}, weights)

	ctx := context.Background()
	wide, err := runSimulation(ctx, low, 10000, 42, 95)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}
	tight, err := runSimulation(ctx, high, 10000, 42, 95)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}

	if tight.StdDev >= wide.StdDev {
		t.Errorf("high confidence should narrow the spread: %v >= %v", tight.StdDev, wide.StdDev)
	}
	if tight.Interval.Width() >= wide.Interval.Width() {
		t.Errorf("high confidence should narrow the interval: %v >= %v", tight.Interval.Width(), wide.Interval.Width())
	}
}

func TestRunSimulation_IntervalOrdering(t *testing.T) {
	sim, err := runSimulation(context.Background(), testStreams(), 5000, 42, 80)
	if err != nil {
		t.Fatalf("runSimulation returned error: %v", err)
	}
	if sim.Interval.Level != 80 {
		t.Errorf("interval level = %v, expected 80", sim.Interval.Level)
	}
	if !(sim.Interval.Lower <= sim.Median && sim.Median <= sim.Interval.Upper) {
		t.Errorf("median %v outside interval [%v, %v]", sim.Median, sim.Interval.Lower, sim.Interval.Upper)
	}
	if sim.Percentiles[1] > sim.Percentiles[99] {
		t.Errorf("percentiles out of order: p1=%v p99=%v", sim.Percentiles[1], sim.Percentiles[99])
	}
}

func TestRunSimulation_DegenerateInputs(t *testing.T) {
	ctx := context.Background()

	var simErr *model.SimulationError
	if _, err := runSimulation(ctx, nil, 1000, 1, 95); !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError for empty streams, got %v", err)
	}
	if _, err := runSimulation(ctx, testStreams(), 0, 1, 95); !errors.As(err, &simErr) {
		t.Fatalf("expected SimulationError for zero iterations, got %v", err)
	}
}

func TestRunSimulation_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runSimulation(ctx, testStreams(), 100000, 1, 95)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, expected context.Canceled in the chain", err)
	}
	var simErr *model.SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("err = %v, expected SimulationError wrapper", err)
	}
}
