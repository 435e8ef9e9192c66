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
	"math"
	"runtime"
	"sync"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	// simulationBlockSize partitions iterations into fixed blocks, each
	// with its own seeded generator stream. Block boundaries never move
	// with the worker count, so a seed always reproduces the same
	// distribution.
	simulationBlockSize = 1024

	// kappaMin and kappaSpan shape the per-category Beta concentration:
	// kappa = kappaMin + confidence*kappaSpan. Low confidence keeps the
	// distribution wide; full confidence concentrates it tightly around
	// the posterior mean.
	kappaMin  = 4.0
	kappaSpan = 96.0

	// posteriorEpsilon keeps Beta parameters strictly positive for
	// posterior means at the interval edges.
	posteriorEpsilon = 1e-6

	// modeBins is the histogram resolution for the binned mode.
	modeBins = 50
)

// simulationPercentiles are the fixed percentile bounds reported with
// every simulation.
var simulationPercentiles = []int{1, 5, 10, 25, 50, 75, 90, 95, 99}

// categoryStream is one category's sampling distribution: a Beta with
// mean at the category posterior, concentration set by its confidence,
// combined into the overall draw by weight.
type categoryStream struct {
	weight float64
	alpha  float64
	beta   float64
}

// newCategoryStreams derives the sampling streams in canonical
// category order so the draw sequence is stable for a given seed.
func newCategoryStreams(posteriors, confidences, weights map[model.RiskCategory]float64) []categoryStream {
	var streams []categoryStream
	for _, cat := range model.AllCategories() {
		w, ok := weights[cat]
		if !ok || w == 0 {
			continue
		}
		mean := posteriors[cat]
		if mean < posteriorEpsilon {
			mean = posteriorEpsilon
		}
		if mean > 1-posteriorEpsilon {
			mean = 1 - posteriorEpsilon
		}
		kappa := kappaMin + model.Clamp01(confidences[cat])*kappaSpan
		streams = append(streams, categoryStream{
			weight: w,
			alpha:  mean * kappa,
			beta:   (1 - mean) * kappa,
		})
	}
	return streams
}

// runSimulation draws the empirical overall-score distribution and
// summarizes it.
//
// # Description
//
// Iterations are split into simulationBlockSize blocks; block b samples
// from an lcg seeded with splitmix64(seed + b). Workers pick up blocks
// in strides, writing into disjoint slice ranges, so the result is
// identical for any GOMAXPROCS.
//
// # Outputs
//
// A SimulationResult, or a *model.SimulationError when the inputs are
// degenerate, a draw goes non-finite, or the context is cancelled.
func runSimulation(ctx context.Context, streams []categoryStream, iterations int, seed int64, level int) (model.SimulationResult, error) {
	if iterations < 1 {
		return model.SimulationResult{}, &model.SimulationError{Reason: "iteration count must be positive"}
	}
	if len(streams) == 0 {
		return model.SimulationResult{}, &model.SimulationError{Reason: "no weighted categories to sample"}
	}

	draws := make([]float64, iterations)
	blocks := (iterations + simulationBlockSize - 1) / simulationBlockSize
	workers := runtime.GOMAXPROCS(0)
	if workers > blocks {
		workers = blocks
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		w := w // Capture loop variable

		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := w; b < blocks; b += workers {
				if ctx.Err() != nil {
					return
				}
				rng := newLCG(splitmix64(uint64(seed) + uint64(b)))
				start := b * simulationBlockSize
				end := start + simulationBlockSize
				if end > iterations {
					end = iterations
				}
				for i := start; i < end; i++ {
					var score float64
					for _, s := range streams {
						score += s.weight * rng.beta(s.alpha, s.beta)
					}
					draws[i] = score
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return model.SimulationResult{}, &model.SimulationError{Reason: "simulation cancelled", Err: err}
	}
	for _, d := range draws {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return model.SimulationResult{}, &model.SimulationError{Reason: "non-finite draw in simulated distribution"}
		}
	}

	sorted := sortedCopy(draws)
	m := computeMoments(sorted)

	pcts := make(map[int]float64, len(simulationPercentiles))
	for _, p := range simulationPercentiles {
		pcts[p] = percentile(sorted, float64(p))
	}

	tail := (100 - float64(level)) / 2
	return model.SimulationResult{
		Iterations:  iterations,
		Seed:        seed,
		Mean:        m.mean,
		Median:      percentile(sorted, 50),
		Mode:        binnedMode(sorted, modeBins),
		StdDev:      m.stdDev,
		Skewness:    m.skewness,
		Kurtosis:    m.kurtosis,
		Percentiles: pcts,
		Interval: model.ConfidenceInterval{
			Level: float64(level),
			Lower: percentile(sorted, tail),
			Upper: percentile(sorted, 100-tail),
		},
	}, nil
}
