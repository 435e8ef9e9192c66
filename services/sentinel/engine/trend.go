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
	"math"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// TrendOptions tunes trend classification.
type TrendOptions struct {
	// DeadbandSeconds is the |delta| below which movement reads as
	// Stable.
	DeadbandSeconds float64

	// VolatilityStdDev is the window standard deviation above which
	// the direction is Uncertain even when the mean delta points one
	// way.
	VolatilityStdDev float64

	// MinPoints is the smallest window that supports a directional
	// call.
	MinPoints int
}

// DefaultTrendOptions returns the standard thresholds: 5 second
// deadband, 60 second volatility ceiling, 3 point minimum window.
func DefaultTrendOptions() TrendOptions {
	return TrendOptions{
		DeadbandSeconds:  5,
		VolatilityStdDev: 60,
		MinPoints:        3,
	}
}

// ClassifyTrend compares the current seconds-to-midnight value against
// a look-back window of previous readings.
//
// # Description
//
// The risk-axis delta is windowAvg - current: positive means the clock
// moved toward midnight, so risk is increasing. Too little history or
// a window noisier than the volatility ceiling yields Uncertain; a
// delta inside the deadband yields Stable; otherwise the sign decides.
//
// # Inputs
//
//   - current: this run's seconds to midnight.
//   - window: previous seconds values, most recent runs, any order.
//   - opts: thresholds; zero values mean zero thresholds, callers
//     normally pass DefaultTrendOptions or configured values.
func ClassifyTrend(current int, window []float64, opts TrendOptions) model.TrendDirection {
	if len(window) < opts.MinPoints || len(window) == 0 {
		return model.TrendUncertain
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	avg := sum / float64(len(window))

	var sq float64
	for _, v := range window {
		d := v - avg
		sq += d * d
	}
	if math.Sqrt(sq/float64(len(window))) > opts.VolatilityStdDev {
		return model.TrendUncertain
	}

	delta := avg - float64(current)
	if math.Abs(delta) < opts.DeadbandSeconds {
		return model.TrendStable
	}
	if delta > 0 {
		return model.TrendIncreasing
	}
	return model.TrendDecreasing
}
