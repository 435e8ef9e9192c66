// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "math"

// ConfidenceLevel is the discrete five-band summary of how much an
// analysis or assessment can be trusted.
type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceModerate ConfidenceLevel = "moderate"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
)

// Band boundaries for ConfidenceFromScore. Scores are clamped to [0,1]
// before banding.
const (
	confidenceLowFloor      = 0.40
	confidenceModerateFloor = 0.60
	confidenceHighFloor     = 0.80
	confidenceVeryHighFloor = 0.95
)

// ConfidenceFromScore maps a continuous confidence value in [0,1] onto
// the five discrete bands: VeryLow <40%, Low 40-60%, Moderate 60-80%,
// High 80-95%, VeryHigh >=95%.
func ConfidenceFromScore(score float64) ConfidenceLevel {
	s := Clamp01(score)
	switch {
	case s < confidenceLowFloor:
		return ConfidenceVeryLow
	case s < confidenceModerateFloor:
		return ConfidenceLow
	case s < confidenceHighFloor:
		return ConfidenceModerate
	case s < confidenceVeryHighFloor:
		return ConfidenceHigh
	default:
		return ConfidenceVeryHigh
	}
}

// Score returns the band midpoint, used when a discrete level must feed
// back into continuous arithmetic (factor sorting, ensemble blending).
func (c ConfidenceLevel) Score() float64 {
	switch c {
	case ConfidenceVeryLow:
		return 0.20
	case ConfidenceLow:
		return 0.50
	case ConfidenceModerate:
		return 0.70
	case ConfidenceHigh:
		return 0.875
	case ConfidenceVeryHigh:
		return 0.975
	default:
		return 0.0
	}
}

// Valid reports whether c is one of the five defined bands.
func (c ConfidenceLevel) Valid() bool {
	switch c {
	case ConfidenceVeryLow, ConfidenceLow, ConfidenceModerate, ConfidenceHigh, ConfidenceVeryHigh:
		return true
	}
	return false
}

// Display returns a human-readable label.
func (c ConfidenceLevel) Display() string {
	switch c {
	case ConfidenceVeryLow:
		return "Very Low"
	case ConfidenceLow:
		return "Low"
	case ConfidenceModerate:
		return "Moderate"
	case ConfidenceHigh:
		return "High"
	case ConfidenceVeryHigh:
		return "Very High"
	default:
		return string(c)
	}
}

// TrendDirection describes how risk is moving relative to the recent
// look-back window. Directions are on the risk axis: Increasing means
// the clock moved toward midnight.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
	TrendUncertain  TrendDirection = "uncertain"
)

// Display returns a human-readable label.
func (t TrendDirection) Display() string {
	switch t {
	case TrendIncreasing:
		return "Increasing"
	case TrendDecreasing:
		return "Decreasing"
	case TrendStable:
		return "Stable"
	case TrendUncertain:
		return "Uncertain"
	default:
		return string(t)
	}
}

// Clamp01 clamps v to [0.0, 1.0]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampSeconds clamps a seconds-to-midnight value to [0, 1440].
func ClampSeconds(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxSecondsToMidnight {
		return MaxSecondsToMidnight
	}
	return v
}

// MaxSecondsToMidnight is the upper bound of the clock projection:
// 24 minutes, the full face of the doomsday clock.
const MaxSecondsToMidnight = 1440

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
