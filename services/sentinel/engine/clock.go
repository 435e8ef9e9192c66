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

// clockAnchor pins a risk score to a seconds-to-midnight reading.
type clockAnchor struct {
	score   float64
	seconds float64
}

// clockAnchors is the fixed projection curve, linear between anchors
// and monotone non-increasing across them. The interior anchors are
// the two historical extremes of the Doomsday Clock: 1020 seconds
// (17 minutes, 1991, the furthest the clock has ever been) and 89
// seconds (2025, the closest).
var clockAnchors = []clockAnchor{
	{score: 0.00, seconds: 1440},
	{score: 0.25, seconds: 1020},
	{score: 0.95, seconds: 89},
	{score: 1.00, seconds: 0},
}

// ProjectSeconds maps an overall risk score to whole seconds to
// midnight. The input is clamped to [0,1] and the result to [0,1440];
// interpolation between anchors is linear, and equal scores always
// project to equal seconds.
func ProjectSeconds(score float64) int {
	s := model.Clamp01(score)

	for i := 1; i < len(clockAnchors); i++ {
		hi := clockAnchors[i]
		if s > hi.score {
			continue
		}
		lo := clockAnchors[i-1]
		frac := (s - lo.score) / (hi.score - lo.score)
		seconds := lo.seconds + frac*(hi.seconds-lo.seconds)
		return model.ClampSeconds(int(math.Round(seconds)))
	}
	return 0
}
