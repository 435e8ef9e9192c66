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

import "testing"

func TestPhaseTransitions(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseIdle, PhaseCollecting, true},
		{PhaseCollecting, PhaseAnalyzing, true},
		{PhaseAnalyzing, PhaseCalculating, true},
		{PhaseCalculating, PhaseAssembled, true},

		// Any non-terminal phase may fail.
		{PhaseIdle, PhaseFailed, true},
		{PhaseCollecting, PhaseFailed, true},
		{PhaseAnalyzing, PhaseFailed, true},
		{PhaseCalculating, PhaseFailed, true},

		// No skipping, no going backwards.
		{PhaseIdle, PhaseAnalyzing, false},
		{PhaseIdle, PhaseAssembled, false},
		{PhaseCollecting, PhaseCalculating, false},
		{PhaseAnalyzing, PhaseCollecting, false},
		{PhaseCalculating, PhaseCollecting, false},

		// Terminal phases stay terminal.
		{PhaseAssembled, PhaseFailed, false},
		{PhaseAssembled, PhaseCollecting, false},
		{PhaseFailed, PhaseCollecting, false},
		{PhaseFailed, PhaseFailed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPhaseTerminal(t *testing.T) {
	terminal := map[Phase]bool{
		PhaseIdle:        false,
		PhaseCollecting:  false,
		PhaseAnalyzing:   false,
		PhaseCalculating: false,
		PhaseAssembled:   true,
		PhaseFailed:      true,
	}
	for phase, want := range terminal {
		if got := phase.Terminal(); got != want {
			t.Errorf("%v.Terminal() = %v, want %v", phase, got, want)
		}
	}
}
