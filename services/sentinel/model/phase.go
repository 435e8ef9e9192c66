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

// Phase is the lifecycle state of one assessment run.
//
// The machine advances strictly forward:
//
//	Idle -> Collecting -> Analyzing -> Calculating -> Assembled
//
// Any non-terminal phase may transition to Failed on a fatal condition
// (quorum not met, invalid weights, degenerate simulation input, a
// required dependency down). Assembled and Failed are terminal. Partial
// source failure during Collecting does not force Failed; it degrades
// confidence and is recorded in assessment metadata.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCollecting  Phase = "collecting"
	PhaseAnalyzing   Phase = "analyzing"
	PhaseCalculating Phase = "calculating"
	PhaseAssembled   Phase = "assembled"
	PhaseFailed      Phase = "failed"
)

// next holds the single legal forward transition for each phase.
var nextPhase = map[Phase]Phase{
	PhaseIdle:        PhaseCollecting,
	PhaseCollecting:  PhaseAnalyzing,
	PhaseAnalyzing:   PhaseCalculating,
	PhaseCalculating: PhaseAssembled,
}

// CanTransition reports whether moving from p to target is legal.
func (p Phase) CanTransition(target Phase) bool {
	if p.Terminal() {
		return false
	}
	if target == PhaseFailed {
		return true
	}
	return nextPhase[p] == target
}

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseAssembled || p == PhaseFailed
}

// Display returns a human-readable label.
func (p Phase) Display() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseCollecting:
		return "Collecting"
	case PhaseAnalyzing:
		return "Analyzing"
	case PhaseCalculating:
		return "Calculating"
	case PhaseAssembled:
		return "Assembled"
	case PhaseFailed:
		return "Failed"
	default:
		return string(p)
	}
}
