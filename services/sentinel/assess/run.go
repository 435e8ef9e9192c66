// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assess

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// PhaseEvent describes one phase transition of an assessment run.
//
// Err is non-nil only when Phase is PhaseFailed.
type PhaseEvent struct {
	RunID string      `json:"run_id"`
	Phase model.Phase `json:"phase"`
	At    time.Time   `json:"at"`
	Err   error       `json:"-"`

	// Reason carries Err's message for listeners that serialize the
	// event (the websocket feed).
	Reason string `json:"reason,omitempty"`
}

// PhaseListener receives phase transitions as they happen. Listeners
// must not block; slow consumers should buffer on their side.
type PhaseListener func(PhaseEvent)

// Run tracks the lifecycle of one assessment.
//
// # Description
//
// A Run starts Idle and walks the fixed phase order through Assembled,
// jumping to Failed from any non-terminal phase when a fatal error
// stops the pipeline. Every transition is broadcast to the listeners
// registered at construction.
//
// # Thread Safety
//
// Phase transitions are driven by the single goroutine executing the
// run. The mutex makes ID/Phase reads safe from other goroutines
// (status endpoints, progress UIs).
type Run struct {
	mu        sync.Mutex
	id        string
	phase     model.Phase
	startedAt time.Time
	listeners []PhaseListener
}

// NewRun creates a run in the Idle phase. The listeners receive every
// subsequent transition.
func NewRun(listeners ...PhaseListener) *Run {
	return &Run{
		id:        uuid.NewString()[:12], // 48 bits of entropy
		phase:     model.PhaseIdle,
		startedAt: time.Now().UTC(),
		listeners: listeners,
	}
}

// ID returns the run identifier embedded in assessment metadata.
func (r *Run) ID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// Phase returns the current lifecycle phase.
func (r *Run) Phase() model.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// StartedAt returns when the run was created.
func (r *Run) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// transition advances the run to the target phase and notifies
// listeners. Illegal transitions return a ValidationError; the phase
// machine is the last line of defense against pipeline ordering bugs.
func (r *Run) transition(target model.Phase) error {
	r.mu.Lock()
	if !r.phase.CanTransition(target) {
		from := r.phase
		r.mu.Unlock()
		return &model.ValidationError{
			Field:  "phase",
			Reason: "illegal transition from " + string(from) + " to " + string(target),
		}
	}
	r.phase = target
	event := PhaseEvent{RunID: r.id, Phase: target, At: time.Now().UTC()}
	listeners := r.listeners
	r.mu.Unlock()

	// Emit outside the lock so a listener reading Phase() cannot
	// deadlock.
	for _, fn := range listeners {
		fn(event)
	}
	return nil
}

// fail moves the run to Failed and reports the fatal error to
// listeners. Calling fail on an already-terminal run is a no-op.
func (r *Run) fail(err error) {
	r.mu.Lock()
	if r.phase.Terminal() {
		r.mu.Unlock()
		return
	}
	r.phase = model.PhaseFailed
	event := PhaseEvent{RunID: r.id, Phase: model.PhaseFailed, At: time.Now().UTC(), Err: err}
	if err != nil {
		event.Reason = err.Error()
	}
	listeners := r.listeners
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
