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

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// The assessment error taxonomy. Fatal errors abort the run and move
// the phase machine to Failed; non-fatal errors are recorded and the
// run proceeds with degraded confidence. Nothing here ever substitutes
// default data for a fatal condition.

// CollectionError reports a single source failing to contribute. It is
// never fatal by itself: the orchestrator excludes the source, records
// it in FailedSources, and moves on. Transient failures are eligible
// for bounded retry before the error is surfaced.
type CollectionError struct {
	Source    string
	Err       error
	Transient bool
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection from %s failed: %v", e.Source, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// QuorumError is fatal: fewer sources succeeded than the configured
// minimum, so the run must fail rather than produce a silently empty
// snapshot.
type QuorumError struct {
	Successful int
	Required   int
}

func (e *QuorumError) Error() string {
	return fmt.Sprintf("collection quorum not met: %d source(s) succeeded, need at least %d",
		e.Successful, e.Required)
}

// ValidationError is fatal at calculation or assembly start: category
// weights failing the sum-to-1.0 check, or any input score that is
// non-finite or out of range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// SimulationError is fatal for the current run: Monte Carlo sampling
// could not produce a usable distribution (degenerate inputs,
// non-finite draws). Surfaced, never silently defaulted.
type SimulationError struct {
	Reason string
	Err    error
}

func (e *SimulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("simulation failed: %s", e.Reason)
}

func (e *SimulationError) Unwrap() error { return e.Err }

// DependencyError reports an external collaborator (baseline store, AI
// analysis service) being unreachable. Optional dependencies degrade
// confidence; required ones propagate as fatal.
type DependencyError struct {
	Dependency string
	Err        error
	Optional   bool
}

func (e *DependencyError) Error() string {
	kind := "required"
	if e.Optional {
		kind = "optional"
	}
	return fmt.Sprintf("%s dependency %s unavailable: %v", kind, e.Dependency, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Fatal reports whether err must abort the assessment run. Collection
// errors and optional dependency failures are survivable; everything
// else in the taxonomy is not.
func Fatal(err error) bool {
	var qe *QuorumError
	var ve *ValidationError
	var se *SimulationError
	if errors.As(err, &qe) || errors.As(err, &ve) || errors.As(err, &se) {
		return true
	}
	var de *DependencyError
	if errors.As(err, &de) {
		return !de.Optional
	}
	var ce *CollectionError
	if errors.As(err, &ce) {
		return false
	}
	// Unknown errors are treated as fatal: the run never guesses.
	return err != nil
}

// IsTransient classifies an error as retryable for the per-collector
// retry policy. Timeouts, cancelled deadlines, and network-level
// failures are transient; malformed responses and validation failures
// are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ce *CollectionError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	type transient interface{ Transient() bool }
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}
