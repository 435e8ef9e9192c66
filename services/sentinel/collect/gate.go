// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collect

import "context"

// Gate is the counting admission gate bounding collector parallelism.
// Tasks beyond the capacity queue on Acquire rather than spawning
// unbounded concurrent work.
//
// # Thread Safety
//
// Safe for concurrent use.
type Gate struct {
	ch chan struct{}
}

// NewGate creates a gate admitting at most capacity concurrent holders.
func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{ch: make(chan struct{}, capacity)}
}

// Acquire takes a slot, blocking until one frees or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot without blocking.
func (g *Gate) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by a successful Acquire or TryAcquire.
func (g *Gate) Release() {
	select {
	case <-g.ch:
	default:
		panic("gate: release without acquire")
	}
}

// Available returns the number of free slots.
func (g *Gate) Available() int {
	return cap(g.ch) - len(g.ch)
}
