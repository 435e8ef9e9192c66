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

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestGate_AcquireRelease(t *testing.T) {
	g := NewGate(2)

	ctx := context.Background()

	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	if g.Available() != 0 {
		t.Errorf("Available = %d, want 0", g.Available())
	}

	g.Release()
	if g.Available() != 1 {
		t.Errorf("Available after release = %d, want 1", g.Available())
	}

	g.Release()
	if g.Available() != 2 {
		t.Errorf("Available after second release = %d, want 2", g.Available())
	}
}

func TestGate_TryAcquire(t *testing.T) {
	g := NewGate(1)

	if !g.TryAcquire() {
		t.Error("first TryAcquire should succeed")
	}
	if g.TryAcquire() {
		t.Error("second TryAcquire should fail")
	}

	g.Release()
	if !g.TryAcquire() {
		t.Error("TryAcquire after release should succeed")
	}
}

func TestGate_AcquireBlocks(t *testing.T) {
	g := NewGate(1)

	ctx := context.Background()
	g.Acquire(ctx)

	acquired := make(chan bool, 1)
	go func() {
		g.Acquire(ctx)
		acquired <- true
	}()

	select {
	case <-acquired:
		t.Error("should not acquire while held")
	case <-time.After(50 * time.Millisecond):
		// Expected
	}

	g.Release()

	select {
	case <-acquired:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Error("should acquire after release")
	}
}

func TestGate_AcquireContextCancellation(t *testing.T) {
	g := NewGate(1)

	ctx := context.Background()
	g.Acquire(ctx)

	cancelCtx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Acquire(cancelCtx)
	}()

	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("acquire should return after context cancellation")
	}
}

func TestGate_ReleasePanicOnEmpty(t *testing.T) {
	g := NewGate(1)

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on release without acquire")
		}
	}()

	g.Release()
}

func TestGate_ZeroCapacity(t *testing.T) {
	g := NewGate(0) // Should become 1

	ctx := context.Background()
	if err := g.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if g.TryAcquire() {
		t.Error("should not acquire beyond capacity 1")
	}
}

func TestGate_ConcurrentAccess(t *testing.T) {
	g := NewGate(5)

	var wg sync.WaitGroup
	iterations := 100

	ctx := context.Background()

	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := g.Acquire(ctx); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
			g.Release()
		}()
	}

	wg.Wait()

	if g.Available() != 5 {
		t.Errorf("Available after all release = %d, want 5", g.Available())
	}
}
