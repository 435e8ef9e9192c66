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
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func transientErr(source string) error {
	return &model.CollectionError{Source: source, Err: errors.New("connection reset"), Transient: true}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", p.MaxAttempts)
	}
	if p.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", p.BaseDelay)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("Multiplier = %v, want 2.0", p.Multiplier)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 4, BaseDelay: 2 * time.Second, Multiplier: 2.0}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 0},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetryPolicy_Do_SuccessFirstTry(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	calls := 0
	err := p.Do(context.Background(), discardLogger(), "newsapi", func(ctx context.Context) error {
		calls++
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_Do_TransientRetriesThenSuccess(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	calls := 0
	err := p.Do(context.Background(), discardLogger(), "newsapi", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr("newsapi")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_Do_PermanentNotRetried(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	permanent := errors.New("malformed response body")
	calls := 0
	err := p.Do(context.Background(), discardLogger(), "gdelt", func(ctx context.Context) error {
		calls++
		return permanent
	})

	if !errors.Is(err, permanent) {
		t.Errorf("err = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on permanent failure)", calls)
	}
}

func TestRetryPolicy_Do_ExhaustsBudget(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	calls := 0
	err := p.Do(context.Background(), discardLogger(), "rss", func(ctx context.Context) error {
		calls++
		return transientErr("rss")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	var ce *model.CollectionError
	if !errors.As(err, &ce) {
		t.Errorf("err = %T, want *model.CollectionError", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryPolicy_Do_ContextCancelledDuringBackoff(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2.0}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Do(ctx, discardLogger(), "newsapi", func(ctx context.Context) error {
			calls++
			return transientErr("newsapi")
		})
	}()

	// Let the first attempt fail, then cancel during the backoff sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Do should return promptly after cancellation")
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryPolicy_Do_GlobalDeadlinePassedDuringCall(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	calls := 0
	err := p.Do(ctx, discardLogger(), "gdelt", func(ctx context.Context) error {
		calls++
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (deadline already passed)", calls)
	}
}
