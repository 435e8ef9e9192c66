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
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// RetryPolicy is the table-driven retry policy shared by all collector
// calls: bounded attempts with exponential backoff, applied only to
// transient failures. Non-transient failures (malformed responses,
// validation errors) surface immediately.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; each subsequent
	// wait multiplies by Multiplier.
	BaseDelay time.Duration

	// Multiplier grows the delay between attempts.
	Multiplier float64
}

// DefaultRetryPolicy returns the documented policy: 3 attempts, 2s base
// delay, doubling per attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		Multiplier:  2.0,
	}
}

// Delay returns the backoff before the given attempt (1-based; attempt
// 1 has no delay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 2; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
	}
	return d
}

// Do runs fn under the policy. Retries happen only when the returned
// error classifies as transient; backoff sleeps respect ctx
// cancellation. The last error is returned after the attempt budget is
// spent.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, source string, fn func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !model.IsTransient(lastErr) {
			logger.Debug("permanent failure, not retrying",
				"source", source,
				"attempt", attempt,
				"error", lastErr,
			)
			return lastErr
		}
		if attempt < p.MaxAttempts {
			logger.Warn("transient failure, will retry",
				"source", source,
				"attempt", attempt,
				"next_delay", p.Delay(attempt+1).String(),
				"error", lastErr,
			)
		}
		// The global deadline may already have passed during fn.
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
