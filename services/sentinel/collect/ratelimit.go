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
	"sync"

	"golang.org/x/time/rate"
)

// LimiterRegistry holds one token bucket per source. Bucket capacity
// equals the source's hourly request budget; tokens refill continuously
// at capacity/3600 per second, so a source may burst up to its full
// budget and then sustain the hourly rate.
//
// # Thread Safety
//
// Safe for concurrent use.
type LimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewLimiterRegistry creates an empty per-source limiter registry.
func NewLimiterRegistry() *LimiterRegistry {
	return &LimiterRegistry{limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until the source's bucket grants one token or ctx is
// done. Sources without a configured budget (requestsPerHour <= 0) pass
// through unthrottled.
func (r *LimiterRegistry) Wait(ctx context.Context, source string, requestsPerHour int) error {
	if requestsPerHour <= 0 {
		return nil
	}
	return r.limiter(source, requestsPerHour).Wait(ctx)
}

// Allow reports whether the source could take a token right now,
// consuming it if so.
func (r *LimiterRegistry) Allow(source string, requestsPerHour int) bool {
	if requestsPerHour <= 0 {
		return true
	}
	return r.limiter(source, requestsPerHour).Allow()
}

func (r *LimiterRegistry) limiter(source string, requestsPerHour int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lim, ok := r.limiters[source]; ok {
		return lim
	}
	perSecond := rate.Limit(float64(requestsPerHour) / 3600.0)
	lim := rate.NewLimiter(perSecond, requestsPerHour)
	r.limiters[source] = lim
	return lim
}
