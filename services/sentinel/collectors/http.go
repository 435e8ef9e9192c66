// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collectors holds the concrete data sources feeding the
// assessment pipeline: NewsAPI, GDELT, RSS/Atom feeds, and a
// fixture-backed source for offline runs. Every adapter satisfies
// collect.Collector and declares its own reliability, request budget,
// timeout, and cache lifetime.
package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// HTTPClient interface allows injecting mock HTTP clients for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const userAgent = "AleutianSentinel/1.0"

// fetchJSON issues a GET as source and decodes the JSON body into out.
// Network-level failures and retryable statuses classify as transient;
// a body that fails to decode is permanent.
func fetchJSON(ctx context.Context, client HTTPClient, source, url string, header http.Header, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &model.CollectionError{Source: source, Err: err, Transient: true}
	}
	defer resp.Body.Close()

	if err := statusError(source, resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", source, err)
	}
	return nil
}

// statusError classifies a non-200 response. Upstream overload (429,
// 5xx) is transient; client errors are permanent.
func statusError(source string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &model.CollectionError{
			Source:    source,
			Err:       fmt.Errorf("HTTP %s", resp.Status),
			Transient: true,
		}
	default:
		return &model.CollectionError{
			Source: source,
			Err:    fmt.Errorf("HTTP %s", resp.Status),
		}
	}
}
