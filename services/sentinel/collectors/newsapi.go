// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collectors

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	defaultNewsAPIEndpoint = "https://newsapi.org/v2/everything"
	defaultNewsAPIPageSize = 50
)

// NewsAPIConfig configures one NewsAPI source instance.
type NewsAPIConfig struct {
	// APIKey authenticates against newsapi.org. Sent as a header, never
	// in the URL.
	APIKey string

	// Query is the search expression for this instance.
	Query string

	// Category is the risk category this instance feeds.
	Category model.RiskCategory

	// Endpoint overrides the production API URL (tests, proxies).
	Endpoint string

	// PageSize bounds articles per request. Default: 50.
	PageSize int

	// Reliability is the source trust score. Default: 0.80.
	Reliability float64

	RequestsPerHour int
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// NewsAPI collects news articles from newsapi.org.
type NewsAPI struct {
	client HTTPClient
	cfg    NewsAPIConfig
}

// NewNewsAPI creates a NewsAPI collector. A nil client falls back to a
// default http.Client with the configured timeout.
func NewNewsAPI(cfg NewsAPIConfig, client HTTPClient) *NewsAPI {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultNewsAPIEndpoint
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultNewsAPIPageSize
	}
	if cfg.Reliability <= 0 {
		cfg.Reliability = 0.80
	}
	if cfg.Category == "" {
		cfg.Category = model.CategoryRegionalConflicts
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &NewsAPI{client: client, cfg: cfg}
}

type newsAPIResponse struct {
	Status       string           `json:"status"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// SourceName identifies this collector in logs and failure records.
func (n *NewsAPI) SourceName() string { return "newsapi" }

// Category returns the risk category this instance feeds.
func (n *NewsAPI) Category() model.RiskCategory { return n.cfg.Category }

// Reliability returns the source trust score.
func (n *NewsAPI) Reliability() float64 { return n.cfg.Reliability }

// RequestsPerHour returns the hourly request budget.
func (n *NewsAPI) RequestsPerHour() int { return n.cfg.RequestsPerHour }

// Timeout returns the per-call timeout override, zero when unset.
func (n *NewsAPI) Timeout() time.Duration { return n.cfg.Timeout }

// CacheKey identifies this instance's query in the snapshot cache.
func (n *NewsAPI) CacheKey() string { return n.queryParams() }

// CacheTTL returns the snapshot lifetime for this source.
func (n *NewsAPI) CacheTTL() time.Duration { return n.cfg.CacheTTL }

func (n *NewsAPI) queryParams() string {
	v := url.Values{}
	v.Set("q", n.cfg.Query)
	v.Set("language", "en")
	v.Set("sortBy", "publishedAt")
	v.Set("pageSize", strconv.Itoa(n.cfg.PageSize))
	return v.Encode()
}

// Collect fetches the current article page for this instance's query.
func (n *NewsAPI) Collect(ctx context.Context) ([]model.DataPoint, error) {
	header := http.Header{}
	if n.cfg.APIKey != "" {
		header.Set("X-Api-Key", n.cfg.APIKey)
	}

	var resp newsAPIResponse
	if err := fetchJSON(ctx, n.client, n.SourceName(), n.cfg.Endpoint+"?"+n.queryParams(), header, &resp); err != nil {
		return nil, err
	}

	if resp.Status != "ok" {
		err := fmt.Errorf("newsapi status %q: %s (%s)", resp.Status, resp.Message, resp.Code)
		// The API reports its own throttling in-band.
		if resp.Code == "rateLimited" {
			return nil, &model.CollectionError{Source: n.SourceName(), Err: err, Transient: true}
		}
		return nil, &model.CollectionError{Source: n.SourceName(), Err: err}
	}

	now := time.Now().UTC()
	points := make([]model.DataPoint, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" && a.Description == "" {
			continue
		}

		content := a.Description
		if a.Content != "" {
			content = a.Content
		}

		p := model.NewDataPoint(n.SourceName(), content, n.cfg.Category, n.cfg.Reliability)
		p.Title = a.Title
		p.SourceURL = a.URL
		p.CollectedAt = now
		if ts, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			p.PublishedAt = &ts
		}
		p.Metadata = map[string]string{"publisher": a.Source.Name}
		if a.Author != "" {
			p.Metadata["author"] = a.Author
		}
		points = append(points, p)
	}
	return points, nil
}
