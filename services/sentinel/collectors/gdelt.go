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
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	defaultGDELTEndpoint   = "https://api.gdeltproject.org/api/v2/doc/doc"
	defaultGDELTMaxRecords = 75
	defaultGDELTTimespan   = "1d"

	// gdeltSeenDateLayout matches GDELT's compact article timestamps.
	gdeltSeenDateLayout = "20060102T150405Z"
)

// GDELTConfig configures one GDELT DOC 2.0 source instance.
type GDELTConfig struct {
	// Query is the GDELT search expression for this instance.
	Query string

	// Category is the risk category this instance feeds.
	Category model.RiskCategory

	// Endpoint overrides the production API URL.
	Endpoint string

	// MaxRecords bounds articles per request. Default: 75.
	MaxRecords int

	// Timespan is the GDELT look-back window. Default: "1d".
	Timespan string

	// Reliability is the source trust score. Default: 0.75.
	Reliability float64

	RequestsPerHour int
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// GDELT collects geopolitical event coverage from the GDELT DOC API.
// Article-list mode carries headlines only, so the headline doubles as
// the point content.
type GDELT struct {
	client HTTPClient
	cfg    GDELTConfig
}

// NewGDELT creates a GDELT collector.
func NewGDELT(cfg GDELTConfig, client HTTPClient) *GDELT {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultGDELTEndpoint
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = defaultGDELTMaxRecords
	}
	if cfg.Timespan == "" {
		cfg.Timespan = defaultGDELTTimespan
	}
	if cfg.Reliability <= 0 {
		cfg.Reliability = 0.75
	}
	if cfg.Category == "" {
		cfg.Category = model.CategoryRegionalConflicts
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GDELT{client: client, cfg: cfg}
}

type gdeltResponse struct {
	Articles []gdeltArticle `json:"articles"`
}

type gdeltArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	SeenDate      string `json:"seendate"`
	Domain        string `json:"domain"`
	Language      string `json:"language"`
	SourceCountry string `json:"sourcecountry"`
}

// SourceName identifies this collector in logs and failure records.
func (g *GDELT) SourceName() string { return "gdelt" }

// Category returns the risk category this instance feeds.
func (g *GDELT) Category() model.RiskCategory { return g.cfg.Category }

// Reliability returns the source trust score.
func (g *GDELT) Reliability() float64 { return g.cfg.Reliability }

// RequestsPerHour returns the hourly request budget.
func (g *GDELT) RequestsPerHour() int { return g.cfg.RequestsPerHour }

// Timeout returns the per-call timeout override, zero when unset.
func (g *GDELT) Timeout() time.Duration { return g.cfg.Timeout }

// CacheKey identifies this instance's query in the snapshot cache.
func (g *GDELT) CacheKey() string { return g.queryParams() }

// CacheTTL returns the snapshot lifetime for this source.
func (g *GDELT) CacheTTL() time.Duration { return g.cfg.CacheTTL }

func (g *GDELT) queryParams() string {
	v := url.Values{}
	v.Set("query", g.cfg.Query)
	v.Set("mode", "ArtList")
	v.Set("format", "json")
	v.Set("maxrecords", strconv.Itoa(g.cfg.MaxRecords))
	v.Set("timespan", g.cfg.Timespan)
	return v.Encode()
}

// Collect fetches the current article list for this instance's query.
func (g *GDELT) Collect(ctx context.Context) ([]model.DataPoint, error) {
	var resp gdeltResponse
	if err := fetchJSON(ctx, g.client, g.SourceName(), g.cfg.Endpoint+"?"+g.queryParams(), nil, &resp); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	points := make([]model.DataPoint, 0, len(resp.Articles))
	for _, a := range resp.Articles {
		if a.Title == "" {
			continue
		}

		p := model.NewDataPoint(g.SourceName(), a.Title, g.cfg.Category, g.cfg.Reliability)
		p.Title = a.Title
		p.SourceURL = a.URL
		p.CollectedAt = now
		if ts, err := time.Parse(gdeltSeenDateLayout, a.SeenDate); err == nil {
			p.PublishedAt = &ts
		}
		p.Metadata = map[string]string{"domain": a.Domain}
		if a.SourceCountry != "" {
			p.Metadata["source_country"] = a.SourceCountry
		}
		points = append(points, p)
	}
	return points, nil
}
