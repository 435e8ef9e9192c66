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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// maxFeedBytes caps how much of a feed body is read.
const maxFeedBytes = 10 << 20

// RSSConfig configures one feed-backed source instance.
type RSSConfig struct {
	// Name distinguishes multiple feed instances ("rss", "iaea", ...).
	Name string

	// Feeds lists the RSS 2.0 or Atom URLs polled by this instance.
	Feeds []string

	// Category is the risk category this instance feeds.
	Category model.RiskCategory

	// Reliability is the source trust score. Default: 0.85.
	Reliability float64

	RequestsPerHour int
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// RSS collects items from RSS 2.0 and Atom feeds. A feed that fails to
// fetch or parse only fails the run when every configured feed does.
type RSS struct {
	client HTTPClient
	cfg    RSSConfig
}

// NewRSS creates a feed collector.
func NewRSS(cfg RSSConfig, client HTTPClient) *RSS {
	if cfg.Name == "" {
		cfg.Name = "rss"
	}
	if cfg.Reliability <= 0 {
		cfg.Reliability = 0.85
	}
	if cfg.Category == "" {
		cfg.Category = model.CategoryArmsControl
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RSS{client: client, cfg: cfg}
}

// SourceName identifies this collector in logs and failure records.
func (r *RSS) SourceName() string { return r.cfg.Name }

// Category returns the risk category this instance feeds.
func (r *RSS) Category() model.RiskCategory { return r.cfg.Category }

// Reliability returns the source trust score.
func (r *RSS) Reliability() float64 { return r.cfg.Reliability }

// RequestsPerHour returns the hourly request budget.
func (r *RSS) RequestsPerHour() int { return r.cfg.RequestsPerHour }

// Timeout returns the per-call timeout override, zero when unset.
func (r *RSS) Timeout() time.Duration { return r.cfg.Timeout }

// CacheKey identifies this instance's feed set in the snapshot cache.
func (r *RSS) CacheKey() string { return strings.Join(r.cfg.Feeds, ",") }

// CacheTTL returns the snapshot lifetime for this source.
func (r *RSS) CacheTTL() time.Duration { return r.cfg.CacheTTL }

// Collect polls every configured feed and merges their items.
func (r *RSS) Collect(ctx context.Context) ([]model.DataPoint, error) {
	if len(r.cfg.Feeds) == 0 {
		return nil, &model.CollectionError{
			Source: r.SourceName(),
			Err:    errors.New("no feeds configured"),
		}
	}

	var (
		points []model.DataPoint
		errs   []error
	)
	for _, feed := range r.cfg.Feeds {
		items, err := r.collectFeed(ctx, feed)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %s: %w", feed, err))
			continue
		}
		points = append(points, items...)
	}

	if len(points) == 0 && len(errs) > 0 {
		return nil, &model.CollectionError{
			Source:    r.SourceName(),
			Err:       errors.Join(errs...),
			Transient: true,
		}
	}
	return points, nil
}

func (r *RSS) collectFeed(ctx context.Context, feedURL string) ([]model.DataPoint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := statusError(r.SourceName(), resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	return r.parseFeed(body)
}

// --- RSS 2.0 ---

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// --- Atom ---

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
}

func (a atomEntry) href() string {
	for _, l := range a.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(a.Links) > 0 {
		return a.Links[0].Href
	}
	return ""
}

// parseFeed decodes either wire format by root element.
func (r *RSS) parseFeed(body []byte) ([]model.DataPoint, error) {
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil {
		return r.rssPoints(rss), nil
	}

	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err != nil {
		return nil, fmt.Errorf("failed to parse feed as RSS or Atom: %w", err)
	}
	return r.atomPoints(atom), nil
}

func (r *RSS) rssPoints(feed rssFeed) []model.DataPoint {
	now := time.Now().UTC()
	points := make([]model.DataPoint, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if item.Title == "" && item.Description == "" {
			continue
		}

		content := item.Description
		if content == "" {
			content = item.Title
		}

		p := model.NewDataPoint(r.SourceName(), content, r.cfg.Category, r.cfg.Reliability)
		p.Title = item.Title
		p.SourceURL = item.Link
		p.CollectedAt = now
		if ts, ok := parseFeedTime(item.PubDate); ok {
			p.PublishedAt = &ts
		}
		if feed.Channel.Title != "" {
			p.Metadata = map[string]string{"feed": feed.Channel.Title}
		}
		points = append(points, p)
	}
	return points
}

func (r *RSS) atomPoints(feed atomFeed) []model.DataPoint {
	now := time.Now().UTC()
	points := make([]model.DataPoint, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		content := entry.Content
		if content == "" {
			content = entry.Summary
		}
		if content == "" && entry.Title == "" {
			continue
		}
		if content == "" {
			content = entry.Title
		}

		p := model.NewDataPoint(r.SourceName(), content, r.cfg.Category, r.cfg.Reliability)
		p.Title = entry.Title
		p.SourceURL = entry.href()
		p.CollectedAt = now
		stamp := entry.Published
		if stamp == "" {
			stamp = entry.Updated
		}
		if ts, ok := parseFeedTime(stamp); ok {
			p.PublishedAt = &ts
		}
		if feed.Title != "" {
			p.Metadata = map[string]string{"feed": feed.Title}
		}
		points = append(points, p)
	}
	return points
}

// feedTimeLayouts covers the formats feeds publish in the wild.
var feedTimeLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parseFeedTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range feedTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
