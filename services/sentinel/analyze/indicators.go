// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analyze

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/ai"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	// escalationGain scales mean keyword relevance into a risk value.
	// A strongly matched article (around five weighted matches against
	// the 42-point ceiling) should read near the top of the band.
	escalationGain = 4.0

	// recencyWindow is the freshness horizon for the recency
	// concentration indicator.
	recencyWindow = 24 * time.Hour

	// evidenceKeywordLimit bounds how many matched terms the keyword
	// indicator cites.
	evidenceKeywordLimit = 5
)

// indicator is the pre-banding form of a risk factor: value and
// confidence still continuous.
type indicator struct {
	name       string
	value      float64
	confidence float64
	evidence   string
	sources    []string
}

func (in indicator) factor(cat model.RiskCategory) model.RiskFactor {
	return model.RiskFactor{
		Category:   cat,
		Name:       in.name,
		Value:      model.Clamp01(in.value),
		Confidence: model.ConfidenceFromScore(in.confidence),
		Sources:    in.sources,
		Evidence:   in.evidence,
	}
}

// volumeIndicator scores how unusual the category's article count is
// against the baseline volume moments. With no recorded history the
// value is neutral.
func volumeIndicator(points []model.DataPoint, baseline model.HistoricalBaseline, minPoints int) indicator {
	n := len(points)

	value := 0.5
	if baseline.SampleCount > 0 {
		std := math.Sqrt(baseline.VolumeVariance)
		if std < 1 {
			std = 1
		}
		value = logistic((float64(n) - baseline.VolumeMean) / std)
	}

	return indicator{
		name:       "article volume",
		value:      value,
		confidence: indicatorConfidence(points, minPoints),
		sources:    distinctSources(points),
	}
}

// keywordIndicator scores escalation keyword density across the
// category's points and cites the most frequent matched terms.
func keywordIndicator(points []model.DataPoint, filter *ContentFilter, minPoints int) indicator {
	if len(points) == 0 {
		return indicator{name: "escalation keywords"}
	}

	var total float64
	counts := make(map[string]int)
	for _, p := range points {
		text := p.Title + " " + p.Content
		total += filter.RelevanceScore(text)
		for _, k := range filter.ExtractKeywords(text) {
			counts[k]++
		}
	}
	mean := total / float64(len(points))

	return indicator{
		name:       "escalation keywords",
		value:      model.Clamp01(mean * escalationGain),
		confidence: indicatorConfidence(points, minPoints),
		evidence:   topKeywords(counts, evidenceKeywordLimit),
		sources:    distinctSources(points),
	}
}

// recencyIndicator scores how concentrated the category's points are
// inside the freshness horizon. A burst of fresh reporting reads as
// elevated risk.
func recencyIndicator(points []model.DataPoint, now time.Time, minPoints int) indicator {
	if len(points) == 0 {
		return indicator{name: "recency concentration"}
	}

	fresh := 0
	for _, p := range points {
		age := p.Age(now)
		if p.PublishedAt != nil {
			age = now.Sub(*p.PublishedAt)
		}
		if age < recencyWindow {
			fresh++
		}
	}

	return indicator{
		name:       "recency concentration",
		value:      float64(fresh) / float64(len(points)),
		confidence: indicatorConfidence(points, minPoints),
		sources:    distinctSources(points),
	}
}

// aiIndicators maps collaborator output into indicators; severity is
// the value and the evidence prose carries through.
func aiIndicators(insight *ai.Insight, points []model.DataPoint) []indicator {
	if insight == nil {
		return nil
	}
	sources := distinctSources(points)
	out := make([]indicator, 0, len(insight.Indicators))
	for _, ind := range insight.Indicators {
		out = append(out, indicator{
			name:       ind.Name,
			value:      ind.Severity,
			confidence: ind.Confidence,
			evidence:   ind.Evidence,
			sources:    sources,
		})
	}
	return out
}

// indicatorConfidence blends data volume with source reliability
// spread: confidence saturates with point count and drops when source
// reliabilities disagree.
func indicatorConfidence(points []model.DataPoint, minPoints int) float64 {
	n := len(points)
	if n == 0 {
		return 0
	}
	if minPoints < 1 {
		minPoints = 1
	}
	volume := float64(n) / float64(n+minPoints)
	return model.Clamp01(volume * (1 - 0.5*reliabilitySpread(points)))
}

func reliabilitySpread(points []model.DataPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	min, max := points[0].Reliability, points[0].Reliability
	for _, p := range points[1:] {
		if p.Reliability < min {
			min = p.Reliability
		}
		if p.Reliability > max {
			max = p.Reliability
		}
	}
	return model.Clamp01(max - min)
}

func distinctSources(points []model.DataPoint) []string {
	seen := make(map[string]struct{})
	var sources []string
	for _, p := range points {
		if _, ok := seen[p.Source]; ok {
			continue
		}
		seen[p.Source] = struct{}{}
		sources = append(sources, p.Source)
	}
	sort.Strings(sources)
	return sources
}

func topKeywords(counts map[string]int, limit int) string {
	type kc struct {
		keyword string
		count   int
	}
	ranked := make([]kc, 0, len(counts))
	for k, c := range counts {
		ranked = append(ranked, kc{k, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].keyword < ranked[j].keyword
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	terms := make([]string, 0, len(ranked))
	for _, r := range ranked {
		terms = append(terms, r.keyword)
	}
	return strings.Join(terms, ", ")
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
