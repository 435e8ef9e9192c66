// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ai

import (
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	// agreementBoost is the maximum confidence lift an indicator earns
	// when every ensemble member reports it.
	agreementBoost = 0.2

	// severitySpreadLimit marks how far member severities may diverge
	// before the merged indicator is treated as contested.
	severitySpreadLimit = 0.25

	// disagreementPenalty is subtracted from confidence when member
	// severities diverge beyond the spread limit.
	disagreementPenalty = 0.2
)

// Consensus merges insights from independent ensemble members into one.
//
// Indicators are grouped by normalized name. Within a group, severity
// is the confidence-weighted mean of the members' severities, and
// confidence starts from the members' mean, lifted by the fraction of
// members that reported the indicator and cut when member severities
// disagree beyond severitySpreadLimit. Summaries and recommendations
// are taken first-non-empty and deduplicated respectively, matching
// how single-model output flows through unchanged.
//
// One insight is returned as-is. Nil or empty input returns nil.
func Consensus(insights []*Insight) *Insight {
	members := make([]*Insight, 0, len(insights))
	for _, in := range insights {
		if in != nil {
			members = append(members, in)
		}
	}
	if len(members) == 0 {
		return nil
	}
	if len(members) == 1 {
		return members[0]
	}

	groups := make(map[string][]Indicator)
	order := make([]string, 0)
	for _, in := range members {
		for _, ind := range in.Indicators {
			key := normalizeIndicatorName(ind.Name)
			if _, seen := groups[key]; !seen {
				order = append(order, key)
			}
			groups[key] = append(groups[key], ind)
		}
	}

	merged := make([]Indicator, 0, len(order))
	for _, key := range order {
		merged = append(merged, mergeIndicators(groups[key], len(members)))
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Severity != merged[j].Severity {
			return merged[i].Severity > merged[j].Severity
		}
		return merged[i].Name < merged[j].Name
	})

	return &Insight{
		Indicators:      merged,
		Summary:         firstSummary(members),
		Recommendations: mergeRecommendations(members),
	}
}

func mergeIndicators(group []Indicator, memberCount int) Indicator {
	agreement := float64(len(group)) / float64(memberCount)

	var sevSum, confSum, weightSum float64
	minSev, maxSev := group[0].Severity, group[0].Severity
	best := group[0]
	for _, ind := range group {
		sevSum += ind.Severity * ind.Confidence
		weightSum += ind.Confidence
		confSum += ind.Confidence
		if ind.Severity < minSev {
			minSev = ind.Severity
		}
		if ind.Severity > maxSev {
			maxSev = ind.Severity
		}
		if ind.Confidence > best.Confidence {
			best = ind
		}
	}

	severity := 0.0
	if weightSum > 0 {
		severity = sevSum / weightSum
	} else {
		for _, ind := range group {
			severity += ind.Severity
		}
		severity /= float64(len(group))
	}

	confidence := confSum/float64(len(group)) + agreementBoost*agreement*(1-confSum/float64(len(group)))
	if maxSev-minSev > severitySpreadLimit {
		confidence -= disagreementPenalty
	}

	return Indicator{
		Name:       group[0].Name,
		Severity:   model.Clamp01(severity),
		Evidence:   best.Evidence,
		Confidence: model.Clamp01(confidence),
	}
}

func normalizeIndicatorName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func firstSummary(members []*Insight) string {
	for _, in := range members {
		if s := strings.TrimSpace(in.Summary); s != "" {
			return s
		}
	}
	return ""
}

func mergeRecommendations(members []*Insight) []string {
	var recs []string
	seen := make(map[string]struct{})
	for _, in := range members {
		for _, rec := range in.Recommendations {
			key := strings.ToLower(strings.TrimSpace(rec))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			recs = append(recs, rec)
		}
	}
	return recs
}
