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
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Indicator is one qualitative signal extracted by the collaborator.
// Severity and Confidence are clamped to [0,1] during parsing.
type Indicator struct {
	Name       string  `json:"name"`
	Severity   float64 `json:"severity"`
	Evidence   string  `json:"evidence,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Insight is the structured payload one model returns for a category.
type Insight struct {
	Indicators      []Indicator `json:"indicators"`
	Summary         string      `json:"summary"`
	Recommendations []string    `json:"recommendations,omitempty"`
}

// ParseInsight extracts and validates the JSON insight from a raw
// model response. Models occasionally wrap output in markdown fences
// or prepend commentary despite instructions; both are tolerated. A
// response with no parseable JSON object, non-finite numbers, or an
// empty payload is a permanent failure.
func ParseInsight(raw string) (*Insight, error) {
	cleaned, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var insight Insight
	if err := json.Unmarshal([]byte(cleaned), &insight); err != nil {
		return nil, fmt.Errorf("failed to parse insight JSON: %w", err)
	}
	if err := validateInsight(&insight); err != nil {
		return nil, err
	}
	return &insight, nil
}

// extractJSON strips markdown fences and returns the outermost JSON
// object in the text.
func extractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		var kept []string
		for _, line := range lines[1:] {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				break
			}
			kept = append(kept, line)
		}
		text = strings.Join(kept, "\n")
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return "", fmt.Errorf("no closing brace found in response")
	}
	return text[start : end+1], nil
}

// validateInsight enforces the response contract. Out-of-range but
// finite values are clamped; non-finite values and nameless indicators
// reject the response outright.
func validateInsight(insight *Insight) error {
	if strings.TrimSpace(insight.Summary) == "" && len(insight.Indicators) == 0 {
		return fmt.Errorf("insight carried neither summary nor indicators")
	}

	for i := range insight.Indicators {
		ind := &insight.Indicators[i]
		if !isFinite(ind.Severity) || !isFinite(ind.Confidence) {
			return fmt.Errorf("indicator %q carried non-finite values", ind.Name)
		}
		if strings.TrimSpace(ind.Name) == "" {
			return fmt.Errorf("indicator %d has no name", i)
		}
		ind.Severity = model.Clamp01(ind.Severity)
		ind.Confidence = model.Clamp01(ind.Confidence)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
