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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validInsightJSON = `{
  "indicators": [
    {"name": "Treaty withdrawal", "severity": 0.8, "evidence": "Reuters reports formal notice filed", "confidence": 0.7},
    {"name": "Inspection lapse", "severity": 0.5, "evidence": "Quarterly visits suspended", "confidence": 0.6}
  ],
  "summary": "Arms control framework is eroding.",
  "recommendations": ["Reopen verification channel"]
}`

// TestParseInsight_ValidJSON verifies the happy path.
//
// # Description
//
// A clean JSON response parses into indicators, summary, and
// recommendations with values untouched.
func TestParseInsight_ValidJSON(t *testing.T) {
	insight, err := ParseInsight(validInsightJSON)
	require.NoError(t, err)

	require.Len(t, insight.Indicators, 2)
	assert.Equal(t, "Treaty withdrawal", insight.Indicators[0].Name)
	assert.Equal(t, 0.8, insight.Indicators[0].Severity)
	assert.Equal(t, 0.7, insight.Indicators[0].Confidence)
	assert.Equal(t, "Arms control framework is eroding.", insight.Summary)
	assert.Equal(t, []string{"Reopen verification channel"}, insight.Recommendations)
}

func TestParseInsight_StripsMarkdownFences(t *testing.T) {
	fenced := "```json\n" + validInsightJSON + "\n```"

	insight, err := ParseInsight(fenced)
	require.NoError(t, err)
	assert.Len(t, insight.Indicators, 2)
}

func TestParseInsight_ExtractsObjectFromChatter(t *testing.T) {
	chatty := "Here is the analysis you requested:\n\n" + validInsightJSON + "\n\nLet me know if you need more."

	insight, err := ParseInsight(chatty)
	require.NoError(t, err)
	assert.Len(t, insight.Indicators, 2)
}

// TestParseInsight_ClampsOutOfRange verifies that finite but
// out-of-range severities and confidences are clamped rather than
// rejected.
func TestParseInsight_ClampsOutOfRange(t *testing.T) {
	raw := `{
	  "indicators": [{"name": "Overshoot", "severity": 1.7, "evidence": "", "confidence": -0.2}],
	  "summary": "s"
	}`

	insight, err := ParseInsight(raw)
	require.NoError(t, err)
	require.Len(t, insight.Indicators, 1)
	assert.Equal(t, 1.0, insight.Indicators[0].Severity)
	assert.Equal(t, 0.0, insight.Indicators[0].Confidence)
}

func TestParseInsight_RejectsEmptyPayload(t *testing.T) {
	_, err := ParseInsight(`{}`)
	assert.Error(t, err, "neither summary nor indicators should be rejected")
}

func TestParseInsight_RejectsNamelessIndicator(t *testing.T) {
	raw := `{"indicators": [{"name": "  ", "severity": 0.5, "confidence": 0.5}], "summary": "s"}`

	_, err := ParseInsight(raw)
	assert.Error(t, err)
}

func TestParseInsight_RejectsProse(t *testing.T) {
	_, err := ParseInsight("I cannot provide that analysis.")
	assert.Error(t, err)
}

func TestParseInsight_RejectsMalformedJSON(t *testing.T) {
	_, err := ParseInsight(`{"indicators": [{"name": "x", "severity": }], "summary": "s"}`)
	assert.Error(t, err)
}

func TestParseInsight_SummaryOnlyIsValid(t *testing.T) {
	insight, err := ParseInsight(`{"indicators": [], "summary": "Nothing actionable this window."}`)
	require.NoError(t, err)
	assert.Empty(t, insight.Indicators)
	assert.NotEmpty(t, insight.Summary)
}
