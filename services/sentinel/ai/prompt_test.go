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
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

func TestPromptBuilder_System(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	sys := b.System()
	assert.Contains(t, sys, "89 seconds")
	assert.Contains(t, sys, "1440")
	assert.Contains(t, sys, "valid JSON")
}

func TestPromptBuilder_CategoryPrompt_Structure(t *testing.T) {
	b := NewPromptBuilder(0, 0)
	p := model.NewDataPoint("newsapi", "Delegations met to discuss inspection schedules.", model.CategoryArmsControl, 0.8)
	p.Title = "Verification talks resume"

	prompt, err := b.CategoryPrompt(model.CategoryArmsControl, []model.DataPoint{p}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, prompt, model.CategoryArmsControl.Display())
	assert.Contains(t, prompt, "2026-03-01 12:00:00 UTC")
	assert.Contains(t, prompt, "**[newsapi]** Verification talks resume")
	assert.Contains(t, prompt, "inspection schedules")
	assert.Contains(t, prompt, `"indicators"`)
	assert.Contains(t, prompt, `"severity"`)
	assert.Contains(t, prompt, "valid JSON")
}

func TestPromptBuilder_CategoryPrompt_UnknownCategory(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	_, err := b.CategoryPrompt(model.RiskCategory("weather"), nil, time.Now())
	assert.Error(t, err)
}

func TestPromptBuilder_CategoryPrompt_EmptyWindow(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	prompt, err := b.CategoryPrompt(model.CategoryEmergingTech, nil, time.Now())
	require.NoError(t, err)
	assert.Contains(t, prompt, "No data points were collected")
}

func TestPromptBuilder_CategoryPrompt_CapsDigestedPoints(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	var points []model.DataPoint
	for i := 0; i < maxPointsPerPrompt+4; i++ {
		points = append(points, model.NewDataPoint("rss", fmt.Sprintf("bulletin %d", i), model.CategoryCommunications, 0.8))
	}

	prompt, err := b.CategoryPrompt(model.CategoryCommunications, points, time.Now())
	require.NoError(t, err)
	assert.Equal(t, maxPointsPerPrompt, strings.Count(prompt, "**[rss]**"))
}

// TestPromptBuilder_DigestChunksLongContent verifies that long bodies
// are split and each chunk contributes a bounded excerpt.
func TestPromptBuilder_DigestChunksLongContent(t *testing.T) {
	b := NewPromptBuilder(100, 10)

	content := strings.Repeat("strategic forces conducted exercises near the border ", 12)
	digests, err := b.digest(content)
	require.NoError(t, err)

	assert.Greater(t, len(digests), 1, "long content should produce multiple digests")
	assert.LessOrEqual(t, len(digests), maxChunksPerPoint)
	for _, d := range digests {
		assert.LessOrEqual(t, len([]rune(d)), digestRunes)
	}
}

func TestPromptBuilder_DigestEmptyContent(t *testing.T) {
	b := NewPromptBuilder(0, 0)

	digests, err := b.digest("   ")
	require.NoError(t, err)
	assert.Empty(t, digests)
}
