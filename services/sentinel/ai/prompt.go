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
	"time"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap control how long article
	// bodies are split before digesting.
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 200

	// maxPointsPerPrompt bounds how many data points one category
	// prompt digests; the orchestrator already sorted and filtered.
	maxPointsPerPrompt = 12

	// digestRunes is the excerpt length taken from each chunk.
	digestRunes = 240

	// maxChunksPerPoint caps digest lines for very long articles.
	maxChunksPerPoint = 3
)

const systemPrompt = `You are Sentinel, a nuclear risk assessment system built to monitor
global nuclear threats with objectivity and analytical rigor.

Your analysis must:
1. Use the same risk assessment framework as the Bulletin of the Atomic Scientists
2. Consider military, political, technological, and social dimensions
3. Provide specific, quantified findings with confidence levels
4. Identify early warning indicators of escalation

Reference framework:
- Current Doomsday Clock: 89 seconds to midnight (as of January 2025)
- Risk scale: 0 (midnight, nuclear war) to 1440 (noon, minimal risk)
- Confidence levels: Very Low, Low, Moderate, High, Very High

Your responses MUST be valid JSON matching the requested schema exactly.`

// categoryBriefs frame what the model should look for per category.
var categoryBriefs = map[model.RiskCategory]string{
	model.CategoryNuclearArsenal:    "Changes to nuclear arsenals: warhead counts, delivery systems, deployment posture, modernization programs, doctrine shifts.",
	model.CategoryRegionalConflicts: "Active or brewing conflicts involving nuclear-armed states or their allies: escalation, territorial disputes, proxy engagements.",
	model.CategoryLeadership:        "Leadership instability and rhetoric in nuclear-armed states: threats, succession uncertainty, command-authority questions.",
	model.CategoryArmsControl:       "Arms control architecture: treaty status, verification regimes, inspections, withdrawals, negotiation progress or collapse.",
	model.CategoryTechnicalIncident: "Technical incidents: false alarms, accidents at nuclear facilities, early-warning system malfunctions, near misses.",
	model.CategoryCommunications:    "State-to-state communication channels: hotline status, diplomatic expulsions, talks suspended or resumed.",
	model.CategoryEconomicPressure:  "Economic coercion between nuclear powers: sanctions, embargoes, trade wars, resource chokepoints.",
	model.CategoryEmergingTech:      "Emerging technology risks: hypersonics, autonomous weapons, cyber operations against nuclear infrastructure, space weapons.",
}

// PromptBuilder renders one category's collected intelligence into a
// prompt requesting structured indicator extraction.
type PromptBuilder struct {
	splitter textsplitter.RecursiveCharacter
}

// NewPromptBuilder builds a prompt builder with the given chunking
// parameters. Non-positive values fall back to the defaults.
func NewPromptBuilder(chunkSize, chunkOverlap int) *PromptBuilder {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &PromptBuilder{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// System returns the fixed system prompt shared by every call.
func (b *PromptBuilder) System() string { return systemPrompt }

// CategoryPrompt renders the data points for one category into an
// analysis request. Points are digested in order; callers pass them
// pre-sorted by whatever priority they want honored.
func (b *PromptBuilder) CategoryPrompt(category model.RiskCategory, points []model.DataPoint, now time.Time) (string, error) {
	brief, ok := categoryBriefs[category]
	if !ok {
		return "", fmt.Errorf("unknown risk category %q", category)
	}

	var sb strings.Builder
	sb.WriteString("# Category Risk Review: ")
	sb.WriteString(category.Display())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "**Assessment Date**: %s\n\n", now.UTC().Format("2006-01-02 15:04:05 UTC"))
	sb.WriteString("## Focus\n\n")
	sb.WriteString(brief)
	sb.WriteString("\n\n")

	sb.WriteString("## Collected Intelligence\n\n")
	if len(points) == 0 {
		sb.WriteString("No data points were collected for this category in the current window.\n\n")
	}
	count := len(points)
	if count > maxPointsPerPrompt {
		count = maxPointsPerPrompt
	}
	for _, p := range points[:count] {
		if p.Title != "" {
			fmt.Fprintf(&sb, "**[%s]** %s\n", p.Source, p.Title)
		} else {
			fmt.Fprintf(&sb, "**[%s]**\n", p.Source)
		}
		digests, err := b.digest(p.Content)
		if err != nil {
			return "", fmt.Errorf("failed to digest content: %w", err)
		}
		for _, d := range digests {
			sb.WriteString(d)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Required Output\n\n")
	sb.WriteString("Extract the qualitative risk indicators this intelligence supports. ")
	sb.WriteString("Respond ONLY with valid JSON (no markdown fences) matching:\n\n")
	sb.WriteString(`{
  "indicators": [
    {
      "name": "<short indicator name>",
      "severity": <float 0.0-1.0>,
      "evidence": "<supporting evidence with sources>",
      "confidence": <float 0.0-1.0>
    }
  ],
  "summary": "<2-3 sentence category summary>",
  "recommendations": ["<risk mitigation recommendation>"]
}
`)
	sb.WriteString("\nBase every indicator on the provided intelligence. ")
	sb.WriteString("Quantify uncertainty through the confidence field.\n")

	return sb.String(), nil
}

// digest splits long content and excerpts each chunk. Short content
// yields a single excerpt.
func (b *PromptBuilder) digest(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, nil
	}

	chunks, err := b.splitter.SplitText(content)
	if err != nil {
		return nil, err
	}
	if len(chunks) > maxChunksPerPoint {
		chunks = chunks[:maxChunksPerPoint]
	}

	digests := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		digests = append(digests, excerpt(chunk, digestRunes))
	}
	return digests, nil
}

func excerpt(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit])
}
