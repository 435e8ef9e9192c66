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
	"strings"
	"testing"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

func TestContentFilter_RelevanceScore(t *testing.T) {
	filter := NewContentFilter()
	ceiling := float64(2*len(NuclearKeywords) + len(GeopoliticalKeywords))

	tests := []struct {
		name string
		text string
		want float64
	}{
		{
			name: "two nuclear matches",
			text: "Russia suspends nuclear weapons inspections under the START treaty",
			want: 4.0 / ceiling,
		},
		{
			name: "mixed nuclear and geopolitical",
			text: "NATO condemned the missile test near Taiwan",
			want: (2*1 + 2) / ceiling,
		},
		{
			name: "case insensitive",
			text: "DETERRENCE remains the cornerstone of strategic forces posture",
			want: 4.0 / ceiling,
		},
		{
			name: "no matches",
			text: "quarterly earnings beat analyst expectations",
			want: 0,
		},
		{
			name: "empty text",
			text: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filter.RelevanceScore(tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("RelevanceScore(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestContentFilter_WordBoundaries(t *testing.T) {
	filter := NewContentFilter()

	// "warheads" must not match the "warhead" pattern mid-word.
	if filter.IsRelevant("the warheads budget line") {
		t.Fatal("expected plural to defeat the word boundary")
	}
	if !filter.IsRelevant("a single warhead was moved") {
		t.Fatal("expected exact word to match")
	}
}

func TestContentFilter_ExtractKeywords(t *testing.T) {
	filter := NewContentFilter()

	got := filter.ExtractKeywords("North Korea conducted a missile test; new sanctions followed")
	want := []string{"missile test", "North Korea", "sanctions"}
	if len(got) != len(want) {
		t.Fatalf("ExtractKeywords returned %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keyword[%d] = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestContentFilter_ExtractKeywordsNoMatches(t *testing.T) {
	filter := NewContentFilter()
	if got := filter.ExtractKeywords("local council approves bike lanes"); len(got) != 0 {
		t.Fatalf("expected no keywords, got %v", got)
	}
}

func TestQueryForCategory(t *testing.T) {
	q, err := QueryForCategory(model.CategoryArmsControl)
	if err != nil {
		t.Fatalf("QueryForCategory returned error: %v", err)
	}
	if !strings.Contains(q, `"arms control"`) {
		t.Fatalf("query %q missing quoted term", q)
	}
	if !strings.Contains(q, " OR ") {
		t.Fatalf("query %q missing OR join", q)
	}
}

func TestQueryForCategory_AllCategoriesCovered(t *testing.T) {
	for _, cat := range model.AllCategories() {
		if _, err := QueryForCategory(cat); err != nil {
			t.Fatalf("no query terms for %s: %v", cat, err)
		}
	}
}

func TestQueryForCategory_Unknown(t *testing.T) {
	if _, err := QueryForCategory(model.RiskCategory("volcanism")); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestMatchesCategory(t *testing.T) {
	tests := []struct {
		cat  model.RiskCategory
		text string
		want bool
	}{
		{model.CategoryArmsControl, "talks to extend the START treaty stalled", true},
		{model.CategoryRegionalConflicts, "airspace violation reported near Taiwan", true},
		{model.CategoryNuclearArsenal, "warhead production accelerates", true},
		{model.CategoryArmsControl, "warhead production accelerates", false},
		{model.CategoryEmergingTech, "hypersonic missile program unveiled", true},
		{model.CategoryLeadership, "stock markets rally on earnings", false},
	}

	for _, tt := range tests {
		if got := matchesCategory(tt.cat, tt.text); got != tt.want {
			t.Errorf("matchesCategory(%s, %q) = %v, want %v", tt.cat, tt.text, got, tt.want)
		}
	}
}
