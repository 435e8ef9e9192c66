// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collect

import (
	"testing"
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

func dedupPoint(source, content string, reliability float64, collectedAt time.Time) model.DataPoint {
	return model.DataPoint{
		ID:          source + "/" + content,
		Source:      source,
		Content:     content,
		Category:    model.CategoryRegionalConflicts,
		Reliability: reliability,
		CollectedAt: collectedAt,
	}
}

func TestDeduper_ExactDuplicateKeepsHigherReliability(t *testing.T) {
	d := NewDeduper(0.85)
	now := time.Now()

	points := []model.DataPoint{
		dedupPoint("gdelt", "Border shelling reported near the demarcation line", 0.75, now),
		dedupPoint("rss", "Border shelling reported near the demarcation line", 0.85, now),
	}

	got := d.Deduplicate(points)
	if len(got) != 1 {
		t.Fatalf("survivors = %d, want 1", len(got))
	}
	if got[0].Source != "rss" {
		t.Errorf("survivor = %s, want rss (higher reliability)", got[0].Source)
	}
}

func TestDeduper_ReliabilityTieKeepsEarlierCollection(t *testing.T) {
	d := NewDeduper(0.85)
	earlier := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(2 * time.Hour)

	points := []model.DataPoint{
		dedupPoint("newsapi", "Treaty withdrawal announced by foreign ministry", 0.8, later),
		dedupPoint("gdelt", "Treaty withdrawal announced by foreign ministry", 0.8, earlier),
	}

	got := d.Deduplicate(points)
	if len(got) != 1 {
		t.Fatalf("survivors = %d, want 1", len(got))
	}
	if got[0].Source != "gdelt" {
		t.Errorf("survivor = %s, want gdelt (earlier collection)", got[0].Source)
	}
}

func TestDeduper_BelowThresholdBothSurvive(t *testing.T) {
	d := NewDeduper(0.85)
	now := time.Now()

	points := []model.DataPoint{
		dedupPoint("newsapi", "Enrichment facility inspection postponed indefinitely", 0.8, now),
		dedupPoint("rss", "Naval exercises scheduled in contested waters next week", 0.85, now),
	}

	got := d.Deduplicate(points)
	if len(got) != 2 {
		t.Fatalf("survivors = %d, want 2 (distinct stories)", len(got))
	}
}

func TestDeduper_NormalizationIgnoresCaseAndPunctuation(t *testing.T) {
	d := NewDeduper(0.85)
	now := time.Now()

	points := []model.DataPoint{
		dedupPoint("newsapi", "IAEA Reports Enrichment at 60%!", 0.8, now),
		dedupPoint("gdelt", "iaea reports enrichment at 60", 0.7, now),
	}

	got := d.Deduplicate(points)
	if len(got) != 1 {
		t.Fatalf("survivors = %d, want 1 (same story after normalization)", len(got))
	}
	if got[0].Source != "newsapi" {
		t.Errorf("survivor = %s, want newsapi", got[0].Source)
	}
}

func TestDeduper_EmptyContentFallsBackToTitle(t *testing.T) {
	d := NewDeduper(0.85)
	now := time.Now()

	a := dedupPoint("rss", "", 0.85, now)
	a.Title = "Missile test detected over northern range"
	b := dedupPoint("newsapi", "", 0.8, now)
	b.Title = "Missile test detected over northern range"

	got := d.Deduplicate([]model.DataPoint{a, b})
	if len(got) != 1 {
		t.Fatalf("survivors = %d, want 1 (titles match)", len(got))
	}
	if got[0].Source != "rss" {
		t.Errorf("survivor = %s, want rss", got[0].Source)
	}
}

func TestDeduper_Similarity(t *testing.T) {
	d := NewDeduper(0.85)
	now := time.Now()

	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{
			name: "identical after normalization",
			a:    "Warhead count UP, officials say.",
			b:    "warhead count up officials say",
			want: 1.0,
		},
		{
			name: "overlapping token sets",
			// 8 shared tokens, 2 unique per side: 8/12.
			a:    "t1 t2 t3 t4 t5 t6 t7 t8 a1 a2",
			b:    "t1 t2 t3 t4 t5 t6 t7 t8 b1 b2",
			want: 8.0 / 12.0,
		},
		{
			name: "disjoint",
			a:    "alpha beta gamma",
			b:    "delta epsilon zeta",
			want: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa := dedupPoint("x", tt.a, 0.8, now)
			pb := dedupPoint("y", tt.b, 0.8, now)
			got := d.Similarity(pa, pb)
			if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Similarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeduper_ThresholdOutOfRangeFallsBack(t *testing.T) {
	d := NewDeduper(-1)
	now := time.Now()

	// At the default 0.85 threshold these two must still collapse.
	points := []model.DataPoint{
		dedupPoint("a", "same exact sentence repeated verbatim", 0.9, now),
		dedupPoint("b", "same exact sentence repeated verbatim", 0.5, now),
	}
	if got := d.Deduplicate(points); len(got) != 1 {
		t.Errorf("survivors = %d, want 1", len(got))
	}
}

func TestDeduper_SmallBatches(t *testing.T) {
	d := NewDeduper(0.85)

	if got := d.Deduplicate(nil); len(got) != 0 {
		t.Errorf("nil batch survivors = %d, want 0", len(got))
	}

	one := []model.DataPoint{dedupPoint("a", "only item", 0.8, time.Now())}
	if got := d.Deduplicate(one); len(got) != 1 {
		t.Errorf("single batch survivors = %d, want 1", len(got))
	}
}
