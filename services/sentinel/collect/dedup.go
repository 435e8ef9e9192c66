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
	"crypto/sha256"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Deduper removes near-duplicate data points from a collection batch.
//
// # Description
//
// Two points are duplicates when the similarity of their normalized text
// meets or exceeds the threshold. Normalization lowercases, strips
// punctuation, and collapses whitespace; identical normalized text
// short-circuits by SHA-256 hash as similarity 1.0, otherwise similarity
// is the Jaccard index over the normalized token sets.
//
// Of a duplicate pair, the point from the higher-reliability source
// survives; on a reliability tie the earlier CollectedAt survives.
//
// # Thread Safety
//
// Deduper is stateless after construction and safe for concurrent use.
type Deduper struct {
	threshold float64
}

// DefaultSimilarityThreshold marks pairs as duplicates when their
// normalized text overlaps at least this much.
const DefaultSimilarityThreshold = 0.85

// NewDeduper creates a Deduper. Thresholds outside (0, 1] fall back to
// DefaultSimilarityThreshold.
func NewDeduper(threshold float64) *Deduper {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduper{threshold: threshold}
}

// dedupDoc carries the precomputed comparison state for one point.
type dedupDoc struct {
	point  model.DataPoint
	hash   [sha256.Size]byte
	tokens map[string]struct{}
}

// Deduplicate returns the batch with duplicate pairs collapsed to their
// surviving point. Output order follows first appearance of each
// surviving cluster; a later, better point replaces its cluster's slot
// in place, so the result is deterministic for a given input order.
func (d *Deduper) Deduplicate(points []model.DataPoint) []model.DataPoint {
	if len(points) < 2 {
		return points
	}

	survivors := make([]*dedupDoc, 0, len(points))

	for i := range points {
		doc := newDedupDoc(points[i])

		matched := false
		for j, s := range survivors {
			if docSimilarity(doc, s) < d.threshold {
				continue
			}
			if prefer(doc.point, s.point) {
				survivors[j] = doc
			}
			matched = true
			break
		}
		if !matched {
			survivors = append(survivors, doc)
		}
	}

	out := make([]model.DataPoint, len(survivors))
	for i, s := range survivors {
		out[i] = s.point
	}
	return out
}

// Similarity reports the content similarity of two points in [0, 1].
func (d *Deduper) Similarity(a, b model.DataPoint) float64 {
	return docSimilarity(newDedupDoc(a), newDedupDoc(b))
}

func newDedupDoc(p model.DataPoint) *dedupDoc {
	normalized := normalizeText(comparableText(p))
	return &dedupDoc{
		point:  p,
		hash:   sha256.Sum256([]byte(normalized)),
		tokens: tokenSet(normalized),
	}
}

func docSimilarity(a, b *dedupDoc) float64 {
	if a.hash == b.hash {
		return 1.0
	}
	return jaccard(a.tokens, b.tokens)
}

// prefer reports whether candidate should replace incumbent as the
// surviving point of a duplicate pair.
func prefer(candidate, incumbent model.DataPoint) bool {
	if candidate.Reliability != incumbent.Reliability {
		return candidate.Reliability > incumbent.Reliability
	}
	return candidate.CollectedAt.Before(incumbent.CollectedAt)
}

// comparableText picks the text a point is identified by. Feed items
// sometimes arrive with an empty body, so the title stands in.
func comparableText(p model.DataPoint) string {
	if strings.TrimSpace(p.Content) != "" {
		return p.Content
	}
	return p.Title
}

// normalizeText lowercases, strips punctuation, and collapses whitespace.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func tokenSet(normalized string) map[string]struct{} {
	fields := strings.Fields(normalized)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes |A ∩ B| / |A ∪ B| over token sets.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
