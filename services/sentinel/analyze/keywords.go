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
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// NuclearKeywords are the primary escalation terms. They weigh double
// in relevance scoring.
var NuclearKeywords = []string{
	"nuclear weapons",
	"doomsday clock",
	"ICBM",
	"nuclear threat",
	"arms control",
	"START treaty",
	"nuclear doctrine",
	"deterrence",
	"missile test",
	"warhead",
	"uranium enrichment",
	"plutonium",
	"nuclear submarine",
	"strategic forces",
	"tactical nuclear",
}

// GeopoliticalKeywords are the secondary tension terms.
var GeopoliticalKeywords = []string{
	"NATO",
	"Russia Ukraine",
	"Taiwan",
	"China military",
	"North Korea",
	"Iran nuclear",
	"India Pakistan",
	"Middle East conflict",
	"sanctions",
	"military exercises",
	"airspace violation",
	"diplomatic crisis",
}

// NuclearNations are the nine states with nuclear arsenals.
var NuclearNations = []string{
	"United States",
	"Russia",
	"China",
	"United Kingdom",
	"France",
	"India",
	"Pakistan",
	"Israel",
	"North Korea",
}

// ContentFilter scores text against the keyword lists. Each keyword is
// matched case-insensitively on word boundaries and counts at most
// once per text.
//
// # Thread Safety
//
// Safe for concurrent use after construction.
type ContentFilter struct {
	nuclear      []keywordPattern
	geopolitical []keywordPattern
}

type keywordPattern struct {
	keyword string
	re      *regexp.Regexp
}

func compileKeywords(keywords []string) []keywordPattern {
	patterns := make([]keywordPattern, 0, len(keywords))
	for _, k := range keywords {
		patterns = append(patterns, keywordPattern{
			keyword: k,
			re:      regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
		})
	}
	return patterns
}

// NewContentFilter compiles the keyword lists.
func NewContentFilter() *ContentFilter {
	return &ContentFilter{
		nuclear:      compileKeywords(NuclearKeywords),
		geopolitical: compileKeywords(GeopoliticalKeywords),
	}
}

// IsRelevant reports whether the text matches any keyword.
func (f *ContentFilter) IsRelevant(content string) bool {
	for _, p := range f.nuclear {
		if p.re.MatchString(content) {
			return true
		}
	}
	for _, p := range f.geopolitical {
		if p.re.MatchString(content) {
			return true
		}
	}
	return false
}

// RelevanceScore returns a weighted match density in [0,1]. Nuclear
// keywords count double against the combined ceiling.
func (f *ContentFilter) RelevanceScore(content string) float64 {
	var nuclearMatches, geoMatches int
	for _, p := range f.nuclear {
		if p.re.MatchString(content) {
			nuclearMatches++
		}
	}
	for _, p := range f.geopolitical {
		if p.re.MatchString(content) {
			geoMatches++
		}
	}
	if nuclearMatches+geoMatches == 0 {
		return 0
	}

	weighted := float64(nuclearMatches)*2 + float64(geoMatches)
	ceiling := float64(len(NuclearKeywords)*2 + len(GeopoliticalKeywords))
	return model.Clamp01(weighted / ceiling)
}

// ExtractKeywords returns the keywords present in the text, nuclear
// terms first, each in its canonical casing.
func (f *ContentFilter) ExtractKeywords(content string) []string {
	var matched []string
	for _, p := range f.nuclear {
		if p.re.MatchString(content) {
			matched = append(matched, p.keyword)
		}
	}
	for _, p := range f.geopolitical {
		if p.re.MatchString(content) {
			matched = append(matched, p.keyword)
		}
	}
	return matched
}

// categoryQueryTerms select the search terms each category's
// collectors query for. Most terms come from the keyword lists; the
// categories those lists never covered carry literal terms instead.
var categoryQueryTerms = map[model.RiskCategory][]string{
	model.CategoryNuclearArsenal:    {"nuclear weapons", "warhead", "ICBM", "nuclear submarine", "strategic forces", "tactical nuclear"},
	model.CategoryRegionalConflicts: {"Russia Ukraine", "Taiwan", "China military", "North Korea", "India Pakistan", "Middle East conflict"},
	model.CategoryLeadership:        {"nuclear threat", "nuclear doctrine", "diplomatic crisis"},
	model.CategoryArmsControl:       {"arms control", "START treaty", "deterrence", "uranium enrichment", "plutonium"},
	model.CategoryTechnicalIncident: {"missile test", "airspace violation", "false alarm missile"},
	model.CategoryCommunications:    {"diplomatic crisis", "nuclear hotline", "military talks suspended"},
	model.CategoryEconomicPressure:  {"sanctions", "Iran nuclear", "trade embargo"},
	model.CategoryEmergingTech:      {"hypersonic missile", "space weapon", "cyber attack nuclear", "autonomous weapons"},
}

// QueryForCategory builds the quoted OR-joined search string a
// collector should use for the category.
func QueryForCategory(cat model.RiskCategory) (string, error) {
	terms, ok := categoryQueryTerms[cat]
	if !ok {
		return "", fmt.Errorf("no query terms for category %q", cat)
	}
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+t+`"`)
	}
	return strings.Join(quoted, " OR "), nil
}

// categoryMatchers support inferring a category for untagged points.
var categoryMatchers = func() map[model.RiskCategory][]keywordPattern {
	m := make(map[model.RiskCategory][]keywordPattern, len(categoryQueryTerms))
	for cat, terms := range categoryQueryTerms {
		m[cat] = compileKeywords(terms)
	}
	return m
}()

// matchesCategory reports whether the text names any of the category's
// query terms.
func matchesCategory(cat model.RiskCategory, text string) bool {
	for _, p := range categoryMatchers[cat] {
		if p.re.MatchString(text) {
			return true
		}
	}
	return false
}
