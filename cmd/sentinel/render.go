// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/AleutianSentinel/pkg/ux"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// maxRenderedFactors bounds the factor table; the full list is always
// available via --json.
const maxRenderedFactors = 10

// renderAssessment prints one assessment, honoring --json.
func renderAssessment(a *model.RiskAssessment) error {
	if jsonOutput {
		return printJSON(a)
	}

	fmt.Println(ux.ClockBanner(a.SecondsToMidnight, string(a.AlertLevel)))

	rows := []ux.Row{
		{Label: "overall score", Value: fmt.Sprintf("%.3f", a.Score)},
		{Label: "confidence", Value: fmt.Sprintf("%s (%.2f)", a.Confidence.Display(), a.ConfidenceValue)},
		{Label: "trend", Value: ux.TrendIcon(string(a.Trend)).Render() + " " + a.Trend.Display()},
		{Label: "simulation", Value: fmt.Sprintf("%d draws, %.0f%% CI [%.3f, %.3f]",
			a.Simulation.Iterations, a.Simulation.Interval.Level,
			a.Simulation.Interval.Lower, a.Simulation.Interval.Upper)},
		{Label: "data points", Value: fmt.Sprintf("%d from %d sources",
			a.Metadata.DataPointCount, a.Metadata.SuccessfulSources)},
		{Label: "created", Value: a.CreatedAt.Format(time.RFC3339)},
		{Label: "id", Value: a.ID},
	}
	fmt.Println(ux.DetailTable(rows))

	if len(a.Metadata.FailedSources) > 0 {
		for _, f := range a.Metadata.FailedSources {
			ux.Warning(fmt.Sprintf("source %s failed: %s", f.Source, f.Reason))
		}
	}
	if a.Metadata.DegradedConfidence {
		ux.Warning("confidence degraded: " + joinReasons(a.Metadata.DegradedReasons))
	}

	if len(a.Factors) > 0 {
		fmt.Println()
		ux.Title("Top risk factors")
		fmt.Println(ux.FactorTable(factorRows(a.Factors)))
	}

	for _, an := range a.Analyses {
		if an.Summary == "" {
			continue
		}
		fmt.Println()
		ux.Box(an.Category.Display(), an.Summary)
	}
	return nil
}

func factorRows(factors []model.RiskFactor) []ux.FactorRow {
	n := len(factors)
	if n > maxRenderedFactors {
		n = maxRenderedFactors
	}
	rows := make([]ux.FactorRow, 0, n)
	for _, f := range factors[:n] {
		rows = append(rows, ux.FactorRow{
			Name:       f.Name,
			Category:   string(f.Category),
			Value:      f.Value,
			Confidence: string(f.Confidence),
		})
	}
	return rows
}

func joinReasons(reasons []string) string {
	if len(reasons) == 0 {
		return "partial collection failure"
	}
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
