// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FormatClock renders a seconds-to-midnight reading as a clock face
// offset, e.g. 89 -> "23:58:31" with 89 seconds remaining.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	remaining := seconds
	h := 23 - remaining/3600
	remaining %= 3600
	m := 59 - remaining/60
	s := 60 - remaining%60
	if s == 60 {
		s = 0
		m++
	}
	if m == 60 {
		m = 0
		h++
	}
	if h == 24 {
		h = 0 // midnight itself
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ClockBanner renders the seconds-to-midnight headline for an
// assessment. The alert label picks the banner color.
func ClockBanner(seconds int, alert string) string {
	headline := fmt.Sprintf("%d seconds to midnight", seconds)
	if Plain() {
		return fmt.Sprintf("%s (%s, %s)", headline, FormatClock(seconds), alert)
	}

	style := RiskStyle(alert)
	banner := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(style.GetForeground()).
		Padding(0, 2).
		Width(boxWidth)

	lines := []string{
		style.Render(string(IconClock) + " " + headline),
		Styles.Muted.Render(fmt.Sprintf("clock reads %s · alert level %s", FormatClock(seconds), alert)),
	}
	return banner.Render(strings.Join(lines, "\n"))
}

// Row is one label/value line of a detail table.
type Row struct {
	Label string
	Value string
}

// DetailTable renders aligned label/value rows. Machine mode emits
// tab-separated lines instead.
func DetailTable(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	if Plain() {
		var b strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&b, "%s\t%s\n", r.Label, r.Value)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	width := 0
	for _, r := range rows {
		if len(r.Label) > width {
			width = len(r.Label)
		}
	}
	var b strings.Builder
	for i, r := range rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(Styles.Muted.Render(fmt.Sprintf("%-*s", width+2, r.Label)))
		b.WriteString(r.Value)
	}
	return b.String()
}

// FactorRow is one line of the ranked factor table.
type FactorRow struct {
	Name       string
	Category   string
	Value      float64
	Confidence string
}

// FactorTable renders ranked risk factors, highest contribution first.
// Callers pass factors pre-sorted; the table never reorders.
func FactorTable(rows []FactorRow) string {
	if len(rows) == 0 {
		return ""
	}
	if Plain() {
		var b strings.Builder
		for _, r := range rows {
			fmt.Fprintf(&b, "%.3f\t%s\t%s\t%s\n", r.Value, r.Confidence, r.Category, r.Name)
		}
		return strings.TrimRight(b.String(), "\n")
	}

	var b strings.Builder
	b.WriteString(Styles.Subtitle.Render("  value  confidence  factor"))
	for _, r := range rows {
		b.WriteByte('\n')
		bar := valueBar(r.Value, 7)
		b.WriteString(fmt.Sprintf("  %s  %-10s  %s %s",
			bar,
			r.Confidence,
			Styles.Bold.Render(r.Name),
			Styles.Muted.Render("("+r.Category+")"),
		))
	}
	return b.String()
}

// valueBar renders a fixed-width block bar for a value in [0,1].
func valueBar(v float64, width int) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*float64(width) + 0.5)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case v >= 0.7:
		return Styles.Error.Render(bar)
	case v >= 0.4:
		return Styles.Warning.Render(bar)
	default:
		return Styles.Success.Render(bar)
	}
}
