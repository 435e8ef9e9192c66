// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides rich terminal output styling for the Sentinel CLI.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters, plus
// the risk band colors the clock banner keys on.
var (
	// Primary palette (brightest to darkest)
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents

	// Dark palette (for backgrounds, muted elements)
	ColorMidnight = lipgloss.Color("#0D2F39") // Midnight - deep backgrounds
	ColorSlate    = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	// Semantic colors (keeping standard conventions for clarity)
	ColorSuccess = lipgloss.Color("#2CD7C7") // Bright teal for success
	ColorWarning = lipgloss.Color("#F4D03F") // Gold/amber for warnings
	ColorError   = lipgloss.Color("#E74C3C") // Red for errors
	ColorMuted   = lipgloss.Color("#2C4A54") // Slate for muted text

	// Risk band palette (critical to minimal)
	ColorRiskCritical = lipgloss.Color("#E74C3C") // Red - under 100 seconds
	ColorRiskSevere   = lipgloss.Color("#E67E22") // Orange
	ColorRiskHigh     = lipgloss.Color("#F4D03F") // Amber
	ColorRiskModerate = lipgloss.Color("#F7DC6F") // Pale gold
	ColorRiskLow      = lipgloss.Color("#20B9B4") // Primary teal
	ColorRiskMinimal  = lipgloss.Color("#2CD7C7") // Bright teal
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	// Text styles
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	// Box styles
	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// RiskStyle returns the foreground style for an alert level label
// ("critical" through "minimal"). Unknown labels render muted.
func RiskStyle(alert string) lipgloss.Style {
	switch alert {
	case "critical":
		return lipgloss.NewStyle().Bold(true).Foreground(ColorRiskCritical)
	case "severe":
		return lipgloss.NewStyle().Bold(true).Foreground(ColorRiskSevere)
	case "high":
		return lipgloss.NewStyle().Foreground(ColorRiskHigh)
	case "moderate":
		return lipgloss.NewStyle().Foreground(ColorRiskModerate)
	case "low":
		return lipgloss.NewStyle().Foreground(ColorRiskLow)
	case "minimal":
		return lipgloss.NewStyle().Foreground(ColorRiskMinimal)
	default:
		return Styles.Muted
	}
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
	IconClock   Icon = "◷"
	IconUp      Icon = "▲"
	IconDown    Icon = "▼"
	IconFlat    Icon = "▬"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError, IconUp:
		return Styles.Error.Render(string(i))
	case IconPending, IconFlat:
		return Styles.Muted.Render(string(i))
	case IconDown:
		return Styles.Success.Render(string(i))
	default:
		return string(i)
	}
}

// TrendIcon maps a trend label onto its icon. Rising risk renders as
// an up arrow even though the clock value moves down.
func TrendIcon(trend string) Icon {
	switch trend {
	case "increasing":
		return IconUp
	case "decreasing":
		return IconDown
	case "stable":
		return IconFlat
	default:
		return IconPending
	}
}

// Print helpers that respect the output mode

// Title prints a styled title
func Title(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func Success(text string) {
	if Plain() {
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message
func Warning(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message
func Error(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message
func Info(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text
func Muted(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Box prints text in a rounded box
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(boxWidth)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}

// boxWidth is the fixed render width for boxes and tables.
const boxWidth = 64
