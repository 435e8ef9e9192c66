// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

// AlertLevel buckets a seconds-to-midnight reading for notification
// routing and CLI banner colors.
type AlertLevel string

const (
	AlertCritical AlertLevel = "critical"
	AlertSevere   AlertLevel = "severe"
	AlertHigh     AlertLevel = "high"
	AlertModerate AlertLevel = "moderate"
	AlertLow      AlertLevel = "low"
	AlertMinimal  AlertLevel = "minimal"
)

// Seconds-to-midnight thresholds for each alert level. A reading below
// the threshold lands in that level; readings of 900 and above are
// Minimal.
const (
	alertCriticalBelow = 100
	alertSevereBelow   = 200
	alertHighBelow     = 400
	alertModerateBelow = 600
	alertLowBelow      = 900
)

// AlertFromSeconds maps a clamped seconds-to-midnight value onto an
// AlertLevel.
func AlertFromSeconds(seconds int) AlertLevel {
	s := ClampSeconds(seconds)
	switch {
	case s < alertCriticalBelow:
		return AlertCritical
	case s < alertSevereBelow:
		return AlertSevere
	case s < alertHighBelow:
		return AlertHigh
	case s < alertModerateBelow:
		return AlertModerate
	case s < alertLowBelow:
		return AlertLow
	default:
		return AlertMinimal
	}
}

// Display returns a human-readable label.
func (a AlertLevel) Display() string {
	switch a {
	case AlertCritical:
		return "CRITICAL"
	case AlertSevere:
		return "Severe"
	case AlertHigh:
		return "High"
	case AlertModerate:
		return "Moderate"
	case AlertLow:
		return "Low"
	case AlertMinimal:
		return "Minimal"
	default:
		return string(a)
	}
}
