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
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// OutputMode selects how much styling the CLI emits.
type OutputMode string

const (
	// ModePretty enables colors, icons, and box rendering.
	ModePretty OutputMode = "pretty"

	// ModeMachine outputs plain text suitable for scripting and
	// parsing. Selected automatically when stdout is not a terminal.
	ModeMachine OutputMode = "machine"
)

var (
	currentMode = ModePretty
	modeMu      sync.RWMutex
)

// Mode returns the active output mode.
func Mode() OutputMode {
	modeMu.RLock()
	defer modeMu.RUnlock()
	return currentMode
}

// SetMode overrides the active output mode.
func SetMode(m OutputMode) {
	modeMu.Lock()
	defer modeMu.Unlock()
	currentMode = m
}

// ParseMode converts a string to an OutputMode. Unknown values fall
// back to pretty.
func ParseMode(s string) OutputMode {
	switch strings.ToLower(s) {
	case "machine", "plain", "quiet", "q":
		return ModeMachine
	default:
		return ModePretty
	}
}

// InitMode initializes the output mode from the environment: the
// SENTINEL_OUTPUT variable wins, otherwise a non-terminal stdout
// selects machine output so piped invocations stay parseable.
func InitMode() {
	if env := os.Getenv("SENTINEL_OUTPUT"); env != "" {
		SetMode(ParseMode(env))
		return
	}
	if !isTerminal() {
		SetMode(ModeMachine)
		return
	}
	SetMode(ModePretty)
}

// isTerminal checks if stdout is a terminal (including Cygwin ptys).
func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Plain reports whether output should skip all styling.
func Plain() bool {
	return Mode() == ModeMachine
}
