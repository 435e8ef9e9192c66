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
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/pkg/ux"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/app"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/assess"
)

// runAssess executes one full assessment and renders the result.
func runAssess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if assessSeed != 0 {
		cfg.Engine.Seed = assessSeed
	}

	log := newLogger(logging.LevelWarn)
	defer log.Close()
	logger := log.Slog()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listeners := []assess.PhaseListener{func(ev assess.PhaseEvent) {
		ux.Muted("  phase: " + ev.Phase.Display())
	}}

	a, err := app.Build(ctx, cfg, app.Options{Listeners: listeners}, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ux.Title("Aleutian Sentinel")
	assessment, err := a.Assessor.Run(ctx)
	if err != nil {
		ux.Error("assessment failed: " + err.Error())
		return err
	}

	return renderAssessment(assessment)
}
