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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/pkg/ux"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/app"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// runShow loads one stored assessment by id, or the latest when no id
// is given, and renders it exactly like a fresh run.
func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(logging.LevelWarn)
	defer log.Close()
	logger := log.Slog()

	st, bl, err := app.OpenStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = bl.Close()
		_ = st.Close()
	}()

	ctx := context.Background()
	var assessment *model.RiskAssessment
	if len(args) == 0 || args[0] == "latest" {
		assessment, err = st.Latest(ctx)
	} else {
		assessment, err = st.Get(ctx, args[0])
	}
	if err != nil {
		return err
	}
	return renderAssessment(assessment)
}

// runHistory lists stored assessments newest-first over --days.
func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(logging.LevelWarn)
	defer log.Close()
	logger := log.Slog()

	st, bl, err := app.OpenStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = bl.Close()
		_ = st.Close()
	}()

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -historyDays)
	assessments, err := st.QueryHistory(context.Background(), from, to)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(assessments)
	}
	if len(assessments) == 0 {
		ux.Info(fmt.Sprintf("no assessments in the last %d days", historyDays))
		return nil
	}

	rows := make([]ux.Row, 0, len(assessments))
	for i := len(assessments) - 1; i >= 0; i-- {
		a := assessments[i]
		rows = append(rows, ux.Row{
			Label: a.CreatedAt.Format("2006-01-02 15:04"),
			Value: fmt.Sprintf("%s %s  score %.3f  %s  %s",
				ux.FormatClock(a.SecondsToMidnight),
				ux.IconClock.Render(),
				a.Score,
				a.AlertLevel.Display(),
				a.ID),
		})
	}
	fmt.Println(ux.DetailTable(rows))
	return nil
}
