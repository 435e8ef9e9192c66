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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSentinel/pkg/logging"
	"github.com/AleutianAI/AleutianSentinel/pkg/ux"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/app"
	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// runBaselineUpdate folds one observed score (and optionally a volume)
// into a category's rolling baseline. This is the scheduled prior
// maintenance entry point; assessments never write baselines.
func runBaselineUpdate(cmd *cobra.Command, args []string) error {
	cat, err := model.ParseCategory(baselineCategory)
	if err != nil {
		return err
	}

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

	b, err := bl.Update(context.Background(), cat, baselineScore, baselineVolume)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(b)
	}
	ux.Success(fmt.Sprintf("%s baseline updated: mean %.4f, variance %.6f, n=%d",
		cat.Display(), b.Mean, b.Variance, b.SampleCount))
	return nil
}

// runBaselineShow prints the current baseline moments for every
// category, including the ones with no history yet.
func runBaselineShow(cmd *cobra.Command, args []string) error {
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

	snap, err := bl.Snapshot(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(snap)
	}

	rows := make([]ux.Row, 0, len(snap))
	for _, cat := range model.AllCategories() {
		b := snap[cat]
		value := "no history"
		if b.SampleCount > 0 {
			value = fmt.Sprintf("mean %.4f  variance %.6f  n=%d  updated %s",
				b.Mean, b.Variance, b.SampleCount, b.UpdatedAt.Format("2006-01-02"))
		}
		rows = append(rows, ux.Row{Label: cat.Display(), Value: value})
	}
	fmt.Println(ux.DetailTable(rows))
	return nil
}
