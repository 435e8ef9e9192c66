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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSentinel/pkg/ux"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// --- Global Command Variables ---
var (
	configPath string // --config path to the YAML configuration
	jsonOutput bool   // --json machine-readable output
	outputMode string // --output pretty/machine override

	// assess flags
	assessSeed int64 // --seed Monte Carlo seed override

	// history flags
	historyDays int // --days look-back window

	// baseline update flags
	baselineCategory string
	baselineScore    float64
	baselineVolume   int

	rootCmd = &cobra.Command{
		Use:   "sentinel",
		Short: "A cli for the Aleutian Sentinel risk assessment engine",
		Long: `Sentinel collects threat-related reporting from external sources,
				scores risk per category, and projects the overall score onto a
				seconds-to-midnight clock.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize output mode from flag or environment
			if outputMode != "" {
				ux.SetMode(ux.ParseMode(outputMode))
			} else {
				ux.InitMode()
			}
			if jsonOutput {
				ux.SetMode(ux.ModeMachine)
			}
		},
	}

	// --- Assessment ---
	assessCmd = &cobra.Command{
		Use:   "assess",
		Short: "Run one full assessment and print the result",
		RunE:  runAssess, // Defined in cmd_assess.go
	}

	showCmd = &cobra.Command{
		Use:   "show [assessment-id]",
		Short: "Show a stored assessment (defaults to the latest)",
		RunE:  runShow, // Defined in cmd_show.go
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List stored assessments over a look-back window",
		RunE:  runHistory, // Defined in cmd_show.go
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the sentinel HTTP service",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- Baseline Maintenance ---
	baselineCmd = &cobra.Command{
		Use:   "baseline",
		Short: "Manage the historical baseline store",
	}
	baselineUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "Fold one observed score into a category's rolling baseline",
		Long: `baseline update implements the scheduled prior-maintenance job.
				It is never called inside an assessment run; assessments read
				the most recently committed baseline only.`,
		RunE: runBaselineUpdate, // Defined in cmd_baseline.go
	}
	baselineShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print every category's current baseline moments",
		RunE:  runBaselineShow, // Defined in cmd_baseline.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the sentinel version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the sentinel config file (default: ~/.sentinel/sentinel.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Output as JSON for scripting")
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output mode: pretty or machine (default: auto-detect)")

	assessCmd.Flags().Int64Var(&assessSeed, "seed", 0,
		"Monte Carlo seed for reproducible simulation (0 = random)")

	historyCmd.Flags().IntVar(&historyDays, "days", 7,
		"Look-back window in days")

	baselineUpdateCmd.Flags().StringVar(&baselineCategory, "category", "",
		"Risk category to update (required)")
	baselineUpdateCmd.Flags().Float64Var(&baselineScore, "score", -1,
		"Observed category score in [0,1] (required)")
	baselineUpdateCmd.Flags().IntVar(&baselineVolume, "volume", -1,
		"Observed data-point volume (-1 skips the volume moments)")
	_ = baselineUpdateCmd.MarkFlagRequired("category")
	_ = baselineUpdateCmd.MarkFlagRequired("score")

	baselineCmd.AddCommand(baselineUpdateCmd)
	baselineCmd.AddCommand(baselineShowCmd)

	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(baselineCmd)
	rootCmd.AddCommand(versionCmd)
}
