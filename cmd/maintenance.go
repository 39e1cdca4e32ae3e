// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quantledger/ohlcv-coverage/internal/maintenance"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run or schedule the incremental update and adjustment scan",
}

var maintenanceDryRun bool

var runDailyCmd = &cobra.Command{
	Use:   "run-daily",
	Short: "Submit the daily incremental-update FetchJobs for every active symbol",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Maint.RunDaily(ctx, maintenanceDryRun)
		if err != nil {
			return err
		}

		if maintenanceDryRun {
			fmt.Printf("would submit %d symbols\n", len(report.Planned))
		} else {
			fmt.Printf("submitted %d jobs covering %d symbols\n", len(report.JobIDs), len(report.Planned))
		}
		if len(report.Failed) > 0 {
			log.Warn().Strs("symbols", report.Failed).Msg("some symbols failed to submit")
		}
		return nil
	},
}

var (
	scanSymbols string
	scanAutoFix bool
)

var scanAdjustmentsCmd = &cobra.Command{
	Use:   "scan-adjustments",
	Short: "Run the Adjustment Detector over symbols, optionally auto-fixing flagged ones",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.Settings.AdjustmentCheckEnabled {
			return fmt.Errorf("adjustment checking is disabled (ADJUSTMENT_CHECK_ENABLED=false)")
		}

		var symbols []string
		if scanSymbols != "" {
			for _, s := range strings.Split(scanSymbols, ",") {
				if s = strings.TrimSpace(s); s != "" {
					symbols = append(symbols, strings.ToUpper(s))
				}
			}
		}

		autoFix := scanAutoFix || a.Settings.AdjustmentAutoFix
		report, err := a.Maint.RunAdjustmentScan(ctx, symbols, autoFix)
		if err != nil {
			log.Error().Err(err).Msg("adjustment scan completed with errors")
		}

		for sym, r := range report.Reports {
			if r.InsufficientData {
				fmt.Printf("%s: insufficient data to compare\n", sym)
				continue
			}
			fmt.Printf("%s: max_diff=%.4f%% needs_refresh=%v\n", sym, r.MaxPctDiff, r.NeedsRefresh)
		}
		if len(report.Fixed) > 0 {
			fmt.Printf("auto-fixed: %s\n", strings.Join(report.Fixed, ", "))
		}
		return nil
	},
}

var cleanupJobsCmd = &cobra.Command{
	Use:   "cleanup-jobs",
	Short: "Delete terminal FetchJobs older than the retention window",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.Maint.CleanupJobs(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("removed %d jobs older than %d days\n", removed, a.Maint.JobCleanupDays)
		return nil
	},
}

var schedulerDailySpec, schedulerScanSpec, schedulerCleanupSpec string

var scheduleCmd = &cobra.Command{
	Use:   "serve-scheduler",
	Short: "Run the daily update and adjustment scan on a cron schedule until stopped",
	RunE: func(c *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		scheduler := maintenance.NewScheduler(a.Maint)
		if err := scheduler.ScheduleDaily(ctx, schedulerDailySpec); err != nil {
			return err
		}
		if err := scheduler.ScheduleAdjustmentScan(ctx, schedulerScanSpec, a.Settings.AdjustmentAutoFix); err != nil {
			return err
		}
		if err := scheduler.ScheduleJobCleanup(ctx, schedulerCleanupSpec); err != nil {
			return err
		}

		scheduler.Start()
		log.Info().Str("daily", schedulerDailySpec).Str("scan", schedulerScanSpec).Str("cleanup", schedulerCleanupSpec).Msg("maintenance scheduler started")

		<-ctx.Done()
		log.Info().Msg("maintenance scheduler shutting down")
		scheduler.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(maintenanceCmd)
	maintenanceCmd.AddCommand(runDailyCmd)
	maintenanceCmd.AddCommand(scanAdjustmentsCmd)
	maintenanceCmd.AddCommand(scheduleCmd)
	maintenanceCmd.AddCommand(cleanupJobsCmd)

	runDailyCmd.Flags().BoolVar(&maintenanceDryRun, "dry-run", false, "print the plan without submitting jobs")
	scanAdjustmentsCmd.Flags().StringVar(&scanSymbols, "symbols", "", "comma-separated symbols (default: all active symbols)")
	scanAdjustmentsCmd.Flags().BoolVar(&scanAutoFix, "auto-fix", false, "immediately fix symbols flagged as needing refresh")
	scheduleCmd.Flags().StringVar(&schedulerDailySpec, "daily-cron", "0 6 * * *", "cron expression for the daily incremental update")
	scheduleCmd.Flags().StringVar(&schedulerScanSpec, "scan-cron", "0 7 * * 0", "cron expression for the adjustment scan")
	scheduleCmd.Flags().StringVar(&schedulerCleanupSpec, "cleanup-cron", "0 3 * * *", "cron expression for the fetch job retention sweep")
}
