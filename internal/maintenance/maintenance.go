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
// Package maintenance implements Scheduled Maintenance (spec section
// 4.M): the daily incremental update across active symbols and the
// periodic adjustment scan, both cron-triggered.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/quantledger/ohlcv-coverage/internal/adjustment"
	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/store"
)

// DefaultLookbackDays is "K" in spec 4.M's daily incremental update.
const DefaultLookbackDays = 7

// DefaultBatchSize bounds how many symbols one daily run submits jobs
// for in a single pass.
const DefaultBatchSize = 200

// DefaultJobCleanupDays is how long a terminal FetchJob is retained
// before CleanupJobs removes it.
const DefaultJobCleanupDays = 90

// DailyPlanEntry is one symbol's submission plan, returned by RunDaily
// in dry-run mode and actually submitted by it otherwise.
type DailyPlanEntry struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// DailyReport aggregates one daily-update run.
type DailyReport struct {
	Planned []DailyPlanEntry
	JobIDs  []string
	Failed  []string
}

// ScanReport aggregates one adjustment-scan run.
type ScanReport struct {
	Reports map[string]adjustment.Report
	Fixed   []string
	Failed  []string
}

// Maintenance wires the Fetch Job Store, symbol listing and the
// Adjustment Detector/Fixer into the two scheduled triggers.
type Maintenance struct {
	Store          *store.Store
	Detector       *adjustment.Detector
	Fixer          *adjustment.Fixer
	LookbackDays   int
	BatchSize      int
	JobCleanupDays int
}

// New builds a Maintenance runner with spec defaults.
func New(st *store.Store, detector *adjustment.Detector, fixer *adjustment.Fixer) *Maintenance {
	return &Maintenance{
		Store:          st,
		Detector:       detector,
		Fixer:          fixer,
		LookbackDays:   DefaultLookbackDays,
		BatchSize:      DefaultBatchSize,
		JobCleanupDays: DefaultJobCleanupDays,
	}
}

// CleanupJobs removes terminal FetchJobs older than JobCleanupDays,
// bounding how long the fetch_jobs table grows (spec's FETCH_JOB_CLEANUP_DAYS).
func (m *Maintenance) CleanupJobs(ctx context.Context) (int64, error) {
	return m.Store.CleanupOldJobs(ctx, m.JobCleanupDays)
}

// RunDaily lists active symbols and submits FetchJobs covering
// [today-K, today-1] in batches, or returns the plan without submitting
// when dryRun is true (spec 4.M).
func (m *Maintenance) RunDaily(ctx context.Context, dryRun bool) (DailyReport, error) {
	symbols, err := m.Store.ListActiveSymbols(ctx)
	if err != nil {
		return DailyReport{}, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -m.LookbackDays)
	to := today.AddDate(0, 0, -1)

	var report DailyReport
	batch := make([]string, 0, m.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		for _, entry := range batch {
			report.Planned = append(report.Planned, DailyPlanEntry{Symbol: entry, From: from, To: to})
		}
		if dryRun {
			batch = batch[:0]
			return nil
		}

		jobID, err := m.Store.CreateJob(ctx, &model.FetchJob{
			Symbols:   append([]string(nil), batch...),
			DateFrom:  from,
			DateTo:    to,
			Interval:  "daily",
			Priority:  model.PriorityNormal,
			CreatedBy: "scheduled-maintenance",
		})
		if err != nil {
			report.Failed = append(report.Failed, batch...)
			batch = batch[:0]
			return err
		}
		report.JobIDs = append(report.JobIDs, jobID)
		batch = batch[:0]
		return nil
	}

	for _, s := range symbols {
		batch = append(batch, s.Symbol)
		if len(batch) >= m.BatchSize {
			if err := flush(); err != nil {
				log.Error().Err(err).Msg("daily maintenance batch submission failed")
			}
		}
	}
	if err := flush(); err != nil {
		log.Error().Err(err).Msg("daily maintenance final batch submission failed")
	}

	return report, nil
}

// RunAdjustmentScan runs the Adjustment Detector over symbols (all
// active if empty), optionally invoking the Fixer immediately on
// flagged symbols (spec 4.M).
func (m *Maintenance) RunAdjustmentScan(ctx context.Context, symbols []string, autoFix bool) (ScanReport, error) {
	reports, err := m.Detector.ScanAllSymbols(ctx, symbols, m.Fixer, autoFix)

	scan := ScanReport{Reports: reports}
	for sym, r := range reports {
		if autoFix && r.NeedsRefresh {
			scan.Fixed = append(scan.Fixed, sym)
		}
	}
	if err != nil {
		scan.Failed = append(scan.Failed, err.Error())
	}

	return scan, err
}

// Scheduler wires RunDaily and RunAdjustmentScan onto a robfig/cron
// schedule, sourced from the aristath-sentinel sibling example in the
// retrieval pack (the teacher itself has no generic cron scheduler — its
// "run as daemon" TODO in cmd/run.go is exactly the gap this fills).
type Scheduler struct {
	cron *cron.Cron
	m    *Maintenance
}

// NewScheduler builds an unstarted Scheduler.
func NewScheduler(m *Maintenance) *Scheduler {
	return &Scheduler{cron: cron.New(), m: m}
}

// ScheduleDaily registers the daily incremental update on spec, a
// standard 5-field cron expression (e.g. "0 6 * * *" for 06:00 daily).
func (s *Scheduler) ScheduleDaily(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		report, err := s.m.RunDaily(ctx, false)
		if err != nil {
			log.Error().Err(err).Msg("scheduled daily maintenance run failed")
			return
		}
		log.Info().Int("symbols", len(report.Planned)).Int("jobs", len(report.JobIDs)).Msg("scheduled daily maintenance run completed")
	})
	if err != nil {
		return fmt.Errorf("schedule daily maintenance: %w", err)
	}
	return nil
}

// ScheduleAdjustmentScan registers the periodic adjustment scan on spec.
func (s *Scheduler) ScheduleAdjustmentScan(ctx context.Context, spec string, autoFix bool) error {
	_, err := s.cron.AddFunc(spec, func() {
		report, err := s.m.RunAdjustmentScan(ctx, nil, autoFix)
		if err != nil {
			log.Error().Err(err).Msg("scheduled adjustment scan failed")
			return
		}
		log.Info().Int("symbols", len(report.Reports)).Int("fixed", len(report.Fixed)).Msg("scheduled adjustment scan completed")
	})
	if err != nil {
		return fmt.Errorf("schedule adjustment scan: %w", err)
	}
	return nil
}

// ScheduleJobCleanup registers the retention sweep for terminal
// FetchJobs on spec.
func (s *Scheduler) ScheduleJobCleanup(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() {
		removed, err := s.m.CleanupJobs(ctx)
		if err != nil {
			log.Error().Err(err).Msg("scheduled fetch job cleanup failed")
			return
		}
		log.Info().Int64("removed", removed).Msg("scheduled fetch job cleanup completed")
	})
	if err != nil {
		return fmt.Errorf("schedule fetch job cleanup: %w", err)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until in-flight jobs complete, then stops the scheduler.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }
