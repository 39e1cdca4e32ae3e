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
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/quantledger/ohlcv-coverage/internal/adjustment"
	"github.com/quantledger/ohlcv-coverage/internal/backoff"
	"github.com/quantledger/ohlcv-coverage/internal/config"
	"github.com/quantledger/ohlcv-coverage/internal/coverage"
	"github.com/quantledger/ohlcv-coverage/internal/db"
	"github.com/quantledger/ohlcv-coverage/internal/maintenance"
	"github.com/quantledger/ohlcv-coverage/internal/provider"
	"github.com/quantledger/ohlcv-coverage/internal/segment"
	"github.com/quantledger/ohlcv-coverage/internal/store"
	"github.com/quantledger/ohlcv-coverage/internal/worker"
)

// app bundles the fully-wired collaborators every subcommand needs,
// generalizing the teacher's per-command "load the library" boilerplate
// (cmd/run.go) into one bootstrap shared across subcommands.
type app struct {
	Settings config.Settings
	Store    *store.Store
	Fetcher  provider.Fetcher
	Renames  *segment.Cache
	Engine   *coverage.Engine
	Reader   *coverage.Reader
	Detector *adjustment.Detector
	Fixer    *adjustment.Fixer
	Worker   *worker.Worker
	Maint    *maintenance.Maintenance
}

// newApp runs migrations, connects to Postgres and wires the coverage,
// adjustment and worker stacks from Settings.
func newApp(ctx context.Context) (*app, error) {
	settings := config.Load(viper.GetViper())
	if settings.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (set DATABASE_URL or --database-url)")
	}

	if err := db.Migrate(settings.DatabaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	st, err := store.Connect(ctx, settings.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	md, err := provider.NewMarketData(settings.YFBaseURL, settings.YFAPIKey)
	if err != nil {
		return nil, fmt.Errorf("build upstream provider: %w", err)
	}

	policy := backoff.DefaultPolicy()
	policy.MaxAttempts = settings.FetchMaxRetries
	if settings.FetchBackoffMaxSeconds > 0 {
		policy.Max = secondsToDuration(settings.FetchBackoffMaxSeconds)
	}

	fetcher := provider.NewRateLimited(
		md,
		settings.YFRateLimitRequestsPerSecond,
		settings.YFRateLimitBurstSize,
		settings.YFReqConcurrency,
		policy,
	)

	if err := st.EnsureLibrary(ctx, libraryName); err != nil {
		log.Warn().Err(err).Msg("failed to record library identity")
	}

	renames := segment.NewCache(st.ListSymbolChanges)
	if err := renames.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("initial symbol rename cache refresh failed, starting empty")
	}

	engine := coverage.NewEngine(st, fetcher, renames)
	if settings.YFRefetchDays > 0 {
		engine.RefetchDays = settings.YFRefetchDays
	}
	engine.AutoRegister = settings.EnableAutoRegistration
	engine.ValidateTimeout = settings.YFValidateTimeout
	reader := coverage.NewReader(engine)

	detector := adjustment.NewDetector(st, fetcher)
	if settings.AdjustmentSamplePoints > 0 {
		detector.SampleCount = settings.AdjustmentSamplePoints
	}
	if settings.AdjustmentMinDataAgeDays > 0 {
		detector.MinAgeDays = settings.AdjustmentMinDataAgeDays
	}
	if settings.AdjustmentMinThresholdPct > 0 {
		detector.Threshold = decimal.NewFromFloat(settings.AdjustmentMinThresholdPct)
	}

	fixer := adjustment.NewFixer(st)

	w := worker.New(st, engine)
	if settings.FetchWorkerConcurrency > 0 {
		w.Concurrency = settings.FetchWorkerConcurrency
	}
	if settings.FetchMaxConcurrentJobs > 0 {
		w.MaxConcurrentJobs = settings.FetchMaxConcurrentJobs
	}
	w.JobTimeout = settings.FetchJobTimeout

	maint := maintenance.New(st, detector, fixer)
	if settings.CronBatchSize > 0 {
		maint.BatchSize = settings.CronBatchSize
	}
	if settings.CronUpdateDays > 0 {
		maint.LookbackDays = settings.CronUpdateDays
	}
	if settings.FetchJobCleanupDays > 0 {
		maint.JobCleanupDays = settings.FetchJobCleanupDays
	}

	return &app{
		Settings: settings,
		Store:    st,
		Fetcher:  fetcher,
		Renames:  renames,
		Engine:   engine,
		Reader:   reader,
		Detector: detector,
		Fixer:    fixer,
		Worker:   w,
		Maint:    maint,
	}, nil
}

func (a *app) Close() {
	a.Store.Close()
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// libraryName identifies this deployment in the single-row library
// table, matching the teacher's Library.Name concept.
const libraryName = "ohlcv-coverage"
