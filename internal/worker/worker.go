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
// Package worker implements the Fetch Worker (spec section 4.L): a
// long-lived actor that pulls bulk FetchJobs from the Fetch Job Store
// and executes them with bounded per-symbol concurrency, generalizing
// the teacher's cmd/run.go sync.WaitGroup/channel shape from a one-shot
// CLI loop into a polling actor.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/quantledger/ohlcv-coverage/internal/coverage"
	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/store"
)

// DefaultConcurrency is the default bounded-parallelism per job (spec
// 4.L: "default 4").
const DefaultConcurrency = 4

// DefaultSymbolTimeout bounds one symbol's coverage attempt within a job
// (spec 5's per-symbol timeout).
const DefaultSymbolTimeout = 2 * time.Minute

// DefaultPollInterval is how often the worker checks for a new pending
// job when idle.
const DefaultPollInterval = 2 * time.Second

// DefaultMaxConcurrentJobs bounds how many FetchJobs this worker runs at
// once; claiming stays strictly sequential (ClaimNextJob's SKIP LOCKED
// already arbitrates across worker processes) but execution of already
// claimed jobs can overlap up to this count.
const DefaultMaxConcurrentJobs = 1

// Worker executes FetchJobs from the store against the Coverage Engine.
type Worker struct {
	Store             *store.Store
	Engine            *coverage.Engine
	Concurrency       int
	SymbolTimeout     time.Duration
	PollInterval      time.Duration
	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// New builds a Worker with spec defaults.
func New(st *store.Store, engine *coverage.Engine) *Worker {
	return &Worker{
		Store:             st,
		Engine:            engine,
		Concurrency:       DefaultConcurrency,
		SymbolTimeout:     DefaultSymbolTimeout,
		PollInterval:      DefaultPollInterval,
		MaxConcurrentJobs: DefaultMaxConcurrentJobs,
	}
}

// Run polls for pending jobs and executes them until ctx is cancelled.
// Application shutdown cancels ctx; any job mid-flight is left running
// in storage for ReconcileAbandoned to demote on next start (spec 5). Up
// to MaxConcurrentJobs jobs execute concurrently; claiming itself stays
// one-at-a-time on the polling tick, so a burst of completions can free
// more than one slot between ticks without over-claiming.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	maxJobs := w.MaxConcurrentJobs
	if maxJobs < 1 {
		maxJobs = 1
	}
	slots := make(chan struct{}, maxJobs)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			select {
			case slots <- struct{}{}:
			default:
				continue
			}

			job, err := w.Store.ClaimNextJob(ctx)
			if err != nil {
				<-slots
				log.Error().Err(err).Msg("failed to claim next fetch job")
				continue
			}
			if job == nil {
				<-slots
				continue
			}

			wg.Add(1)
			go func(job *model.FetchJob) {
				defer wg.Done()
				defer func() { <-slots }()

				jobCtx := ctx
				if w.JobTimeout > 0 {
					var cancel context.CancelFunc
					jobCtx, cancel = context.WithTimeout(ctx, w.JobTimeout)
					defer cancel()
				}

				if err := w.runJob(jobCtx, job); err != nil {
					log.Error().Err(err).Str("jobID", job.JobID).Msg("fetch job execution failed")
				}
			}(job)
		}
	}
}

// runJob executes job's symbols with bounded concurrency, honoring
// cooperative cancellation (spec 4.L steps 2-6).
func (w *Worker) runJob(ctx context.Context, job *model.FetchJob) error {
	sem := make(chan struct{}, w.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	results := make(map[string]model.SymbolResult, len(job.Symbols))
	var errs *multierror.Error
	completed := 0
	fetchedRows := 0

	for _, symbol := range job.Symbols {
		if w.cancelled(ctx, job.JobID) {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()

			result := w.runSymbol(ctx, job, symbol)

			mu.Lock()
			results[symbol] = result
			completed++
			fetchedRows += result.RowsFetched
			if result.Outcome == model.OutcomeFailed {
				errs = multierror.Append(errs, &symbolError{symbol: symbol, msg: result.Error})
			}
			progress := model.JobProgress{
				Total:         len(job.Symbols),
				Completed:     completed,
				CurrentSymbol: symbol,
				FetchedRows:   fetchedRows,
				Percent:       float64(completed) / float64(len(job.Symbols)) * 100,
			}
			mu.Unlock()

			if err := w.Store.UpdateJobProgress(ctx, job.JobID, progress); err != nil {
				log.Error().Err(err).Str("jobID", job.JobID).Msg("failed to update job progress")
			}
		}(symbol)
	}

	wg.Wait()

	if w.cancelled(ctx, job.JobID) {
		return w.Store.CompleteJob(ctx, job.JobID, model.JobCancelled, results, errorStrings(errs))
	}

	status := finalStatus(results)
	return w.Store.CompleteJob(ctx, job.JobID, status, results, errorStrings(errs))
}

func (w *Worker) runSymbol(ctx context.Context, job *model.FetchJob, symbol string) model.SymbolResult {
	symCtx, cancel := context.WithTimeout(ctx, w.SymbolTimeout)
	defer cancel()

	_, err := w.Engine.RegisterAndEnsure(symCtx, symbol, job.DateFrom, job.DateTo, job.ForceRefresh)
	if err != nil {
		return model.SymbolResult{Symbol: symbol, Outcome: model.OutcomeFailed, Error: err.Error()}
	}

	return model.SymbolResult{Symbol: symbol, Outcome: model.OutcomeSuccess}
}

// cancelled checks the job's stored status before each symbol is started
// and once more after the started symbols finish, implementing spec
// 4.L's cooperative cancellation contract. It is not consulted inside a
// symbol's coverage run.
func (w *Worker) cancelled(ctx context.Context, jobID string) bool {
	if ctx.Err() != nil {
		return true
	}
	job, err := w.Store.GetJob(ctx, jobID)
	if err != nil || job == nil {
		return false
	}
	return job.Status == model.JobCancelled
}

func finalStatus(results map[string]model.SymbolResult) model.JobStatus {
	anySuccess, anyFailure := false, false
	for _, r := range results {
		switch r.Outcome {
		case model.OutcomeSuccess, model.OutcomePartial:
			anySuccess = true
		case model.OutcomeFailed:
			anyFailure = true
		}
	}
	switch {
	case anyFailure && !anySuccess:
		return model.JobFailed
	case anyFailure:
		return model.JobCompletedWithErrors
	default:
		return model.JobCompleted
	}
}

func errorStrings(errs *multierror.Error) []string {
	if errs == nil {
		return nil
	}
	out := make([]string, 0, len(errs.Errors))
	for _, e := range errs.Errors {
		out = append(out, e.Error())
	}
	return out
}

type symbolError struct {
	symbol string
	msg    string
}

func (e *symbolError) Error() string { return e.symbol + ": " + e.msg }

// ReconcileAbandoned demotes jobs left running from a prior process that
// crashed or was killed, per spec 5's shutdown reconciliation sweeper.
func (w *Worker) ReconcileAbandoned(ctx context.Context) (int, error) {
	jobs, err := w.Store.ListJobs(ctx, 1000)
	if err != nil {
		return 0, err
	}

	demoted := 0
	for _, job := range jobs {
		if job.Status != model.JobRunning {
			continue
		}
		if err := w.Store.CompleteJob(ctx, job.JobID, model.JobFailed, job.Results, append(job.Errors, "abandoned: worker restarted while running")); err != nil {
			return demoted, err
		}
		demoted++
	}

	return demoted, nil
}
