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
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quantledger/ohlcv-coverage/internal/apierr"
	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// permittedSymbolChars is the character set a job-request symbol must
// match, per the CRUD validation rules on FetchJob creation. The
// `jobs create` command checks symbols after normalizing them.
var permittedSymbolChars = regexp.MustCompile(`^[A-Za-z0-9.^-]+$`)

// ValidateJobRequest enforces the CRUD creation checks on a bulk fetch
// request: a non-empty symbol list within maxSymbols, a well-ordered
// date range no later than today and no wider than maxDays, and symbols
// drawn from a permitted character set. maxSymbols/maxDays of zero or
// less disable the corresponding bound.
func ValidateJobRequest(symbols []string, from, to time.Time, maxSymbols, maxDays int) error {
	if len(symbols) == 0 {
		return apierr.Validation("symbols must not be empty", nil)
	}
	if maxSymbols > 0 && len(symbols) > maxSymbols {
		return apierr.New(apierr.CodeTooMuchData, fmt.Sprintf("request has %d symbols, exceeding the maximum of %d", len(symbols), maxSymbols), map[string]any{"symbols": len(symbols), "max": maxSymbols})
	}
	for _, s := range symbols {
		if !permittedSymbolChars.MatchString(s) {
			return apierr.Validation("symbol contains characters outside the permitted set", map[string]any{"symbol": s})
		}
	}

	if to.Before(from) {
		return apierr.Validation("date_to must not be before date_from", map[string]any{"date_from": from, "date_to": to})
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if to.After(today) {
		return apierr.Validation("date_to must not be after today", map[string]any{"date_to": to, "today": today})
	}
	if maxDays > 0 {
		days := int(to.Sub(from).Hours()/24) + 1
		if days > maxDays {
			return apierr.New(apierr.CodeTooMuchData, fmt.Sprintf("requested window spans %d days, exceeding the maximum of %d", days, maxDays), map[string]any{"days": days, "max": maxDays})
		}
	}

	return nil
}

type jobRow struct {
	JobID        string          `db:"job_id"`
	Status       string          `db:"status"`
	Symbols      []string        `db:"symbols"`
	DateFrom     time.Time       `db:"date_from"`
	DateTo       time.Time       `db:"date_to"`
	Interval     string          `db:"interval"`
	ForceRefresh bool            `db:"force_refresh"`
	Priority     string          `db:"priority"`
	Progress     json.RawMessage `db:"progress"`
	Results      json.RawMessage `db:"results"`
	Errors       []string        `db:"errors"`
	CreatedAt    time.Time       `db:"created_at"`
	StartedAt    *time.Time      `db:"started_at"`
	CompletedAt  *time.Time      `db:"completed_at"`
	CreatedBy    string          `db:"created_by"`
}

func (r *jobRow) toModel() *model.FetchJob {
	job := &model.FetchJob{
		JobID:        r.JobID,
		Status:       model.JobStatus(r.Status),
		Symbols:      r.Symbols,
		DateFrom:     r.DateFrom,
		DateTo:       r.DateTo,
		Interval:     r.Interval,
		ForceRefresh: r.ForceRefresh,
		Priority:     model.JobPriority(r.Priority),
		Errors:       r.Errors,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
		CreatedBy:    r.CreatedBy,
		Results:      map[string]model.SymbolResult{},
	}
	if len(r.Progress) > 0 {
		_ = json.Unmarshal(r.Progress, &job.Progress)
	}
	if len(r.Results) > 0 {
		_ = json.Unmarshal(r.Results, &job.Results)
	}
	return job
}

// CreateJob inserts a new FetchJob in pending status with a fresh
// random (version 4) UUID, following the teacher's uuid.New() id-assignment
// convention (library/subscription.go's Subscription.ID).
func (s *Store) CreateJob(ctx context.Context, job *model.FetchJob) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Priority == "" {
		job.Priority = model.PriorityNormal
	}
	if job.Interval == "" {
		job.Interval = "daily"
	}

	progress, err := json.Marshal(job.Progress)
	if err != nil {
		return "", err
	}
	results, err := json.Marshal(job.Results)
	if err != nil {
		return "", err
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO fetch_jobs (
			job_id, status, symbols, date_from, date_to, interval, force_refresh,
			priority, progress, results, errors, created_by
		) VALUES ($1,'pending',$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		job.JobID, job.Symbols, job.DateFrom, job.DateTo, job.Interval, job.ForceRefresh,
		string(job.Priority), progress, results, job.Errors, job.CreatedBy)
	if err != nil {
		return "", err
	}

	return job.JobID, nil
}

// GetJob fetches one FetchJob by id.
func (s *Store) GetJob(ctx context.Context, jobID string) (*model.FetchJob, error) {
	var row jobRow
	err := pgxscan.Get(ctx, s.Pool, &row, `
		SELECT job_id, status, symbols, date_from, date_to, interval, force_refresh,
		       priority, progress, results, errors, created_at, started_at, completed_at, created_by
		FROM fetch_jobs WHERE job_id = $1`, jobID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ClaimNextJob atomically transitions the highest-priority, oldest
// pending job to running and returns it, guaranteeing at-most-once
// pickup across any number of concurrent workers (spec 4.K/4.L). Returns
// (nil, nil) when no pending job is available.
func (s *Store) ClaimNextJob(ctx context.Context) (*model.FetchJob, error) {
	var row jobRow
	err := pgxscan.Get(ctx, s.Pool, &row, `
		UPDATE fetch_jobs SET status = 'running', started_at = now()
		WHERE job_id = (
			SELECT job_id FROM fetch_jobs
			WHERE status = 'pending'
			ORDER BY
				CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
				created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id, status, symbols, date_from, date_to, interval, force_refresh,
		          priority, progress, results, errors, created_at, started_at, completed_at, created_by`)
	if err != nil {
		if pgxscan.NotFound(err) || err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// UpdateJobProgress persists incremental progress while a job runs.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID string, progress model.JobProgress) error {
	encoded, err := json.Marshal(progress)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `UPDATE fetch_jobs SET progress = $2 WHERE job_id = $1`, jobID, encoded)
	return err
}

// CompleteJob finalizes a job with its terminal status, per-symbol
// results and any accumulated errors.
func (s *Store) CompleteJob(ctx context.Context, jobID string, status model.JobStatus, results map[string]model.SymbolResult, errs []string) error {
	encoded, err := json.Marshal(results)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		UPDATE fetch_jobs SET status = $2, results = $3, errors = $4, completed_at = now()
		WHERE job_id = $1`, jobID, string(status), encoded, errs)
	return err
}

// CancelJob transitions a job to cancelled if it is still pending or
// running; returns false if the job was already terminal (spec 6.1
// job_not_cancellable).
func (s *Store) CancelJob(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE fetch_jobs SET status = 'cancelled', completed_at = now()
		WHERE job_id = $1 AND status IN ('pending', 'running')`, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// CleanupOldJobs deletes terminal FetchJobs (completed, completed with
// errors, failed or cancelled) whose completed_at predates the retention
// window, returning the number removed.
func (s *Store) CleanupOldJobs(ctx context.Context, olderThanDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	tag, err := s.Pool.Exec(ctx, `
		DELETE FROM fetch_jobs
		WHERE status IN ('completed', 'completed_with_errors', 'failed', 'cancelled')
		  AND completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListJobs returns jobs ordered most-recent-first, used by the jobs ls
// CLI command.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]*model.FetchJob, error) {
	var rows []jobRow
	err := pgxscan.Select(ctx, s.Pool, &rows, `
		SELECT job_id, status, symbols, date_from, date_to, interval, force_refresh,
		       priority, progress, results, errors, created_at, started_at, completed_at, created_by
		FROM fetch_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}

	jobs := make([]*model.FetchJob, 0, len(rows))
	for i := range rows {
		jobs = append(jobs, rows[i].toModel())
	}
	return jobs, nil
}
