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
package adjustment

import (
	"context"
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/store"
)

// Fixer implements spec 4.I: delete affected history, transition the
// flagged symbol's active events to fixing, and submit a high-priority
// full re-ingest FetchJob. Grounded on library/subscription.go's
// Delete — a transaction wrapping a bulk DROP TABLE — generalized here
// to a bulk DELETE of price rows.
type Fixer struct {
	Store *store.Store
}

// NewFixer builds a Fixer over st.
func NewFixer(st *store.Store) *Fixer {
	return &Fixer{Store: st}
}

// FixResult reports what Fix did for one symbol.
type FixResult struct {
	Symbol      string
	RowsDeleted int
	JobID       string
	EventIDs    []int64
}

// Fix deletes all Price rows for symbol, transitions its detected or
// confirmed CorporateEvents to fixing, and submits a high-priority
// FetchJob covering (first_known_date .. today) with force_refresh=true.
// The job id is stamped onto every transitioned event.
func (f *Fixer) Fix(ctx context.Context, symbol string) (FixResult, error) {
	sym, err := f.Store.GetSymbol(ctx, symbol)
	if err != nil {
		return FixResult{}, err
	}

	firstKnown := time.Now().UTC().AddDate(-50, 0, 0)
	if sym != nil && sym.FirstDate != nil {
		firstKnown = *sym.FirstDate
	}

	rowsDeleted, err := f.Store.DeletePricesFrom(ctx, symbol, firstKnown)
	if err != nil {
		return FixResult{}, err
	}

	jobID, err := f.Store.CreateJob(ctx, &model.FetchJob{
		Symbols:      []string{symbol},
		DateFrom:     firstKnown,
		DateTo:       time.Now().UTC(),
		Interval:     "daily",
		ForceRefresh: true,
		Priority:     model.PriorityHigh,
		CreatedBy:    "adjustment-fixer",
	})
	if err != nil {
		return FixResult{}, err
	}

	var transitioned []int64
	for _, status := range []model.EventStatus{model.StatusDetected, model.StatusConfirmed} {
		events, err := f.Store.ListEventsByStatus(ctx, status)
		if err != nil {
			return FixResult{}, err
		}
		for _, ev := range events {
			if ev.Symbol != symbol {
				continue
			}
			if err := f.Store.TransitionEvent(ctx, ev.ID, model.StatusFixing, jobID, rowsDeleted, 0); err != nil {
				return FixResult{}, err
			}
			transitioned = append(transitioned, ev.ID)
		}
	}

	return FixResult{
		Symbol:      symbol,
		RowsDeleted: rowsDeleted,
		JobID:       jobID,
		EventIDs:    transitioned,
	}, nil
}

// Reconcile transitions the events in status fixing whose fix job is
// jobID: fixing -> fixed (with rows_refetched) when job completed,
// fixing -> failed otherwise. Nothing in this module calls it; Scheduled
// Maintenance does not sweep finished fix jobs.
func (f *Fixer) Reconcile(ctx context.Context, jobID string, job *model.FetchJob) error {
	status := model.StatusFixed
	rowsRefetched := 0
	for _, r := range job.Results {
		rowsRefetched += r.RowsFetched
	}
	if job.Status != model.JobCompleted {
		status = model.StatusFailed
	}

	for _, s := range []model.EventStatus{model.StatusFixing} {
		events, err := f.Store.ListEventsByStatus(ctx, s)
		if err != nil {
			return err
		}
		for _, ev := range events {
			if ev.FixJobID != jobID {
				continue
			}
			if err := f.Store.TransitionEvent(ctx, ev.ID, status, jobID, ev.RowsDeleted, rowsRefetched); err != nil {
				return err
			}
		}
	}

	return nil
}
