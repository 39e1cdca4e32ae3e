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
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

type eventRow struct {
	ID                  int64           `db:"id"`
	Symbol              string          `db:"symbol"`
	EventDate           time.Time       `db:"event_date"`
	EventType           string          `db:"event_type"`
	Ratio               *float64        `db:"ratio"`
	Amount              *float64        `db:"amount"`
	Currency            string          `db:"currency"`
	ExDate              *time.Time      `db:"ex_date"`
	DetectedAt          time.Time       `db:"detected_at"`
	DBPriceAtDetection  float64         `db:"db_price_at_detection"`
	YFPriceAtDetection  float64         `db:"yf_price_at_detection"`
	PctDifference       float64         `db:"pct_difference"`
	Severity            string          `db:"severity"`
	Status              string          `db:"status"`
	FixedAt             *time.Time      `db:"fixed_at"`
	FixJobID            string          `db:"fix_job_id"`
	RowsDeleted         int             `db:"rows_deleted"`
	RowsRefetched       int             `db:"rows_refetched"`
	SourceData          json.RawMessage `db:"source_data"`
	Notes               string          `db:"notes"`
}

func (r *eventRow) toModel() *model.CorporateEvent {
	ev := &model.CorporateEvent{
		ID:                 r.ID,
		Symbol:             r.Symbol,
		EventDate:          r.EventDate,
		EventType:          model.EventType(r.EventType),
		Ratio:              r.Ratio,
		Amount:             r.Amount,
		Currency:           r.Currency,
		ExDate:             r.ExDate,
		DetectedAt:         r.DetectedAt,
		DBPriceAtDetection: r.DBPriceAtDetection,
		YFPriceAtDetection: r.YFPriceAtDetection,
		PctDifference:      r.PctDifference,
		Severity:           model.Severity(r.Severity),
		Status:             model.EventStatus(r.Status),
		FixedAt:            r.FixedAt,
		FixJobID:           r.FixJobID,
		RowsDeleted:        r.RowsDeleted,
		RowsRefetched:      r.RowsRefetched,
		Notes:              r.Notes,
	}
	if len(r.SourceData) > 0 {
		_ = json.Unmarshal(r.SourceData, &ev.SourceData)
	}
	return ev
}

// RecordEvent inserts a newly detected corporate event, deduplicating on
// the natural key (symbol, event_date, event_type). A re-detection of an
// already-known event is a no-op (ON CONFLICT DO NOTHING) — the Detector
// must not restart the lifecycle of an event already being fixed.
func (s *Store) RecordEvent(ctx context.Context, ev *model.CorporateEvent) (int64, error) {
	sourceData, err := json.Marshal(ev.SourceData)
	if err != nil {
		return 0, err
	}

	var id int64
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO corporate_events (
			symbol, event_date, event_type, ratio, amount, currency, ex_date,
			db_price_at_detection, yf_price_at_detection, pct_difference,
			severity, status, source_data, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'detected',$12,$13)
		ON CONFLICT (symbol, event_date, event_type) DO NOTHING
		RETURNING id`,
		ev.Symbol, ev.EventDate, string(ev.EventType), ev.Ratio, ev.Amount, ev.Currency, ev.ExDate,
		ev.DBPriceAtDetection, ev.YFPriceAtDetection, ev.PctDifference,
		string(ev.Severity), sourceData, ev.Notes)

	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			// already recorded; look it up instead
			existing, getErr := s.GetEvent(ctx, ev.Symbol, ev.EventDate, ev.EventType)
			if getErr != nil {
				return 0, getErr
			}
			if existing != nil {
				return existing.ID, nil
			}
			return 0, nil
		}
		return 0, err
	}

	return id, nil
}

// GetEvent fetches one CorporateEvent by its natural key.
func (s *Store) GetEvent(ctx context.Context, symbol string, date time.Time, eventType model.EventType) (*model.CorporateEvent, error) {
	var row eventRow
	err := pgxscan.Get(ctx, s.Pool, &row, `
		SELECT id, symbol, event_date, event_type, ratio, amount, currency, ex_date,
		       detected_at, db_price_at_detection, yf_price_at_detection, pct_difference,
		       severity, status, fixed_at, coalesce(fix_job_id, '') AS fix_job_id,
		       rows_deleted, rows_refetched, source_data, notes
		FROM corporate_events WHERE symbol = $1 AND event_date = $2 AND event_type = $3`,
		symbol, date, string(eventType))
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return row.toModel(), nil
}

// ListEventsByStatus returns events in the given status, oldest first,
// used by the Fixer to pick up confirmed events and by dashboards (out
// of core scope, but the query surface itself is).
func (s *Store) ListEventsByStatus(ctx context.Context, status model.EventStatus) ([]*model.CorporateEvent, error) {
	var rows []eventRow
	err := pgxscan.Select(ctx, s.Pool, &rows, `
		SELECT id, symbol, event_date, event_type, ratio, amount, currency, ex_date,
		       detected_at, db_price_at_detection, yf_price_at_detection, pct_difference,
		       severity, status, fixed_at, coalesce(fix_job_id, '') AS fix_job_id,
		       rows_deleted, rows_refetched, source_data, notes
		FROM corporate_events WHERE status = $1 ORDER BY detected_at ASC`, string(status))
	if err != nil {
		return nil, err
	}

	events := make([]*model.CorporateEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rows[i].toModel())
	}
	return events, nil
}

// TransitionEvent moves an event to a new status, optionally stamping
// fix_job_id / rows_deleted / rows_refetched / fixed_at. Enforces the
// monotone lifecycle (detected -> confirmed|ignored -> fixing ->
// fixed|failed) at the call sites in internal/adjustment, not here; this
// is a plain conditional UPDATE.
func (s *Store) TransitionEvent(ctx context.Context, id int64, status model.EventStatus, fixJobID string, rowsDeleted, rowsRefetched int) error {
	var fixedAt *time.Time
	if status == model.StatusFixed {
		now := time.Now().UTC()
		fixedAt = &now
	}

	_, err := s.Pool.Exec(ctx, `
		UPDATE corporate_events SET
			status = $2,
			fix_job_id = nullif($3, ''),
			rows_deleted = $4,
			rows_refetched = $5,
			fixed_at = coalesce($6, fixed_at)
		WHERE id = $1`, id, string(status), fixJobID, rowsDeleted, rowsRefetched, fixedAt)
	return err
}
