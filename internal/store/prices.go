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
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// UpsertPricesTx writes bars for symbol using tx, with
// ON CONFLICT (symbol, date) DO UPDATE, the exact shape the teacher uses
// throughout data/eod.go, data/asset.go and data/holiday.go. Invalid rows
// (model.Price.Valid() == false) are rejected before any row is sent.
// Callers invoke this from inside Store.WithSymbolLock so the upsert
// shares the advisory-lock transaction (spec 4.D under 4.E).
func UpsertPricesTx(ctx context.Context, tx pgx.Tx, prices []model.Price) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	for i := range prices {
		if !prices[i].Valid() {
			return 0, fmt.Errorf("invalid price row for %s on %s: OHLC/volume invariant violated",
				prices[i].Symbol, prices[i].Date.Format("2006-01-02"))
		}
	}

	const upsertSQL = `
		INSERT INTO prices (symbol, date, open, high, low, close, volume, source, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, date) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			source = EXCLUDED.source,
			last_updated = EXCLUDED.last_updated`

	written := 0
	for _, p := range prices {
		if p.LastUpdated.IsZero() {
			p.LastUpdated = time.Now().UTC()
		}
		if _, err := tx.Exec(ctx, upsertSQL,
			p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume, p.Source, p.LastUpdated); err != nil {
			return written, err
		}
		written++
	}

	return written, nil
}

// PriceRange returns rows for symbol over [from, to] inclusive, ordered
// by date, capped at limit rows (0 means unlimited) per the Price
// Reader's row-count ceiling (spec 4.G).
func (s *Store) PriceRange(ctx context.Context, symbol string, from, to time.Time, limit int) ([]model.Price, error) {
	var rows []model.Price
	query := `
		SELECT symbol, date, open, high, low, close, volume, source, last_updated
		FROM prices WHERE symbol = $1 AND date BETWEEN $2 AND $3 ORDER BY date ASC`
	args := []any{symbol, from, to}

	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}

	err := pgxscan.Select(ctx, s.Pool, &rows, query, args...)
	return rows, err
}

// CoveredRangeTx is CoveredRange run inside an existing transaction, used
// by the Coverage Engine so the coverage query re-executes inside the
// per-symbol advisory lock (spec 4.F step 3).
func CoveredRangeTx(ctx context.Context, tx pgx.Tx, symbol string) (from, to time.Time, exists bool, err error) {
	row := tx.QueryRow(ctx, `SELECT min(date), max(date) FROM prices WHERE symbol = $1`, symbol)

	var minDate, maxDate *time.Time
	if scanErr := row.Scan(&minDate, &maxDate); scanErr != nil {
		return time.Time{}, time.Time{}, false, scanErr
	}
	if minDate == nil || maxDate == nil {
		return time.Time{}, time.Time{}, false, nil
	}
	return *minDate, *maxDate, true, nil
}

// FirstMissingWeekdayTx returns the earliest weekday in [first, to]
// that has no stored row, and whether any such gap exists. The range is
// scanned as given; it is not clamped to the symbol's stored range. Implements the "weekday gap" concept from
// spec 4.F step 3 via a generate_series/left-join scan.
func FirstMissingWeekdayTx(ctx context.Context, tx pgx.Tx, symbol string, first, to time.Time) (time.Time, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT min(gs.day)
		FROM generate_series($2::date, $3::date, interval '1 day') AS gs(day)
		LEFT JOIN prices p ON p.symbol = $1 AND p.date = gs.day
		WHERE p.date IS NULL AND extract(dow FROM gs.day) NOT IN (0, 6)`,
		symbol, first, to)

	var missing *time.Time
	if err := row.Scan(&missing); err != nil {
		return time.Time{}, false, err
	}
	if missing == nil {
		return time.Time{}, false, nil
	}
	return *missing, true, nil
}

// CoveredRange returns the [min(date), max(date)] of stored rows for
// symbol, and whether any rows exist at all. Used by the Coverage Engine
// to decide gap-fill vs tail-refresh sub-ranges.
func (s *Store) CoveredRange(ctx context.Context, symbol string) (from, to time.Time, exists bool, err error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT min(date), max(date) FROM prices WHERE symbol = $1`, symbol)

	var minDate, maxDate *time.Time
	if scanErr := row.Scan(&minDate, &maxDate); scanErr != nil {
		if scanErr == pgx.ErrNoRows {
			return time.Time{}, time.Time{}, false, nil
		}
		return time.Time{}, time.Time{}, false, scanErr
	}

	if minDate == nil || maxDate == nil {
		return time.Time{}, time.Time{}, false, nil
	}

	return *minDate, *maxDate, true, nil
}

// SampleOlderThan returns up to n stored (date, close) pairs for symbol
// dated before cutoff, always including the earliest and most recent
// eligible rows and spreading the rest at roughly equal stride, feeding
// the Adjustment Detector's sampling step (spec 4.H).
func (s *Store) SampleOlderThan(ctx context.Context, symbol string, cutoff time.Time, n int) ([]model.Price, error) {
	var all []model.Price
	err := pgxscan.Select(ctx, s.Pool, &all, `
		SELECT symbol, date, open, high, low, close, volume, source, last_updated
		FROM prices WHERE symbol = $1 AND date < $2 ORDER BY date ASC`, symbol, cutoff)
	if err != nil {
		return nil, err
	}

	if len(all) < 2 {
		return all, nil
	}
	if n <= 0 || len(all) <= n {
		return all, nil
	}

	samples := make([]model.Price, 0, n)
	samples = append(samples, all[0])
	stride := float64(len(all)-1) / float64(n-1)
	for i := 1; i < n-1; i++ {
		idx := int(float64(i) * stride)
		samples = append(samples, all[idx])
	}
	samples = append(samples, all[len(all)-1])

	return samples, nil
}

// DeletePricesFrom removes all rows for symbol dated on or after from,
// used by the Adjustment Fixer before enqueueing a re-ingest job (spec
// 4.I). Returns the number of rows deleted.
func (s *Store) DeletePricesFrom(ctx context.Context, symbol string, from time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM prices WHERE symbol = $1 AND date >= $2`, symbol, from)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
