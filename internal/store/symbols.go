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
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// GetSymbol returns the Symbol row for symbol, or (nil, nil) if unknown.
func (s *Store) GetSymbol(ctx context.Context, symbol string) (*model.Symbol, error) {
	var row model.Symbol
	err := pgxscan.Get(ctx, s.Pool, &row, `
		SELECT symbol, display_name, exchange, currency, active, has_full_history,
		       first_date, last_date, created_at
		FROM symbols WHERE symbol = $1`, symbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// EnsureSymbol auto-registers symbol if it does not already exist (spec
// section 4.F auto-registration), and is a no-op otherwise. Uses
// ON CONFLICT DO NOTHING so concurrent callers racing to register the
// same symbol never error.
func (s *Store) EnsureSymbol(ctx context.Context, symbol string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO symbols (symbol, display_name)
		VALUES ($1, $1)
		ON CONFLICT (symbol) DO NOTHING`, symbol)
	return err
}

// UpdateSymbolCoverage updates first_date/last_date/has_full_history
// after a successful fetch, widening the stored range rather than
// overwriting it (a gap-fill at the tail must not erase an earlier
// first_date).
func (s *Store) UpdateSymbolCoverage(ctx context.Context, symbol string, first, last time.Time, fullHistory bool) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE symbols SET
			first_date = LEAST(coalesce(first_date, $2), $2),
			last_date = GREATEST(coalesce(last_date, $3), $3),
			has_full_history = has_full_history OR $4
		WHERE symbol = $1`, symbol, first, last, fullHistory)
	return err
}

// ListActiveSymbols returns all symbols eligible for scheduled
// maintenance (spec 4.M).
func (s *Store) ListActiveSymbols(ctx context.Context) ([]*model.Symbol, error) {
	var rows []*model.Symbol
	err := pgxscan.Select(ctx, s.Pool, &rows, `
		SELECT symbol, display_name, exchange, currency, active, has_full_history,
		       first_date, last_date, created_at
		FROM symbols WHERE active = true ORDER BY symbol`)
	return rows, err
}

// ListSymbolChanges returns the full rename table, used to warm
// segment.Cache at startup.
func (s *Store) ListSymbolChanges(ctx context.Context) ([]*model.SymbolChange, error) {
	var rows []*model.SymbolChange
	err := pgxscan.Select(ctx, s.Pool, &rows, `
		SELECT old_symbol, change_date, new_symbol, reason FROM symbol_changes`)
	return rows, err
}

// LookupRenameDB is a RenameLookup implementation backed directly by the
// database, used when no in-process cache is warm yet (e.g. the first
// request after a cache miss, or in tests).
func (s *Store) LookupRenameDB(ctx context.Context, newSymbol string) (*model.SymbolChange, error) {
	var row model.SymbolChange
	err := pgxscan.Get(ctx, s.Pool, &row, `
		SELECT old_symbol, change_date, new_symbol, reason
		FROM symbol_changes WHERE new_symbol = $1`, newSymbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}
