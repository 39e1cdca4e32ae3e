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

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// EnsureLibrary writes this deployment's identifying name into the
// single-row library table, matching the teacher's library.NewFromDB
// single-row "SELECT name, owner FROM library" shape but for a
// singleton deployment identity rather than a per-library config.
// Idempotent: a second call with a different name updates it in place.
func (s *Store) EnsureLibrary(ctx context.Context, name string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO library (id, name) VALUES (TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, name)
	return err
}

// LibraryName returns this deployment's identifying name, or "" if the
// library row has never been set.
func (s *Store) LibraryName(ctx context.Context) (string, error) {
	var name string
	err := pgxscan.Get(ctx, s.Pool, &name, `SELECT name FROM library WHERE id`)
	if err != nil {
		if pgxscan.NotFound(err) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}

// CoverageSummary reads the coverage_summary view: one row per symbol
// with its stored point count and date span, the same per-symbol
// rollup the teacher's dashboard-facing Library.Summary builds from raw
// queries (the dashboard itself stays out of scope; this is the data it
// would read).
func (s *Store) CoverageSummary(ctx context.Context) ([]model.CoverageSummaryRow, error) {
	var rows []model.CoverageSummaryRow
	err := pgxscan.Select(ctx, s.Pool, &rows, `
		SELECT symbol, data_points, first_date, last_date, last_updated, total_days
		FROM coverage_summary ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
