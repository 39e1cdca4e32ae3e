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
// Package store is the persistence layer over Postgres: connection
// pooling, symbol/price/event/job CRUD, and the per-symbol advisory-lock
// mutex. Grounded on the teacher's library/database.go Connect/Pool
// pattern (pgxpool.New, Acquire/Release per call) and data/*.go's
// pgxscan-based query helpers.
package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgxpool.Pool and exposes the persistence operations each
// core component needs (Coverage Engine, Price Reader, Adjustment
// Detector/Fixer, Fetch Job Store).
type Store struct {
	Pool *pgxpool.Pool
}

// Connect opens a pooled connection to databaseURL. Mirrors the teacher's
// Library.Connect: idempotent construction, no eager ping.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.Pool.Close()
}
