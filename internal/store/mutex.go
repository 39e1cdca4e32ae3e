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

	"github.com/jackc/pgx/v5"
)

// WithSymbolLock runs fn while holding a transaction-scoped Postgres
// advisory lock keyed on symbol, serializing all writes touching that
// symbol across the process and across any other process sharing the
// database (spec 4.E). The lock is released automatically on commit or
// rollback, so fn's error simply propagates through tx.Rollback.
//
// New code, but idiomatic given the teacher's comfort issuing raw SQL
// directly against a pgx connection in library/subscription.go.
func (s *Store) WithSymbolLock(ctx context.Context, symbol string, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, symbol); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
