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
// Package segment implements the one-hop symbol-rename transparency
// described in spec section 4.B: translating a logical symbol and date
// range into the concrete (storage symbol, sub-range) tuples that must
// be read or written.
package segment

import (
	"context"
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// Segment is one contiguous sub-range to read or write against a single
// storage symbol.
type Segment struct {
	StorageSymbol string
	From          time.Time
	To            time.Time
	// SourceSymbol carries the historical symbol name so readers can
	// expose it as a companion field even when StorageSymbol == the
	// requested current symbol.
	SourceSymbol string
}

// RenameLookup resolves the (at most one) rename whose new_symbol equals
// the given current symbol.
type RenameLookup interface {
	LookupRename(ctx context.Context, newSymbol string) (*model.SymbolChange, error)
}

const day = 24 * time.Hour

// Resolve splits [from, to] on current symbol S into at most two
// (storage_symbol, sub_from, sub_to) segments using the one-hop rename
// history. If a rename (old -> S, change_date=D) exists, the old symbol
// covers [from, min(to, D-1day)] and S covers [max(from, D), to]; either half is
// omitted if empty. With no rename, a single segment (S, from, to) is
// returned.
func Resolve(ctx context.Context, lookup RenameLookup, currentSymbol string, from, to time.Time) ([]Segment, error) {
	change, err := lookup.LookupRename(ctx, currentSymbol)
	if err != nil {
		return nil, err
	}

	if change == nil {
		return []Segment{{StorageSymbol: currentSymbol, From: from, To: to, SourceSymbol: currentSymbol}}, nil
	}

	segments := make([]Segment, 0, 2)

	oldEnd := change.ChangeDate.Add(-day)
	if to.Before(oldEnd) {
		oldEnd = to
	}
	if !from.After(oldEnd) {
		segments = append(segments, Segment{
			StorageSymbol: change.OldSymbol,
			From:          from,
			To:            oldEnd,
			SourceSymbol:  change.OldSymbol,
		})
	}

	newStart := from
	if change.ChangeDate.After(newStart) {
		newStart = change.ChangeDate
	}
	if !newStart.After(to) {
		segments = append(segments, Segment{
			StorageSymbol: currentSymbol,
			From:          newStart,
			To:            to,
			SourceSymbol:  currentSymbol,
		})
	}

	return segments, nil
}
