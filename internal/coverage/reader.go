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
package coverage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/apierr"
	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/segment"
)

// Row is one stitched price row as returned to a reader: labeled with
// the requested (current) symbol, with the storage symbol carried
// alongside for transparency (spec 4.B/4.G).
type Row struct {
	model.Price
	RequestedSymbol string
	SourceSymbol    string
}

// ReadOptions configures one Price Reader call.
type ReadOptions struct {
	AutoFetch    bool
	RowLimit     int
	SymbolLimit  int
	ForceRefresh bool
}

// Reader streams stored rows for a request, stitching the historical and
// current symbol segments from the Segment Resolver, per spec 4.G.
type Reader struct {
	Engine  *Engine
	Renames segment.RenameLookup
}

// NewReader builds a Reader sharing the Engine's store and rename cache.
func NewReader(engine *Engine) *Reader {
	return &Reader{Engine: engine, Renames: engine.Renames}
}

// Read returns rows for symbols over [from, to], sorted by (date,
// symbol), auto-fetching missing coverage first when opts.AutoFetch is
// set. opts.RowLimit enforces the row-count ceiling appropriate to the
// caller's tier (tighter for auto_fetch=true, relaxed otherwise, per
// spec 6.1).
func (r *Reader) Read(ctx context.Context, symbols []string, from, to time.Time, opts ReadOptions) ([]Row, error) {
	if opts.SymbolLimit > 0 && len(symbols) > opts.SymbolLimit {
		return nil, apierr.New(apierr.CodeTooMuchData, fmt.Sprintf("request has %d symbols, exceeding the limit of %d", len(symbols), opts.SymbolLimit), map[string]any{"symbols": len(symbols), "limit": opts.SymbolLimit})
	}

	var rows []Row

	for _, sym := range symbols {
		if opts.AutoFetch {
			if _, err := r.Engine.RegisterAndEnsure(ctx, sym, from, to, opts.ForceRefresh); err != nil {
				return nil, err
			}
		}

		segRows, err := r.readSymbol(ctx, sym, from, to)
		if err != nil {
			return nil, err
		}
		rows = append(rows, segRows...)

		if opts.RowLimit > 0 && len(rows) > opts.RowLimit {
			return nil, apierr.New(apierr.CodeTooMuchData, fmt.Sprintf("%d rows exceeds limit %d", len(rows), opts.RowLimit), map[string]any{"rows": len(rows), "limit": opts.RowLimit})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].RequestedSymbol < rows[j].RequestedSymbol
	})

	return rows, nil
}

// readSymbol unions the resolved segments for sym, labeling every row
// with the requested symbol while keeping the storage symbol visible.
// The union is monotonic: a segment's rows are additive and never hide
// another segment's rows (spec 5's rename-transparency ordering
// guarantee).
func (r *Reader) readSymbol(ctx context.Context, sym string, from, to time.Time) ([]Row, error) {
	segments, err := segment.Resolve(ctx, r.Renames, sym, from, to)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, seg := range segments {
		prices, err := r.Engine.Store.PriceRange(ctx, seg.StorageSymbol, seg.From, seg.To, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range prices {
			// p.Symbol is the storage symbol as stored; overwrite it with
			// the requested symbol so the promoted Row.Symbol field (what
			// the wire contract calls "symbol") matches what the caller
			// asked for. SourceSymbol is the only place the storage
			// symbol still appears.
			p.Symbol = sym
			rows = append(rows, Row{
				Price:           p,
				RequestedSymbol: sym,
				SourceSymbol:    seg.StorageSymbol,
			})
		}
	}

	return rows, nil
}
