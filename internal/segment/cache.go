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
package segment

import (
	"context"

	"github.com/alphadose/haxmap"
	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// Cache is an in-process, concurrent cache of SymbolChange rows keyed by
// new_symbol, loaded from the database at startup and consulted by both
// the reader and the coverage engine instead of querying on every call.
// Grounded on the teacher's figi.MapInstance()/LoadCacheFromDB pattern
// (figi/database.go), repurposed from a ticker->FIGI map to a
// new_symbol->SymbolChange map.
type Cache struct {
	renames *haxmap.Map[string, *model.SymbolChange]
	loader  func(ctx context.Context) ([]*model.SymbolChange, error)
}

// NewCache builds an empty cache. Call Refresh to populate it from the
// database; loader is whatever store method lists all SymbolChange rows.
func NewCache(loader func(ctx context.Context) ([]*model.SymbolChange, error)) *Cache {
	return &Cache{
		renames: haxmap.New[string, *model.SymbolChange](),
		loader:  loader,
	}
}

// Refresh reloads the full rename table into memory by swapping in a
// new map without synchronization, so it is not safe to call
// concurrently with LookupRename or Set; cmd/app.go calls it once at
// startup.
func (c *Cache) Refresh(ctx context.Context) error {
	changes, err := c.loader(ctx)
	if err != nil {
		return err
	}

	fresh := haxmap.New[string, *model.SymbolChange]()
	for _, change := range changes {
		fresh.Set(change.NewSymbol, change)
	}
	c.renames = fresh
	return nil
}

// LookupRename implements RenameLookup from the in-memory cache.
func (c *Cache) LookupRename(_ context.Context, newSymbol string) (*model.SymbolChange, error) {
	if change, ok := c.renames.Get(newSymbol); ok {
		return change, nil
	}
	return nil, nil
}

// Set inserts or replaces a single rename entry, used when administrative
// renames are created without waiting for the next full Refresh.
func (c *Cache) Set(change *model.SymbolChange) {
	c.renames.Set(change.NewSymbol, change)
}
