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
package provider

import "sort"

// Clean applies spec 4.C's cleaning policy to raw upstream bars: rows
// missing or with non-positive O/H/L/C are rejected; negative volume is
// dropped (the chosen policy, not clamped); the result is sorted by date
// and deduplicated on date with last-wins semantics.
func Clean(bars []PriceBar) []PriceBar {
	byDate := make(map[int64]PriceBar, len(bars))
	order := make([]int64, 0, len(bars))

	for _, bar := range bars {
		if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
			continue
		}
		if bar.Volume < 0 {
			// policy: drop, not clamp
			continue
		}

		key := bar.Date.Unix()
		if _, seen := byDate[key]; !seen {
			order = append(order, key)
		}
		byDate[key] = bar // last wins
	}

	cleaned := make([]PriceBar, 0, len(order))
	for _, key := range order {
		cleaned = append(cleaned, byDate[key])
	}

	sort.Slice(cleaned, func(i, j int) bool {
		return cleaned[i].Date.Before(cleaned[j].Date)
	})

	return cleaned
}
