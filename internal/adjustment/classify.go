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
// Package adjustment implements the Adjustment Detector and Fixer (spec
// sections 4.H/4.I): sampling stored closes against upstream adjusted
// closes, classifying divergences as corporate events, and repairing
// affected history.
package adjustment

import (
	"github.com/shopspring/decimal"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

// NoiseFloor is the minimum diff_pct below which a divergence is
// floating-point noise, not a real event (spec 4.H).
var NoiseFloor = decimal.NewFromFloat(0.0001)

// DefaultThreshold is the default configured significance threshold.
var DefaultThreshold = decimal.NewFromFloat(0.001)

// Sample is one stored-vs-provider comparison point for a symbol.
type Sample struct {
	StoredClose   decimal.Decimal
	ProviderClose decimal.Decimal
}

// DiffPct computes |stored - provider| / stored * 100, per spec 4.H.
func (s Sample) DiffPct() decimal.Decimal {
	if s.StoredClose.IsZero() {
		return decimal.Zero
	}
	diff := s.StoredClose.Sub(s.ProviderClose).Abs()
	return diff.Div(s.StoredClose).Mul(decimal.NewFromInt(100))
}

// Significant reports whether diffPct clears both the noise floor and
// the configured threshold.
func Significant(diffPct, configuredThreshold decimal.Decimal) bool {
	floor := NoiseFloor
	if configuredThreshold.GreaterThan(floor) {
		floor = configuredThreshold
	}
	return diffPct.GreaterThanOrEqual(floor)
}

// SplitInfo summarizes the provider's reported splits after a sample
// date, feeding the classification table.
type SplitInfo struct {
	Exists          bool
	CumulativeRatio decimal.Decimal
}

// DividendInfo summarizes the provider's reported dividends after a
// sample date.
type DividendInfo struct {
	Exists bool
	Max    decimal.Decimal
	Mean   decimal.Decimal
}

// CapitalGainInfo summarizes the provider's reported capital-gain
// distributions after a sample date.
type CapitalGainInfo struct {
	Exists bool
}

// Classify implements spec 4.H's classification heuristic table: given a
// significant diffPct and what the provider reports after the sample
// date, return the event type and severity. Conditions are evaluated in
// the table's listed order — the first match wins.
func Classify(diffPct decimal.Decimal, splits SplitInfo, dividends DividendInfo, gains CapitalGainInfo) (model.EventType, model.Severity) {
	ten := decimal.NewFromInt(10)
	fifteen := decimal.NewFromInt(15)
	two := decimal.NewFromInt(2)

	switch {
	case diffPct.GreaterThanOrEqual(ten) && splits.Exists && splits.CumulativeRatio.LessThan(decimal.NewFromInt(1)):
		return model.EventReverseSplit, model.SeverityHigh

	case diffPct.GreaterThanOrEqual(ten) && splits.Exists:
		return model.EventStockSplit, model.SeverityCritical

	case diffPct.GreaterThanOrEqual(fifteen) && !splits.Exists:
		return model.EventSpinoff, model.SeverityCritical

	case dividends.Exists && dividends.Max.GreaterThan(dividends.Mean.Mul(two)) && diffPct.GreaterThanOrEqual(two):
		return model.EventSpecialDividend, model.SeverityHigh

	case dividends.Exists:
		return model.EventDividend, model.SeverityNormal

	case gains.Exists:
		return model.EventCapitalGain, model.SeverityNormal

	default:
		return model.EventUnknown, model.SeverityLow
	}
}
