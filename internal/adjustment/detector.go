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
package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/provider"
	"github.com/quantledger/ohlcv-coverage/internal/store"
)

// DefaultSampleCount is "S" in spec 4.H.
const DefaultSampleCount = 10

// DefaultMinAgeDays excludes rows younger than this from sampling.
const DefaultMinAgeDays = 7

// SampleDetail is one sample's comparison result, surfaced in Report.
type SampleDetail struct {
	Date          time.Time
	StoredClose   float64
	ProviderClose float64
	DiffPct       float64
	Significant   bool
	EventType     model.EventType
	Severity      model.Severity
}

// Report aggregates a symbol's adjustment scan, per spec 4.H.
type Report struct {
	Symbol            string
	InsufficientData  bool
	NeedsRefresh      bool
	MaxPctDiff        float64
	Samples           []SampleDetail
}

// Detector implements the sampling + probing + classification pipeline
// of spec 4.H, grounded on the single-call-then-loop shape of
// provider/fred.go's downloadIndicator, adapted to decimal-precision
// comparison since the spec calls for fixed-precision arithmetic that no
// teacher file performs with floats.
type Detector struct {
	Store       *store.Store
	Fetcher     provider.Fetcher
	SampleCount int
	MinAgeDays  int
	Threshold   decimal.Decimal
}

// NewDetector builds a Detector with spec defaults.
func NewDetector(st *store.Store, fetcher provider.Fetcher) *Detector {
	return &Detector{
		Store:       st,
		Fetcher:     fetcher,
		SampleCount: DefaultSampleCount,
		MinAgeDays:  DefaultMinAgeDays,
		Threshold:   DefaultThreshold,
	}
}

// DetectSymbol samples stored closes for symbol, probes the provider's
// current adjusted closes over the sampled span, classifies any
// significant divergence and records it into the Corporate Event Store.
func (d *Detector) DetectSymbol(ctx context.Context, symbol string) (Report, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.MinAgeDays)

	samples, err := d.Store.SampleOlderThan(ctx, symbol, cutoff, d.SampleCount)
	if err != nil {
		return Report{}, err
	}
	if len(samples) < 2 {
		return Report{Symbol: symbol, InsufficientData: true}, nil
	}

	firstSample := samples[0].Date
	lastSample := samples[len(samples)-1].Date

	providerCloses, err := d.Fetcher.ProbeAdjustedCloses(ctx, symbol, firstSample, lastSample)
	if err != nil {
		return Report{}, err
	}

	actionsWindow, err := d.Fetcher.FetchRange(ctx, symbol, firstSample, time.Now().UTC())
	if err != nil {
		return Report{}, err
	}

	report := Report{Symbol: symbol}

	// provider keys carry a market-close time of day while stored dates do
	// not, so samples are matched on the calendar date alone
	byDay := make(map[string]float64, len(providerCloses))
	for t, c := range providerCloses {
		byDay[t.Format("2006-01-02")] = c
	}

	for _, s := range samples {
		providerClose, ok := byDay[s.Date.Format("2006-01-02")]
		if !ok {
			continue
		}

		sample := Sample{
			StoredClose:   decimal.NewFromFloat(s.Close),
			ProviderClose: decimal.NewFromFloat(providerClose),
		}
		diffPct := sample.DiffPct()
		diffPctFloat, _ := diffPct.Float64()

		detail := SampleDetail{
			Date:          s.Date,
			StoredClose:   s.Close,
			ProviderClose: providerClose,
			DiffPct:       diffPctFloat,
		}

		if Significant(diffPct, d.Threshold) {
			detail.Significant = true
			report.NeedsRefresh = true
			if diffPctFloat > report.MaxPctDiff {
				report.MaxPctDiff = diffPctFloat
			}

			splits, dividends, gains := actionsAfter(actionsWindow.Actions, s.Date)
			detail.EventType, detail.Severity = Classify(diffPct, splits, dividends, gains)

			ev := &model.CorporateEvent{
				Symbol:             symbol,
				EventDate:          s.Date,
				EventType:          detail.EventType,
				Currency:           "USD",
				DetectedAt:         time.Now().UTC(),
				DBPriceAtDetection: s.Close,
				YFPriceAtDetection: providerClose,
				PctDifference:      diffPctFloat,
				Severity:           detail.Severity,
				Status:             model.StatusDetected,
				Notes:              fmt.Sprintf("detected via adjustment scan, diff=%.6f%%", diffPctFloat),
			}
			if _, err := d.Store.RecordEvent(ctx, ev); err != nil {
				return report, err
			}
		}

		report.Samples = append(report.Samples, detail)
	}

	return report, nil
}

// actionsAfter partitions actions into split/dividend/capital-gain
// summaries restricted to entries strictly after sampleDate, feeding the
// classification heuristic.
func actionsAfter(actions []provider.CorporateAction, sampleDate time.Time) (SplitInfo, DividendInfo, CapitalGainInfo) {
	var splits SplitInfo
	splits.CumulativeRatio = decimal.NewFromInt(1)

	var divSum, divMax decimal.Decimal
	divCount := 0

	var gains CapitalGainInfo

	for _, a := range actions {
		if !a.Date.After(sampleDate) {
			continue
		}
		switch a.Kind {
		case provider.ActionSplit:
			splits.Exists = true
			splits.CumulativeRatio = splits.CumulativeRatio.Mul(decimal.NewFromFloat(a.Value))
		case provider.ActionDividend:
			divCount++
			amount := decimal.NewFromFloat(a.Value)
			divSum = divSum.Add(amount)
			if amount.GreaterThan(divMax) {
				divMax = amount
			}
		case provider.ActionCapitalGain:
			gains.Exists = true
		}
	}

	dividends := DividendInfo{}
	if divCount > 0 {
		dividends.Exists = true
		dividends.Max = divMax
		dividends.Mean = divSum.Div(decimal.NewFromInt(int64(divCount)))
	}

	return splits, dividends, gains
}

// ScanAllSymbols implements spec 4.H's scan_all_symbols(symbols?,
// auto_fix). When symbols is empty, all active symbols are scanned. When
// autoFix is true, the Fixer is invoked immediately for flagged symbols.
func (d *Detector) ScanAllSymbols(ctx context.Context, symbols []string, fixer *Fixer, autoFix bool) (map[string]Report, error) {
	if len(symbols) == 0 {
		active, err := d.Store.ListActiveSymbols(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range active {
			symbols = append(symbols, s.Symbol)
		}
	}

	reports := make(map[string]Report, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		report, err := d.DetectSymbol(ctx, sym)
		if err != nil {
			return reports, fmt.Errorf("detect symbol %s: %w", sym, err)
		}
		reports[sym] = report

		if autoFix && report.NeedsRefresh && fixer != nil {
			if _, err := fixer.Fix(ctx, sym); err != nil {
				return reports, fmt.Errorf("auto-fix symbol %s: %w", sym, err)
			}
		}
	}

	return reports, nil
}
