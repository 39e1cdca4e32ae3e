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

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// MarketData is the raw, unwrapped upstream adjusted-OHLCV fetcher (spec
// section 6.2). It speaks to a Tiingo-shaped REST API: a prices endpoint
// returning daily bars plus split/dividend factors, and is wrapped by
// RateLimited before any caller sees it. Grounded on provider/tiingo.go's
// resty client construction, JSON-into-private-struct parsing and NYC
// market-close timestamp convention.
type MarketData struct {
	client  *resty.Client
	baseURL string
	nyc     *time.Location
}

// NewMarketData builds a MarketData client against baseURL (YF_BASE_URL)
// authenticating with apiKey (YF_API_KEY) as a query parameter, matching
// the teacher's tiingo "token" query param pattern.
func NewMarketData(baseURL, apiKey string) (*MarketData, error) {
	nyc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("could not load market timezone: %w", err)
	}

	client := resty.New().SetQueryParam("token", apiKey)

	return &MarketData{
		client:  client,
		baseURL: baseURL,
		nyc:     nyc,
	}, nil
}

func (m *MarketData) Name() string { return "marketdata" }

type marketDataBar struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

type marketDataAction struct {
	Date  string  `json:"date"`
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

// FetchRange returns cleaned bars and corporate actions for symbol over
// [start, end] inclusive. The upstream prices endpoint treats its own
// "end" query parameter as exclusive, so one day is added before the
// call to yield an inclusive range, per spec 4.C.
func (m *MarketData) FetchRange(ctx context.Context, symbol string, start, end time.Time) (FetchResult, error) {
	upstreamEnd := end.AddDate(0, 0, 1)

	bars, err := m.fetchBars(ctx, symbol, start, upstreamEnd)
	if err != nil {
		return FetchResult{}, err
	}

	actions, err := m.fetchActions(ctx, symbol, start, upstreamEnd)
	if err != nil {
		return FetchResult{}, err
	}

	return FetchResult{
		Bars:    Clean(bars),
		Actions: actions,
	}, nil
}

func (m *MarketData) fetchBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	url := fmt.Sprintf("%s/prices/%s", m.baseURL, symbol)

	var raw []*marketDataBar
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("start", start.Format("2006-01-02")).
		SetQueryParam("end", end.Format("2006-01-02")).
		SetResult(&raw).
		Get(url)
	if err != nil {
		return nil, ErrTransientWrap(err)
	}

	if classifyStatus(resp.StatusCode()) != nil {
		return nil, classifyStatus(resp.StatusCode())
	}

	bars := make([]PriceBar, 0, len(raw))
	for _, b := range raw {
		parsed, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("date", b.Date).Msg("could not parse bar date from marketdata provider")
			continue
		}

		stamped := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 16, 0, 0, 0, m.nyc)

		bars = append(bars, PriceBar{
			Date:   stamped,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}

	return bars, nil
}

func (m *MarketData) fetchActions(ctx context.Context, symbol string, start, end time.Time) ([]CorporateAction, error) {
	url := fmt.Sprintf("%s/actions/%s", m.baseURL, symbol)

	var raw []*marketDataAction
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("start", start.Format("2006-01-02")).
		SetQueryParam("end", end.Format("2006-01-02")).
		SetResult(&raw).
		Get(url)
	if err != nil {
		return nil, ErrTransientWrap(err)
	}

	if classifyStatus(resp.StatusCode()) != nil {
		return nil, classifyStatus(resp.StatusCode())
	}

	actions := make([]CorporateAction, 0, len(raw))
	for _, a := range raw {
		parsed, err := time.Parse("2006-01-02", a.Date)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Str("date", a.Date).Msg("could not parse action date from marketdata provider")
			continue
		}

		var kind ActionKind
		switch a.Type {
		case "split":
			kind = ActionSplit
		case "dividend":
			kind = ActionDividend
		case "capital_gain":
			kind = ActionCapitalGain
		default:
			log.Debug().Str("symbol", symbol).Str("type", a.Type).Msg("unrecognized action type from marketdata provider")
			continue
		}

		actions = append(actions, CorporateAction{
			Date:  parsed,
			Kind:  kind,
			Value: a.Value,
		})
	}

	return actions, nil
}

// ValidateSymbol performs a cheap probe of the last ten days to confirm
// symbol is known upstream, used by auto-registration without a wider
// fetch.
func (m *MarketData) ValidateSymbol(ctx context.Context, sym string) (bool, error) {
	now := time.Now().In(m.nyc)
	bars, err := m.fetchBars(ctx, sym, now.AddDate(0, 0, -10), now.AddDate(0, 0, 1))
	if err != nil {
		return false, err
	}
	return len(bars) > 0, nil
}

// ProbeAdjustedCloses returns the provider's adjusted close for each
// available date in [start, end], used by the Adjustment Detector to
// compare against stored values in one batched call.
func (m *MarketData) ProbeAdjustedCloses(ctx context.Context, symbol string, start, end time.Time) (AdjustedCloses, error) {
	url := fmt.Sprintf("%s/prices/%s", m.baseURL, symbol)

	var raw []*marketDataBar
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParam("start", start.Format("2006-01-02")).
		SetQueryParam("end", end.AddDate(0, 0, 1).Format("2006-01-02")).
		SetResult(&raw).
		Get(url)
	if err != nil {
		return nil, ErrTransientWrap(err)
	}

	if classifyStatus(resp.StatusCode()) != nil {
		return nil, classifyStatus(resp.StatusCode())
	}

	closes := make(AdjustedCloses, len(raw))
	for _, b := range raw {
		parsed, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		stamped := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 16, 0, 0, 0, m.nyc)
		closes[stamped] = b.AdjClose
	}

	return closes, nil
}
