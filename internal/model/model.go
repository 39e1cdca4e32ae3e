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
// Package model holds the persistent entities of the coverage service:
// Symbol, SymbolChange, Price, CorporateEvent and FetchJob, plus the
// small closed enums their status/type fields are restricted to.
package model

import "time"

// Symbol is a tracked equity ticker.
type Symbol struct {
	Symbol         string     `db:"symbol"`
	DisplayName    string     `db:"display_name"`
	Exchange       string     `db:"exchange"`
	Currency       string     `db:"currency"`
	Active         bool       `db:"active"`
	HasFullHistory bool       `db:"has_full_history"`
	FirstDate      *time.Time `db:"first_date"`
	LastDate       *time.Time `db:"last_date"`
	CreatedAt      time.Time  `db:"created_at"`
}

// SymbolChange records a one-hop rename: old_symbol traded under new_symbol
// starting on ChangeDate. UNIQUE(new_symbol) guarantees at most one
// historical predecessor per current symbol.
type SymbolChange struct {
	OldSymbol  string    `db:"old_symbol"`
	ChangeDate time.Time `db:"change_date"`
	NewSymbol  string    `db:"new_symbol"`
	Reason     string    `db:"reason"`
}

// Price is one adjusted daily OHLCV bar for a storage symbol.
type Price struct {
	Symbol      string    `db:"symbol"`
	Date        time.Time `db:"date"`
	Open        float64   `db:"open"`
	High        float64   `db:"high"`
	Low         float64   `db:"low"`
	Close       float64   `db:"close"`
	Volume      int64     `db:"volume"`
	Source      string    `db:"source"`
	LastUpdated time.Time `db:"last_updated"`
}

// Valid reports whether the row satisfies the OHLC integrity invariant:
// low <= min(open,close) <= max(open,close) <= high, all positive, volume
// non-negative.
func (p *Price) Valid() bool {
	if p.Open <= 0 || p.High <= 0 || p.Low <= 0 || p.Close <= 0 {
		return false
	}
	if p.Volume < 0 {
		return false
	}
	minOC := p.Open
	if p.Close < minOC {
		minOC = p.Close
	}
	maxOC := p.Open
	if p.Close > maxOC {
		maxOC = p.Close
	}
	return p.Low <= minOC && maxOC <= p.High
}

// EventType classifies a detected corporate action.
type EventType string

const (
	EventStockSplit      EventType = "stock_split"
	EventReverseSplit    EventType = "reverse_split"
	EventDividend        EventType = "dividend"
	EventSpecialDividend EventType = "special_dividend"
	EventCapitalGain     EventType = "capital_gain"
	EventSpinoff         EventType = "spinoff"
	EventUnknown         EventType = "unknown"
)

// Severity ranks how urgently a detected event needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityNormal   Severity = "normal"
	SeverityLow      Severity = "low"
)

// EventStatus is the lifecycle state of a CorporateEvent. Transitions are
// monotone: detected -> (confirmed|ignored) -> fixing -> (fixed|failed),
// with ignored terminal.
type EventStatus string

const (
	StatusDetected  EventStatus = "detected"
	StatusConfirmed EventStatus = "confirmed"
	StatusFixing    EventStatus = "fixing"
	StatusFixed     EventStatus = "fixed"
	StatusIgnored   EventStatus = "ignored"
	StatusFailed    EventStatus = "failed"
)

// CorporateEvent is a detected or confirmed corporate action that may
// require historical re-adjustment. Natural uniqueness is
// (Symbol, EventDate, EventType).
type CorporateEvent struct {
	ID                  int64          `db:"id"`
	Symbol              string         `db:"symbol"`
	EventDate           time.Time      `db:"event_date"`
	EventType           EventType      `db:"event_type"`
	Ratio               *float64       `db:"ratio"`
	Amount              *float64       `db:"amount"`
	Currency            string         `db:"currency"`
	ExDate              *time.Time     `db:"ex_date"`
	DetectedAt          time.Time      `db:"detected_at"`
	DBPriceAtDetection  float64        `db:"db_price_at_detection"`
	YFPriceAtDetection  float64        `db:"yf_price_at_detection"`
	PctDifference       float64        `db:"pct_difference"`
	Severity            Severity       `db:"severity"`
	Status              EventStatus    `db:"status"`
	FixedAt             *time.Time     `db:"fixed_at"`
	FixJobID            string         `db:"fix_job_id"`
	RowsDeleted         int            `db:"rows_deleted"`
	RowsRefetched       int            `db:"rows_refetched"`
	SourceData          map[string]any `db:"source_data"`
	Notes               string         `db:"notes"`
}

// JobStatus is the lifecycle state of a FetchJob.
type JobStatus string

const (
	JobPending             JobStatus = "pending"
	JobRunning             JobStatus = "running"
	JobCompleted           JobStatus = "completed"
	JobCompletedWithErrors JobStatus = "completed_with_errors"
	JobFailed              JobStatus = "failed"
	JobCancelled           JobStatus = "cancelled"
)

// JobPriority orders pending FetchJobs for pickup by the worker.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// rank gives high > normal > low ordering for queue pickup.
func (p JobPriority) rank() int {
	switch p {
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Less reports whether p should be picked up before other (higher rank first).
func (p JobPriority) Less(other JobPriority) bool {
	return p.rank() > other.rank()
}

// SymbolOutcome is the per-symbol result recorded on a FetchJob.
type SymbolOutcome string

const (
	OutcomeSuccess SymbolOutcome = "success"
	OutcomePartial SymbolOutcome = "partial"
	OutcomeFailed  SymbolOutcome = "failed"
)

// SymbolResult is the per-symbol outcome of executing a FetchJob.
type SymbolResult struct {
	Symbol      string        `json:"symbol"`
	Outcome     SymbolOutcome `json:"outcome"`
	RowsFetched int           `json:"rowsFetched"`
	Error       string        `json:"error,omitempty"`
}

// JobProgress is the structured progress counter tracked on a FetchJob
// while the worker executes it.
type JobProgress struct {
	Total         int     `json:"total"`
	Completed     int     `json:"completed"`
	CurrentSymbol string  `json:"currentSymbol"`
	FetchedRows   int     `json:"fetchedRows"`
	Percent       float64 `json:"percent"`
}

// CoverageSummaryRow is one row of the per-symbol coverage_summary view:
// point count and date span, used by the library status report.
type CoverageSummaryRow struct {
	Symbol      string     `db:"symbol"`
	DataPoints  int        `db:"data_points"`
	FirstDate   *time.Time `db:"first_date"`
	LastDate    *time.Time `db:"last_date"`
	LastUpdated *time.Time `db:"last_updated"`
	TotalDays   *int       `db:"total_days"`
}

// FetchJob is a durable record describing a bulk backfill unit of work.
type FetchJob struct {
	JobID        string                  `db:"job_id"`
	Status       JobStatus               `db:"status"`
	Symbols      []string                `db:"symbols"`
	DateFrom     time.Time               `db:"date_from"`
	DateTo       time.Time               `db:"date_to"`
	Interval     string                  `db:"interval"`
	ForceRefresh bool                    `db:"force_refresh"`
	Priority     JobPriority             `db:"priority"`
	Progress     JobProgress             `db:"progress"`
	Results      map[string]SymbolResult `db:"results"`
	Errors       []string                `db:"errors"`
	CreatedAt    time.Time               `db:"created_at"`
	StartedAt    *time.Time              `db:"started_at"`
	CompletedAt  *time.Time              `db:"completed_at"`
	CreatedBy    string                  `db:"created_by"`
}
