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
// Package backoff implements exponential backoff with jitter for the
// upstream fetcher's retry policy (spec section 4.C), and classifies
// which errors are worth retrying at all.
package backoff

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Policy parameterizes the retry/backoff schedule.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
	MaxAttempts int
}

// DefaultPolicy mirrors spec 4.C / 6.4 defaults: short base delay,
// doubling, capped, with a handful of attempts.
func DefaultPolicy() Policy {
	return Policy{
		Base:        200 * time.Millisecond,
		Multiplier:  2.0,
		Max:         30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay computes base * multiplier^attempt, capped at Max, with +-20%
// jitter, per spec's "Exponential backoff with jitter" glossary entry.
func (p Policy) Delay(attempt int) time.Duration {
	raw := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt))
	if raw > float64(p.Max) {
		raw = float64(p.Max)
	}

	jitter := 1 + (rand.Float64()*0.4 - 0.2) // +-20%
	d := time.Duration(raw * jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// ErrRateLimited signals a provider rate-limit (429-equivalent) response.
var ErrRateLimited = errors.New("upstream rate limited")

// ErrTransient signals a connection reset / timeout class of error.
var ErrTransient = errors.New("transient upstream error")

// ErrNoData signals an explicit "no data" response that must not be retried.
var ErrNoData = errors.New("no data available")

// ErrInvalidSymbol signals an explicit invalid-symbol response that must
// not be retried.
var ErrInvalidSymbol = errors.New("invalid symbol")

// Retryable reports whether err is a transient condition that should be
// retried under this policy: rate limits and transient connection
// errors are retryable; explicit no-data/invalid-symbol responses
// surface immediately per spec section 4.C / 7.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTransient)
}
