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
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/backoff"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// RateLimited wraps a raw Fetcher with the token-bucket rate control,
// global concurrency cap and exponential-backoff retry described in spec
// section 4.C. The token bucket and semaphore are grounded directly on
// provider/tiingo.go and figi/openfigi.go's rate.NewLimiter usage in the
// teacher; the retry loop is new, built around internal/backoff.
type RateLimited struct {
	inner   Fetcher
	limiter *rate.Limiter
	sem     *semaphore.Weighted
	policy  backoff.Policy
}

// NewRateLimited builds a rate-limited, retrying fetcher. requestsPerSec
// and burst configure the token bucket (YF_RATE_LIMIT_REQUESTS_PER_SECOND
// / YF_RATE_LIMIT_BURST_SIZE); concurrency bounds simultaneous in-flight
// calls across the process (YF_REQ_CONCURRENCY).
func NewRateLimited(inner Fetcher, requestsPerSec float64, burst int, concurrency int64, policy backoff.Policy) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		sem:     semaphore.NewWeighted(concurrency),
		policy:  policy,
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) FetchRange(ctx context.Context, symbol string, start, end time.Time) (FetchResult, error) {
	var result FetchResult
	err := r.withLimits(ctx, func() error {
		var err error
		result, err = r.inner.FetchRange(ctx, symbol, start, end)
		return err
	})
	return result, err
}

func (r *RateLimited) ValidateSymbol(ctx context.Context, sym string) (bool, error) {
	var ok bool
	err := r.withLimits(ctx, func() error {
		var err error
		ok, err = r.inner.ValidateSymbol(ctx, sym)
		return err
	})
	return ok, err
}

func (r *RateLimited) ProbeAdjustedCloses(ctx context.Context, symbol string, start, end time.Time) (AdjustedCloses, error) {
	var closes AdjustedCloses
	err := r.withLimits(ctx, func() error {
		var err error
		closes, err = r.inner.ProbeAdjustedCloses(ctx, symbol, start, end)
		return err
	})
	return closes, err
}

// withLimits acquires a concurrency slot and a rate-limit token, then
// retries call with exponential backoff while backoff.Retryable(err).
// Non-transient errors (explicit no-data, invalid symbol) surface
// immediately, per spec 4.C.
func (r *RateLimited) withLimits(ctx context.Context, call func() error) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if !backoff.Retryable(err) {
			return err
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Delay(attempt)
		log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying upstream fetch after transient error")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
