package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/backoff"
)

type fakeFetcher struct {
	name       string
	failTimes  int
	calls      int
	err        error
	fetchResult FetchResult
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) FetchRange(_ context.Context, _ string, _, _ time.Time) (FetchResult, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return FetchResult{}, f.err
	}
	return f.fetchResult, nil
}

func (f *fakeFetcher) ValidateSymbol(_ context.Context, _ string) (bool, error) {
	return true, nil
}

func (f *fakeFetcher) ProbeAdjustedCloses(_ context.Context, _ string, _, _ time.Time) (AdjustedCloses, error) {
	return nil, nil
}

func fastPolicy() backoff.Policy {
	return backoff.Policy{Base: time.Millisecond, Multiplier: 1.0, Max: 5 * time.Millisecond, MaxAttempts: 5}
}

func TestRateLimitedRetriesTransientErrors(t *testing.T) {
	inner := &fakeFetcher{name: "fake", failTimes: 2, err: backoff.ErrTransient, fetchResult: FetchResult{Bars: []PriceBar{{}}}}
	rl := NewRateLimited(inner, 1000, 10, 4, fastPolicy())

	result, err := rl.FetchRange(context.Background(), "AAPL", time.Now(), time.Now())
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if len(result.Bars) != 1 {
		t.Fatalf("expected 1 bar in result, got %d", len(result.Bars))
	}
	if inner.calls != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", inner.calls)
	}
}

func TestRateLimitedDoesNotRetryNonTransient(t *testing.T) {
	inner := &fakeFetcher{name: "fake", failTimes: 100, err: backoff.ErrNoData}
	rl := NewRateLimited(inner, 1000, 10, 4, fastPolicy())

	_, err := rl.FetchRange(context.Background(), "AAPL", time.Now(), time.Now())
	if !errors.Is(err, backoff.ErrNoData) {
		t.Fatalf("expected ErrNoData to surface immediately, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected exactly 1 call (no retry), got %d", inner.calls)
	}
}

func TestRateLimitedExhaustsRetries(t *testing.T) {
	inner := &fakeFetcher{name: "fake", failTimes: 100, err: backoff.ErrRateLimited}
	policy := fastPolicy()
	policy.MaxAttempts = 2
	rl := NewRateLimited(inner, 1000, 10, 4, policy)

	_, err := rl.FetchRange(context.Background(), "AAPL", time.Now(), time.Now())
	if !errors.Is(err, backoff.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after exhausting retries, got %v", err)
	}
	if inner.calls != 3 { // initial + 2 retries
		t.Errorf("expected 3 calls, got %d", inner.calls)
	}
}
