package backoff

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestDelayGrowsAndCaps(t *testing.T) {
	p := Policy{Base: 100 * time.Millisecond, Multiplier: 2.0, Max: time.Second, MaxAttempts: 10}

	prevUpperBound := time.Duration(0)
	for attempt := 0; attempt < 6; attempt++ {
		d := p.Delay(attempt)
		if d < 0 {
			t.Fatalf("delay must not be negative, got %v", d)
		}
		// jittered delay must stay within [0.8x, 1.2x] of the capped
		// exponential value, and never exceed Max*1.2
		expected := float64(p.Base) * math.Pow(p.Multiplier, float64(attempt))
		if expected > float64(p.Max) {
			expected = float64(p.Max)
		}
		lower, upper := time.Duration(expected*0.8), time.Duration(expected*1.2)
		if d < lower || d > upper {
			t.Fatalf("attempt %d: delay %v outside jitter bounds [%v, %v]", attempt, d, lower, upper)
		}
		maxAllowed := time.Duration(float64(p.Max) * 1.2)
		if d > maxAllowed {
			t.Fatalf("attempt %d: delay %v exceeds max bound %v", attempt, d, maxAllowed)
		}
		if upper < prevUpperBound {
			t.Fatalf("attempt %d: upper bound %v shrank from %v", attempt, upper, prevUpperBound)
		}
		prevUpperBound = upper
	}
}

func TestRetryableClassification(t *testing.T) {
	if !Retryable(ErrRateLimited) {
		t.Error("rate limited errors should be retryable")
	}
	if !Retryable(ErrTransient) {
		t.Error("transient errors should be retryable")
	}
	if Retryable(ErrNoData) {
		t.Error("no-data errors should not be retryable")
	}
	if Retryable(ErrInvalidSymbol) {
		t.Error("invalid symbol errors should not be retryable")
	}
	if Retryable(errors.New("some other error")) {
		t.Error("unrelated errors should not be retryable")
	}
}
