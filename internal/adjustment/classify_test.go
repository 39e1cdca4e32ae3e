package adjustment

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

func pct(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestClassifyReverseSplit(t *testing.T) {
	eventType, severity := Classify(pct(12), SplitInfo{Exists: true, CumulativeRatio: pct(0.2)}, DividendInfo{}, CapitalGainInfo{})
	if eventType != model.EventReverseSplit || severity != model.SeverityHigh {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifyStockSplit(t *testing.T) {
	eventType, severity := Classify(pct(12), SplitInfo{Exists: true, CumulativeRatio: pct(2)}, DividendInfo{}, CapitalGainInfo{})
	if eventType != model.EventStockSplit || severity != model.SeverityCritical {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifySpinoff(t *testing.T) {
	eventType, severity := Classify(pct(16), SplitInfo{}, DividendInfo{}, CapitalGainInfo{})
	if eventType != model.EventSpinoff || severity != model.SeverityCritical {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifySpecialDividend(t *testing.T) {
	eventType, severity := Classify(pct(3), SplitInfo{}, DividendInfo{Exists: true, Max: pct(5), Mean: pct(1)}, CapitalGainInfo{})
	if eventType != model.EventSpecialDividend || severity != model.SeverityHigh {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifyOrdinaryDividend(t *testing.T) {
	eventType, severity := Classify(pct(0.5), SplitInfo{}, DividendInfo{Exists: true, Max: pct(1), Mean: pct(1)}, CapitalGainInfo{})
	if eventType != model.EventDividend || severity != model.SeverityNormal {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifyCapitalGain(t *testing.T) {
	eventType, severity := Classify(pct(0.5), SplitInfo{}, DividendInfo{}, CapitalGainInfo{Exists: true})
	if eventType != model.EventCapitalGain || severity != model.SeverityNormal {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestClassifyUnknown(t *testing.T) {
	eventType, severity := Classify(pct(0.5), SplitInfo{}, DividendInfo{}, CapitalGainInfo{})
	if eventType != model.EventUnknown || severity != model.SeverityLow {
		t.Fatalf("got (%s, %s)", eventType, severity)
	}
}

func TestSignificantRespectsNoiseFloorAndThreshold(t *testing.T) {
	if Significant(pct(0.00005), DefaultThreshold) {
		t.Error("expected sub-noise-floor diff to be insignificant")
	}
	if !Significant(pct(0.01), DefaultThreshold) {
		t.Error("expected diff above threshold to be significant")
	}
}

func TestSampleDiffPct(t *testing.T) {
	s := Sample{StoredClose: pct(100), ProviderClose: pct(90)}
	diff := s.DiffPct()
	if !diff.Equal(pct(10)) {
		t.Errorf("expected 10%%, got %s", diff)
	}
}
