package provider

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestCleanRejectsInvalidRows(t *testing.T) {
	bars := []PriceBar{
		{Date: d("2024-01-01"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: d("2024-01-02"), Open: 0, High: 11, Low: 9, Close: 10, Volume: 100}, // zero open
		{Date: d("2024-01-03"), Open: 10, High: 11, Low: 9, Close: 10, Volume: -5}, // negative volume
	}

	cleaned := Clean(bars)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 surviving row, got %d", len(cleaned))
	}
	if !cleaned[0].Date.Equal(d("2024-01-01")) {
		t.Errorf("unexpected surviving row: %+v", cleaned[0])
	}
}

func TestCleanDedupsLastWins(t *testing.T) {
	bars := []PriceBar{
		{Date: d("2024-01-01"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: d("2024-01-01"), Open: 12, High: 13, Low: 11, Close: 12, Volume: 200},
	}

	cleaned := Clean(bars)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 deduped row, got %d", len(cleaned))
	}
	if cleaned[0].Open != 12 {
		t.Errorf("expected last-wins row (Open=12), got %+v", cleaned[0])
	}
}

func TestCleanSortsByDate(t *testing.T) {
	bars := []PriceBar{
		{Date: d("2024-01-03"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: d("2024-01-01"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: d("2024-01-02"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
	}

	cleaned := Clean(bars)
	for i := 1; i < len(cleaned); i++ {
		if !cleaned[i].Date.After(cleaned[i-1].Date) {
			t.Fatalf("expected strictly increasing dates, got %v then %v", cleaned[i-1].Date, cleaned[i].Date)
		}
	}
}
