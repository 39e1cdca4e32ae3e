package segment

import (
	"context"
	"testing"
	"time"

	"github.com/quantledger/ohlcv-coverage/internal/model"
)

type staticLookup struct {
	change *model.SymbolChange
}

func (s staticLookup) LookupRename(_ context.Context, _ string) (*model.SymbolChange, error) {
	return s.change, nil
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveNoRename(t *testing.T) {
	segments, err := Resolve(context.Background(), staticLookup{}, "META", date("2022-01-01"), date("2022-01-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].StorageSymbol != "META" {
		t.Errorf("expected storage symbol META, got %s", segments[0].StorageSymbol)
	}
}

// TestResolveRenameTransparency is E2E-1 from spec section 8.
func TestResolveRenameTransparency(t *testing.T) {
	lookup := staticLookup{change: &model.SymbolChange{
		OldSymbol:  "FB",
		NewSymbol:  "META",
		ChangeDate: date("2022-06-09"),
	}}

	segments, err := Resolve(context.Background(), lookup, "META", date("2022-06-08"), date("2022-06-09"))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d: %+v", len(segments), segments)
	}
	if segments[0].StorageSymbol != "FB" || !segments[0].From.Equal(date("2022-06-08")) || !segments[0].To.Equal(date("2022-06-08")) {
		t.Errorf("unexpected first segment: %+v", segments[0])
	}
	if segments[1].StorageSymbol != "META" || !segments[1].From.Equal(date("2022-06-09")) || !segments[1].To.Equal(date("2022-06-09")) {
		t.Errorf("unexpected second segment: %+v", segments[1])
	}
}

func TestResolveRenameEntirelyBeforeRange(t *testing.T) {
	lookup := staticLookup{change: &model.SymbolChange{
		OldSymbol:  "FB",
		NewSymbol:  "META",
		ChangeDate: date("2022-06-09"),
	}}

	segments, err := Resolve(context.Background(), lookup, "META", date("2023-01-01"), date("2023-01-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment (old-symbol half empty), got %d", len(segments))
	}
	if segments[0].StorageSymbol != "META" {
		t.Errorf("expected META, got %s", segments[0].StorageSymbol)
	}
}

func TestResolveRenameEntirelyAfterRange(t *testing.T) {
	lookup := staticLookup{change: &model.SymbolChange{
		OldSymbol:  "FB",
		NewSymbol:  "META",
		ChangeDate: date("2022-06-09"),
	}}

	segments, err := Resolve(context.Background(), lookup, "META", date("2020-01-01"), date("2020-01-31"))
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment (new-symbol half empty), got %d", len(segments))
	}
	if segments[0].StorageSymbol != "FB" {
		t.Errorf("expected FB, got %s", segments[0].StorageSymbol)
	}
}

// TestSegmentCompleteness is invariant 2 from spec section 8: union of
// sub-ranges equals [from, to] with no overlap, at most two sub-ranges.
func TestSegmentCompleteness(t *testing.T) {
	lookup := staticLookup{change: &model.SymbolChange{
		OldSymbol:  "FB",
		NewSymbol:  "META",
		ChangeDate: date("2022-06-09"),
	}}

	from, to := date("2021-01-01"), date("2023-01-01")
	segments, err := Resolve(context.Background(), lookup, "META", from, to)
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) > 2 {
		t.Fatalf("at most two segments allowed, got %d", len(segments))
	}
	if !segments[0].From.Equal(from) {
		t.Errorf("first segment should start at %v, got %v", from, segments[0].From)
	}
	if !segments[len(segments)-1].To.Equal(to) {
		t.Errorf("last segment should end at %v, got %v", to, segments[len(segments)-1].To)
	}
	for i := 1; i < len(segments); i++ {
		gap := segments[i].From.Sub(segments[i-1].To)
		if gap != 24*time.Hour {
			t.Errorf("segments must be adjacent without overlap, got gap %v between segment %d and %d", gap, i-1, i)
		}
	}
}
