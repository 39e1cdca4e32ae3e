package coverage

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDecideSubRangesInitialFetch(t *testing.T) {
	ranges := decideSubRanges(day("2024-01-01"), day("2024-01-31"), Info{HasRows: false}, 7, day("2024-02-01"))
	if len(ranges) != 1 {
		t.Fatalf("expected 1 range, got %d", len(ranges))
	}
	if !ranges[0].From.Equal(day("2024-01-01")) || !ranges[0].To.Equal(day("2024-01-31")) {
		t.Errorf("unexpected initial range: %+v", ranges[0])
	}
}

func TestDecideSubRangesGapFill(t *testing.T) {
	info := Info{
		HasRows:             true,
		FirstDate:           day("2024-01-10"),
		LastDate:            day("2024-01-20"),
		HasWeekdayGap:       true,
		FirstMissingWeekday: day("2024-01-01"),
	}
	ranges := decideSubRanges(day("2024-01-01"), day("2024-01-20"), info, 7, day("2024-01-20"))
	if len(ranges) != 1 {
		t.Fatalf("expected 1 merged range, got %+v", ranges)
	}
	if !ranges[0].From.Equal(day("2024-01-01")) || !ranges[0].To.Equal(day("2024-01-10")) {
		t.Errorf("unexpected gap-fill range: %+v", ranges[0])
	}
}

func TestDecideSubRangesTailRefresh(t *testing.T) {
	info := Info{
		HasRows:   true,
		FirstDate: day("2024-01-01"),
		LastDate:  day("2024-01-10"),
	}
	today := day("2024-01-20")
	ranges := decideSubRanges(day("2024-01-01"), day("2024-01-15"), info, 7, today)
	if len(ranges) != 1 {
		t.Fatalf("expected 1 tail range, got %+v", ranges)
	}
	wantFrom := day("2024-01-03") // last_date - 7 days
	if !ranges[0].From.Equal(wantFrom) {
		t.Errorf("expected tail from %v, got %v", wantFrom, ranges[0].From)
	}
	if !ranges[0].To.Equal(day("2024-01-15")) {
		t.Errorf("expected tail to 2024-01-15, got %v", ranges[0].To)
	}
}

func TestDecideSubRangesNoFetchWhenCovered(t *testing.T) {
	info := Info{
		HasRows:   true,
		FirstDate: day("2024-01-01"),
		LastDate:  day("2024-01-15"),
	}
	today := day("2024-01-16") // last_date is "today"-ish, no tail staleness
	ranges := decideSubRanges(day("2024-01-01"), day("2024-01-10"), info, 7, today)
	if len(ranges) != 0 {
		t.Fatalf("expected no fetch needed, got %+v", ranges)
	}
}

func TestMergeRangesDropsCandidateBeyondCeiling(t *testing.T) {
	ranges := mergeRanges([]DateRange{{From: day("2024-02-01"), To: day("2024-02-10")}}, day("2024-01-31"))
	if len(ranges) != 0 {
		t.Fatalf("expected candidate beyond ceiling to be dropped, got %+v", ranges)
	}
}

func TestMergeRangesCombinesAdjacent(t *testing.T) {
	ranges := mergeRanges([]DateRange{
		{From: day("2024-01-01"), To: day("2024-01-05")},
		{From: day("2024-01-06"), To: day("2024-01-10")},
	}, day("2024-02-01"))
	if len(ranges) != 1 {
		t.Fatalf("expected adjacent ranges to merge, got %+v", ranges)
	}
	if !ranges[0].To.Equal(day("2024-01-10")) {
		t.Errorf("expected merged range to extend to 2024-01-10, got %v", ranges[0].To)
	}
}
