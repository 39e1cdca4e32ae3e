package store

import (
	"testing"
	"time"
)

func TestValidateJobRequest(t *testing.T) {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	cases := []struct {
		name       string
		symbols    []string
		from, to   time.Time
		maxSymbols int
		maxDays    int
		wantErr    bool
	}{
		{
			name:    "empty symbols rejected",
			symbols: nil,
			from:    today.AddDate(0, 0, -10),
			to:      today,
			wantErr: true,
		},
		{
			name:       "too many symbols rejected",
			symbols:    []string{"AAPL", "MSFT", "GOOG"},
			from:       today.AddDate(0, 0, -10),
			to:         today,
			maxSymbols: 2,
			wantErr:    true,
		},
		{
			name:    "date_to before date_from rejected",
			symbols: []string{"AAPL"},
			from:    today,
			to:      today.AddDate(0, 0, -1),
			wantErr: true,
		},
		{
			name:    "date_to after today rejected",
			symbols: []string{"AAPL"},
			from:    today.AddDate(0, 0, -1),
			to:      today.AddDate(0, 0, 1),
			wantErr: true,
		},
		{
			name:    "window wider than max days rejected",
			symbols: []string{"AAPL"},
			from:    today.AddDate(0, 0, -30),
			to:      today,
			maxDays: 10,
			wantErr: true,
		},
		{
			name:    "symbol with disallowed characters rejected",
			symbols: []string{"AAPL;DROP TABLE"},
			from:    today.AddDate(0, 0, -5),
			to:      today,
			wantErr: true,
		},
		{
			name:    "well-formed request accepted",
			symbols: []string{"AAPL", "BRK-B", "^VIX", "7203.T"},
			from:    today.AddDate(0, 0, -5),
			to:      today,
			wantErr: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJobRequest(tc.symbols, tc.from, tc.to, tc.maxSymbols, tc.maxDays)
			if tc.wantErr && err == nil {
				t.Fatalf("expected an error, got none")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})
	}
}
