package symbol

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "lowercase", raw: "aapl", want: "AAPL"},
		{name: "class share", raw: "BRK.B", want: "BRK-B"},
		{name: "class share lowercase", raw: "brk.a", want: "BRK-A"},
		{name: "tokyo suffix kept", raw: "7203.t", want: "7203.T"},
		{name: "hk suffix kept", raw: "0700.hk", want: "0700.HK"},
		{name: "index prefix", raw: "^vix", want: "^VIX"},
		{name: "whitespace trimmed", raw: "  msft  ", want: "MSFT"},
		{name: "empty rejected", raw: "", wantErr: true},
		{name: "whitespace only rejected", raw: "   ", wantErr: true},
		{name: "no suffix", raw: "tsla", want: "TSLA"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.raw, got, tc.want)
			}
		})
	}
}
