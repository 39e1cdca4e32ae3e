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
// Package symbol canonicalizes ticker strings. Pure, no I/O, grounded on
// the ticker-munging the teacher does inline in provider/tiingo.go
// (ReplaceAll on ticker separators, an ignore-prefix filter) generalized
// into a single deterministic normalizer per spec section 4.A.
package symbol

import (
	"strings"

	"github.com/quantledger/ohlcv-coverage/internal/apierr"
)

// exchangeSuffixes is the fixed enumerated set of one- and two-letter
// exchange codes that are kept as a dot-suffix rather than folded into a
// class-share hyphen (e.g. "7203.T" for Tokyo stays as-is).
var exchangeSuffixes = map[string]bool{
	"T":  true, // Tokyo
	"HK": true, // Hong Kong
	"L":  true, // London
	"TO": true, // Toronto
	"AX": true, // Australia
	"PA": true, // Paris
	"DE": true, // Germany (Xetra)
	"SW": true, // Switzerland
}

// Normalize canonicalizes a raw ticker string per spec 4.A:
//   - uppercase
//   - preserve recognized exchange-code dot-suffixes
//   - fold single-letter US class-share dot-suffixes to a hyphen (BRK.B -> BRK-B)
//   - preserve index prefixes (^VIX)
//   - reject empty/whitespace-only input
func Normalize(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apierr.Validation("symbol must not be empty", nil)
	}

	upper := strings.ToUpper(trimmed)

	hasIndexPrefix := strings.HasPrefix(upper, "^")
	body := upper
	prefix := ""
	if hasIndexPrefix {
		prefix = "^"
		body = upper[1:]
	}

	idx := strings.LastIndex(body, ".")
	if idx < 0 {
		return prefix + body, nil
	}

	suffix := body[idx+1:]
	if exchangeSuffixes[suffix] {
		return prefix + body, nil
	}

	if len(suffix) == 1 {
		// class-share suffix: BRK.B -> BRK-B
		return prefix + body[:idx] + "-" + suffix, nil
	}

	// unrecognized multi-letter suffix: leave as-is, it's not a known
	// exchange code and not a single-letter class share.
	return prefix + body, nil
}
