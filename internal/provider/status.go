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
	"fmt"
	"net/http"

	"github.com/quantledger/ohlcv-coverage/internal/backoff"
)

// classifyStatus maps an upstream HTTP status code to the sentinel errors
// internal/backoff.Retryable understands, so RateLimited's retry loop can
// tell a transient 5xx/429 apart from a terminal 404/422. Returns nil for
// success codes.
func classifyStatus(code int) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return backoff.ErrRateLimited
	case code >= 500:
		return backoff.ErrTransient
	case code == http.StatusNotFound || code == http.StatusUnprocessableEntity:
		return backoff.ErrInvalidSymbol
	default:
		return fmt.Errorf("marketdata provider returned unexpected status %d", code)
	}
}

// ErrTransientWrap folds a transport-level error (timeout, connection
// reset) from resty into the transient bucket so it participates in the
// same retry policy as a 5xx response.
func ErrTransientWrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", backoff.ErrTransient, err)
}
