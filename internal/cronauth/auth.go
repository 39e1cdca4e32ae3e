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
// Package cronauth is the shared-secret header check contract for
// scheduled maintenance endpoints (spec 6.1/6.4): a two-line
// comparison, modeled as a stand-in collaborator the way authentication
// for scheduled endpoints is described as "out of scope, contract only."
package cronauth

import "crypto/subtle"

// HeaderName is the expected header carrying the shared secret.
const HeaderName = "X-Cron-Secret"

// Check reports whether provided matches configured. An empty configured
// token disables the check entirely (development mode only, per spec
// 6.1) and Check always returns true in that case.
func Check(configured, provided string) bool {
	if configured == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(provided)) == 1
}
