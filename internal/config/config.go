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
// Package config loads typed settings from environment and optional TOML
// config file, the way the teacher's cmd/root.go initConfig does it
// (viper.AutomaticEnv + cobra flags), generalized into a Settings struct
// instead of direct viper.Get* calls scattered through the codebase.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings is the fully-resolved configuration surface, covering spec
// section 6.4's recognized environment options.
type Settings struct {
	DatabaseURL string

	// Upstream
	YFRateLimitRequestsPerSecond float64
	YFRateLimitBurstSize         int
	YFRateLimitMaxBackoffDelay   time.Duration
	FetchTimeoutSeconds          int
	FetchMaxRetries              int
	FetchBackoffMaxSeconds       int
	YFRefetchDays                int
	YFReqConcurrency             int64
	YFBaseURL                    string
	YFAPIKey                     string

	// API limits
	APIMaxSymbols      int
	APIMaxSymbolsLocal int
	APIMaxRows         int
	APIMaxRowsLocal    int

	// Jobs
	FetchJobMaxSymbols       int
	FetchJobMaxDays          int
	FetchJobTimeout          time.Duration
	FetchWorkerConcurrency   int
	FetchMaxConcurrentJobs   int
	FetchJobCleanupDays      int

	// Adjustments
	AdjustmentCheckEnabled    bool
	AdjustmentMinThresholdPct float64
	AdjustmentSamplePoints    int
	AdjustmentMinDataAgeDays  int
	AdjustmentAutoFix         bool

	// Auth
	CronSecretToken string
	CronBatchSize   int
	CronUpdateDays  int

	// Auto-registration
	EnableAutoRegistration bool
	AutoRegisterTimeout    time.Duration
	YFValidateTimeout      time.Duration
}

// setDefaults registers every spec 6.4 default, mirroring the teacher's
// practice of defaulting liberally so an empty environment still runs.
func setDefaults(v *viper.Viper) {
	v.SetDefault("yf_rate_limit_requests_per_second", 5.0)
	v.SetDefault("yf_rate_limit_burst_size", 10)
	v.SetDefault("yf_rate_limit_max_backoff_delay", "30s")
	v.SetDefault("fetch_timeout_seconds", 30)
	v.SetDefault("fetch_max_retries", 5)
	v.SetDefault("fetch_backoff_max_seconds", 30)
	v.SetDefault("yf_refetch_days", 7)
	v.SetDefault("yf_req_concurrency", 8)
	v.SetDefault("yf_base_url", "https://api.marketdata.example/v1")

	v.SetDefault("api_max_symbols", 50)
	v.SetDefault("api_max_symbols_local", 200)
	v.SetDefault("api_max_rows", 20000)
	v.SetDefault("api_max_rows_local", 100000)

	v.SetDefault("fetch_job_max_symbols", 500)
	v.SetDefault("fetch_job_max_days", 20000)
	v.SetDefault("fetch_job_timeout", "1h")
	v.SetDefault("fetch_worker_concurrency", 4)
	v.SetDefault("fetch_max_concurrent_jobs", 1)
	v.SetDefault("fetch_job_cleanup_days", 90)

	v.SetDefault("adjustment_check_enabled", true)
	v.SetDefault("adjustment_min_threshold_pct", 0.001)
	v.SetDefault("adjustment_sample_points", 10)
	v.SetDefault("adjustment_min_data_age_days", 7)
	v.SetDefault("adjustment_auto_fix", false)

	v.SetDefault("cron_batch_size", 200)
	v.SetDefault("cron_update_days", 7)

	v.SetDefault("enable_auto_registration", true)
	v.SetDefault("auto_register_timeout", "10s")
	v.SetDefault("yf_validate_timeout", "10s")
}

// Load reads environment variables (matching spec 6.4's names
// case-insensitively) plus an optional config file already read into v,
// returning a fully-resolved Settings. Follows the teacher's
// viper.AutomaticEnv() convention from cmd/root.go's initConfig.
func Load(v *viper.Viper) Settings {
	if v == nil {
		v = viper.GetViper()
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return Settings{
		DatabaseURL: v.GetString("database_url"),

		YFRateLimitRequestsPerSecond: v.GetFloat64("yf_rate_limit_requests_per_second"),
		YFRateLimitBurstSize:         v.GetInt("yf_rate_limit_burst_size"),
		YFRateLimitMaxBackoffDelay:   v.GetDuration("yf_rate_limit_max_backoff_delay"),
		FetchTimeoutSeconds:          v.GetInt("fetch_timeout_seconds"),
		FetchMaxRetries:              v.GetInt("fetch_max_retries"),
		FetchBackoffMaxSeconds:       v.GetInt("fetch_backoff_max_seconds"),
		YFRefetchDays:                v.GetInt("yf_refetch_days"),
		YFReqConcurrency:             int64(v.GetInt("yf_req_concurrency")),
		YFBaseURL:                    v.GetString("yf_base_url"),
		YFAPIKey:                     v.GetString("yf_api_key"),

		APIMaxSymbols:      v.GetInt("api_max_symbols"),
		APIMaxSymbolsLocal: v.GetInt("api_max_symbols_local"),
		APIMaxRows:         v.GetInt("api_max_rows"),
		APIMaxRowsLocal:    v.GetInt("api_max_rows_local"),

		FetchJobMaxSymbols:     v.GetInt("fetch_job_max_symbols"),
		FetchJobMaxDays:        v.GetInt("fetch_job_max_days"),
		FetchJobTimeout:        v.GetDuration("fetch_job_timeout"),
		FetchWorkerConcurrency: v.GetInt("fetch_worker_concurrency"),
		FetchMaxConcurrentJobs: v.GetInt("fetch_max_concurrent_jobs"),
		FetchJobCleanupDays:    v.GetInt("fetch_job_cleanup_days"),

		AdjustmentCheckEnabled:    v.GetBool("adjustment_check_enabled"),
		AdjustmentMinThresholdPct: v.GetFloat64("adjustment_min_threshold_pct"),
		AdjustmentSamplePoints:    v.GetInt("adjustment_sample_points"),
		AdjustmentMinDataAgeDays:  v.GetInt("adjustment_min_data_age_days"),
		AdjustmentAutoFix:         v.GetBool("adjustment_auto_fix"),

		CronSecretToken: v.GetString("cron_secret_token"),
		CronBatchSize:   v.GetInt("cron_batch_size"),
		CronUpdateDays:  v.GetInt("cron_update_days"),

		EnableAutoRegistration: v.GetBool("enable_auto_registration"),
		AutoRegisterTimeout:    v.GetDuration("auto_register_timeout"),
		YFValidateTimeout:      v.GetDuration("yf_validate_timeout"),
	}
}
