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
package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ohlcv-coverage",
	Short: "ohlcv-coverage maintains a cached library of adjusted daily OHLCV equity data",
	Long: `ohlcv-coverage is a command line utility for maintaining a read-through
cache of adjusted daily OHLCV bars sourced from an upstream market data
provider. It tracks how much history is on hand for each symbol, fills
gaps and refreshes recent bars on read, detects when an upstream
retroactive adjustment (split, dividend, spinoff) has made stored
history stale, and re-ingests the affected symbol's history when that
happens.

Bulk backfills and re-ingests run as durable FetchJobs executed by a
bounded-concurrency worker; scheduled maintenance submits the daily
incremental update and periodic adjustment scan on cron.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main. It only needs to happen
// once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ohlcv-coverage.toml)")
	rootCmd.PersistentFlags().String("database-url", "", "postgres connection string")
	if err := viper.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for database-url failed")
	}
}

// initConfig reads in config file and ENV variables if set, matching the
// teacher's cmd/root.go initConfig.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".ohlcv-coverage")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("using config file")
	}
}
