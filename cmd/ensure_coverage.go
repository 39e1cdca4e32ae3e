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
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pkgsymbol "github.com/quantledger/ohlcv-coverage/internal/symbol"
)

var (
	ensureFrom  string
	ensureTo    string
	ensureForce bool
)

var ensureCoverageCmd = &cobra.Command{
	Use:   "ensure-coverage [symbols...]",
	Short: "Register symbols if needed and backfill/refresh their stored history synchronously",
	Long: `ensure-coverage runs the Coverage Engine directly against the given
symbols, auto-registering any symbol unknown to the library, then
filling gaps and refreshing the recent tail over [--from, --to]. Unlike
a bulk FetchJob this runs inline in the calling process and blocks until
every symbol finishes, intended for small ad-hoc backfills.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		from, err := time.Parse(dateLayout, ensureFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		to, err := time.Parse(dateLayout, ensureTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, arg := range args {
			sym, err := pkgsymbol.Normalize(arg)
			if err != nil {
				log.Error().Err(err).Str("input", arg).Msg("invalid symbol, skipping")
				continue
			}
			result, err := a.Engine.RegisterAndEnsure(ctx, sym, from, to, ensureForce)
			if err != nil {
				log.Error().Err(err).Str("symbol", sym).Msg("ensure-coverage failed")
				continue
			}
			log.Info().Str("symbol", sym).Strs("notes", result.Notes).Msg("ensure-coverage complete")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(ensureCoverageCmd)
	ensureCoverageCmd.Flags().StringVar(&ensureFrom, "from", "", "start date (YYYY-MM-DD)")
	ensureCoverageCmd.Flags().StringVar(&ensureTo, "to", "", "end date (YYYY-MM-DD)")
	ensureCoverageCmd.Flags().BoolVar(&ensureForce, "force-refresh", false, "bypass the freshness check and refetch the full range")
	_ = ensureCoverageCmd.MarkFlagRequired("from")
	_ = ensureCoverageCmd.MarkFlagRequired("to")
}
