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

	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Inspect this deployment's identity and per-symbol coverage",
}

var libraryStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the library name and per-symbol coverage summary",
	Long: `status reads the coverage_summary view (one row per symbol: point
count, date span, last refresh) the same rollup a dashboard would read,
without this command itself being a dashboard.`,
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Store.LibraryName(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("library: %s\n\n", name)

		rows, err := a.Store.CoverageSummary(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("symbol\tdata_points\tfirst_date\tlast_date\ttotal_days\n")
		for _, r := range rows {
			first, last := "-", "-"
			if r.FirstDate != nil {
				first = r.FirstDate.Format(dateLayout)
			}
			if r.LastDate != nil {
				last = r.LastDate.Format(dateLayout)
			}
			days := 0
			if r.TotalDays != nil {
				days = *r.TotalDays
			}
			fmt.Printf("%s\t%d\t%s\t%s\t%d\n", r.Symbol, r.DataPoints, first, last, days)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryStatusCmd)
}
