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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantledger/ohlcv-coverage/internal/model"
	"github.com/quantledger/ohlcv-coverage/internal/store"
	"github.com/quantledger/ohlcv-coverage/internal/symbol"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage FetchJobs",
}

var (
	jobsCreateFrom     string
	jobsCreateTo       string
	jobsCreatePriority string
	jobsCreateForce    bool
)

var jobsCreateCmd = &cobra.Command{
	Use:   "create [symbols...]",
	Short: "Submit a bulk FetchJob covering the given symbols and date range",
	Long: `create validates the request against the configured job size and
window limits (FETCH_JOB_MAX_SYMBOLS, FETCH_JOB_MAX_DAYS) before
enqueuing a pending FetchJob for the Fetch Worker to pick up, the same
validation the CRUD contract requires of any FetchJob creation path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		from, err := time.Parse(dateLayout, jobsCreateFrom)
		if err != nil {
			return fmt.Errorf("invalid --from: %w", err)
		}
		to, err := time.Parse(dateLayout, jobsCreateTo)
		if err != nil {
			return fmt.Errorf("invalid --to: %w", err)
		}

		priority := model.JobPriority(strings.ToLower(jobsCreatePriority))
		switch priority {
		case model.PriorityLow, model.PriorityNormal, model.PriorityHigh:
		default:
			return fmt.Errorf("invalid --priority %q: must be low, normal or high", jobsCreatePriority)
		}

		symbols := make([]string, 0, len(args))
		for _, arg := range args {
			sym, err := symbol.Normalize(arg)
			if err != nil {
				return fmt.Errorf("invalid symbol %q: %w", arg, err)
			}
			symbols = append(symbols, sym)
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := store.ValidateJobRequest(symbols, from, to, a.Settings.FetchJobMaxSymbols, a.Settings.FetchJobMaxDays); err != nil {
			return err
		}

		jobID, err := a.Store.CreateJob(ctx, &model.FetchJob{
			Symbols:      symbols,
			DateFrom:     from,
			DateTo:       to,
			Priority:     priority,
			ForceRefresh: jobsCreateForce,
			CreatedBy:    "cli",
		})
		if err != nil {
			return err
		}

		fmt.Printf("job_id\tstatus\n%s\tpending\n", jobID)
		return nil
	},
}

var jobsListLimit int

var jobsListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent FetchJobs",
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.Store.ListJobs(ctx, jobsListLimit)
		if err != nil {
			return err
		}

		fmt.Printf("job_id\tstatus\tpriority\tsymbols\tprogress\n")
		for _, j := range jobs {
			fmt.Printf("%s\t%s\t%s\t%d\t%.0f%%\n", j.JobID, j.Status, j.Priority, len(j.Symbols), j.Progress.Percent)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Request cancellation of a pending or running FetchJob",
	Long: `cancel marks a FetchJob cancelled if it is currently pending or running.
Cancellation is cooperative: a running job finishes the symbol it is
currently fetching before the worker observes the cancelled status and
stops (spec's cooperative-cancellation contract).`,
	Args: cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		ok, err := a.Store.CancelJob(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("job %s is not pending or running, or does not exist", args[0])
		}
		fmt.Printf("job %s marked cancelled\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsCreateCmd)
	jobsListCmd.Flags().IntVar(&jobsListLimit, "limit", 50, "maximum jobs to list")

	jobsCreateCmd.Flags().StringVar(&jobsCreateFrom, "from", "", "start date (YYYY-MM-DD)")
	jobsCreateCmd.Flags().StringVar(&jobsCreateTo, "to", "", "end date (YYYY-MM-DD)")
	jobsCreateCmd.Flags().StringVar(&jobsCreatePriority, "priority", "normal", "job priority: low, normal or high")
	jobsCreateCmd.Flags().BoolVar(&jobsCreateForce, "force-refresh", false, "refetch the full range even where coverage already exists")
	_ = jobsCreateCmd.MarkFlagRequired("from")
	_ = jobsCreateCmd.MarkFlagRequired("to")
}
