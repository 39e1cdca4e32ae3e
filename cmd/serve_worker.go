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
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveWorkerCmd = &cobra.Command{
	Use:   "serve-worker",
	Short: "Run the Fetch Worker as a long-lived process, polling the job store",
	Long: `serve-worker runs the Fetch Worker as a daemon: it polls the Fetch Job
Store for pending FetchJobs and executes each with bounded per-symbol
concurrency until the process receives SIGINT/SIGTERM, generalizing the
teacher's "no args -> run as daemon" branch in cmd/run.go into an
actual polling loop.`,
	RunE: func(c *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		demoted, err := a.Worker.ReconcileAbandoned(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to reconcile abandoned jobs on startup")
		} else if demoted > 0 {
			log.Warn().Int("jobs", demoted).Msg("demoted jobs left running by a prior process")
		}

		log.Info().Int("concurrency", a.Worker.Concurrency).Msg("fetch worker starting")
		err = a.Worker.Run(ctx)
		if err != nil && ctx.Err() != nil {
			log.Info().Msg("fetch worker shutting down")
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveWorkerCmd)
}
