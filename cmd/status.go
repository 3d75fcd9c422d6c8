// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"

	"clusterq/pkg/logging"
	"clusterq/pkg/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:          "status PACKAGE JOBID",
	Short:        "Asks the scheduler for the state of a job once.",
	Args:         cobra.ExactArgs(2),
	Run:          runStatusCmd,
	SilenceUsage: true,
}

func runStatusCmd(cmd *cobra.Command, args []string) {
	obs := openSession(args[0]).Status(args[1])
	switch obs.State {
	case scheduler.FatalError:
		logging.Fatal("Failed to check job %s: %s", args[1], obs.Detail)
	case scheduler.TransientError:
		logging.Warn("Job %s: %s", args[1], obs.Detail)
	}
	if obs.Token != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", args[1], obs.Token, obs.State)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", args[1], obs.State)
}
