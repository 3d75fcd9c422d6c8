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
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clusterq/pkg/inputs"
	"clusterq/pkg/logging"
	"clusterq/pkg/orchestrator/batch"
	"clusterq/pkg/run"
	"clusterq/pkg/scheduler"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	nproc       int
	queue       string
	version     string
	outDir      string
	jobMode     bool
	cwd         string
	delay       secondsOrDuration
	sortNatural bool
	sortReverse bool
	filter      string
	params      map[string]string
	files       map[string]string
	dryRun      bool
	move        bool
	scratch     string
	nhost       int
	hosts       string
)

func init() {
	rootCmd.AddCommand(submitCmd)
	addSubmitFlags(submitCmd.Flags())
	submitCmd.MarkFlagsMutuallyExclusive("sort", "sort-reverse")
	submitCmd.MarkFlagsMutuallyExclusive("nhost", "hosts")
}

func addSubmitFlags(flags *pflag.FlagSet) {
	flags.IntVarP(&nproc, "nproc", "n", 1, "Number of processors to request.")
	flags.StringVarP(&queue, "queue", "q", "", "Scheduler queue (partition). Defaults to the configured queue.")
	flags.StringVarP(&version, "version", "v", "", "Program version. Defaults to the configured version.")
	flags.StringVarP(&outDir, "out", "o", "", "Output directory. Defaults to the directory of each input file.")
	flags.BoolVarP(&jobMode, "job", "j", false, "Take arguments as job names inside --cwd instead of file paths.")
	flags.StringVar(&cwd, "cwd", "", "Directory that relative arguments are resolved against. Defaults to the current directory.")
	flags.Var(&delay, "delay", "Pause between consecutive submissions, in whole seconds or as a duration (e.g. 5 or 1m30s).")
	flags.BoolVarP(&sortNatural, "sort", "s", false, "Process arguments in natural order.")
	flags.BoolVarP(&sortReverse, "sort-reverse", "S", false, "Process arguments in reverse natural order.")
	flags.StringVarP(&filter, "filter", "f", "", "Only submit jobs whose name fully matches this regular expression.")
	flags.StringToStringVar(&params, "param", nil, "Parameter key values, e.g. --param basis=def2-svp.")
	flags.StringToStringVar(&files, "file", nil, "Use this file for a file key, e.g. --file hasGuess=old.gbw.")
	flags.BoolVar(&dryRun, "dry-run", false, "Prepare the jobs without submitting them.")
	flags.BoolVar(&move, "move", false, "Move the input files to the output directory instead of copying them.")
	flags.StringVar(&scratch, "scratch", "", "Directory for temporary files. Defaults to the configured scratch directory.")
	flags.IntVarP(&nhost, "nhost", "N", 1, "Number of execution nodes to request.")
	flags.StringVar(&hosts, "hosts", "", "Request specific execution nodes.")
}

// secondsOrDuration reads whole seconds or a time.Duration.
type secondsOrDuration time.Duration

func (d *secondsOrDuration) String() string {
	return time.Duration(*d).String()
}

func (d *secondsOrDuration) Set(s string) error {
	v, err := time.ParseDuration(s)
	if n, aerr := strconv.Atoi(s); aerr == nil {
		v, err = time.Duration(n)*time.Second, nil
	}
	if err != nil {
		return fmt.Errorf("want whole seconds or a duration such as 1m30s: %w", err)
	}
	if v < 0 {
		return fmt.Errorf("negative delay %s", v)
	}
	*d = secondsOrDuration(v)
	return nil
}

func (d *secondsOrDuration) Type() string {
	return "seconds"
}

var submitCmd = &cobra.Command{
	Use:   "submit PACKAGE FILE...",
	Short: "Submits one job per input file.",
	Long: `The 'submit' command prepares a job script for each input file of PACKAGE
and hands it to the batch scheduler. Jobs that are inconsistently specified,
or whose output would overwrite a job still in the queue, are skipped and
reported; the remaining jobs are still submitted.`,
	Args:         cobra.MinimumNArgs(2),
	Run:          runSubmitCmd,
	SilenceUsage: true,
}

func runSubmitCmd(cmd *cobra.Command, args []string) {
	s := openSession(args[0])

	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			logging.Fatal("Failed to get the current directory: %v", err)
		}
		cwd = wd
	}
	if err := s.Select(run.Selection{Version: version, Params: params, Files: absFiles(files)}); err != nil {
		logging.Fatal("%v", err)
	}

	opts := run.RunOptions{
		NProc:   nproc,
		Queue:   queue,
		OutDir:  outDir,
		Cwd:     cwd,
		JobMode: jobMode,
		Filter:  filter,
		Delay:   time.Duration(delay),
		Move:    move,
		Scratch: scratch,
		NHost:   nhost,
		Hosts:   hosts,
	}
	switch {
	case sortNatural:
		opts.Sort = inputs.Natural
	case sortReverse:
		opts.Sort = inputs.NaturalReverse
	}

	orch := batch.NewBatchOrchestrator(s.Fs, s.Client, scheduler.NewRegistry(s.Fs), batch.Options{DryRun: dryRun})
	report, err := run.ExecuteRun(s, orch, args[1:], opts)
	if err != nil {
		logging.Fatal("%v", err)
	}
	if n := report.Failed(); n > 0 {
		logging.Fatal("%d of %d jobs were not submitted.", n, len(report.Outcomes))
	}
}

// absFiles resolves --file paths against the current directory.
func absFiles(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for k, v := range files {
		if abs, err := filepath.Abs(v); err == nil {
			v = abs
		}
		out[k] = v
	}
	return out
}
