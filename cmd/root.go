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

// Package cmd defines the clusterq command line.
package cmd

import (
	"os"

	"clusterq/pkg/config"
	"clusterq/pkg/logging"
	"clusterq/pkg/run"
	"clusterq/pkg/shell"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	configDir string
	verbose   bool
	noColor   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", os.Getenv("CONFIGPATH"), "Directory holding the cluster configuration. Defaults to $CONFIGPATH.")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print debug messages.")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output.")
}

var rootCmd = &cobra.Command{
	Use:   "clusterq",
	Short: "Submits program runs to a batch scheduler.",
	Long: `clusterq turns input files into batch jobs for the programs installed on a
cluster. Each program is described by layered configuration documents found
under the configuration directory and in ~/.clusterq.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.SetVerbose(verbose)
		if noColor {
			logging.DisableColor()
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openSession loads the configuration of pkg or exits.
func openSession(pkg string) *run.Session {
	if configDir == "" {
		logging.Fatal("No configuration directory: set $CONFIGPATH or use --config-dir.")
	}
	names := run.SystemNames()
	s, err := run.NewSession(afero.NewOsFs(), shell.Local{}, config.Paths{ConfigDir: configDir, HomeDir: names["home"]}, pkg, names)
	if err != nil {
		logging.Fatal("%v", err)
	}
	return s
}
