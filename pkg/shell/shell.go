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

// Package shell runs external commands and captures their output.
package shell

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"

	"clusterq/pkg/logging"
)

// CommandResult holds the outcome of one command invocation.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the command exited with status zero.
func (r CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Command is an external command with optional standard input.
type Command struct {
	Name  string
	Args  []string
	Input string
	// HasInput distinguishes an empty stdin from no stdin at all.
	HasInput bool
}

// NewCommand creates a command for name and args.
func NewCommand(name string, args ...string) *Command {
	return &Command{Name: name, Args: args}
}

// SetInput feeds input to the command's standard input.
func (c *Command) SetInput(input string) {
	c.Input = input
	c.HasInput = true
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Execute runs the command on the local host.
func (c *Command) Execute() CommandResult {
	return Local{}.Run(c)
}

// Runner executes commands. Local is the production implementation; tests
// substitute fakes.
type Runner interface {
	Run(c *Command) CommandResult
}

// Local runs commands as subprocesses and blocks until they exit.
type Local struct{}

// Run implements Runner.
func (Local) Run(c *Command) CommandResult {
	logging.Debug("Executing: %s", c)
	cmd := exec.Command(c.Name, c.Args...)
	if c.HasInput {
		cmd.Stdin = strings.NewReader(c.Input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// the process never started (missing binary, permissions)
			res.ExitCode = -1
			if res.Stderr == "" {
				res.Stderr = err.Error()
			}
		}
	}
	return res
}

// ExecuteCommand runs name with args and no standard input.
func ExecuteCommand(name string, args ...string) CommandResult {
	return NewCommand(name, args...).Execute()
}
