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

package orchestrator

import "clusterq/pkg/run/jobscript"

// JobDefinition holds everything needed to prepare and submit one job.
// Paths are absolute.
type JobDefinition struct {
	// Name is the job base name.
	Name      string
	InputDir  string
	OutputDir string
	// StageFiles are copied into OutputDir when it is not InputDir.
	StageFiles []StagedFile
	Script     jobscript.ScriptOptions
}

// StagedFile is an input file and the name it takes in the output directory.
type StagedFile struct {
	Source string
	Name   string
	// Move removes Source once it is staged.
	Move bool
}

// Result describes what happened to a submitted job.
type Result struct {
	JobID string
	// ScriptPath is where the rendered job script was written.
	ScriptPath string
	// DryRun is set when the scheduler was not called.
	DryRun bool
}

// Orchestrator defines the interface for submitting jobs to a cluster.
type Orchestrator interface {
	// SubmitJob prepares job and hands it to the scheduler.
	SubmitJob(job JobDefinition) (Result, error)
}
