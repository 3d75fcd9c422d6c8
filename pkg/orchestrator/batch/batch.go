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

// Package batch submits jobs to a batch scheduler driven by external
// commands, such as Slurm or PBS.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"

	"clusterq/pkg/logging"
	"clusterq/pkg/orchestrator"
	"clusterq/pkg/run/jobscript"
	"clusterq/pkg/scheduler"

	"github.com/otiai10/copy"
	"github.com/spf13/afero"
)

// ErrDuplicateJob is returned when a job for the same output is still in
// the queue, or its state cannot be trusted.
var ErrDuplicateJob = errors.New("job not submitted")

// StageFunc copies the file at src to dst.
type StageFunc func(src, dst string) error

// CopyStage stages files on the local disk. Symlinks are copied as the
// files they point to.
func CopyStage(src, dst string) error {
	return copy.Copy(src, dst, copy.Options{
		PreserveTimes: true,
		OnSymlink:     func(string) copy.SymlinkAction { return copy.Deep },
	})
}

// BatchOrchestrator implements the Orchestrator interface for command
// driven batch schedulers.
type BatchOrchestrator struct {
	fs       afero.Fs
	client   *scheduler.Client
	registry *scheduler.Registry
	stage    StageFunc
	dryRun   bool
}

// Options configures a BatchOrchestrator.
type Options struct {
	// Stage defaults to CopyStage.
	Stage StageFunc
	// DryRun prepares jobs without calling the submit command.
	DryRun bool
}

// NewBatchOrchestrator creates and returns a new BatchOrchestrator instance.
func NewBatchOrchestrator(fs afero.Fs, client *scheduler.Client, registry *scheduler.Registry, opts Options) *BatchOrchestrator {
	stage := opts.Stage
	if stage == nil {
		stage = CopyStage
	}
	return &BatchOrchestrator{fs: fs, client: client, registry: registry, stage: stage, dryRun: opts.DryRun}
}

// ScriptPath is where the job script of job is written.
func ScriptPath(job orchestrator.JobDefinition) string {
	return filepath.Join(job.OutputDir, "."+job.Name+".job")
}

// SubmitJob checks that no job with the same output is queued, stages the
// input files, writes the job script and submits it. Only the submit
// command is skipped in a dry run.
func (b *BatchOrchestrator) SubmitJob(job orchestrator.JobDefinition) (orchestrator.Result, error) {
	id := scheduler.Identity{Base: job.Name, OutDir: job.OutputDir}
	res := orchestrator.Result{ScriptPath: ScriptPath(job), DryRun: b.dryRun}

	h, obs, err := b.registry.Check(b.client, id)
	if err != nil {
		return res, err
	}
	if err := b.checkPrevious(job, h, obs); err != nil {
		return res, err
	}

	if err := b.stageFiles(job); err != nil {
		return res, err
	}

	script, err := jobscript.GenerateJobScript(job.Script)
	if err != nil {
		return res, err
	}
	if err := jobscript.WriteJobScript(b.fs, res.ScriptPath, script); err != nil {
		return res, err
	}

	if b.dryRun {
		logging.Info("Dry run: job %s prepared in %s, not submitted", job.Name, job.OutputDir)
		return res, nil
	}

	jobID, err := b.client.Submit(script)
	if err != nil {
		return res, fmt.Errorf("job %s: %w", job.Name, err)
	}
	res.JobID = jobID
	if err := b.registry.Record(scheduler.JobHandle{ID: jobID, Identity: id}); err != nil {
		return res, err
	}
	return res, nil
}

func (b *BatchOrchestrator) checkPrevious(job orchestrator.JobDefinition, h scheduler.JobHandle, obs scheduler.Observation) error {
	if obs.State.MaySubmit() {
		if obs.State == scheduler.TransientError {
			logging.Warn("Could not check the state of job %s (%s), submitting %s anyway", h.ID, obs.Detail, job.Name)
		}
		return nil
	}
	switch obs.State {
	case scheduler.QueuedDuplicate:
		return fmt.Errorf("%w: job %s uses the same output directory %s as job %s still in the queue",
			ErrDuplicateJob, job.Name, job.OutputDir, h.ID)
	case scheduler.QueuedInvalid:
		return fmt.Errorf("%w: job %s is in the queue as %s with unexpected state %q",
			ErrDuplicateJob, job.Name, h.ID, obs.Token)
	default:
		return fmt.Errorf("%w: job %s: failed to check the state of job %s: %s",
			ErrDuplicateJob, job.Name, h.ID, obs.Detail)
	}
}

// stageFiles copies the job files into the output directory. Nothing is
// staged when the job runs in its input directory, so files there are never
// overwritten.
func (b *BatchOrchestrator) stageFiles(job orchestrator.JobDefinition) error {
	if err := b.fs.MkdirAll(job.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", job.OutputDir, err)
	}
	if filepath.Clean(job.InputDir) == filepath.Clean(job.OutputDir) {
		return nil
	}
	for _, f := range job.StageFiles {
		dst := filepath.Join(job.OutputDir, f.Name)
		if filepath.Clean(f.Source) == dst {
			continue
		}
		logging.Debug("Staging %s to %s", f.Source, dst)
		if err := b.stage(f.Source, dst); err != nil {
			return fmt.Errorf("failed to stage %s for job %s: %w", f.Source, job.Name, err)
		}
		if !f.Move {
			continue
		}
		if b.dryRun {
			logging.Info("Dry run: %s copied, not moved", f.Source)
			continue
		}
		if err := b.fs.Remove(f.Source); err != nil {
			return fmt.Errorf("failed to remove %s after staging it: %w", f.Source, err)
		}
	}
	return nil
}
