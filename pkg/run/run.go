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

package run

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"clusterq/pkg/inputs"
	"clusterq/pkg/interp"
	"clusterq/pkg/logging"
	"clusterq/pkg/orchestrator"
	"clusterq/pkg/run/jobscript"
	"clusterq/pkg/scheduler"

	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
)

// defaultScript runs the program on the job input when the package does not
// configure a script.
const defaultScript = "{executable} {input}"

// RunOptions holds all the necessary parameters for the 'submit' command logic
type RunOptions struct {
	NProc int
	Queue string
	// OutDir replaces the input directory as output directory.
	OutDir string
	// Cwd resolves relative arguments.
	Cwd     string
	JobMode bool
	Sort    inputs.SortOrder
	Filter  string
	// Delay separates consecutive submissions.
	Delay time.Duration
	// Move moves the input files to the output directory instead of
	// copying them.
	Move bool
	// Scratch replaces the configured scratch directory.
	Scratch string
	NHost   int
	// Hosts requests specific execution nodes.
	Hosts string
}

// errMissingValue marks a pattern that needs a key nobody set.
var errMissingValue = errors.New("missing value")

// Outcome is what happened to one argument.
type Outcome struct {
	Arg    string
	Job    string
	JobID  string
	DryRun bool
	Err    error
}

// Report collects the outcomes of a run in processing order.
type Report struct {
	Outcomes []Outcome
}

// Failed counts the arguments that did not produce a job.
func (r *Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// add records o and logs it right away.
func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch {
	case o.Err != nil:
		logging.Error("%v", o.Err)
	case o.DryRun:
		logging.Info("Job %s prepared (dry run)", o.Job)
	default:
		logging.Info("Job %s submitted with id %s", o.Job, o.JobID)
	}
}

// sleep is replaced in tests.
var sleep = time.Sleep

// ExecuteRun submits one job per valid argument, one at a time and in
// order. A failed job is reported and the run continues with the next one,
// except when the scheduler acknowledges a job in an unknown way: its id is
// lost, so the run stops.
func ExecuteRun(s *Session, orch orchestrator.Orchestrator, args []string, opts RunOptions) (*Report, error) {
	seq, err := s.inputs(args, opts)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	submitted := false
	for job, err := range seq.Entries() {
		if err != nil {
			report.add(Outcome{Arg: job.Arg, Err: err})
			continue
		}
		def, err := s.jobDefinition(job, opts)
		if err != nil {
			report.add(Outcome{Arg: job.Arg, Job: job.Base, Err: err})
			continue
		}
		if submitted && opts.Delay > 0 {
			sleep(opts.Delay)
		}
		res, err := orch.SubmitJob(def)
		report.add(Outcome{Arg: job.Arg, Job: job.Base, JobID: res.JobID, DryRun: res.DryRun, Err: err})
		if errors.Is(err, scheduler.ErrUnexpectedAcknowledgment) {
			return report, fmt.Errorf("job %s may be queued without a record, not submitting any more jobs: %w", job.Base, err)
		}
		if err == nil && !res.DryRun {
			submitted = true
		}
	}
	return report, nil
}

func (s *Session) inputs(args []string, opts RunOptions) (*inputs.Sequence, error) {
	iopts := inputs.Options{
		Cwd:      opts.Cwd,
		JobMode:  opts.JobMode,
		Sort:     opts.Sort,
		InFiles:  s.Settings.InFiles,
		FileKeys: s.Settings.FileKeys,
		Forced:   s.ForcedKeys(),
		Rules:    s.Rules,
	}
	if opts.Filter != "" {
		re, err := inputs.CompileFilter(opts.Filter)
		if err != nil {
			return nil, err
		}
		iopts.Filter = re
	}
	return inputs.New(s.Fs, args, iopts), nil
}

func (s *Session) jobDefinition(job inputs.Job, opts RunOptions) (orchestrator.JobDefinition, error) {
	out := job.Dir
	if opts.OutDir != "" {
		out = opts.OutDir
		if !filepath.IsAbs(out) {
			out = filepath.Join(opts.Cwd, out)
		}
		out = filepath.Clean(out)
	}
	// a job running in its input directory uses the files where they are
	inPlace := out == filepath.Clean(job.Dir)

	def := orchestrator.JobDefinition{Name: job.Base, InputDir: job.Dir, OutputDir: out}
	input := job.Base
	for _, suffix := range s.Settings.InFiles {
		if ok, _ := afero.Exists(s.Fs, job.Path(suffix)); ok {
			def.StageFiles = append(def.StageFiles, orchestrator.StagedFile{
				Source: job.Path(suffix), Name: job.Base + "." + suffix, Move: opts.Move,
			})
			if input == job.Base {
				input = job.Base + "." + suffix
			}
		}
	}
	if job.Suffix != "" {
		input = job.Base + "." + job.Suffix
	}

	files := make(interp.Context, len(s.Settings.FileKeys))
	for _, key := range sortedKeys(s.Settings.FileKeys) {
		suffix := s.Settings.FileKeys[key]
		if suffix == "" {
			suffix = key
		}
		name := job.Base + "." + suffix
		forced, isForced := s.Files[key]
		switch {
		case isForced && inPlace:
			files[key] = forced
		case isForced:
			def.StageFiles = append(def.StageFiles, orchestrator.StagedFile{Source: forced, Name: name})
			files[key] = filepath.Join(out, name)
		case !inPlace && slices.Contains(s.Settings.InFiles, suffix):
			files[key] = filepath.Join(out, name)
		default:
			files[key] = job.Path(suffix)
		}
	}

	nproc := opts.NProc
	if nproc < 1 {
		nproc = 1
	}
	nhost := opts.NHost
	if nhost < 1 {
		nhost = 1
	}
	queue := opts.Queue
	if queue == "" {
		queue = s.Settings.Defaults.Queue
	}
	ctx := s.Names.With(files).With(interp.Context{
		"name":       job.Base,
		"input":      input,
		"nproc":      strconv.Itoa(nproc),
		"nhost":      strconv.Itoa(nhost),
		"queue":      queue,
		"version":    s.Version,
		"executable": s.Executable,
		"outdir":     out,
	}).With(interp.Context(s.Parameters))
	if opts.Hosts != "" {
		ctx["hosts"] = opts.Hosts
	}

	expand := func(what, pattern string) (string, error) {
		text, missing, err := interp.Resolve(pattern, ctx)
		if err != nil {
			return "", fmt.Errorf("job %s: %s: %w", job.Base, what, err)
		}
		for _, key := range missing.Keys() {
			if !resolvedByDefault(pattern, key) {
				return "", fmt.Errorf("job %s: %s %q: %w for %q", job.Base, what, pattern, errMissingValue, key)
			}
		}
		return text, nil
	}
	expandAll := func(what string, patterns []string) ([]string, error) {
		texts := make([]string, 0, len(patterns))
		for _, p := range patterns {
			text, err := expand(what, p)
			if err != nil {
				return nil, err
			}
			texts = append(texts, text)
		}
		return texts, nil
	}

	scratch := opts.Scratch
	if scratch == "" && s.Settings.Scratch != "" {
		var err error
		if scratch, err = expand("scratch", s.Settings.Scratch); err != nil {
			return def, err
		}
	}
	if scratch != "" {
		if !filepath.IsAbs(scratch) {
			scratch = filepath.Join(opts.Cwd, scratch)
		}
		ctx["scratch"] = filepath.Clean(scratch)
	}

	script := s.Settings.Script
	if script == "" {
		script = defaultScript
	}
	command, err := expand("script", script)
	if err != nil {
		return def, err
	}
	// directives for options left unset are omitted
	directives := make([]string, 0, len(s.Settings.Directives))
	for _, d := range s.Settings.Directives {
		text, err := expand("directive", d)
		if errors.Is(err, errMissingValue) {
			logging.Debug("Omitting directive %q: %v", d, err)
			continue
		}
		if err != nil {
			return def, err
		}
		directives = append(directives, text)
	}
	load, err := expandAll("load", s.Settings.Load)
	if err != nil {
		return def, err
	}
	source, err := expandAll("source", s.Settings.Source)
	if err != nil {
		return def, err
	}
	export := make(map[string]string, len(s.Settings.Export))
	for k, v := range s.Settings.Export {
		if export[k], err = expand("export "+k, v); err != nil {
			return def, err
		}
	}
	prescript, err := expandAll("prescript", s.Settings.Prescript)
	if err != nil {
		return def, err
	}
	postscript, err := expandAll("postscript", s.Settings.Postscript)
	if err != nil {
		return def, err
	}

	def.Script = jobscript.ScriptOptions{
		JobName:    job.Base,
		Shell:      s.Settings.Shell,
		Directives: directives,
		Load:       load,
		Source:     source,
		Export:     export,
		WorkDir:    out,
		Prescript:  prescript,
		Command:    command,
		Postscript: postscript,
	}
	return def, nil
}

// resolvedByDefault reports whether every placeholder for key in pattern
// carries an inline default.
func resolvedByDefault(pattern, key string) bool {
	t, err := interp.Parse(pattern)
	if err != nil {
		return false
	}
	for _, span := range t.Split(nil) {
		if span.Key == key && !span.HasDefault {
			return false
		}
	}
	return true
}
