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

// Package inputs turns command line arguments into the jobs of a session.
package inputs

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"iter"
	"path/filepath"
	"regexp"
	"strings"

	"clusterq/pkg/conflict"

	"github.com/maruel/natural"
	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
)

// ErrInvalidInput is returned for arguments that do not name a usable job.
var ErrInvalidInput = errors.New("invalid input")

// SortOrder selects the order in which arguments are processed.
type SortOrder int

const (
	// Unsorted keeps the command line order.
	Unsorted SortOrder = iota
	Natural
	NaturalReverse
)

// Options controls how arguments become jobs.
type Options struct {
	// Cwd resolves relative arguments. In job mode it is the input directory.
	Cwd string
	// JobMode takes arguments as base names instead of file paths.
	JobMode bool
	Sort    SortOrder
	// Filter selects base names; see CompileFilter. Nil accepts everything.
	Filter *regexp.Regexp
	// InFiles are the accepted input suffixes, without the dot.
	InFiles []string
	// FileKeys maps predicate names to the suffix of the file they test.
	// An empty suffix means the key itself.
	FileKeys map[string]string
	// Forced keys are true whatever the filesystem says.
	Forced []string
	Rules  conflict.Rules
}

// CompileFilter compiles expr so that it must match a whole base name.
func CompileFilter(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
	}
	return re, nil
}

// Job is one accepted input.
type Job struct {
	// Arg is the argument as given.
	Arg string
	Dir string
	// Base is the job name: the input file name without its suffix.
	Base string
	// Suffix is the matched input suffix; empty in job mode.
	Suffix string
	// Groups holds the filter's capture groups.
	Groups     []string
	Predicates conflict.Predicates
}

// Path returns the path of the job file with the given suffix.
func (j Job) Path(suffix string) string {
	return filepath.Join(j.Dir, j.Base+"."+suffix)
}

// Diagnostic reports an argument that was skipped.
type Diagnostic struct {
	Arg string
	Err error
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s: %v", d.Arg, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}

// Sequence yields the valid jobs of an argument list. Each traversal starts
// over and collects its own diagnostics.
type Sequence struct {
	fs    afero.Fs
	args  []string
	opts  Options
	diags []Diagnostic
}

// New creates the job sequence for args.
func New(fs afero.Fs, args []string, opts Options) *Sequence {
	sorted := slices.Clone(args)
	switch opts.Sort {
	case Natural:
		slices.SortStableFunc(sorted, naturalCompare)
	case NaturalReverse:
		slices.SortStableFunc(sorted, func(a, b string) int { return naturalCompare(b, a) })
	}
	return &Sequence{fs: fs, args: sorted, opts: opts}
}

// naturalCompare orders strings so that runs of digits compare by numeric
// value: "job2" sorts before "job10".
func naturalCompare(a, b string) int {
	switch {
	case natural.Less(a, b):
		return -1
	case natural.Less(b, a):
		return 1
	}
	return 0
}

// Args returns the arguments in processing order.
func (s *Sequence) Args() []string {
	return slices.Clone(s.args)
}

// Entries yields every argument in order: a valid job with a nil error, or
// a job holding only Arg with its Diagnostic. Arguments rejected by the
// filter are dropped silently.
func (s *Sequence) Entries() iter.Seq2[Job, error] {
	return func(yield func(Job, error) bool) {
		s.diags = nil
		for _, arg := range s.args {
			job, ok, err := s.next(arg)
			if err != nil {
				d := Diagnostic{Arg: arg, Err: err}
				s.diags = append(s.diags, d)
				if !yield(Job{Arg: arg}, d) {
					return
				}
				continue
			}
			if !ok {
				continue
			}
			if !yield(job, nil) {
				return
			}
		}
	}
}

// All yields every valid job in order. Invalid arguments are recorded as
// diagnostics.
func (s *Sequence) All() iter.Seq[Job] {
	return func(yield func(Job) bool) {
		for job, err := range s.Entries() {
			if err != nil {
				continue
			}
			if !yield(job) {
				return
			}
		}
	}
}

// Diagnostics returns what the last traversal skipped.
func (s *Sequence) Diagnostics() []Diagnostic {
	return slices.Clone(s.diags)
}

func (s *Sequence) next(arg string) (Job, bool, error) {
	job := Job{Arg: arg}
	if s.opts.JobMode {
		if arg == "" || strings.ContainsRune(arg, filepath.Separator) {
			return job, false, fmt.Errorf("%w: job name %q must not be a path", ErrInvalidInput, arg)
		}
		job.Dir, job.Base = s.opts.Cwd, arg
	} else {
		path := arg
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.opts.Cwd, path)
		}
		path = filepath.Clean(path)
		job.Dir = filepath.Dir(path)
		name := filepath.Base(path)
		for _, suffix := range s.opts.InFiles {
			if base, ok := strings.CutSuffix(name, "."+suffix); ok && base != "" {
				job.Base, job.Suffix = base, suffix
				break
			}
		}
		if job.Base == "" {
			return job, false, fmt.Errorf("%w: the suffix of %q is not an input suffix (%s)",
				ErrInvalidInput, name, strings.Join(s.opts.InFiles, ", "))
		}
		if err := s.assertFile(path); err != nil {
			return job, false, err
		}
	}

	if s.opts.Filter != nil {
		m := s.opts.Filter.FindStringSubmatch(job.Base)
		if m == nil {
			return job, false, nil
		}
		job.Groups = m[1:]
	}

	job.Predicates = s.predicates(job)
	if err := s.opts.Rules.Check(job.Predicates); err != nil {
		return job, false, fmt.Errorf("job %s: %w", job.Base, err)
	}
	return job, true, nil
}

func (s *Sequence) assertFile(path string) error {
	fi, err := s.fs.Stat(path)
	switch {
	case errors.Is(err, iofs.ErrNotExist):
		return fmt.Errorf("%w: input file %s does not exist", ErrInvalidInput, path)
	case err != nil:
		return fmt.Errorf("failed to stat %s: %w", path, err)
	case fi.IsDir():
		return fmt.Errorf("%w: input file %s is a directory", ErrInvalidInput, path)
	case !fi.Mode().IsRegular():
		return fmt.Errorf("%w: input file %s is not a regular file", ErrInvalidInput, path)
	}
	return nil
}

func (s *Sequence) predicates(job Job) conflict.Predicates {
	preds := make(conflict.Predicates, len(s.opts.FileKeys))
	for key, suffix := range s.opts.FileKeys {
		if suffix == "" {
			suffix = key
		}
		if slices.Contains(s.opts.Forced, key) {
			preds[key] = true
			continue
		}
		fi, err := s.fs.Stat(job.Path(suffix))
		preds[key] = err == nil && fi.Mode().IsRegular()
	}
	return preds
}
