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

// Package run holds the state of one clusterq invocation and drives the
// submission of its jobs.
package run

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"clusterq/pkg/config"
	"clusterq/pkg/conflict"
	"clusterq/pkg/discovery"
	"clusterq/pkg/interp"
	"clusterq/pkg/logging"
	"clusterq/pkg/scheduler"
	"clusterq/pkg/shell"

	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
)

// ErrInvalidSelection is returned when a version, parameter set or file
// option chosen on the command line does not exist.
var ErrInvalidSelection = errors.New("invalid selection")

// Session is the context shared by every job of one invocation. It is built
// once and read-only afterwards.
type Session struct {
	Package  string
	Fs       afero.Fs
	Config   *config.Config
	Settings *config.Settings
	// Names is the naming context for path patterns.
	Names          interp.Context
	ParameterPaths []config.ParameterPath
	Rules          conflict.Rules
	Client         *scheduler.Client

	// Filled in by Select.
	Version    string
	Executable string
	// Parameters maps parameter set names to their selected paths.
	Parameters map[string]string
	// Files maps file keys given on the command line to their paths.
	Files map[string]string
}

// NewSession loads the configuration of pkg and prepares everything that
// does not depend on the jobs or on command line selections.
func NewSession(fs afero.Fs, runner shell.Runner, paths config.Paths, pkg string, names interp.Context) (*Session, error) {
	cfg, err := config.Load(fs, paths, pkg)
	if err != nil {
		return nil, err
	}
	st, err := cfg.Settings()
	if err != nil {
		return nil, err
	}

	s := &Session{Package: pkg, Fs: fs, Config: cfg, Settings: st}
	s.Names = names.With(interp.Context{
		"command": pkg,
		"cluster": st.ClusterName,
		"display": st.DisplayName,
	})

	if s.ParameterPaths, err = st.ResolveParameterPaths(s.Names); err != nil {
		return nil, err
	}
	if s.Rules, err = conflict.CompileRules(st.Conflicts); err != nil {
		return nil, err
	}
	protocol, err := scheduler.NewProtocol(st)
	if err != nil {
		return nil, err
	}
	s.Client = scheduler.NewClient(protocol, runner)
	logging.Debug("Loaded %s configuration from %s", st.DisplayName, strings.Join(cfg.Sources(), ", "))
	return s, nil
}

// Selection holds the command line choices that complete a session.
type Selection struct {
	Version string
	// Params gives values to parameter keys.
	Params map[string]string
	// Files forces file keys, mapping them to the file to use.
	Files map[string]string
}

// Select resolves the program version, the parameter sets and the forced
// files.
func (s *Session) Select(sel Selection) error {
	if err := s.selectVersion(sel.Version); err != nil {
		return err
	}
	if err := s.selectParameters(sel.Params); err != nil {
		return err
	}
	return s.selectFiles(sel.Files)
}

func (s *Session) selectVersion(version string) error {
	v, exe, err := s.Settings.ExecutableFor(version)
	if err == nil {
		s.Version, s.Executable = v, exe
		return nil
	}
	if !errors.Is(err, config.ErrMalformedConfig) || version == "" {
		return err
	}
	if _, known := s.Settings.Versions[version]; known {
		return err
	}
	return selectionError("version", version, sortedKeys(s.Settings.Versions))
}

func (s *Session) selectParameters(params map[string]string) error {
	inUse := config.ParameterKeysInUse(s.ParameterPaths)
	for _, key := range sortedKeys(params) {
		if !slices.Contains(inUse, key) {
			return selectionError("parameter key", key, inUse)
		}
	}
	values := interp.Context(s.Settings.Defaults.ParameterKeys).With(params)

	s.Parameters = make(map[string]string, len(s.ParameterPaths))
	for _, pp := range s.ParameterPaths {
		for _, span := range pp.Template.Apply(values).Split(nil) {
			if !span.Resolved() && !span.HasDefault {
				return fmt.Errorf("%w: parameter set %s needs a value for %q (use --param %s=VALUE)",
					ErrInvalidSelection, pp.Set, span.Key, span.Key)
			}
		}
		path, _ := pp.Template.Resolve(values)
		if ok, _ := afero.Exists(s.Fs, path); !ok {
			return s.missingParameterSet(pp, values, path)
		}
		s.Parameters[pp.Set] = path
		logging.Debug("Parameter set %s: %s", pp.Set, path)
	}
	return nil
}

// missingParameterSet explains a selection that names no existing path,
// suggesting the closest option at the first level that does not match.
func (s *Session) missingParameterSet(pp config.ParameterPath, values interp.Context, path string) error {
	root, segs := discovery.Split(pp.Template, nil)
	tree, err := discovery.Discover(s.Fs, root, segs, nil)
	if err != nil {
		return fmt.Errorf("%w: parameter set %s: %s does not exist (%v)", ErrInvalidSelection, pp.Set, path, err)
	}
	chosen := discovery.DefaultNames(segs, nil, values)
	for _, name := range chosen {
		if _, ok := tree[name]; !ok {
			return selectionError("parameter set "+pp.Set, name, tree.Names())
		}
		tree = tree[name]
	}
	return fmt.Errorf("%w: parameter set %s: %s does not exist", ErrInvalidSelection, pp.Set, path)
}

func (s *Session) selectFiles(files map[string]string) error {
	s.Files = make(map[string]string, len(files))
	keys := sortedKeys(s.Settings.FileKeys)
	for _, key := range sortedKeys(files) {
		path := files[key]
		if _, ok := s.Settings.FileKeys[key]; !ok {
			return selectionError("file key", key, keys)
		}
		fi, err := s.Fs.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			return fmt.Errorf("%w: file %s given for %s is not a regular file", ErrInvalidSelection, path, key)
		}
		s.Files[key] = path
	}
	return nil
}

// ForcedKeys lists the file keys given on the command line.
func (s *Session) ForcedKeys() []string {
	return sortedKeys(s.Files)
}

// Status observes jobID once.
func (s *Session) Status(jobID string) scheduler.Observation {
	return s.Client.Status(jobID)
}

func selectionError(what, got string, options []string) error {
	msg := fmt.Sprintf("unknown %s %q", what, got)
	if len(options) > 0 {
		msg += "; available: " + strings.Join(options, ", ")
	}
	if s := discovery.Suggest(got, options); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return fmt.Errorf("%w: %s", ErrInvalidSelection, msg)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
