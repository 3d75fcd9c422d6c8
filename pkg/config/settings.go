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

package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RequiredKeys must be present in the effective configuration before any
// filesystem or scheduler interaction.
var RequiredKeys = []string{
	"displayname",
	"clustername",
	"sbmtcmd",
	"sbmtregex",
	"statcmd",
	"statregex",
	"ready_states",
	"queued_states",
	"warn_errors",
}

// Settings is the typed view of an effective configuration.
type Settings struct {
	DisplayName string `yaml:"displayname"`
	ClusterName string `yaml:"clustername"`
	IOSpec      string `yaml:"iospec"`

	// Scheduler protocol.
	SubmitCmd       Command  `yaml:"sbmtcmd"`
	SubmitRegex     string   `yaml:"sbmtregex"`
	StatusCmd       Command  `yaml:"statcmd"`
	StatusRegex     string   `yaml:"statregex"`
	ReadyStates     []string `yaml:"ready_states"`
	QueuedStates    []string `yaml:"queued_states"`
	TolerableErrors []string `yaml:"warn_errors"`
	Directives      []string `yaml:"directives"`
	Shell           string   `yaml:"shell"`
	// Scratch is the default --scratch pattern, e.g. /scratch/{user}.
	Scratch string `yaml:"scratch"`

	// Job environment and program.
	Load       []string           `yaml:"load"`
	Source     []string           `yaml:"source"`
	Export     map[string]string  `yaml:"export"`
	Prescript  []string           `yaml:"prescript"`
	Postscript []string           `yaml:"postscript"`
	InFiles    []string           `yaml:"infiles"`
	Script     string             `yaml:"script"`
	Executable string             `yaml:"executable"`
	Versions   map[string]Version `yaml:"versions"`
	Defaults   Defaults           `yaml:"defaults"`

	// Parameter sets and input file options.
	ParameterSets  []string          `yaml:"parametersets"`
	ParameterKeys  []string          `yaml:"parameterkeys"`
	ParameterPaths map[string]string `yaml:"parameterpaths"`
	FileKeys       map[string]string `yaml:"filekeys"`
	Conflicts      Rules             `yaml:"conflicts"`
}

// Version describes one installed program version.
type Version struct {
	Executable string `yaml:"executable"`
}

// Defaults holds the values used when the command line leaves a choice open.
type Defaults struct {
	Version       string            `yaml:"version"`
	Queue         string            `yaml:"queue"`
	ParameterKeys map[string]string `yaml:"parameterkeys"`
}

// Command is an external command line. It may be written as a string, split
// on whitespace, or as a list of arguments.
type Command []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Command) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*c = strings.Fields(n.Value)
		return nil
	case yaml.SequenceNode:
		var args []string
		if err := n.Decode(&args); err != nil {
			return err
		}
		*c = args
		return nil
	default:
		return fmt.Errorf("line %d: a command must be a string or a list of strings", n.Line)
	}
}

// Rule pairs a conflict expression with the message shown when it matches.
type Rule struct {
	Expression string
	Message    string
}

// Rules keeps conflict declarations in document order.
type Rules []Rule

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Rules) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: conflicts must map expressions to messages", n.Line)
	}
	rules := make(Rules, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: conflict message for %q must be a string", v.Line, k.Value)
		}
		rules = append(rules, Rule{Expression: k.Value, Message: v.Value})
	}
	*r = rules
	return nil
}

// Validate checks that every required key is present.
func (c *Config) Validate() error {
	var missing []string
	for _, key := range RequiredKeys {
		if !c.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMissingKey, "%s (merged from %s)",
			strings.Join(missing, ", "), strings.Join(c.sources, ", "))
	}
	return nil
}

// Settings validates the configuration and decodes it.
func (c *Config) Settings() (*Settings, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s := &Settings{}
	if err := c.root.Decode(s); err != nil {
		return nil, errors.Wrapf(ErrMalformedConfig, "%v", err)
	}
	if len(s.SubmitCmd) == 0 || len(s.StatusCmd) == 0 {
		return nil, errors.Wrap(ErrMalformedConfig, "sbmtcmd and statcmd must not be empty")
	}
	if s.Shell == "" {
		s.Shell = "/bin/bash"
	}
	return s, nil
}

// ExecutableFor returns the executable of version, falling back to the
// default version. Packages without versions use the top-level executable.
func (s *Settings) ExecutableFor(version string) (string, string, error) {
	if len(s.Versions) == 0 {
		if s.Executable == "" {
			return "", "", errors.Wrap(ErrMissingKey, "executable")
		}
		return "", s.Executable, nil
	}
	if version == "" {
		version = s.Defaults.Version
	}
	if version == "" {
		return "", "", errors.Wrap(ErrMissingKey, "defaults.version")
	}
	v, ok := s.Versions[version]
	if !ok {
		return version, "", errors.Wrapf(ErrMalformedConfig, "unknown version %q", version)
	}
	if v.Executable == "" {
		return version, "", errors.Wrapf(ErrMalformedConfig, "version %q has no executable", version)
	}
	return version, v.Executable, nil
}
