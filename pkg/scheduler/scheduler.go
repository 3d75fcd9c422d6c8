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

// Package scheduler talks to the external batch scheduler through its
// configured submit and status commands and classifies what it observes.
// It never retries; timing decisions belong to the caller.
package scheduler

import (
	"errors"
	"fmt"
	"regexp"

	"clusterq/pkg/config"
	"clusterq/pkg/shell"

	"golang.org/x/exp/slices"
)

var (
	// ErrSubmissionFailed is returned when the submit command exits non-zero.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrUnexpectedAcknowledgment is returned when the submit command succeeds
	// but its output does not match the acknowledgment pattern.
	ErrUnexpectedAcknowledgment = errors.New("unexpected acknowledgment")
)

// JobState is the scheduler-side state of a job as far as clusterq knows.
type JobState int

const (
	Unsubmitted JobState = iota
	Submitted
	Ready
	QueuedDuplicate
	QueuedInvalid
	TransientError
	FatalError
)

func (s JobState) String() string {
	switch s {
	case Unsubmitted:
		return "unsubmitted"
	case Submitted:
		return "submitted"
	case Ready:
		return "ready"
	case QueuedDuplicate:
		return "queued-duplicate"
	case QueuedInvalid:
		return "queued-invalid"
	case TransientError:
		return "transient-error"
	case FatalError:
		return "fatal-error"
	default:
		return fmt.Sprintf("JobState(%d)", int(s))
	}
}

// MaySubmit reports whether a new job with the same output identity may be
// submitted after observing s.
func (s JobState) MaySubmit() bool {
	return s == Unsubmitted || s == Ready || s == TransientError
}

// Protocol is the compiled form of the scheduler settings.
type Protocol struct {
	SubmitCmd     []string
	SubmitPattern *regexp.Regexp
	StatusCmd     []string
	StatusPattern *regexp.Regexp
	ReadyStates   []string
	QueuedStates  []string
	Tolerable     []*regexp.Regexp
}

// NewProtocol compiles the scheduler settings. Patterns must match the whole
// output, and the submit and status patterns must capture the job id and
// the status token in their first group.
func NewProtocol(s *config.Settings) (*Protocol, error) {
	p := &Protocol{
		SubmitCmd:    s.SubmitCmd,
		StatusCmd:    s.StatusCmd,
		ReadyStates:  s.ReadyStates,
		QueuedStates: s.QueuedStates,
	}
	var err error
	if p.SubmitPattern, err = compileFull("sbmtregex", s.SubmitRegex, true); err != nil {
		return nil, err
	}
	if p.StatusPattern, err = compileFull("statregex", s.StatusRegex, true); err != nil {
		return nil, err
	}
	for _, expr := range s.TolerableErrors {
		re, err := compileFull("warn_errors", expr, false)
		if err != nil {
			return nil, err
		}
		p.Tolerable = append(p.Tolerable, re)
	}
	return p, nil
}

func compileFull(key, expr string, needGroup bool) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + expr + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %v", config.ErrMalformedConfig, key, expr, err)
	}
	if needGroup && re.NumSubexp() < 1 {
		return nil, fmt.Errorf("%w: %s %q has no capture group", config.ErrMalformedConfig, key, expr)
	}
	return re, nil
}

// Observation is one classified reading of a job's status.
type Observation struct {
	State JobState
	// Token is the status token reported by the scheduler, if any.
	Token string
	// Detail is the raw error text behind TransientError and FatalError.
	Detail string
}

// Client submits and polls jobs.
type Client struct {
	protocol *Protocol
	runner   shell.Runner
}

// NewClient creates a client running commands through runner.
func NewClient(p *Protocol, runner shell.Runner) *Client {
	return &Client{protocol: p, runner: runner}
}

// Submit feeds script to the submit command and returns the job id from its
// acknowledgment.
func (c *Client) Submit(script string) (string, error) {
	p := c.protocol
	cmd := shell.NewCommand(p.SubmitCmd[0], p.SubmitCmd[1:]...)
	cmd.SetInput(script)
	res := c.runner.Run(cmd)
	if !res.Success() {
		return "", fmt.Errorf("%w: %s", ErrSubmissionFailed, res.Stderr)
	}
	m := p.SubmitPattern.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", fmt.Errorf("%w: %q does not match %s", ErrUnexpectedAcknowledgment, res.Stdout, p.SubmitPattern)
	}
	return m[1], nil
}

// Status runs the status command for jobID once and classifies the result.
func (c *Client) Status(jobID string) Observation {
	p := c.protocol
	args := append(slices.Clone(p.StatusCmd[1:]), jobID)
	res := c.runner.Run(shell.NewCommand(p.StatusCmd[0], args...))
	if !res.Success() {
		for _, re := range p.Tolerable {
			if re.MatchString(res.Stderr) {
				return Observation{State: TransientError, Detail: res.Stderr}
			}
		}
		return Observation{State: FatalError, Detail: res.Stderr}
	}
	m := p.StatusPattern.FindStringSubmatch(res.Stdout)
	if m == nil {
		return Observation{State: FatalError, Detail: fmt.Sprintf("status output %q does not match %s", res.Stdout, p.StatusPattern)}
	}
	token := m[1]
	switch {
	case slices.Contains(p.ReadyStates, token):
		return Observation{State: Ready, Token: token}
	case slices.Contains(p.QueuedStates, token):
		return Observation{State: QueuedDuplicate, Token: token}
	default:
		return Observation{State: QueuedInvalid, Token: token}
	}
}
