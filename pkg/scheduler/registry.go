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

package scheduler

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Identity names the output of a job. Two jobs with the same identity would
// write the same files.
type Identity struct {
	Base   string
	OutDir string
}

func (id Identity) String() string {
	return filepath.Join(id.OutDir, id.Base)
}

// RecordPath is where the id of the last job submitted for id is kept.
func (id Identity) RecordPath() string {
	return filepath.Join(id.OutDir, "."+id.Base+".jobid")
}

// JobHandle ties a scheduler job id to the output it writes.
type JobHandle struct {
	ID       string
	Identity Identity
}

// Registry remembers submitted jobs by identity, both for the current
// session and across sessions through job records in the output directory.
type Registry struct {
	fs      afero.Fs
	session map[Identity]string
}

// NewRegistry creates a registry storing job records on fs.
func NewRegistry(fs afero.Fs) *Registry {
	return &Registry{fs: fs, session: make(map[Identity]string)}
}

// Lookup returns the last job submitted for id, if any.
func (r *Registry) Lookup(id Identity) (JobHandle, bool, error) {
	if jobID, ok := r.session[id]; ok {
		return JobHandle{ID: jobID, Identity: id}, true, nil
	}
	data, err := afero.ReadFile(r.fs, id.RecordPath())
	if errors.Is(err, iofs.ErrNotExist) {
		return JobHandle{}, false, nil
	}
	if err != nil {
		return JobHandle{}, false, fmt.Errorf("failed to read job record %s: %w", id.RecordPath(), err)
	}
	jobID := strings.TrimSpace(string(data))
	if jobID == "" {
		return JobHandle{}, false, nil
	}
	return JobHandle{ID: jobID, Identity: id}, true, nil
}

// Record stores h as the latest job for its identity.
func (r *Registry) Record(h JobHandle) error {
	r.session[h.Identity] = h.ID
	if err := afero.WriteFile(r.fs, h.Identity.RecordPath(), []byte(h.ID+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write job record %s: %w", h.Identity.RecordPath(), err)
	}
	return nil
}

// Check observes the last job recorded for id. Without a record the state
// is Unsubmitted and the scheduler is not consulted.
func (r *Registry) Check(c *Client, id Identity) (JobHandle, Observation, error) {
	h, ok, err := r.Lookup(id)
	if err != nil || !ok {
		return h, Observation{State: Unsubmitted}, err
	}
	return h, c.Status(h.ID), nil
}
