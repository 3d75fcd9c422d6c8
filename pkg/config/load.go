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
	"path/filepath"

	"clusterq/pkg/logging"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Paths locates the configuration documents of one installation.
type Paths struct {
	// ConfigDir holds the system-wide documents.
	ConfigDir string
	// HomeDir holds the user overrides under .clusterq.
	HomeDir string
}

// LayerFile is one document in the merge sequence.
type LayerFile struct {
	Path     string
	Required bool
}

// SystemLayers returns the system documents for pkg in merge order, not
// counting the iospec, whose location depends on the merged result.
func (p Paths) SystemLayers(pkg string) []LayerFile {
	return []LayerFile{
		{Path: filepath.Join(p.ConfigDir, "queueconf.json"), Required: true},
		{Path: filepath.Join(p.ConfigDir, "clusterconf.json"), Required: true},
		{Path: filepath.Join(p.ConfigDir, "packages", pkg, "packageconf.json"), Required: true},
	}
}

// IOSpecLayer returns the iospec document named iospec.
func (p Paths) IOSpecLayer(iospec string) LayerFile {
	return LayerFile{Path: filepath.Join(p.ConfigDir, "iospecs", iospec, "iospec.json"), Required: true}
}

// UserLayers returns the optional user overrides for pkg in merge order.
func (p Paths) UserLayers(pkg string) []LayerFile {
	if p.HomeDir == "" {
		return nil
	}
	userDir := filepath.Join(p.HomeDir, ".clusterq")
	return []LayerFile{
		{Path: filepath.Join(userDir, "clusterconf.json")},
		{Path: filepath.Join(userDir, pkg, "packageconf.json")},
	}
}

// MergeFile loads lf and merges it. A missing optional document is skipped.
func (c *Config) MergeFile(fs afero.Fs, lf LayerFile) error {
	layer, err := LoadLayer(fs, lf.Path)
	if err != nil {
		if !lf.Required && errors.Is(err, ErrConfigNotFound) {
			logging.Debug("Optional configuration %s not found, skipping", lf.Path)
			return nil
		}
		return err
	}
	logging.Debug("Merging configuration %s", lf.Path)
	return c.Merge(layer)
}

// Load builds the effective configuration for pkg: cluster tier, package
// tier, iospec tier and finally the user overrides.
func Load(fs afero.Fs, paths Paths, pkg string) (*Config, error) {
	cfg := New()
	for _, lf := range paths.SystemLayers(pkg) {
		if err := cfg.MergeFile(fs, lf); err != nil {
			return nil, err
		}
	}
	if iospec, ok := cfg.Scalar("iospec"); ok && iospec != "" {
		if err := cfg.MergeFile(fs, paths.IOSpecLayer(iospec)); err != nil {
			return nil, err
		}
	}
	for _, lf := range paths.UserLayers(pkg) {
		if err := cfg.MergeFile(fs, lf); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
